package db

import (
	"context"
	"fmt"
	"reflect"
	"strings"
)

// Table descriu una taula amb clau primària "id" i la correspondència columna-camp.
// Fields ha de retornar punters als camps en el mateix ordre que Columns.
type Table[T any] struct {
	Name    string
	Columns []string
	Fields  func(*T) []any
	// OrderBy és l'ordenació per defecte dels llistats.
	OrderBy string
}

// Cond és una condició simple sobre una columna.
type Cond struct {
	Column string
	Op     string // "=", "<>", "<", "<=", ">", ">=", "LIKE", "IS NULL", "IS NOT NULL"
	Value  any
}

// Eq construeix una condició d'igualtat.
func Eq(column string, value any) Cond { return Cond{Column: column, Op: "=", Value: value} }

// ListQuery defineix filtres, ordenació i paginació d'un llistat.
type ListQuery struct {
	Where  []Cond
	Sort   string
	Desc   bool
	Limit  int
	Offset int
}

func (t Table[T]) columnList() string { return strings.Join(t.Columns, ", ") }

func (t Table[T]) hasColumn(c string) bool {
	for _, col := range t.Columns {
		if col == c {
			return true
		}
	}
	return false
}

// values converteix els punters de Fields en valors per als arguments SQL.
func values(ptrs []any) []any {
	out := make([]any, len(ptrs))
	for i, p := range ptrs {
		out[i] = reflect.ValueOf(p).Elem().Interface()
	}
	return out
}

func (t Table[T]) scan(sc interface{ Scan(...any) error }) (T, error) {
	var item T
	if err := sc.Scan(t.Fields(&item)...); err != nil {
		return item, classify(err)
	}
	return item, nil
}

// Get retorna la fila amb l'id indicat o ErrNotFound.
func (t Table[T]) Get(ctx context.Context, h Handle, id string) (*T, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", t.columnList(), t.Name)
	item, err := t.scan(h.QueryRow(ctx, q, id))
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Insert desa una fila nova amb tots els camps.
func (t Table[T]) Insert(ctx context.Context, h Handle, item *T) error {
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.Name, t.columnList(), placeholders(len(t.Columns)))
	if _, err := h.Exec(ctx, q, values(t.Fields(item))...); err != nil {
		return fmt.Errorf("insert %s: %w", t.Name, err)
	}
	return nil
}

// Update sobreescriu totes les columnes excepte id i created_at.
func (t Table[T]) Update(ctx context.Context, h Handle, item *T) error {
	vals := values(t.Fields(item))
	sets := make([]string, 0, len(t.Columns))
	args := make([]any, 0, len(t.Columns))
	var id any
	for i, col := range t.Columns {
		switch col {
		case "id":
			id = vals[i]
		case "created_at":
		default:
			sets = append(sets, col+" = ?")
			args = append(args, vals[i])
		}
	}
	args = append(args, id)
	q := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", t.Name, strings.Join(sets, ", "))
	res, err := h.Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", t.Name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 && h.style != "mysql" {
		// MySQL no compta files sense canvis, per això no s'hi aplica
		return ErrNotFound
	}
	return nil
}

// Delete esborra una fila per id.
func (t Table[T]) Delete(ctx context.Context, h Handle, id string) error {
	res, err := h.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", t.Name), id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", t.Name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteWhere esborra totes les files que compleixen les condicions.
func (t Table[T]) DeleteWhere(ctx context.Context, h Handle, conds ...Cond) (int64, error) {
	where, args, err := t.where(conds)
	if err != nil {
		return 0, err
	}
	res, err := h.Exec(ctx, fmt.Sprintf("DELETE FROM %s%s", t.Name, where), args...)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", t.Name, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// IDs retorna els ids de les files que compleixen les condicions.
func (t Table[T]) IDs(ctx context.Context, h Handle, conds ...Cond) ([]string, error) {
	where, args, err := t.where(conds)
	if err != nil {
		return nil, err
	}
	rows, err := h.Query(ctx, fmt.Sprintf("SELECT id FROM %s%s", t.Name, where), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Find retorna totes les files que compleixen les condicions, amb l'ordre per defecte.
func (t Table[T]) Find(ctx context.Context, h Handle, conds ...Cond) ([]T, error) {
	items, _, err := t.list(ctx, h, ListQuery{Where: conds}, false)
	return items, err
}

// List retorna una pàgina i el total de files que compleixen els filtres.
func (t Table[T]) List(ctx context.Context, h Handle, lq ListQuery) ([]T, int, error) {
	return t.list(ctx, h, lq, true)
}

func (t Table[T]) list(ctx context.Context, h Handle, lq ListQuery, count bool) ([]T, int, error) {
	where, args, err := t.where(lq.Where)
	if err != nil {
		return nil, 0, err
	}

	total := 0
	if count {
		total, err = h.Count(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s%s", t.Name, where), args...)
		if err != nil {
			return nil, 0, fmt.Errorf("count %s: %w", t.Name, err)
		}
	}

	order := t.OrderBy
	if lq.Sort != "" {
		if !t.hasColumn(lq.Sort) {
			return nil, 0, fmt.Errorf("columna d'ordenació desconeguda: %s", lq.Sort)
		}
		order = lq.Sort
		if lq.Desc {
			order += " DESC"
		}
	}
	if order == "" {
		order = "id"
	}
	// desempat estable per paginar
	if !strings.HasPrefix(order, "id") {
		order += ", id"
	}

	q := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s", t.columnList(), t.Name, where, order)
	if lq.Limit > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, lq.Limit, lq.Offset)
	}
	rows, err := h.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", t.Name, err)
	}
	defer rows.Close()

	items := []T{}
	for rows.Next() {
		item, err := t.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if !count {
		total = len(items)
	}
	return items, total, nil
}

func (t Table[T]) where(conds []Cond) (string, []any, error) {
	if len(conds) == 0 {
		return "", nil, nil
	}
	parts := make([]string, 0, len(conds))
	args := make([]any, 0, len(conds))
	for _, c := range conds {
		if !t.hasColumn(c.Column) {
			return "", nil, fmt.Errorf("columna desconeguda a %s: %s", t.Name, c.Column)
		}
		switch c.Op {
		case "IS NULL", "IS NOT NULL":
			parts = append(parts, c.Column+" "+c.Op)
		case "=", "<>", "<", "<=", ">", ">=", "LIKE":
			parts = append(parts, c.Column+" "+c.Op+" ?")
			args = append(args, c.Value)
		case "IN":
			vals, _ := c.Value.([]string)
			if len(vals) == 0 {
				parts = append(parts, "1 = 0")
				continue
			}
			in, inArgs := InArgs(vals)
			parts = append(parts, c.Column+" IN "+in)
			args = append(args, inArgs...)
		default:
			return "", nil, fmt.Errorf("operador no suportat: %s", c.Op)
		}
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}
