package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound indica que la fila demanada no existeix.
	ErrNotFound = fmt.Errorf("registre no trobat: %w", sql.ErrNoRows)
	// ErrConflict indica una violació d'unicitat.
	ErrConflict = errors.New("conflicte d'unicitat")
)

// formatPlaceholders converteix '?' a placeholders de l'estil PostgreSQL ($1, $2...) si cal.
func formatPlaceholders(style, query string) string {
	if strings.ToLower(style) != "postgres" {
		return query
	}
	var b strings.Builder
	idx := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			b.WriteString(fmt.Sprintf("$%d", idx))
			idx++
		} else {
			b.WriteByte(query[i])
		}
	}
	return b.String()
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Handle executa sentències sobre la connexió o sobre una transacció oberta,
// traduint els placeholders segons el motor.
type Handle struct {
	q     querier
	style string
}

func (h Handle) Style() string { return h.style }

func (h Handle) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := h.q.ExecContext(ctx, formatPlaceholders(h.style, query), args...)
	if err != nil {
		return nil, classify(err)
	}
	return res, nil
}

func (h Handle) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := h.q.QueryContext(ctx, formatPlaceholders(h.style, query), args...)
	if err != nil {
		return nil, classify(err)
	}
	return rows, nil
}

func (h Handle) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return h.q.QueryRowContext(ctx, formatPlaceholders(h.style, query), args...)
}

// Count retorna el primer enter d'una consulta COUNT(*).
func (h Handle) Count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := h.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, classify(err)
	}
	return n, nil
}

// classify tradueix els errors dels drivers als sentinels del paquet.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	return false
}

// placeholders retorna "?, ?, ?" per n valors.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// InArgs prepara una clàusula IN amb els seus arguments.
func InArgs(values []string) (string, []any) {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return "(" + placeholders(len(values)) + ")", args
}
