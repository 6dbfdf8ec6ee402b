package core

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/marcmoiagese/SpartaClaims/db"
)

// reconcilePlan és el resultat de comparar una col·lecció entrant amb la persistida.
type reconcilePlan[T any] struct {
	Create []*T
	Update []*T
	Delete []string
}

// diffByID classifica els elements entrants per id. Un id buit vol dir alta amb un UUID nou;
// un id no buit que no és un UUID vàlid invalida tota l'operació. Els ids persistits
// que no apareixen a l'entrada s'han d'esborrar.
func diffByID[T any](incoming []T, existing []string, idOf func(*T) *string) (reconcilePlan[T], error) {
	var plan reconcilePlan[T]
	known := make(map[string]bool, len(existing))
	for _, id := range existing {
		known[id] = true
	}
	kept := make(map[string]bool, len(incoming))

	for i := range incoming {
		item := &incoming[i]
		idp := idOf(item)
		raw := strings.TrimSpace(*idp)
		if raw == "" {
			*idp = uuid.NewString()
			plan.Create = append(plan.Create, item)
			continue
		}
		id, err := canonicalID(raw)
		if err != nil {
			return plan, err
		}
		if kept[id] {
			return plan, validationf("duplicate identifier %q", id)
		}
		kept[id] = true
		*idp = id
		if known[id] {
			plan.Update = append(plan.Update, item)
		} else {
			plan.Create = append(plan.Create, item)
		}
	}

	for _, id := range existing {
		if !kept[id] {
			plan.Delete = append(plan.Delete, id)
		}
	}
	return plan, nil
}

// canonicalID valida un UUID i el retorna en forma canònica.
func canonicalID(raw string) (string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", validationf("malformed identifier %q", raw)
	}
	return parsed.String(), nil
}

// childCollection descriu com persistir una col·lecció d'un sinistre.
type childCollection[T any] struct {
	what   string
	table  db.Table[T]
	parent string // columna pare (claim_id)
	idOf   func(*T) *string
	// bind assigna el pare i les marques de temps abans de desar
	bind func(item *T, parentID string, created, updated time.Time)
}

// sync aplica el pla de reconciliació dins de la transacció h i retorna el pla aplicat.
func (c childCollection[T]) sync(ctx context.Context, h db.Handle, parentID string, incoming []T, now time.Time) (reconcilePlan[T], error) {
	existing, err := c.table.IDs(ctx, h, db.Eq(c.parent, parentID))
	if err != nil {
		return reconcilePlan[T]{}, err
	}
	plan, err := diffByID(incoming, existing, c.idOf)
	if err != nil {
		return plan, err
	}
	for _, id := range plan.Delete {
		if err := c.table.Delete(ctx, h, id); err != nil && !db.IsNotFound(err) {
			return plan, err
		}
	}
	for _, item := range plan.Update {
		c.bind(item, parentID, now, now)
		if err := c.table.Update(ctx, h, item); err != nil {
			return plan, fromDB(err, c.what)
		}
	}
	for _, item := range plan.Create {
		c.bind(item, parentID, now, now)
		if err := c.table.Insert(ctx, h, item); err != nil {
			return plan, fromDB(err, c.what)
		}
	}
	return plan, nil
}
