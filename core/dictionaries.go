package core

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/marcmoiagese/SpartaClaims/db"
)

// Tipus de diccionari. Cadascun té el seu recurs REST amb el mateix nom.
const (
	KindRiskTypes     = "risk-types"
	KindDamageTypes   = "damage-types"
	KindClaimStatuses = "claim-statuses"
)

// dictionaryClaimColumn és la columna de claims que apunta a cada diccionari.
var dictionaryClaimColumn = map[string]string{
	KindRiskTypes:     "risk_type_id",
	KindDamageTypes:   "damage_type_id",
	KindClaimStatuses: "claim_status_id",
}

func dictionaryResource(kind string) *resource[db.DictionaryItem] {
	return &resource[db.DictionaryItem]{
		what: "dictionary item", table: db.DictionaryItems,
		idOf:     func(d *db.DictionaryItem) *string { return &d.ID },
		stamp:    func(d *db.DictionaryItem, c, u time.Time) { d.CreatedAt, d.UpdatedAt = c, u },
		sortable: map[string]string{"code": "code", "name": "name", "createdAt": "created_at"},
		filters:  map[string]string{"code": "code"},
		scope:    []db.Cond{db.Eq("kind", kind)},
		validate: func(_ context.Context, _ db.Handle, d *db.DictionaryItem) error {
			d.Kind = kind
			d.Code = strings.TrimSpace(d.Code)
			d.Name = strings.TrimSpace(d.Name)
			fields := map[string]string{}
			if d.Code == "" {
				fields["code"] = "required"
			}
			if d.Name == "" {
				fields["name"] = "required"
			}
			if len(fields) > 0 {
				return &fieldError{Fields: fields}
			}
			return nil
		},
		beforeDelete: referencedBy("dictionary item", [2]string{"claims", dictionaryClaimColumn[kind]}),
	}
}

var clientResource = &resource[db.Client]{
	what: "client", table: db.Clients,
	idOf:     func(c *db.Client) *string { return &c.ID },
	stamp:    func(c *db.Client, cr, u time.Time) { c.CreatedAt, c.UpdatedAt = cr, u },
	sortable: map[string]string{"name": "name", "createdAt": "created_at"},
	filters:  map[string]string{"taxId": "tax_id"},
	validate: func(_ context.Context, _ db.Handle, c *db.Client) error {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			return &fieldError{Fields: map[string]string{"name": "required"}}
		}
		return nil
	},
	beforeDelete: referencedBy("client", [2]string{"claims", "client_id"}),
}

var caseHandlerResource = &resource[db.CaseHandler]{
	what: "case handler", table: db.CaseHandlers,
	idOf:     func(c *db.CaseHandler) *string { return &c.ID },
	stamp:    func(c *db.CaseHandler, cr, u time.Time) { c.CreatedAt, c.UpdatedAt = cr, u },
	sortable: map[string]string{"name": "name", "email": "email", "createdAt": "created_at"},
	filters:  map[string]string{"userId": "user_id"},
	validate: func(ctx context.Context, h db.Handle, c *db.CaseHandler) error {
		c.Name = strings.TrimSpace(c.Name)
		c.Email = strings.TrimSpace(c.Email)
		fields := map[string]string{}
		if c.Name == "" {
			fields["name"] = "required"
		}
		if c.Email != "" && !strings.Contains(c.Email, "@") {
			fields["email"] = "invalid email address"
		}
		if len(fields) > 0 {
			return &fieldError{Fields: fields}
		}
		if c.UserID != nil && *c.UserID != "" {
			if _, err := db.Users.Get(ctx, h, *c.UserID); err != nil {
				if db.IsNotFound(err) {
					return validationf("unknown userId %s", *c.UserID)
				}
				return err
			}
		} else {
			c.UserID = nil
		}
		return nil
	},
	beforeDelete: referencedBy("case handler", [2]string{"claims", "handler_id"}, [2]string{"users", "default_handler_id"}),
}

// mountDictionaries registra diccionaris, clients i gestors.
func (a *App) mountDictionaries(r *mux.Router) {
	for _, kind := range []string{KindRiskTypes, KindDamageTypes, KindClaimStatuses} {
		dictionaryResource(kind).mount(a, r, "/"+kind)
	}
	clientResource.mount(a, r, "/clients")
	caseHandlerResource.mount(a, r, "/case-handlers")
	r.HandleFunc("/case-handlers/{id}/claims", a.listHandlerClaims).Methods(http.MethodGet)
}

// listHandlerClaims llista els sinistres assignats a un gestor.
func (a *App) listHandlerClaims(w http.ResponseWriter, r *http.Request) {
	id, err := routeID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := db.CaseHandlers.Get(r.Context(), a.DB.Handle(), id); err != nil {
		writeError(w, r, fromDB(err, "case handler"))
		return
	}
	lq, err := listQuery(r, claimSort)
	if err != nil {
		writeError(w, r, err)
		return
	}
	lq.Where = append(lq.Where, db.Eq("handler_id", id), db.Eq("is_draft", false))
	items, total, err := db.Claims.List(r.Context(), a.DB.Handle(), lq)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, items, total)
}
