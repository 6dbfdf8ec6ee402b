package core

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/marcmoiagese/SpartaClaims/db"
)

var claimSort = map[string]string{
	"createdAt":    "created_at",
	"updatedAt":    "updated_at",
	"spartaNumber": "sparta_number",
	"claimNumber":  "claim_number",
	"status":       "status",
	"eventDate":    "event_date",
}

// parseDateParam accepta YYYY-MM-DD o RFC 3339.
func parseDateParam(name, val string) (time.Time, error) {
	val = strings.TrimSpace(val)
	if t, err := time.Parse("2006-01-02", val); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, val); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, validationf("%s must be a date (YYYY-MM-DD)", name)
}

// claimFilters tradueix els paràmetres de cerca del llistat a condicions.
func claimFilters(r *http.Request) ([]db.Cond, error) {
	q := r.URL.Query()
	var conds []db.Cond

	draft := false
	if v := strings.TrimSpace(q.Get("isDraft")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, validationf("isDraft must be a boolean")
		}
		draft = b
	}
	conds = append(conds, db.Eq("is_draft", draft))

	if v := strings.TrimSpace(q.Get("q")); v != "" {
		conds = append(conds, db.Cond{Column: "search_text", Op: "LIKE", Value: "%" + normalizeSearch(v) + "%"})
	}
	for param, col := range map[string]string{"status": "status", "handlerId": "handler_id", "clientId": "client_id",
		"riskTypeId": "risk_type_id", "damageTypeId": "damage_type_id"} {
		if v := strings.TrimSpace(q.Get(param)); v != "" {
			conds = append(conds, db.Eq(col, v))
		}
	}
	if v := q.Get("from"); v != "" {
		t, err := parseDateParam("from", v)
		if err != nil {
			return nil, err
		}
		conds = append(conds, db.Cond{Column: "created_at", Op: ">=", Value: t})
	}
	if v := q.Get("to"); v != "" {
		t, err := parseDateParam("to", v)
		if err != nil {
			return nil, err
		}
		// "to" inclou el dia sencer
		conds = append(conds, db.Cond{Column: "created_at", Op: "<", Value: t.AddDate(0, 0, 1)})
	}
	return conds, nil
}

func (a *App) ListClaims(w http.ResponseWriter, r *http.Request) {
	lq, err := listQuery(r, claimSort)
	if err != nil {
		writeError(w, r, err)
		return
	}
	conds, err := claimFilters(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	lq.Where = append(lq.Where, conds...)
	items, total, err := db.Claims.List(r.Context(), a.DB.Handle(), lq)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, items, total)
}

func (a *App) GetClaim(w http.ResponseWriter, r *http.Request) {
	id, err := routeID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := a.loadClaimDetail(r.Context(), a.DB.Handle(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (a *App) InitializeClaimHandler(w http.ResponseWriter, r *http.Request) {
	id, err := a.InitializeClaim(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// CreateClaim fa l'upsert amb l'id del cos (absent vol dir sinistre nou).
func (a *App) CreateClaim(w http.ResponseWriter, r *http.Request) {
	var in ClaimPayload
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	a.writeUpsert(w, r, &in)
}

// UpdateClaim fa l'upsert del sinistre de la ruta. Si el cos porta id ha de coincidir.
func (a *App) UpdateClaim(w http.ResponseWriter, r *http.Request) {
	id, err := routeID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in ClaimPayload
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(in.ID) != "" {
		bodyID, err := canonicalID(in.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if bodyID != id {
			writeError(w, r, validationf("route id %s does not match body id %s", id, bodyID))
			return
		}
	}
	in.ID = id
	a.writeUpsert(w, r, &in)
}

func (a *App) writeUpsert(w http.ResponseWriter, r *http.Request, in *ClaimPayload) {
	d, err := a.UpsertClaim(r.Context(), currentUser(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (a *App) DeleteClaimHandler(w http.ResponseWriter, r *http.Request) {
	id, err := routeID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := a.DeleteClaim(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) mountClaims(r *mux.Router) {
	r.HandleFunc("/claims/initialize", a.InitializeClaimHandler).Methods(http.MethodPost)
	r.HandleFunc("/claims", a.ListClaims).Methods(http.MethodGet)
	r.HandleFunc("/claims", a.CreateClaim).Methods(http.MethodPost)
	r.HandleFunc("/claims/{id}", a.GetClaim).Methods(http.MethodGet)
	r.HandleFunc("/claims/{id}", a.UpdateClaim).Methods(http.MethodPut)
	r.HandleFunc("/claims/{id}", a.DeleteClaimHandler).Methods(http.MethodDelete)
}
