package core

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/marcmoiagese/SpartaClaims/db"
)

// resource publica una taula com a recurs REST amb llistat paginat i CRUD.
type resource[T any] struct {
	what     string
	table    db.Table[T]
	idOf     func(*T) *string
	stamp    func(item *T, created, updated time.Time)
	sortable map[string]string
	// filters relaciona paràmetres de consulta amb columnes (igualtat)
	filters map[string]string
	// scope són condicions fixes, p. ex. el tipus de diccionari
	scope []db.Cond

	// claimOf retorna el sinistre propietari; nil si el recurs no en depèn
	claimOf  func(*T) *string
	validate func(ctx context.Context, h db.Handle, item *T) error
	// beforeDelete pot vetar l'esborrat (conflicte) o netejar vincles
	beforeDelete func(ctx context.Context, h db.Handle, id string) error
	created      EventType
}

func routeID(r *http.Request) (string, error) {
	return canonicalID(mux.Vars(r)["id"])
}

func (rs *resource[T]) mount(a *App, r *mux.Router, path string) {
	r.HandleFunc(path, rs.list(a)).Methods(http.MethodGet)
	r.HandleFunc(path, rs.create(a)).Methods(http.MethodPost)
	r.HandleFunc(path+"/{id}", rs.get(a)).Methods(http.MethodGet)
	r.HandleFunc(path+"/{id}", rs.update(a)).Methods(http.MethodPut)
	r.HandleFunc(path+"/{id}", rs.remove(a)).Methods(http.MethodDelete)
}

func (rs *resource[T]) find(ctx context.Context, h db.Handle, id string) (*T, error) {
	items, err := rs.table.Find(ctx, h, append([]db.Cond{db.Eq("id", id)}, rs.scope...)...)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, notFoundf("%s", rs.what)
	}
	return &items[0], nil
}

func (rs *resource[T]) list(a *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lq, err := listQuery(r, rs.sortable)
		if err != nil {
			writeError(w, r, err)
			return
		}
		lq.Where = append(lq.Where, rs.scope...)
		q := r.URL.Query()
		for param, col := range rs.filters {
			if v := strings.TrimSpace(q.Get(param)); v != "" {
				lq.Where = append(lq.Where, db.Eq(col, v))
			}
		}
		items, total, err := rs.table.List(r.Context(), a.DB.Handle(), lq)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeList(w, items, total)
	}
}

func (rs *resource[T]) get(a *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := routeID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		item, err := rs.find(r.Context(), a.DB.Handle(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

// prepareClaim comprova que el sinistre propietari existeix i en normalitza l'id.
func (rs *resource[T]) prepareClaim(ctx context.Context, h db.Handle, item *T) (string, error) {
	if rs.claimOf == nil {
		return "", nil
	}
	ref := rs.claimOf(item)
	if strings.TrimSpace(*ref) == "" {
		return "", &fieldError{Fields: map[string]string{"claimId": "required"}}
	}
	id, err := canonicalID(*ref)
	if err != nil {
		return "", err
	}
	if _, err := db.Claims.Get(ctx, h, id); err != nil {
		if db.IsNotFound(err) {
			return "", validationf("unknown claimId %s", id)
		}
		return "", err
	}
	*ref = id
	return id, nil
}

func (rs *resource[T]) create(a *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var item T
		if err := decodeJSON(w, r, &item); err != nil {
			writeError(w, r, err)
			return
		}
		idp := rs.idOf(&item)
		if strings.TrimSpace(*idp) == "" {
			*idp = uuid.NewString()
		} else {
			id, err := canonicalID(*idp)
			if err != nil {
				writeError(w, r, err)
				return
			}
			*idp = id
		}

		ctx := r.Context()
		var claimID string
		err := a.DB.InTx(ctx, func(h db.Handle) error {
			var err error
			if claimID, err = rs.prepareClaim(ctx, h, &item); err != nil {
				return err
			}
			if rs.validate != nil {
				if err := rs.validate(ctx, h, &item); err != nil {
					return err
				}
			}
			now := a.now()
			rs.stamp(&item, now, now)
			return fromDB(rs.table.Insert(ctx, h, &item), rs.what)
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		Log().Info().Str("entity", rs.what).Str("id", *idp).Str("claim_id", claimID).Str("op", "create").Msg("registre creat")
		if claimID != "" {
			a.refreshSearch(ctx, claimID)
			if rs.created != "" {
				a.notifyClaimEvent(ctx, claimID, currentUser(r), rs.created)
			}
		}
		writeJSON(w, http.StatusCreated, item)
	}
}

func (rs *resource[T]) update(a *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := routeID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		var item T
		if err := decodeJSON(w, r, &item); err != nil {
			writeError(w, r, err)
			return
		}
		idp := rs.idOf(&item)
		if strings.TrimSpace(*idp) != "" {
			bodyID, err := canonicalID(*idp)
			if err != nil {
				writeError(w, r, err)
				return
			}
			if bodyID != id {
				writeError(w, r, validationf("route id %s does not match body id %s", id, bodyID))
				return
			}
		}
		*idp = id

		ctx := r.Context()
		var claimIDs []string
		var saved *T
		err = a.DB.InTx(ctx, func(h db.Handle) error {
			existing, err := rs.find(ctx, h, id)
			if err != nil {
				return err
			}
			if rs.claimOf != nil {
				if strings.TrimSpace(*rs.claimOf(&item)) == "" {
					*rs.claimOf(&item) = *rs.claimOf(existing)
				}
				claimID, err := rs.prepareClaim(ctx, h, &item)
				if err != nil {
					return err
				}
				claimIDs = append(claimIDs, claimID)
				if prev := *rs.claimOf(existing); prev != claimID {
					claimIDs = append(claimIDs, prev)
				}
			}
			if rs.validate != nil {
				if err := rs.validate(ctx, h, &item); err != nil {
					return err
				}
			}
			now := a.now()
			rs.stamp(&item, now, now)
			if err := rs.table.Update(ctx, h, &item); err != nil {
				return fromDB(err, rs.what)
			}
			saved, err = rs.find(ctx, h, id)
			return err
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		for _, claimID := range claimIDs {
			a.refreshSearch(ctx, claimID)
		}
		writeJSON(w, http.StatusOK, saved)
	}
}

func (rs *resource[T]) remove(a *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := routeID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		ctx := r.Context()
		var claimID string
		err = a.DB.InTx(ctx, func(h db.Handle) error {
			existing, err := rs.find(ctx, h, id)
			if err != nil {
				return err
			}
			if rs.claimOf != nil {
				claimID = *rs.claimOf(existing)
			}
			if rs.beforeDelete != nil {
				if err := rs.beforeDelete(ctx, h, id); err != nil {
					return err
				}
			}
			return fromDB(rs.table.Delete(ctx, h, id), rs.what)
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		Log().Info().Str("entity", rs.what).Str("id", id).Str("op", "delete").Msg("registre esborrat")
		if claimID != "" {
			a.refreshSearch(ctx, claimID)
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// notifyClaimEvent carrega el sinistre i n'envia la notificació sense afectar la petició.
func (a *App) notifyClaimEvent(ctx context.Context, claimID string, actor *db.User, ev EventType) {
	bestEffort("notify-"+string(ev), claimID, func() {
		c, err := db.Claims.Get(ctx, a.DB.Handle(), claimID)
		if err != nil {
			Log().Error().Err(err).Str("claim_id", claimID).Str("event", string(ev)).Msg("sinistre no disponible per notificar")
			return
		}
		a.Notifier.Notify(c, actor, ev)
	})
}

// referencedBy retorna un conflicte si alguna de les columnes indicades apunta a l'id.
func referencedBy(what string, refs ...[2]string) func(context.Context, db.Handle, string) error {
	return func(ctx context.Context, h db.Handle, id string) error {
		for _, ref := range refs {
			n, err := db.CountReferences(ctx, h, ref[0], ref[1], id)
			if err != nil {
				return err
			}
			if n > 0 {
				return conflictf("%s is referenced by %d %s rows", what, n, ref[0])
			}
		}
		return nil
	}
}

var claimChildSort = map[string]string{"createdAt": "created_at", "updatedAt": "updated_at"}

var (
	damageResource = &resource[db.Damage]{
		what: "damage", table: db.Damages,
		idOf:     func(d *db.Damage) *string { return &d.ID },
		stamp:    func(d *db.Damage, c, u time.Time) { d.CreatedAt, d.UpdatedAt = c, u },
		sortable: map[string]string{"createdAt": "created_at", "estimatedCost": "estimated_cost", "category": "category"},
		filters:  map[string]string{"claimId": "claim_id", "category": "category"},
		claimOf:  func(d *db.Damage) *string { return &d.ClaimID },
	}
	decisionResource = &resource[db.Decision]{
		what: "decision", table: db.Decisions,
		idOf:     func(d *db.Decision) *string { return &d.ID },
		stamp:    func(d *db.Decision, c, u time.Time) { d.CreatedAt, d.UpdatedAt = c, u },
		sortable: map[string]string{"createdAt": "created_at", "decisionDate": "decision_date", "amount": "amount"},
		filters:  map[string]string{"claimId": "claim_id", "status": "status"},
		claimOf:  func(d *db.Decision) *string { return &d.ClaimID },
		created:  EventDecisionAdded,
	}
	appealResource = &resource[db.Appeal]{
		what: "appeal", table: db.Appeals,
		idOf:     func(ap *db.Appeal) *string { return &ap.ID },
		stamp:    func(ap *db.Appeal, c, u time.Time) { ap.CreatedAt, ap.UpdatedAt = c, u },
		sortable: map[string]string{"createdAt": "created_at", "submissionDate": "submission_date", "status": "status"},
		filters:  map[string]string{"claimId": "claim_id", "status": "status"},
		claimOf:  func(ap *db.Appeal) *string { return &ap.ClaimID },
		created:  EventAppealAdded,
	}
	clientClaimResource = &resource[db.ClientClaim]{
		what: "client claim", table: db.ClientClaims,
		idOf:     func(cc *db.ClientClaim) *string { return &cc.ID },
		stamp:    func(cc *db.ClientClaim, c, u time.Time) { cc.CreatedAt, cc.UpdatedAt = c, u },
		sortable: map[string]string{"createdAt": "created_at", "claimDate": "claim_date", "amount": "amount"},
		filters:  map[string]string{"claimId": "claim_id", "status": "status"},
		claimOf:  func(cc *db.ClientClaim) *string { return &cc.ClaimID },
		beforeDelete: func(ctx context.Context, h db.Handle, id string) error {
			_, err := h.Exec(ctx, "DELETE FROM email_client_claims WHERE client_claim_id = ?", id)
			return err
		},
	}
	recourseResource = &resource[db.Recourse]{
		what: "recourse", table: db.Recourses,
		idOf:     func(rc *db.Recourse) *string { return &rc.ID },
		stamp:    func(rc *db.Recourse, c, u time.Time) { rc.CreatedAt, rc.UpdatedAt = c, u },
		sortable: map[string]string{"createdAt": "created_at", "filingDate": "filing_date", "amount": "amount"},
		filters:  map[string]string{"claimId": "claim_id", "status": "status"},
		claimOf:  func(rc *db.Recourse) *string { return &rc.ClaimID },
		validate: func(_ context.Context, _ db.Handle, rc *db.Recourse) error {
			fields := map[string]string{}
			validateRecourse(rc, "", fields)
			if len(fields) > 0 {
				return &fieldError{Fields: fields}
			}
			return nil
		},
		created: EventRecourseAdded,
	}
	settlementResource = &resource[db.Settlement]{
		what: "settlement", table: db.Settlements,
		idOf:     func(s *db.Settlement) *string { return &s.ID },
		stamp:    func(s *db.Settlement, c, u time.Time) { s.CreatedAt, s.UpdatedAt = c, u },
		sortable: map[string]string{"createdAt": "created_at", "settlementDate": "settlement_date", "amount": "amount"},
		filters:  map[string]string{"claimId": "claim_id", "status": "status"},
		claimOf:  func(s *db.Settlement) *string { return &s.ClaimID },
		created:  EventSettlementAdded,
	}
	noteResource = &resource[db.Note]{
		what: "note", table: db.Notes,
		idOf:     func(n *db.Note) *string { return &n.ID },
		stamp:    func(n *db.Note, c, u time.Time) { n.CreatedAt, n.UpdatedAt = c, u },
		sortable: claimChildSort,
		filters:  map[string]string{"claimId": "claim_id", "category": "category"},
		claimOf:  func(n *db.Note) *string { return &n.ClaimID },
	}
)

// mountClaimResources registra els subrecursos d'un sinistre.
func (a *App) mountClaimResources(r *mux.Router) {
	damageResource.mount(a, r, "/damages")
	decisionResource.mount(a, r, "/decisions")
	appealResource.mount(a, r, "/appeals")
	clientClaimResource.mount(a, r, "/client-claims")
	recourseResource.mount(a, r, "/recourses")
	settlementResource.mount(a, r, "/settlements")
	noteResource.mount(a, r, "/notes")
}
