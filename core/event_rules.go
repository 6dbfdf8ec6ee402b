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

// eventRuleView afegeix la propera execució programada a la regla.
type eventRuleView struct {
	db.EventRule
	NextRun *time.Time `json:"nextRun"`
}

func (a *App) ruleView(r db.EventRule) eventRuleView {
	v := eventRuleView{EventRule: r}
	if next, ok := a.Scheduler.Next(r.ID); ok {
		v.NextRun = &next
	}
	return v
}

func validateEventRule(ctx context.Context, h db.Handle, r *db.EventRule) error {
	fields := map[string]string{}
	r.Cron = strings.TrimSpace(r.Cron)
	if r.Cron == "" {
		fields["cron"] = "required"
	} else if _, err := parseRuleCron(r.Cron); err != nil {
		fields["cron"] = "invalid cron expression"
	}
	if _, ok := parseEventType(r.Event); !ok {
		fields["event"] = "unknown event"
	}
	if strings.TrimSpace(r.ClaimID) == "" {
		fields["claimId"] = "required"
	}
	if len(fields) > 0 {
		return &fieldError{Fields: fields}
	}
	id, err := canonicalID(r.ClaimID)
	if err != nil {
		return err
	}
	if _, err := db.Claims.Get(ctx, h, id); err != nil {
		if db.IsNotFound(err) {
			return validationf("unknown claimId %s", id)
		}
		return err
	}
	r.ClaimID = id
	return nil
}

func (a *App) ListEventRules(w http.ResponseWriter, r *http.Request) {
	lq, err := listQuery(r, map[string]string{"createdAt": "created_at", "event": "event_type"})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if v := strings.TrimSpace(r.URL.Query().Get("claimId")); v != "" {
		lq.Where = append(lq.Where, db.Eq("claim_id", v))
	}
	rules, total, err := db.EventRules.List(r.Context(), a.DB.Handle(), lq)
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]eventRuleView, len(rules))
	for i, rule := range rules {
		views[i] = a.ruleView(rule)
	}
	writeList(w, views, total)
}

func (a *App) GetEventRule(w http.ResponseWriter, r *http.Request) {
	id, err := routeID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rule, err := db.EventRules.Get(r.Context(), a.DB.Handle(), id)
	if err != nil {
		writeError(w, r, fromDB(err, "event rule"))
		return
	}
	writeJSON(w, http.StatusOK, a.ruleView(*rule))
}

// schedule programa o cancel·la la regla segons si està activa.
func (a *App) schedule(ctx context.Context, rule db.EventRule) error {
	if !rule.IsActive {
		return a.Scheduler.Cancel(ctx, a.DB.Handle(), rule.ID)
	}
	_, err := a.Scheduler.Arm(ctx, rule)
	return err
}

func (a *App) CreateEventRule(w http.ResponseWriter, r *http.Request) {
	var rule db.EventRule
	if err := decodeJSON(w, r, &rule); err != nil {
		writeError(w, r, err)
		return
	}
	ctx := r.Context()
	h := a.DB.Handle()
	if err := validateEventRule(ctx, h, &rule); err != nil {
		writeError(w, r, err)
		return
	}
	rule.ID = uuid.NewString()
	now := a.now()
	rule.CreatedAt, rule.UpdatedAt = now, now
	if err := db.EventRules.Insert(ctx, h, &rule); err != nil {
		writeError(w, r, fromDB(err, "event rule"))
		return
	}
	if err := a.schedule(ctx, rule); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a.ruleView(rule))
}

func (a *App) UpdateEventRule(w http.ResponseWriter, r *http.Request) {
	id, err := routeID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var rule db.EventRule
	if err := decodeJSON(w, r, &rule); err != nil {
		writeError(w, r, err)
		return
	}
	ctx := r.Context()
	h := a.DB.Handle()
	existing, err := db.EventRules.Get(ctx, h, id)
	if err != nil {
		writeError(w, r, fromDB(err, "event rule"))
		return
	}
	rule.ID = id
	if rule.ClaimID == "" {
		rule.ClaimID = existing.ClaimID
	}
	if err := validateEventRule(ctx, h, &rule); err != nil {
		writeError(w, r, err)
		return
	}
	rule.CreatedAt = existing.CreatedAt
	rule.UpdatedAt = a.now()
	if err := db.EventRules.Update(ctx, h, &rule); err != nil {
		writeError(w, r, fromDB(err, "event rule"))
		return
	}
	if err := a.schedule(ctx, rule); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.ruleView(rule))
}

func (a *App) DeleteEventRule(w http.ResponseWriter, r *http.Request) {
	id, err := routeID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx := r.Context()
	err = a.DB.InTx(ctx, func(h db.Handle) error {
		if _, err := db.EventRules.Get(ctx, h, id); err != nil {
			return fromDB(err, "event rule")
		}
		if err := a.Scheduler.Cancel(ctx, h, id); err != nil {
			return err
		}
		return db.EventRules.Delete(ctx, h, id)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) EventRuleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := routeID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	lq, err := listQuery(r, map[string]string{"scheduledFor": "scheduled_for"})
	if err != nil {
		writeError(w, r, err)
		return
	}
	lq.Where = append(lq.Where, db.Eq("rule_id", id))
	items, total, err := db.EventRuleHistories.List(r.Context(), a.DB.Handle(), lq)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, items, total)
}

func (a *App) mountEventRules(r *mux.Router) {
	r.HandleFunc("/event-rules", a.ListEventRules).Methods(http.MethodGet)
	r.HandleFunc("/event-rules", a.CreateEventRule).Methods(http.MethodPost)
	r.HandleFunc("/event-rules/{id}", a.GetEventRule).Methods(http.MethodGet)
	r.HandleFunc("/event-rules/{id}", a.UpdateEventRule).Methods(http.MethodPut)
	r.HandleFunc("/event-rules/{id}", a.DeleteEventRule).Methods(http.MethodDelete)
	r.HandleFunc("/event-rules/{id}/history", a.EventRuleHistory).Methods(http.MethodGet)
}
