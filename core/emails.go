package core

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/marcmoiagese/SpartaClaims/db"
)

const (
	EmailDirectionIn  = "in"
	EmailDirectionOut = "out"

	EmailStatusDraft    = "draft"
	EmailStatusSent     = "sent"
	EmailStatusFailed   = "failed"
	EmailStatusReceived = "received"
)

// normalizeEmail aplica els valors per defecte d'un correu desat des de l'API.
func normalizeEmail(e *db.Email) {
	e.Direction = strings.ToLower(strings.TrimSpace(e.Direction))
	if e.Direction != EmailDirectionIn {
		e.Direction = EmailDirectionOut
	}
	e.Status = strings.ToLower(strings.TrimSpace(e.Status))
	switch e.Status {
	case EmailStatusDraft, EmailStatusSent, EmailStatusFailed, EmailStatusReceived:
	default:
		if e.Direction == EmailDirectionIn {
			e.Status = EmailStatusReceived
		} else {
			e.Status = EmailStatusDraft
		}
	}
	if e.MessageID == "" {
		e.MessageID = "<" + e.ID + "@sparta>"
	}
	e.To = strings.TrimSpace(e.To)
	e.Cc = strings.TrimSpace(e.Cc)
	if e.ClientClaimIDs == nil {
		e.ClientClaimIDs = []string{}
	}
}

// attachEmailLinks omple ClientClaimIDs de cada correu.
func attachEmailLinks(ctx context.Context, h db.Handle, emails []db.Email) error {
	ids := make([]string, len(emails))
	for i := range emails {
		ids[i] = emails[i].ID
	}
	links, err := db.EmailClientClaimIDs(ctx, h, ids)
	if err != nil {
		return err
	}
	for i := range emails {
		emails[i].ClientClaimIDs = links[emails[i].ID]
		if emails[i].ClientClaimIDs == nil {
			emails[i].ClientClaimIDs = []string{}
		}
	}
	return nil
}

// checkEmailRefs valida el sinistre i les reclamacions de client vinculades.
func checkEmailRefs(ctx context.Context, h db.Handle, e *db.Email) error {
	if e.ClaimID != nil && strings.TrimSpace(*e.ClaimID) == "" {
		e.ClaimID = nil
	}
	if e.ClaimID != nil {
		id, err := canonicalID(*e.ClaimID)
		if err != nil {
			return err
		}
		if _, err := db.Claims.Get(ctx, h, id); err != nil {
			if db.IsNotFound(err) {
				return validationf("unknown claimId %s", id)
			}
			return err
		}
		e.ClaimID = &id
	}
	for i, raw := range e.ClientClaimIDs {
		id, err := canonicalID(raw)
		if err != nil {
			return err
		}
		if _, err := db.ClientClaims.Get(ctx, h, id); err != nil {
			if db.IsNotFound(err) {
				return validationf("unknown clientClaimId %s", id)
			}
			return err
		}
		e.ClientClaimIDs[i] = id
	}
	return nil
}

func (a *App) loadEmail(ctx context.Context, h db.Handle, id string) (*db.Email, error) {
	e, err := db.Emails.Get(ctx, h, id)
	if err != nil {
		return nil, fromDB(err, "email")
	}
	one := []db.Email{*e}
	if err := attachEmailLinks(ctx, h, one); err != nil {
		return nil, err
	}
	return &one[0], nil
}

func (a *App) ListEmails(w http.ResponseWriter, r *http.Request) {
	lq, err := listQuery(r, map[string]string{"createdAt": "created_at", "sentAt": "sent_at", "receivedAt": "received_at", "subject": "subject"})
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	for param, col := range map[string]string{"claimId": "claim_id", "direction": "direction", "status": "status"} {
		if v := strings.TrimSpace(q.Get(param)); v != "" {
			lq.Where = append(lq.Where, db.Eq(col, v))
		}
	}
	if q.Get("unassigned") == "true" {
		lq.Where = append(lq.Where, db.Cond{Column: "claim_id", Op: "IS NULL"})
	}
	ctx := r.Context()
	h := a.DB.Handle()
	items, total, err := db.Emails.List(ctx, h, lq)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := attachEmailLinks(ctx, h, items); err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, items, total)
}

func (a *App) GetEmail(w http.ResponseWriter, r *http.Request) {
	id, err := routeID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	e, err := a.loadEmail(r.Context(), a.DB.Handle(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// CreateEmail desa un correu. Amb ?send=true s'envia immediatament.
func (a *App) CreateEmail(w http.ResponseWriter, r *http.Request) {
	var e db.Email
	if err := decodeJSON(w, r, &e); err != nil {
		writeError(w, r, err)
		return
	}
	e.ID = uuid.NewString()
	if e.From == "" {
		e.From = a.Config.MailFrom
	}
	normalizeEmail(&e)
	ctx := r.Context()
	err := a.DB.InTx(ctx, func(h db.Handle) error {
		if err := checkEmailRefs(ctx, h, &e); err != nil {
			return err
		}
		now := a.now()
		e.CreatedAt, e.UpdatedAt = now, now
		if err := db.Emails.Insert(ctx, h, &e); err != nil {
			return fromDB(err, "email")
		}
		return db.SetEmailClientClaims(ctx, h, e.ID, e.ClientClaimIDs)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if r.URL.Query().Get("send") == "true" {
		if err := a.SendEmail(ctx, e.ID); err != nil {
			writeError(w, r, err)
			return
		}
	}
	saved, err := a.loadEmail(ctx, a.DB.Handle(), e.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (a *App) UpdateEmail(w http.ResponseWriter, r *http.Request) {
	id, err := routeID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var e db.Email
	if err := decodeJSON(w, r, &e); err != nil {
		writeError(w, r, err)
		return
	}
	if e.ID != "" {
		if bodyID, err := canonicalID(e.ID); err != nil || bodyID != id {
			writeError(w, r, validationf("route id %s does not match body id %s", id, e.ID))
			return
		}
	}
	e.ID = id
	ctx := r.Context()
	err = a.DB.InTx(ctx, func(h db.Handle) error {
		existing, err := db.Emails.Get(ctx, h, id)
		if err != nil {
			return fromDB(err, "email")
		}
		if existing.Status == EmailStatusSent || existing.Status == EmailStatusReceived {
			// el contingut d'un correu enviat o rebut és immutable; només es reassigna
			e.Direction, e.Status, e.MessageID = existing.Direction, existing.Status, existing.MessageID
			e.From, e.To, e.Cc = existing.From, existing.To, existing.Cc
			e.Subject, e.Body = existing.Subject, existing.Body
			e.SentAt, e.ReceivedAt = existing.SentAt, existing.ReceivedAt
		} else if e.MessageID == "" {
			e.MessageID = existing.MessageID
		}
		normalizeEmail(&e)
		if err := checkEmailRefs(ctx, h, &e); err != nil {
			return err
		}
		e.UpdatedAt = a.now()
		if err := db.Emails.Update(ctx, h, &e); err != nil {
			return fromDB(err, "email")
		}
		return db.SetEmailClientClaims(ctx, h, e.ID, e.ClientClaimIDs)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := a.loadEmail(ctx, a.DB.Handle(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (a *App) DeleteEmail(w http.ResponseWriter, r *http.Request) {
	id, err := routeID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx := r.Context()
	err = a.DB.InTx(ctx, func(h db.Handle) error {
		if err := db.SetEmailClientClaims(ctx, h, id, nil); err != nil {
			return err
		}
		return fromDB(db.Emails.Delete(ctx, h, id), "email")
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SendEmail envia un correu desat i en registra el resultat. Un error del servidor SMTP
// no és un error de la petició: el correu queda en estat failed.
func (a *App) SendEmail(ctx context.Context, id string) error {
	h := a.DB.Handle()
	e, err := db.Emails.Get(ctx, h, id)
	if err != nil {
		return fromDB(err, "email")
	}
	if e.Direction != EmailDirectionOut {
		return validationf("only outgoing emails can be sent")
	}
	if e.Status == EmailStatusSent {
		return conflictf("email already sent")
	}
	to := e.To
	if e.Cc != "" {
		to += "," + e.Cc
	}
	if len(splitAddresses(to)) == 0 {
		return &fieldError{Fields: map[string]string{"to": "required"}}
	}

	now := a.now()
	if err := a.Mail.Send(to, e.Subject, e.Body); err != nil {
		Log().Error().Err(err).Str("email_id", e.ID).Msg("error enviant correu")
		e.Status = EmailStatusFailed
	} else {
		e.Status = EmailStatusSent
		e.SentAt = &now
	}
	e.UpdatedAt = now
	return db.Emails.Update(ctx, h, e)
}

func (a *App) SendEmailHandler(w http.ResponseWriter, r *http.Request) {
	id, err := routeID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := a.SendEmail(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := a.loadEmail(r.Context(), a.DB.Handle(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (a *App) mountEmails(r *mux.Router) {
	r.HandleFunc("/emails", a.ListEmails).Methods(http.MethodGet)
	r.HandleFunc("/emails", a.CreateEmail).Methods(http.MethodPost)
	r.HandleFunc("/emails/{id}", a.GetEmail).Methods(http.MethodGet)
	r.HandleFunc("/emails/{id}", a.UpdateEmail).Methods(http.MethodPut)
	r.HandleFunc("/emails/{id}", a.DeleteEmail).Methods(http.MethodDelete)
	r.HandleFunc("/emails/{id}/send", a.SendEmailHandler).Methods(http.MethodPost)
}
