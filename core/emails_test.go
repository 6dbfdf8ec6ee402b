package core

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcmoiagese/SpartaClaims/db"
)

func TestNormalizeEmailDefaults(t *testing.T) {
	e := db.Email{ID: "abc", Direction: " IN ", To: " x@y.test "}
	normalizeEmail(&e)
	assert.Equal(t, EmailDirectionIn, e.Direction)
	assert.Equal(t, EmailStatusReceived, e.Status)
	assert.Equal(t, "<abc@sparta>", e.MessageID)
	assert.Equal(t, "x@y.test", e.To)
	assert.Equal(t, []string{}, e.ClientClaimIDs)

	out := db.Email{ID: "def", Direction: "sideways", Status: "bogus"}
	normalizeEmail(&out)
	assert.Equal(t, EmailDirectionOut, out.Direction)
	assert.Equal(t, EmailStatusDraft, out.Status)
}

func TestEmailCreateAndSend(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "anna", RoleAdmin)
	token := env.login(t, admin)
	d := env.claim(t, admin, ClaimPayload{ClaimDetail: ClaimDetail{
		ClientClaims: []db.ClientClaim{{ClaimNumber: "CC-9"}},
	}})

	claimID := d.ID
	rec := env.do(t, token, http.MethodPost, "/api/emails", db.Email{
		ClaimID: &claimID, To: "klient@firma.test", Cc: "biuro@firma.test",
		Subject: "Decyzja", Body: "Treść", ClientClaimIDs: []string{d.ClientClaims[0].ID},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	draft := decodeBody[db.Email](t, rec)
	assert.Equal(t, EmailStatusDraft, draft.Status)
	assert.Equal(t, "sparta@sparta.test", draft.From)
	assert.Equal(t, []string{d.ClientClaims[0].ID}, draft.ClientClaimIDs)
	assert.Empty(t, env.mail.Sent())

	rec = env.do(t, token, http.MethodPost, "/api/emails/"+draft.ID+"/send", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sent := decodeBody[db.Email](t, rec)
	assert.Equal(t, EmailStatusSent, sent.Status)
	require.NotNil(t, sent.SentAt)
	assert.True(t, sent.SentAt.Equal(testNow))
	require.Len(t, env.mail.Sent(), 1)
	assert.Equal(t, "klient@firma.test,biuro@firma.test", env.mail.Sent()[0].To)

	rec = env.do(t, token, http.MethodPost, "/api/emails/"+draft.ID+"/send", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, token, http.MethodPut, "/api/emails/"+draft.ID, db.Email{Subject: "zmieniony", Body: "x"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	kept := decodeBody[db.Email](t, rec)
	assert.Equal(t, "Decyzja", kept.Subject, "un correu enviat no canvia de contingut")
	assert.Nil(t, kept.ClaimID, "però sí es pot desvincular")
	assert.Equal(t, EmailStatusSent, kept.Status)
}

func TestEmailSendFailureMarksFailed(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "anna", RoleAdmin)
	token := env.login(t, admin)
	env.mail.err = errors.New("smtp down")

	rec := env.do(t, token, http.MethodPost, "/api/emails?send=true", db.Email{To: "a@b.test", Subject: "s"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, EmailStatusFailed, decodeBody[db.Email](t, rec).Status)

	rec = env.do(t, token, http.MethodPost, "/api/emails?send=true", db.Email{Subject: "bez adresata"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, token, http.MethodPost, "/api/emails", db.Email{ClientClaimIDs: []string{"8d3c6b1e-1111-4a53-9d1e-5b0f3c2a7d11"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListEmailsUnassigned(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "anna", RoleAdmin)
	token := env.login(t, admin)
	d := env.claim(t, admin, ClaimPayload{ClaimDetail: ClaimDetail{Emails: []db.Email{{Subject: "linked"}}}})
	_, err := env.app.ingestMail(env.ctx(), fetchedMail{MessageID: "<free@x>", Subject: "bez sprawy"}, EmailDirectionIn)
	require.NoError(t, err)

	rec := env.do(t, token, http.MethodGet, "/api/emails?unassigned=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decodeBody[[]db.Email](t, rec)
	require.Len(t, items, 1)
	assert.Equal(t, "bez sprawy", items[0].Subject)

	rec = env.do(t, token, http.MethodGet, "/api/emails?claimId="+d.ID, nil)
	assert.Equal(t, "1", rec.Header().Get("X-Total-Count"))
}
