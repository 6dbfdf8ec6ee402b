package core

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcmoiagese/SpartaClaims/cnf"
	"github.com/marcmoiagese/SpartaClaims/db"
)

func TestRouterRequiresSession(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "", http.MethodGet, "/api/claims", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeBody[map[string]any](t, rec)["error"])

	rec = env.do(t, "unknown-token", http.MethodGet, "/api/claims", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, "", http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestLoginRejectsBadPassword(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "anna", RoleAdmin)

	rec := env.do(t, "", http.MethodPost, "/api/auth/login", map[string]string{"username": "anna", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = env.do(t, "", http.MethodPost, "/api/auth/login", map[string]string{"username": "nobody", "password": "x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginLimiterPerIP(t *testing.T) {
	now := testNow
	l := &loginLimiter{now: func() time.Time { return now }}
	assert.True(t, l.allow("10.0.0.1"))
	assert.False(t, l.allow("10.0.0.1"))
	assert.True(t, l.allow("10.0.0.2"))
	now = now.Add(loginMinInterval)
	assert.True(t, l.allow("10.0.0.1"))

	calls := 0
	h := l.wrap(func(http.ResponseWriter, *http.Request) { calls++ })
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = "10.0.0.3:5555"
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h(rec, req)
		if i == 1 {
			assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		}
	}
	assert.Equal(t, 1, calls)
}

func TestLoginIssuesToken(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "anna", RoleAdmin)

	rec := env.do(t, "", http.MethodPost, "/api/auth/login", map[string]string{"username": " anna ", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody[map[string]any](t, rec)
	assert.NotEmpty(t, body["token"])
	assert.NotEmpty(t, rec.Result().Cookies())
}

func TestListClaimsSetsTotalCount(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "anna", RoleAdmin)
	for i := 0; i < 3; i++ {
		env.claim(t, admin, ClaimPayload{})
	}
	_, err := env.app.InitializeClaim(env.ctx(), admin)
	require.NoError(t, err)
	token := env.login(t, admin)

	rec := env.do(t, token, http.MethodGet, "/api/claims?pageSize=2&sort=-spartaNumber", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "3", rec.Header().Get("X-Total-Count"), "els esborranys no compten")
	items := decodeBody[[]db.Claim](t, rec)
	require.Len(t, items, 2)
	assert.Equal(t, "SPARTA/2025/0003", *items[0].SpartaNumber)

	rec = env.do(t, token, http.MethodGet, "/api/claims?isDraft=true", nil)
	assert.Equal(t, "1", rec.Header().Get("X-Total-Count"))

	rec = env.do(t, token, http.MethodGet, "/api/claims?sort=password", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorBodies(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "anna", RoleAdmin)
	token := env.login(t, admin)

	rec := env.do(t, token, http.MethodGet, "/api/claims/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "claim not found", decodeBody[map[string]any](t, rec)["error"])

	rec = env.do(t, token, http.MethodGet, "/api/claims/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, token, http.MethodGet, "/api/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "route /api/nowhere not found", decodeBody[map[string]any](t, rec)["error"])

	rec = env.do(t, token, http.MethodPost, "/api/claims", ClaimPayload{ClaimDetail: ClaimDetail{
		Recourses: []db.Recourse{{Amount: 1}},
	}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "validation failed", body["error"])
	assert.Contains(t, body["fields"], "recourses[0].filingDate")
}

func TestViewerCannotWrite(t *testing.T) {
	env := newTestEnv(t)
	viewer := env.user(t, "wiktor", RoleViewer)
	token := env.login(t, viewer)

	rec := env.do(t, token, http.MethodGet, "/api/claims", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, token, http.MethodPost, "/api/claims", ClaimPayload{})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", decodeBody[map[string]any](t, rec)["error"])

	rec = env.do(t, token, http.MethodGet, "/api/users", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUsersRouteIsAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "anna", RoleAdmin)
	handler := env.user(t, "henryk", RoleHandler)

	rec := env.do(t, env.login(t, handler), http.MethodGet, "/api/users", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, env.login(t, admin), http.MethodGet, "/api/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-Total-Count"))
}

func TestNotificationSettingsVersioning(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "anna", RoleAdmin)
	token := env.login(t, admin)

	rec := env.do(t, token, http.MethodPut, "/api/notifications/settings", cnf.NotificationSettings{
		Recipients: []string{"ops@sparta.test"}, EnabledEvents: []string{string(EventClaimCreated)},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(1), decodeBody[cnf.NotificationSettings](t, rec).Version)

	rec = env.do(t, token, http.MethodPut, "/api/notifications/settings", cnf.NotificationSettings{
		Version: 1, Recipients: []string{"a@sparta.test"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, token, http.MethodPut, "/api/notifications/settings", cnf.NotificationSettings{
		Version: 1, Recipients: []string{"b@sparta.test"},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, decodeBody[map[string]any](t, rec)["error"], "stale")

	rec = env.do(t, token, http.MethodGet, "/api/notifications/settings", nil)
	got := decodeBody[cnf.NotificationSettings](t, rec)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, []string{"a@sparta.test"}, got.Recipients)
}

func TestDictionaryDeleteConflictsWhenReferenced(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "anna", RoleAdmin)
	token := env.login(t, admin)

	rec := env.do(t, token, http.MethodPost, "/api/risk-types", db.DictionaryItem{Code: "OC", Name: "OC komunikacyjne"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	item := decodeBody[db.DictionaryItem](t, rec)
	assert.Equal(t, KindRiskTypes, item.Kind)

	unused := decodeBody[db.DictionaryItem](t, env.do(t, token, http.MethodPost, "/api/risk-types", db.DictionaryItem{Code: "AC", Name: "Autocasco"}))

	env.claim(t, admin, ClaimPayload{ClaimDetail: ClaimDetail{Claim: db.Claim{RiskTypeID: &item.ID}}})

	rec = env.do(t, token, http.MethodDelete, "/api/risk-types/"+item.ID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, decodeBody[map[string]any](t, rec)["error"], "referenced")

	rec = env.do(t, token, http.MethodDelete, "/api/risk-types/"+unused.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, token, http.MethodGet, "/api/damage-types/"+item.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "cada diccionari veu només els seus elements")

	rec = env.do(t, token, http.MethodPost, "/api/risk-types", db.DictionaryItem{Code: " "})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, map[string]any{"code": "required", "name": "required"}, decodeBody[map[string]any](t, rec)["fields"])
}
