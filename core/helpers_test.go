package core

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/marcmoiagese/SpartaClaims/cnf"
	"github.com/marcmoiagese/SpartaClaims/db"
)

var testNow = time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return m.err
}

func (m *fakeMailer) Sent() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

func (m *fakeMailer) Reset() {
	m.mu.Lock()
	m.sent = nil
	m.mu.Unlock()
}

// fakePush respon amb el codi configurat per endpoint (201 per defecte).
type fakePush struct {
	mu        sync.Mutex
	status    map[string]int
	delivered []string
}

func (p *fakePush) Send(_ context.Context, sub PushSubscription, _ []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delivered = append(p.delivered, sub.Endpoint)
	if code, ok := p.status[sub.Endpoint]; ok {
		return code, nil
	}
	return http.StatusCreated, nil
}

type testEnv struct {
	app  *App
	mail *fakeMailer
	push *fakePush
	now  time.Time
	dir  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	SetLogLevel("silent")
	dir := t.TempDir()

	store, err := db.Open(map[string]string{
		"DB_ENGINE": "sqlite",
		"DB_PATH":   filepath.Join(dir, "sparta.db"),
	})
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))

	ac, err := cnf.ParseConfig(map[string]string{
		"ENVIRONMENT":          "development",
		"BASE_URL":             "https://sparta.test",
		"MAIL_FROM":            "sparta@sparta.test",
		"UPLOADS_ROOT":         filepath.Join(dir, "uploads"),
		"NOTIFY_SETTINGS_PATH": filepath.Join(dir, "notifications.yaml"),
		"VAPID_PUBLIC_KEY":     "test-public-key",
	})
	require.NoError(t, err)

	env := &testEnv{mail: &fakeMailer{}, push: &fakePush{status: map[string]int{}}, now: testNow, dir: dir}
	app, err := NewApp(context.Background(), ac, store,
		WithMailer(env.mail),
		WithPushSender(env.push),
		WithClock(func() time.Time { return env.now }))
	require.NoError(t, err)
	t.Cleanup(app.Close)
	env.app = app
	return env
}

func (e *testEnv) ctx() context.Context { return context.Background() }

// enableNotifications habilita els esdeveniments per als destinataris donats.
func (e *testEnv) enableNotifications(t *testing.T, recipients []string, events ...EventType) {
	t.Helper()
	names := make([]string, len(events))
	for i, ev := range events {
		names[i] = string(ev)
	}
	_, err := e.app.Notifier.UpdateSettings(cnf.NotificationSettings{Recipients: recipients, EnabledEvents: names}, 0)
	require.NoError(t, err)
}

func (e *testEnv) user(t *testing.T, username string, roles ...string) *db.User {
	t.Helper()
	u, err := e.app.CreateUser(e.ctx(), UserInput{
		Username: username,
		Email:    username + "@sparta.test",
		Password: "correct-horse",
		Roles:    roles,
	})
	require.NoError(t, err)
	return u
}

func (e *testEnv) caseHandler(t *testing.T, name string, userID *string) db.CaseHandler {
	t.Helper()
	ch := db.CaseHandler{
		ID: uuid.NewString(), Name: name, Email: name + "@sparta.test", UserID: userID,
		IsActive: true, CreatedAt: e.now, UpdatedAt: e.now,
	}
	require.NoError(t, db.CaseHandlers.Insert(e.ctx(), e.app.DB.Handle(), &ch))
	return ch
}

func (e *testEnv) claim(t *testing.T, actor *db.User, in ClaimPayload) *ClaimDetail {
	t.Helper()
	d, err := e.app.UpsertClaim(e.ctx(), actor, &in)
	require.NoError(t, err)
	return d
}

// login obre una sessió amb caducitat real (el rellotge de l'App és fix).
func (e *testEnv) login(t *testing.T, u *db.User) string {
	t.Helper()
	token, err := newSessionToken()
	require.NoError(t, err)
	require.NoError(t, db.SaveSession(e.ctx(), e.app.DB.Handle(), token, u.ID, time.Now().Add(time.Hour)))
	return token
}

// do fa una petició autenticada contra el router complet.
func (e *testEnv) do(t *testing.T, token, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.app.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func strPtr(s string) *string { return &s }
