package core

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcmoiagese/SpartaClaims/cnf"
	"github.com/marcmoiagese/SpartaClaims/db"
)

func sampleClaim() *db.Claim {
	return &db.Claim{
		ID:          "0c8f7a1e-2f4b-4a53-9d1e-5b0f3c2a7d11",
		ClaimNumber: "KL-7",
		Status:      "Closed",
		HandlerName: "Henryk Nowak",
	}
}

func TestNotifyGating(t *testing.T) {
	m := &fakeMailer{}
	n := NewNotifier(m, cnf.NotificationSettings{}, "https://sparta.test", "")
	c := sampleClaim()

	assert.Zero(t, n.Notify(c, nil, EventClaimUpdated), "sense destinataris no s'envia res")

	_, err := n.UpdateSettings(cnf.NotificationSettings{
		Recipients:    []string{"a@x.pl", "b@x.pl", "c@x.pl", "d@x.pl", "e@x.pl"},
		EnabledEvents: []string{string(EventStatusChanged)},
	}, 0)
	require.NoError(t, err)

	assert.Zero(t, n.Notify(c, nil, EventClaimUpdated), "esdeveniment no habilitat")
	assert.Zero(t, n.Notify(nil, nil, EventStatusChanged))
	assert.Empty(t, m.Sent())

	assert.Equal(t, maxRecipients, n.Notify(c, nil, EventStatusChanged))
	var to []string
	for _, s := range m.Sent() {
		to = append(to, s.To)
	}
	assert.Equal(t, []string{"a@x.pl", "b@x.pl", "c@x.pl"}, to)
}

func TestNotifyIgnoresMailerErrors(t *testing.T) {
	m := &fakeMailer{err: errors.New("smtp caigut")}
	n := NewNotifier(m, cnf.NotificationSettings{
		Recipients:    []string{"a@x.pl", "b@x.pl"},
		EnabledEvents: []string{string(EventDecisionAdded)},
	}, "https://sparta.test", "")

	assert.Equal(t, 2, n.Notify(sampleClaim(), nil, EventDecisionAdded))
	assert.Len(t, m.Sent(), 2)
}

func TestUpdateSettingsVersioning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notifications.yaml")
	n := NewNotifier(&fakeMailer{}, cnf.NotificationSettings{}, "", path)

	s1, err := n.UpdateSettings(cnf.NotificationSettings{Recipients: []string{" ops@x.pl "}}, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, s1.Version)
	assert.Equal(t, []string{"ops@x.pl"}, s1.Recipients)

	s2, err := n.UpdateSettings(cnf.NotificationSettings{EnabledEvents: []string{string(EventAppealAdded)}}, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, s2.Version)

	_, err = n.UpdateSettings(cnf.NotificationSettings{}, 1)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = n.UpdateSettings(cnf.NotificationSettings{Recipients: []string{"nope"}, EnabledEvents: []string{"Bogus"}}, 0)
	var fe *fieldError
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe.Fields, "recipients[0]")
	assert.Contains(t, fe.Fields, "enabledEvents[0]")
	assert.EqualValues(t, 2, n.Settings().Version, "un error no publica res")

	onDisk, err := cnf.LoadNotificationSettings(path)
	require.NoError(t, err)
	assert.EqualValues(t, 2, onDisk.Version)
	assert.Empty(t, onDisk.Recipients)
	assert.Equal(t, []string{string(EventAppealAdded)}, onDisk.EnabledEvents)
}

func TestSettingsSnapshotIsIsolated(t *testing.T) {
	n := NewNotifier(&fakeMailer{}, cnf.NotificationSettings{Recipients: []string{"a@x.pl"}}, "", "")
	s := n.Settings()
	s.Recipients[0] = "changed@x.pl"
	assert.Equal(t, "a@x.pl", n.Settings().Recipients[0])
}

func TestRenderNotificationGolden(t *testing.T) {
	actor := &db.User{Username: "anna", DisplayName: "Anna Admin"}
	subject, body := renderNotification(EventStatusChanged, sampleClaim(), actor, "https://sparta.test")

	g := goldie.New(t)
	g.Assert(t, "notification_status_changed", []byte(subject+"\n\n"+body))
}

func TestRenderNotificationFallbacks(t *testing.T) {
	num := "SPARTA/2025/0003"
	c := &db.Claim{ID: "id-1", SpartaNumber: &num}
	subject, body := renderNotification(EventAppealReminder30, c, nil, "https://sparta.test")
	assert.Equal(t, "Przypomnienie: odwołanie bez decyzji od 30 dni (SPARTA/2025/0003)", subject)
	assert.Contains(t, body, "Status: -\n")
	assert.Contains(t, body, "Użytkownik: system\n")
	assert.NotContains(t, body, "Likwidator")
}
