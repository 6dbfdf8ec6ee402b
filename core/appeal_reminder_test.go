package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcmoiagese/SpartaClaims/db"
)

func TestDaysBetween(t *testing.T) {
	from := time.Date(2025, 5, 11, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, 30, daysBetween(from, time.Date(2025, 6, 10, 0, 1, 0, 0, time.UTC)))
	assert.Equal(t, 1, daysBetween(from, from.Add(2*time.Minute)), "travessar la mitjanit ja compta un dia")

	morning := time.Date(2025, 5, 11, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, daysBetween(morning, morning.Add(time.Minute)))
	assert.Equal(t, 0, daysBetween(morning, time.Date(2025, 5, 11, 23, 59, 0, 0, time.UTC)))
}

func TestScanAppealsFiresOnExactDays(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "anna", RoleAdmin)
	d := env.claim(t, admin, ClaimPayload{ClaimDetail: ClaimDetail{
		Claim: db.Claim{ClaimNumber: "KL-30"},
		Appeals: []db.Appeal{
			{Reason: "30", SubmissionDate: datePtr(2025, 5, 11)},
			{Reason: "60", SubmissionDate: datePtr(2025, 4, 11)},
			{Reason: "31", SubmissionDate: datePtr(2025, 5, 10)},
			{Reason: "resolt", SubmissionDate: datePtr(2025, 5, 11), DecisionDate: datePtr(2025, 6, 1)},
			{Reason: "sense data"},
		},
	}})
	require.Len(t, d.Appeals, 5)

	env.enableNotifications(t, []string{"ops@sparta.test"}, EventAppealReminder30, EventAppealReminder60)
	env.mail.Reset()

	fired, err := env.app.scanAppeals(env.ctx(), env.now)
	require.NoError(t, err)
	assert.Equal(t, 2, fired)

	var subjects []string
	for _, m := range env.mail.Sent() {
		subjects = append(subjects, m.Subject)
	}
	assert.ElementsMatch(t, []string{
		"Przypomnienie: odwołanie bez decyzji od 30 dni (KL-30)",
		"Przypomnienie: odwołanie bez decyzji od 60 dni (KL-30)",
	}, subjects)

	fired, err = env.app.scanAppeals(env.ctx(), env.now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, fired, "el dia 31 i el 61 no disparen res")
}
