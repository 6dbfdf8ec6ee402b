package core

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcmoiagese/SpartaClaims/db"
)

func TestUpsertCreatesClaimGraph(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "anna", RoleAdmin)
	env.enableNotifications(t, []string{"ops@sparta.test"}, EventClaimCreated)
	env.app.Push.Subscribe(PushSubscription{Endpoint: "https://push.test/a"})

	d := env.claim(t, admin, ClaimPayload{ClaimDetail: ClaimDetail{
		Claim: db.Claim{ClaimNumber: "KL-100", EventLocation: "Łódź"},
		Participants: []db.Participant{{
			Name:    "Jan Kowalski",
			Drivers: []db.Driver{{FirstName: "Jan", LastName: "Kowalski"}},
		}},
		Damages: []db.Damage{{Description: "zderzak"}, {Description: "lampa"}},
	}})

	require.NotNil(t, d.SpartaNumber)
	assert.Equal(t, "SPARTA/2025/0001", *d.SpartaNumber)
	assert.Equal(t, StatusToAssign, d.Status)
	assert.False(t, d.IsDraft)
	assert.Equal(t, admin.ID, *d.CreatedBy)
	require.Len(t, d.Participants, 1)
	require.Len(t, d.Participants[0].Drivers, 1)
	assert.Equal(t, d.ID, d.Participants[0].Drivers[0].ClaimID)
	assert.Len(t, d.Damages, 2)

	stored, err := db.Claims.Get(env.ctx(), env.app.DB.Handle(), d.ID)
	require.NoError(t, err)
	assert.Contains(t, stored.SearchText, "lodz")
	assert.Contains(t, stored.SearchText, "kowalski")

	sent := env.mail.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "ops@sparta.test", sent[0].To)
	assert.Equal(t, "Nowa szkoda KL-100", sent[0].Subject)
	assert.Len(t, env.app.Feed.List(), 1)
	assert.Equal(t, []string{"https://push.test/a"}, env.push.delivered)
}

func TestUpsertReconcilesChildCollections(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "anna", RoleAdmin)
	d := env.claim(t, admin, ClaimPayload{ClaimDetail: ClaimDetail{
		Damages: []db.Damage{{Description: "A"}, {Description: "B"}},
		Notes:   []db.Note{{Title: "pierwsza"}},
	}})
	require.Len(t, d.Damages, 2)
	var keep, drop db.Damage
	for _, dm := range d.Damages {
		if dm.Description == "A" {
			keep = dm
		} else {
			drop = dm
		}
	}

	keep.Description = "A2"
	env.now = env.now.Add(time.Hour)
	updated := env.claim(t, admin, ClaimPayload{ClaimDetail: ClaimDetail{
		Claim:   db.Claim{ID: d.ID},
		Damages: []db.Damage{keep, {Description: "C"}},
	}})

	descs := map[string]string{}
	for _, dm := range updated.Damages {
		descs[dm.ID] = dm.Description
	}
	assert.Len(t, descs, 2)
	assert.Equal(t, "A2", descs[keep.ID])
	assert.NotContains(t, descs, drop.ID)
	assert.Len(t, updated.Notes, 1, "una col·lecció nul·la no es toca")
	assert.Equal(t, *d.SpartaNumber, *updated.SpartaNumber)
	assert.True(t, updated.CreatedAt.Equal(d.CreatedAt))

	cleared := env.claim(t, admin, ClaimPayload{ClaimDetail: ClaimDetail{
		Claim: db.Claim{ID: d.ID},
		Notes: []db.Note{},
	}})
	assert.Empty(t, cleared.Notes)
	assert.Len(t, cleared.Damages, 2)
}

func TestUpsertRemovingParticipantRemovesDrivers(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "anna", RoleAdmin)
	d := env.claim(t, admin, ClaimPayload{ClaimDetail: ClaimDetail{
		Participants: []db.Participant{
			{Name: "P1", Drivers: []db.Driver{{FirstName: "K1"}, {FirstName: "K2"}}},
			{Name: "P2", Drivers: []db.Driver{{FirstName: "K3"}}},
		},
	}})
	require.Len(t, d.Participants, 2)

	var survivor db.Participant
	for _, p := range d.Participants {
		if p.Name == "P2" {
			survivor = p
		}
	}
	survivor.Drivers = nil
	env.claim(t, admin, ClaimPayload{ClaimDetail: ClaimDetail{
		Claim:        db.Claim{ID: d.ID},
		Participants: []db.Participant{survivor},
	}})

	drivers, err := db.Drivers.Find(env.ctx(), env.app.DB.Handle(), db.Eq("claim_id", d.ID))
	require.NoError(t, err)
	require.Len(t, drivers, 1)
	assert.Equal(t, "K3", drivers[0].FirstName)
}

func TestUpsertReplacesEmails(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "anna", RoleAdmin)
	d := env.claim(t, admin, ClaimPayload{ClaimDetail: ClaimDetail{
		ClientClaims: []db.ClientClaim{{ClaimNumber: "CC-1"}},
		Emails:       []db.Email{{Subject: "pierwszy"}, {Subject: "drugi"}},
	}})
	require.Len(t, d.Emails, 2)
	ccID := d.ClientClaims[0].ID

	updated := env.claim(t, admin, ClaimPayload{ClaimDetail: ClaimDetail{
		Claim:  db.Claim{ID: d.ID},
		Emails: []db.Email{{Subject: "trzeci", ClientClaimIDs: []string{ccID}}},
	}})
	require.Len(t, updated.Emails, 1)
	e := updated.Emails[0]
	assert.Equal(t, "trzeci", e.Subject)
	assert.Equal(t, EmailDirectionOut, e.Direction)
	assert.Equal(t, EmailStatusDraft, e.Status)
	assert.Equal(t, []string{ccID}, e.ClientClaimIDs)

	n, err := env.app.DB.Handle().Count(env.ctx(), "SELECT COUNT(*) FROM emails")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUpsertRejectsInvalidRecourseWithoutChanges(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "anna", RoleAdmin)

	_, err := env.app.UpsertClaim(env.ctx(), admin, &ClaimPayload{ClaimDetail: ClaimDetail{
		Damages:   []db.Damage{{Description: "x"}},
		Recourses: []db.Recourse{{Amount: 100}},
	}})
	require.Error(t, err)
	var fe *fieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "required", fe.Fields["recourses[0].filingDate"])
	assert.Equal(t, "required", fe.Fields["recourses[0].insuranceCompany"])

	n, err := env.app.DB.Handle().Count(env.ctx(), "SELECT COUNT(*) FROM claims")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUpsertMalformedChildIDRollsBack(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "anna", RoleAdmin)
	id := uuid.NewString()

	_, err := env.app.UpsertClaim(env.ctx(), admin, &ClaimPayload{ClaimDetail: ClaimDetail{
		Claim:   db.Claim{ID: id},
		Damages: []db.Damage{{ID: "bad-id"}},
	}})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = db.Claims.Get(env.ctx(), env.app.DB.Handle(), id)
	assert.True(t, db.IsNotFound(err))
}

func TestSpartaNumberRestartsEachYear(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "anna", RoleAdmin)

	env.now = time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC)
	a := env.claim(t, admin, ClaimPayload{})
	b := env.claim(t, admin, ClaimPayload{})
	env.now = time.Date(2026, 1, 1, 0, 30, 0, 0, time.UTC)
	c := env.claim(t, admin, ClaimPayload{})

	assert.Equal(t, "SPARTA/2025/0001", *a.SpartaNumber)
	assert.Equal(t, "SPARTA/2025/0002", *b.SpartaNumber)
	assert.Equal(t, "SPARTA/2026/0001", *c.SpartaNumber)
}

func TestUpsertByHandlerAssignsAndEmails(t *testing.T) {
	env := newTestEnv(t)
	env.enableNotifications(t, []string{"ops@sparta.test"}, EventClaimCreated)
	handlerUser := env.user(t, "henryk", RoleHandler)
	ch := env.caseHandler(t, "henryk", &handlerUser.ID)

	d := env.claim(t, handlerUser, ClaimPayload{})
	require.NotNil(t, d.HandlerID)
	assert.Equal(t, ch.ID, *d.HandlerID)
	assert.Equal(t, StatusNew, d.Status)
	assert.Equal(t, ch.Email, d.HandlerEmail)

	sent := env.mail.Sent()
	require.Len(t, sent, 1, "només el correu d'assignació; els gestors no disparen ClaimCreated")
	assert.Equal(t, ch.Email, sent[0].To)
	assert.Contains(t, sent[0].Subject, "Przydzielono szkodę")
	assert.Empty(t, env.app.Feed.List())
}

func TestUpsertStatusChangeNotifies(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "anna", RoleAdmin)
	d := env.claim(t, admin, ClaimPayload{ClaimDetail: ClaimDetail{Claim: db.Claim{Status: "Open"}}})

	env.enableNotifications(t, []string{"ops@sparta.test"}, EventClaimUpdated, EventStatusChanged)
	env.claim(t, admin, ClaimPayload{ClaimDetail: ClaimDetail{Claim: db.Claim{ID: d.ID, Status: "Closed"}}})

	var subjects []string
	for _, m := range env.mail.Sent() {
		subjects = append(subjects, m.Subject)
	}
	num := *d.SpartaNumber
	assert.Equal(t, []string{"Aktualizacja szkody " + num, "Zmiana statusu szkody " + num}, subjects)
}

func TestInitializedDraftBecomesClaim(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "anna", RoleAdmin)
	id, err := env.app.InitializeClaim(env.ctx(), admin)
	require.NoError(t, err)

	draft, err := db.Claims.Get(env.ctx(), env.app.DB.Handle(), id)
	require.NoError(t, err)
	assert.True(t, draft.IsDraft)
	assert.Nil(t, draft.SpartaNumber)

	d := env.claim(t, admin, ClaimPayload{ClaimDetail: ClaimDetail{Claim: db.Claim{ID: id}}})
	assert.False(t, d.IsDraft)
	assert.Equal(t, "SPARTA/2025/0001", *d.SpartaNumber)
}

func TestDeleteClaimRemovesDependents(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "anna", RoleAdmin)
	d := env.claim(t, admin, ClaimPayload{ClaimDetail: ClaimDetail{
		Participants: []db.Participant{{Name: "P", Drivers: []db.Driver{{FirstName: "K"}}}},
		Emails:       []db.Email{{Subject: "s"}},
	}})

	require.NoError(t, env.app.DeleteClaim(env.ctx(), d.ID))
	h := env.app.DB.Handle()
	for _, table := range []string{"claims", "participants", "drivers", "emails"} {
		n, err := h.Count(env.ctx(), "SELECT COUNT(*) FROM "+table)
		require.NoError(t, err)
		assert.Zero(t, n, table)
	}
	assert.ErrorIs(t, env.app.DeleteClaim(env.ctx(), d.ID), ErrNotFound)
}

func participantByName(t *testing.T, d *ClaimDetail, name string) db.Participant {
	t.Helper()
	for _, p := range d.Participants {
		if p.Name == name {
			return p
		}
	}
	t.Fatalf("participant %s no trobat", name)
	return db.Participant{}
}

func TestUpsertMovesDriverBetweenParticipants(t *testing.T) {
	for _, moverFirst := range []bool{true, false} {
		env := newTestEnv(t)
		admin := env.user(t, "anna", RoleAdmin)
		d := env.claim(t, admin, ClaimPayload{ClaimDetail: ClaimDetail{
			Participants: []db.Participant{
				{Name: "P1", Drivers: []db.Driver{{FirstName: "K1"}}},
				{Name: "P2", Drivers: []db.Driver{}},
			},
		}})
		p1 := participantByName(t, d, "P1")
		p2 := participantByName(t, d, "P2")
		require.Len(t, p1.Drivers, 1)
		k1 := p1.Drivers[0]

		k1.FirstName = "K1b"
		p1.Drivers = []db.Driver{}
		p2.Drivers = []db.Driver{k1}
		order := []db.Participant{p1, p2}
		if moverFirst {
			order = []db.Participant{p2, p1}
		}
		_, err := env.app.UpsertClaim(env.ctx(), admin, &ClaimPayload{ClaimDetail: ClaimDetail{
			Claim:        db.Claim{ID: d.ID},
			Participants: order,
		}})
		require.NoError(t, err, "moverFirst=%v", moverFirst)

		drivers, err := db.Drivers.Find(env.ctx(), env.app.DB.Handle(), db.Eq("claim_id", d.ID))
		require.NoError(t, err)
		require.Len(t, drivers, 1)
		assert.Equal(t, k1.ID, drivers[0].ID)
		assert.Equal(t, p2.ID, drivers[0].ParticipantID)
		assert.Equal(t, "K1b", drivers[0].FirstName)
	}
}

func TestUpsertNullDriversKeepsParticipantDrivers(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "anna", RoleAdmin)
	d := env.claim(t, admin, ClaimPayload{ClaimDetail: ClaimDetail{
		Participants: []db.Participant{
			{Name: "P1", Drivers: []db.Driver{{FirstName: "K1"}}},
			{Name: "P2", Drivers: []db.Driver{{FirstName: "K2"}}},
		},
	}})
	p1 := participantByName(t, d, "P1")
	p2 := participantByName(t, d, "P2")
	p1.Drivers = nil
	p2.Drivers = []db.Driver{}

	env.claim(t, admin, ClaimPayload{ClaimDetail: ClaimDetail{
		Claim:        db.Claim{ID: d.ID},
		Participants: []db.Participant{p1, p2},
	}})

	drivers, err := db.Drivers.Find(env.ctx(), env.app.DB.Handle(), db.Eq("claim_id", d.ID))
	require.NoError(t, err)
	require.Len(t, drivers, 1)
	assert.Equal(t, "K1", drivers[0].FirstName)
	assert.Equal(t, p1.ID, drivers[0].ParticipantID)
}

func TestUpsertSameDriverUnderTwoParticipantsIsRejected(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "anna", RoleAdmin)
	id := uuid.NewString()

	_, err := env.app.UpsertClaim(env.ctx(), admin, &ClaimPayload{ClaimDetail: ClaimDetail{
		Participants: []db.Participant{
			{Name: "P1", Drivers: []db.Driver{{ID: id}}},
			{Name: "P2", Drivers: []db.Driver{{ID: id}}},
		},
	}})
	assert.ErrorIs(t, err, ErrValidation)
}

func appealIDs(t *testing.T, env *testEnv, claimID string) []string {
	t.Helper()
	ids, err := db.Appeals.IDs(env.ctx(), env.app.DB.Handle(), db.Eq("claim_id", claimID))
	require.NoError(t, err)
	return ids
}

func TestUpsertDeletedAppealIDsWithNullAppeals(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "anna", RoleAdmin)
	d := env.claim(t, admin, ClaimPayload{ClaimDetail: ClaimDetail{
		Appeals: []db.Appeal{{Reason: "pierwsze"}, {Reason: "drugie"}},
	}})
	require.Len(t, d.Appeals, 2)
	gone, kept := d.Appeals[0].ID, d.Appeals[1].ID

	env.claim(t, admin, ClaimPayload{
		ClaimDetail:      ClaimDetail{Claim: db.Claim{ID: d.ID}},
		DeletedAppealIDs: []string{gone},
	})
	assert.Equal(t, []string{kept}, appealIDs(t, env, d.ID))
}

func TestUpsertDeletedAppealIDsWinOverAppealsList(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "anna", RoleAdmin)
	d := env.claim(t, admin, ClaimPayload{ClaimDetail: ClaimDetail{
		Appeals: []db.Appeal{{Reason: "pierwsze"}, {Reason: "drugie"}},
	}})
	require.Len(t, d.Appeals, 2)
	gone, kept := d.Appeals[0].ID, d.Appeals[1].ID

	env.claim(t, admin, ClaimPayload{
		ClaimDetail:      ClaimDetail{Claim: db.Claim{ID: d.ID}, Appeals: d.Appeals},
		DeletedAppealIDs: []string{gone},
	})
	assert.Equal(t, []string{kept}, appealIDs(t, env, d.ID))

	_, err := env.app.UpsertClaim(env.ctx(), admin, &ClaimPayload{
		ClaimDetail:      ClaimDetail{Claim: db.Claim{ID: d.ID}},
		DeletedAppealIDs: []string{"not-a-uuid"},
	})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, []string{kept}, appealIDs(t, env, d.ID))
}

func TestUpsertRetriesTakenSpartaNumber(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "anna", RoleAdmin)
	first := env.claim(t, admin, ClaimPayload{})
	require.Equal(t, "SPARTA/2025/0001", *first.SpartaNumber)

	calls := 0
	env.app.nextNumber = func(ctx context.Context, h db.Handle, now time.Time) (string, error) {
		calls++
		if calls == 1 {
			// una altra alta ja ha desat aquest número
			return *first.SpartaNumber, nil
		}
		return nextSpartaNumber(ctx, h, now)
	}

	second := env.claim(t, admin, ClaimPayload{ClaimDetail: ClaimDetail{
		Damages: []db.Damage{{Description: "x"}},
	}})
	assert.Equal(t, 2, calls)
	assert.Equal(t, "SPARTA/2025/0002", *second.SpartaNumber)
	assert.Len(t, second.Damages, 1)
}

func TestUpsertGivesUpAfterSecondTakenNumber(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "anna", RoleAdmin)
	first := env.claim(t, admin, ClaimPayload{})

	calls := 0
	env.app.nextNumber = func(context.Context, db.Handle, time.Time) (string, error) {
		calls++
		return *first.SpartaNumber, nil
	}
	_, err := env.app.UpsertClaim(env.ctx(), admin, &ClaimPayload{})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, spartaNumberAttempts, calls)

	n, err := env.app.DB.Handle().Count(env.ctx(), "SELECT COUNT(*) FROM claims")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUpsertChildIDOfAnotherClaimConflicts(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "anna", RoleAdmin)
	a := env.claim(t, admin, ClaimPayload{ClaimDetail: ClaimDetail{
		Damages: []db.Damage{{Description: "A"}},
	}})
	b := env.claim(t, admin, ClaimPayload{})
	stolen := a.Damages[0]
	stolen.Description = "B"

	_, err := env.app.UpsertClaim(env.ctx(), admin, &ClaimPayload{ClaimDetail: ClaimDetail{
		Claim:   db.Claim{ID: b.ID},
		Damages: []db.Damage{stolen},
		Notes:   []db.Note{{Title: "no s'ha de desar"}},
	}})
	assert.ErrorIs(t, err, ErrConflict)

	orig, err := db.Damages.Get(env.ctx(), env.app.DB.Handle(), stolen.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, orig.ClaimID)
	assert.Equal(t, "A", orig.Description)
	notes, err := db.Notes.IDs(env.ctx(), env.app.DB.Handle(), db.Eq("claim_id", b.ID))
	require.NoError(t, err)
	assert.Empty(t, notes)
}
