package core

import (
	"container/heap"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcmoiagese/SpartaClaims/db"
)

func TestRuleHeapOrdersByNextThenID(t *testing.T) {
	base := testNow
	h := &ruleHeap{}
	heap.Push(h, &armedRule{rule: db.EventRule{ID: "c"}, next: base.Add(2 * time.Hour)})
	heap.Push(h, &armedRule{rule: db.EventRule{ID: "b"}, next: base.Add(time.Hour)})
	heap.Push(h, &armedRule{rule: db.EventRule{ID: "a"}, next: base.Add(time.Hour)})

	var order []string
	for h.Len() > 0 {
		order = append(order, heap.Pop(h).(*armedRule).rule.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestParseRuleCron(t *testing.T) {
	_, err := parseRuleCron("*/15 * * * *")
	assert.NoError(t, err)
	_, err = parseRuleCron("@daily")
	assert.NoError(t, err)
	_, err = parseRuleCron("cada dia")
	assert.ErrorIs(t, err, ErrValidation)
}

// ruleFixture desa un sinistre i una regla activa per a aquest sinistre.
func ruleFixture(t *testing.T, env *testEnv, expr string, ev EventType) db.EventRule {
	t.Helper()
	c := db.Claim{ID: uuid.NewString(), ClaimNumber: "KL-" + expr, Status: "Open", CreatedAt: env.now, UpdatedAt: env.now}
	require.NoError(t, db.Claims.Insert(env.ctx(), env.app.DB.Handle(), &c))
	r := db.EventRule{ID: uuid.NewString(), ClaimID: c.ID, Cron: expr, Event: string(ev), IsActive: true,
		CreatedAt: env.now, UpdatedAt: env.now}
	require.NoError(t, db.EventRules.Insert(env.ctx(), env.app.DB.Handle(), &r))
	return r
}

type fireLog struct {
	mu  sync.Mutex
	ids []string
}

func (f *fireLog) fire(_ context.Context, r db.EventRule) {
	f.mu.Lock()
	f.ids = append(f.ids, r.ID)
	f.mu.Unlock()
}

func TestSchedulerArmAndRunDue(t *testing.T) {
	env := newTestEnv(t)
	log := &fireLog{}
	s := NewRuleScheduler(env.app.DB, log.fire, func() time.Time { return env.now })

	daily := ruleFixture(t, env, "0 9 * * *", EventClaimUpdated)
	halfHour := ruleFixture(t, env, "*/30 * * * *", EventClaimUpdated)

	next, err := s.Arm(env.ctx(), daily)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 11, 9, 0, 0, 0, time.UTC), next.UTC())
	next, err = s.Arm(env.ctx(), halfHour)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 10, 9, 30, 0, 0, time.UTC), next.UTC())
	assert.Equal(t, 2, s.Len())

	assert.Zero(t, s.runDue(env.ctx(), env.now.Add(29*time.Minute)))
	fired := s.runDue(env.ctx(), env.now.Add(30*time.Minute))
	assert.Equal(t, 1, fired)
	assert.Equal(t, []string{halfHour.ID}, log.ids)

	again, ok := s.Next(halfHour.ID)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC), again.UTC())

	hist, err := db.EventRuleHistories.Find(env.ctx(), env.app.DB.Handle(), db.Eq("rule_id", halfHour.ID))
	require.NoError(t, err)
	assert.Len(t, hist, 2, "una fila per cada programació")
}

func TestSchedulerRearmReplacesEntry(t *testing.T) {
	env := newTestEnv(t)
	s := NewRuleScheduler(env.app.DB, (&fireLog{}).fire, func() time.Time { return env.now })
	r := ruleFixture(t, env, "0 12 * * *", EventClaimUpdated)

	_, err := s.Arm(env.ctx(), r)
	require.NoError(t, err)
	r.Cron = "0 18 * * *"
	next, err := s.Arm(env.ctx(), r)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 18, next.Hour())
}

func TestSchedulerCancel(t *testing.T) {
	env := newTestEnv(t)
	s := NewRuleScheduler(env.app.DB, (&fireLog{}).fire, func() time.Time { return env.now })
	r := ruleFixture(t, env, "@hourly", EventClaimUpdated)

	_, err := s.Arm(env.ctx(), r)
	require.NoError(t, err)
	require.NoError(t, s.Cancel(env.ctx(), env.app.DB.Handle(), r.ID))

	assert.Zero(t, s.Len())
	assert.False(t, s.Disarm(r.ID))
	_, ok := s.Next(r.ID)
	assert.False(t, ok)
	n, err := env.app.DB.Handle().Count(env.ctx(), "SELECT COUNT(*) FROM event_rule_history WHERE rule_id = ?", r.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSchedulerRunStopsOnCancel(t *testing.T) {
	env := newTestEnv(t)
	s := NewRuleScheduler(env.app.DB, (&fireLog{}).fire, time.Now)
	r := ruleFixture(t, env, "@daily", EventClaimUpdated)
	_, err := s.Arm(env.ctx(), r)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("el planificador no s'ha aturat")
	}
	assert.Zero(t, s.Len())
}

func TestFireRuleNotifiesClaimEvent(t *testing.T) {
	env := newTestEnv(t)
	env.enableNotifications(t, []string{"ops@sparta.test"}, EventDecisionAdded)
	r := ruleFixture(t, env, "@daily", EventDecisionAdded)

	env.app.fireRule(env.ctx(), r)
	sent := env.mail.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Nowa decyzja w szkodzie KL-@daily", sent[0].Subject)

	r.Event = "Unknown"
	env.app.fireRule(env.ctx(), r)
	assert.Len(t, env.mail.Sent(), 1)
}
