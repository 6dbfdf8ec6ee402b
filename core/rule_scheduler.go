package core

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/marcmoiagese/SpartaClaims/db"
)

// armedRule és una regla programada amb la seva propera execució.
type armedRule struct {
	rule  db.EventRule
	sched cron.Schedule
	next  time.Time
	index int
}

// ruleHeap ordena les regles per propera execució (min-heap).
type ruleHeap []*armedRule

func (h ruleHeap) Len() int { return len(h) }
func (h ruleHeap) Less(i, j int) bool {
	if h[i].next.Equal(h[j].next) {
		return h[i].rule.ID < h[j].rule.ID
	}
	return h[i].next.Before(h[j].next)
}
func (h ruleHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *ruleHeap) Push(x any) {
	item := x.(*armedRule)
	item.index = len(*h)
	*h = append(*h, item)
}
func (h *ruleHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// RuleScheduler executa les regles d'esdeveniments des d'un únic bucle.
type RuleScheduler struct {
	store *db.Store
	fire  func(context.Context, db.EventRule)
	now   func() time.Time

	mu   sync.Mutex
	heap ruleHeap
	byID map[string]*armedRule
	wake chan struct{}
}

func NewRuleScheduler(store *db.Store, fire func(context.Context, db.EventRule), now func() time.Time) *RuleScheduler {
	return &RuleScheduler{
		store: store,
		fire:  fire,
		now:   now,
		byID:  map[string]*armedRule{},
		wake:  make(chan struct{}, 1),
	}
}

// parseRuleCron accepta la sintaxi estàndard de 5 camps i descriptors com @daily.
func parseRuleCron(expr string) (cron.Schedule, error) {
	s, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, validationf("invalid cron expression %q: %v", expr, err)
	}
	return s, nil
}

// Load programa totes les regles actives. Les execucions perdudes mentre el procés
// estava aturat no es recuperen.
func (s *RuleScheduler) Load(ctx context.Context) error {
	rules, err := db.EventRules.Find(ctx, s.store.Handle(), db.Eq("is_active", true))
	if err != nil {
		return err
	}
	for _, r := range rules {
		if _, err := s.Arm(ctx, r); err != nil {
			Log().Error().Err(err).Str("rule_id", r.ID).Msg("regla no programada")
		}
	}
	Infof("Regles d'esdeveniments carregades: %d", s.Len())
	return nil
}

// Arm calcula la propera execució i (re)programa la regla. Si l'expressió no té cap
// execució futura la regla queda sense programar i es retorna el temps zero.
func (s *RuleScheduler) Arm(ctx context.Context, r db.EventRule) (time.Time, error) {
	sched, err := parseRuleCron(r.Cron)
	if err != nil {
		return time.Time{}, err
	}
	return s.arm(ctx, r, sched, s.now())
}

func (s *RuleScheduler) arm(ctx context.Context, r db.EventRule, sched cron.Schedule, from time.Time) (time.Time, error) {
	next := sched.Next(from)
	s.Disarm(r.ID)
	if next.IsZero() {
		return time.Time{}, nil
	}

	hist := db.EventRuleHistory{
		ID:           uuid.NewString(),
		RuleID:       r.ID,
		JobID:        uuid.NewString(),
		ScheduledFor: next.UTC(),
		CreatedAt:    s.now().UTC(),
	}
	if err := db.EventRuleHistories.Insert(ctx, s.store.Handle(), &hist); err != nil {
		return time.Time{}, err
	}

	s.mu.Lock()
	item := &armedRule{rule: r, sched: sched, next: next}
	heap.Push(&s.heap, item)
	s.byID[r.ID] = item
	s.mu.Unlock()
	s.poke()
	return next, nil
}

// Disarm treu la regla de la cua. Retorna fals si no hi era.
func (s *RuleScheduler) Disarm(ruleID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.byID[ruleID]
	if !ok {
		return false
	}
	heap.Remove(&s.heap, item.index)
	delete(s.byID, ruleID)
	return true
}

// Cancel desprograma la regla i n'esborra l'historial.
func (s *RuleScheduler) Cancel(ctx context.Context, h db.Handle, ruleID string) error {
	s.Disarm(ruleID)
	_, err := db.EventRuleHistories.DeleteWhere(ctx, h, db.Eq("rule_id", ruleID))
	return err
}

// Next retorna la propera execució programada d'una regla.
func (s *RuleScheduler) Next(ruleID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item, ok := s.byID[ruleID]; ok {
		return item.next, true
	}
	return time.Time{}, false
}

func (s *RuleScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.heap)
}

func (s *RuleScheduler) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// runDue executa les regles vençudes a now i les reprograma des de now.
func (s *RuleScheduler) runDue(ctx context.Context, now time.Time) int {
	var due []*armedRule
	s.mu.Lock()
	for len(s.heap) > 0 && !s.heap[0].next.After(now) {
		item := heap.Pop(&s.heap).(*armedRule)
		delete(s.byID, item.rule.ID)
		due = append(due, item)
	}
	s.mu.Unlock()

	for _, item := range due {
		rule := item.rule
		bestEffort("event-rule", rule.ClaimID, func() { s.fire(ctx, rule) })
		if _, err := s.arm(ctx, rule, item.sched, now); err != nil {
			Log().Error().Err(err).Str("rule_id", rule.ID).Msg("no s'ha pogut reprogramar la regla")
		}
	}
	return len(due)
}

// Run és el bucle del planificador. En acabar descarta totes les regles programades.
func (s *RuleScheduler) Run(ctx context.Context) {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	for {
		wait := time.Hour
		s.mu.Lock()
		if len(s.heap) > 0 {
			wait = max(s.heap[0].next.Sub(s.now()), 0)
		}
		s.mu.Unlock()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.heap = nil
			s.byID = map[string]*armedRule{}
			s.mu.Unlock()
			return
		case <-s.wake:
		case <-timer.C:
			s.runDue(ctx, s.now())
		}
	}
}

// fireRule notifica l'esdeveniment de la regla sobre el seu sinistre.
func (a *App) fireRule(ctx context.Context, r db.EventRule) {
	ev, ok := parseEventType(r.Event)
	if !ok {
		Log().Error().Str("rule_id", r.ID).Str("event", r.Event).Msg("regla amb esdeveniment desconegut")
		return
	}
	c, err := db.Claims.Get(ctx, a.DB.Handle(), r.ClaimID)
	if err != nil {
		Log().Error().Err(err).Str("rule_id", r.ID).Str("claim_id", r.ClaimID).Msg("sinistre de la regla no disponible")
		return
	}
	n := a.Notifier.Notify(c, nil, ev)
	Log().Info().Str("rule_id", r.ID).Str("claim_id", c.ID).Str("event", r.Event).Int("sent", n).Msg("regla executada")
}
