package core

import (
	"context"
	"time"

	"github.com/marcmoiagese/SpartaClaims/db"
)

const appealReminderInterval = 24 * time.Hour

// appealReminderEvent retorna l'esdeveniment per als dies transcorreguts, si n'hi ha.
// Només es compara la igualtat exacta: si el bucle no corre el dia 30 o 60 el recordatori es perd.
func appealReminderEvent(days int) (EventType, bool) {
	switch days {
	case 30:
		return EventAppealReminder30, true
	case 60:
		return EventAppealReminder60, true
	}
	return "", false
}

// daysBetween compta dies naturals (UTC) entre from i to.
func daysBetween(from, to time.Time) int {
	f := from.UTC().Truncate(24 * time.Hour)
	t := to.UTC().Truncate(24 * time.Hour)
	return int(t.Sub(f) / (24 * time.Hour))
}

// scanAppeals recorre els recursos sense decisió i notifica els que compleixen 30 o 60 dies.
// Retorna el nombre de recordatoris disparats.
func (a *App) scanAppeals(ctx context.Context, now time.Time) (int, error) {
	h := a.DB.Handle()
	pending, err := db.Appeals.Find(ctx, h,
		db.Cond{Column: "decision_date", Op: "IS NULL"},
		db.Cond{Column: "submission_date", Op: "IS NOT NULL"})
	if err != nil {
		return 0, err
	}
	claims := map[string]*db.Claim{}
	fired := 0
	for _, ap := range pending {
		ev, ok := appealReminderEvent(daysBetween(*ap.SubmissionDate, now))
		if !ok {
			continue
		}
		c, seen := claims[ap.ClaimID]
		if !seen {
			c, err = db.Claims.Get(ctx, h, ap.ClaimID)
			if err != nil && !db.IsNotFound(err) {
				return fired, err
			}
			claims[ap.ClaimID] = c
		}
		if c == nil {
			continue
		}
		bestEffort("appeal-reminder", c.ID, func() { a.Notifier.Notify(c, nil, ev) })
		Log().Info().Str("claim_id", c.ID).Str("appeal_id", ap.ID).Str("event", string(ev)).Msg("recordatori de recurs")
		fired++
	}
	return fired, nil
}

// RunAppealReminders executa l'escaneig ara i després cada 24 hores fins que es cancel·la el context.
func (a *App) RunAppealReminders(ctx context.Context) {
	for {
		n, err := a.scanAppeals(ctx, a.now())
		if err != nil {
			Log().Error().Err(err).Msg("error escanejant recursos pendents")
		} else {
			Debugf("recordatoris de recursos disparats: %d", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(appealReminderInterval):
		}
	}
}
