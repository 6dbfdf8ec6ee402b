package core

import (
	"context"
	"fmt"
	"time"

	"github.com/marcmoiagese/SpartaClaims/cnf"
	"github.com/marcmoiagese/SpartaClaims/db"
)

// App encapsula dependències compartides per evitar reobrir recursos per petició.
type App struct {
	Config    cnf.AppConfig
	DB        *db.Store
	Mail      Mailer
	Notifier  *Notifier
	Feed      *Feed
	Push      *PushService
	Storage   Storage
	Scheduler *RuleScheduler

	now        func() time.Time
	nextNumber func(context.Context, db.Handle, time.Time) (string, error)
}

// Option modifica l'App durant la construcció (tests, backends alternatius).
type Option func(*App)

func WithMailer(m Mailer) Option { return func(a *App) { a.Mail = m } }

func WithStorage(s Storage) Option { return func(a *App) { a.Storage = s } }

func WithPushSender(s PushSender) Option {
	return func(a *App) { a.Push = NewPushService(s, a.Config.VAPIDPublicKey) }
}

func WithClock(now func() time.Time) Option { return func(a *App) { a.now = now } }

// NewApp munta els serveis a partir de la configuració i d'una BD ja oberta.
func NewApp(ctx context.Context, ac cnf.AppConfig, store *db.Store, opts ...Option) (*App, error) {
	a := &App{
		Config: ac,
		DB:     store,
		Mail:   NewMailConfig(ac),
		Feed:   NewFeed(feedCapacity),
		now:    func() time.Time { return time.Now().UTC() },

		nextNumber: nextSpartaNumber,
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.Storage == nil {
		st, err := NewStorage(ctx, ac)
		if err != nil {
			return nil, fmt.Errorf("error inicialitzant l'emmagatzematge: %w", err)
		}
		a.Storage = st
	}
	if a.Push == nil {
		ps, err := newWebPushService(ac)
		if err != nil {
			return nil, fmt.Errorf("error inicialitzant web push: %w", err)
		}
		a.Push = ps
	}

	settings, err := cnf.LoadNotificationSettings(ac.NotifySettingsPath)
	if err != nil {
		return nil, err
	}
	a.Notifier = NewNotifier(a.Mail, settings, ac.BaseURL, ac.NotifySettingsPath)
	a.Scheduler = NewRuleScheduler(store, a.fireRule, a.clock)
	return a, nil
}

func (a *App) clock() time.Time { return a.now() }

func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}
