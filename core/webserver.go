package core

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/marcmoiagese/SpartaClaims/db"
)

const (
	loginMinInterval  = time.Second
	sessionSweepEvery = time.Hour
	shutdownTimeout   = 15 * time.Second
)

// loginLimiter limita els intents d'inici de sessió per IP.
type loginLimiter struct {
	last sync.Map
	now  func() time.Time
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (l *loginLimiter) allow(ip string) bool {
	now := l.now()
	val, loaded := l.last.LoadOrStore(ip, now)
	if loaded {
		if now.Sub(val.(time.Time)) < loginMinInterval {
			return false
		}
		l.last.Store(ip, now)
	}
	return true
}

func (l *loginLimiter) wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientIP(r)) {
			Log().Warn().Str("ip", clientIP(r)).Msg("massa intents d'inici de sessió")
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many requests"})
			return
		}
		next(w, r)
	}
}

func (a *App) secureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		if a.Config.Env != "development" {
			h.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
		}
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("X-Robots-Tag", "noindex, nofollow")
		h.Set("Access-Control-Expose-Headers", "X-Total-Count")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder guarda el codi de resposta per al registre d'accés.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// Hijack és necessari per al websocket del feed.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack no suportat")
	}
	s.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		Log().Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(start)).
			Msg("petició")
	})
}

func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rv := recover(); rv != nil {
				if rv == http.ErrAbortHandler {
					panic(rv)
				}
				Log().Error().Interface("panic", rv).Str("path", r.URL.Path).Bytes("stack", debug.Stack()).Msg("panic al gestor")
				writeError(w, r, errors.New("panic"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Router munta totes les rutes de l'API.
func (a *App) Router() http.Handler {
	limiter := &loginLimiter{now: time.Now}
	admin := requireRole(RoleAdmin)

	root := mux.NewRouter()
	root.Use(recoverer, requestLogger, a.secureHeaders)
	root.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, notFoundf("route %s", r.URL.Path))
	})
	root.HandleFunc("/healthz", a.Healthz).Methods(http.MethodGet)

	api := root.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/login", limiter.wrap(a.Login)).Methods(http.MethodPost)
	api.HandleFunc("/push/public-key", a.PushPublicKey).Methods(http.MethodGet)

	priv := api.NewRoute().Subrouter()
	priv.Use(a.requireAuth, canWrite)
	priv.HandleFunc("/auth/logout", a.Logout).Methods(http.MethodPost)
	priv.HandleFunc("/auth/me", a.Me).Methods(http.MethodGet)

	a.mountClaims(priv)
	a.mountClaimResources(priv)
	a.mountDictionaries(priv)
	a.mountEmails(priv)
	a.mountDocuments(priv)
	a.mountEventRules(priv)
	a.mountUsers(priv, admin)

	priv.Handle("/notifications/settings", admin(http.HandlerFunc(a.GetNotificationSettings))).Methods(http.MethodGet)
	priv.Handle("/notifications/settings", admin(http.HandlerFunc(a.PutNotificationSettings))).Methods(http.MethodPut)
	priv.HandleFunc("/notifications/feed", a.ListFeed).Methods(http.MethodGet)
	priv.HandleFunc("/notifications/ws", a.FeedStream).Methods(http.MethodGet)
	priv.HandleFunc("/push/subscriptions", a.PushSubscribe).Methods(http.MethodPost)
	priv.HandleFunc("/push/subscriptions", a.PushUnsubscribe).Methods(http.MethodDelete)

	priv.HandleFunc("/reports/export", a.ExportReport).Methods(http.MethodGet)
	priv.HandleFunc("/reports/summary", a.ReportSummary).Methods(http.MethodGet)
	return root
}

func (a *App) Healthz(w http.ResponseWriter, r *http.Request) {
	if _, err := a.DB.Handle().Count(r.Context(), "SELECT COUNT(*) FROM users"); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "db unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) sweepSessions(ctx context.Context) {
	ticker := time.NewTicker(sessionSweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := db.DeleteExpiredSessions(ctx, a.DB.Handle())
			if err != nil {
				Log().Error().Err(err).Msg("error netejant sessions caducades")
				continue
			}
			if n > 0 {
				Debugf("Sessions caducades esborrades: %d", n)
			}
		}
	}
}

// Serve arrenca els treballs de fons i el servidor HTTP fins que es cancel·la el context.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.Scheduler.Load(ctx); err != nil {
		return err
	}
	var wg sync.WaitGroup
	background := []func(context.Context){a.Scheduler.Run, a.sweepSessions, a.RunMailFetcher}
	if a.Config.AppealReminderEnabled {
		background = append(background, a.RunAppealReminders)
	}
	for _, job := range background {
		wg.Add(1)
		go func(run func(context.Context)) {
			defer wg.Done()
			run(ctx)
		}(job)
	}

	srv := &http.Server{
		Addr:              a.Config.HTTPAddr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		Infof("Servidor escoltant a %s", a.Config.HTTPAddr)
		errc <- srv.ListenAndServe()
	}()

	var err error
	select {
	case <-ctx.Done():
		shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
		err = srv.Shutdown(shutdownCtx)
		stop()
	case err = <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	}
	cancel()
	wg.Wait()
	Infof("Servidor aturat")
	return err
}
