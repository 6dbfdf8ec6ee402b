package core

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/marcmoiagese/SpartaClaims/cnf"
)

// PushSubscription és la subscripció que registra el navegador.
type PushSubscription struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// PushMessage és el contingut que rep el service worker.
type PushMessage struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
}

// PushSender lliura un missatge a una subscripció i retorna el codi HTTP del servei de push.
type PushSender interface {
	Send(ctx context.Context, sub PushSubscription, payload []byte) (int, error)
}

// PushService manté el registre de subscripcions en memòria i en fa la difusió.
type PushService struct {
	sender    PushSender
	publicKey string
	mu        sync.RWMutex
	subs      map[string]PushSubscription
}

func NewPushService(sender PushSender, publicKey string) *PushService {
	return &PushService{sender: sender, publicKey: publicKey, subs: map[string]PushSubscription{}}
}

// newWebPushService fa servir les claus VAPID configurades o en genera unes de noves.
func newWebPushService(ac cnf.AppConfig) (*PushService, error) {
	pub, priv := ac.VAPIDPublicKey, ac.VAPIDPrivateKey
	if pub == "" || priv == "" {
		var err error
		priv, pub, err = webpush.GenerateVAPIDKeys()
		if err != nil {
			return nil, err
		}
		Infof("Claus VAPID generades; configureu VAPID_PUBLIC_KEY i VAPID_PRIVATE_KEY per mantenir-les entre reinicis")
	}
	sender := &webPushSender{publicKey: pub, privateKey: priv, subject: ac.VAPIDSubject}
	return NewPushService(sender, pub), nil
}

type webPushSender struct {
	publicKey  string
	privateKey string
	subject    string
}

func (s *webPushSender) Send(ctx context.Context, sub PushSubscription, payload []byte) (int, error) {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.Keys.P256dh, Auth: sub.Keys.Auth},
	}, &webpush.Options{
		Subscriber:      s.subject,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             3600,
	})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func (p *PushService) PublicKey() string { return p.publicKey }

func (p *PushService) Subscribe(sub PushSubscription) {
	p.mu.Lock()
	p.subs[sub.Endpoint] = sub
	p.mu.Unlock()
}

func (p *PushService) Unsubscribe(endpoint string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.subs[endpoint]
	delete(p.subs, endpoint)
	return ok
}

func (p *PushService) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subs)
}

// Broadcast envia el missatge a totes les subscripcions. Les que responen 404 o 410
// han caducat al servei de push i es donen de baixa.
func (p *PushService) Broadcast(ctx context.Context, msg PushMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		Errorf("error codificant missatge push: %v", err)
		return
	}
	p.mu.RLock()
	subs := make([]PushSubscription, 0, len(p.subs))
	for _, s := range p.subs {
		subs = append(subs, s)
	}
	p.mu.RUnlock()

	for _, s := range subs {
		status, err := p.sender.Send(ctx, s, payload)
		if err != nil {
			Log().Error().Err(err).Str("endpoint", s.Endpoint).Msg("error enviant push")
			continue
		}
		if status == http.StatusNotFound || status == http.StatusGone {
			p.Unsubscribe(s.Endpoint)
			Debugf("subscripció push caducada eliminada: %s", s.Endpoint)
		} else if status >= 400 {
			Log().Error().Int("status", status).Str("endpoint", s.Endpoint).Msg("servei push ha rebutjat el missatge")
		}
	}
}

func (a *App) PushPublicKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"publicKey": a.Push.PublicKey()})
}

func (a *App) PushSubscribe(w http.ResponseWriter, r *http.Request) {
	var sub PushSubscription
	if err := decodeJSON(w, r, &sub); err != nil {
		writeError(w, r, err)
		return
	}
	if !strings.HasPrefix(sub.Endpoint, "https://") || sub.Keys.P256dh == "" || sub.Keys.Auth == "" {
		writeError(w, r, validationf("subscription requires an https endpoint and keys"))
		return
	}
	a.Push.Subscribe(sub)
	w.WriteHeader(http.StatusCreated)
}

func (a *App) PushUnsubscribe(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Endpoint string `json:"endpoint"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if !a.Push.Unsubscribe(in.Endpoint) {
		writeError(w, r, notFoundf("subscription"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
