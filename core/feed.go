package core

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const feedCapacity = 100

// FeedEntry és una notificació del feed mòbil.
type FeedEntry struct {
	ID        string    `json:"id"`
	ClaimID   string    `json:"claimId"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// Feed és un buffer circular en memòria amb subscriptors en directe.
type Feed struct {
	mu      sync.RWMutex
	entries []FeedEntry
	next    int
	full    bool
	subs    map[chan FeedEntry]struct{}
}

func NewFeed(capacity int) *Feed {
	if capacity <= 0 {
		capacity = feedCapacity
	}
	return &Feed{entries: make([]FeedEntry, capacity), subs: map[chan FeedEntry]struct{}{}}
}

// Add desa l'entrada (sobreescrivint la més antiga si cal) i la difon als subscriptors.
func (f *Feed) Add(e FeedEntry) FeedEntry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	f.mu.Lock()
	f.entries[f.next] = e
	f.next = (f.next + 1) % len(f.entries)
	if f.next == 0 {
		f.full = true
	}
	subs := make([]chan FeedEntry, 0, len(f.subs))
	for ch := range f.subs {
		subs = append(subs, ch)
	}
	f.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- e:
		default:
			// subscriptor lent: es perd l'entrada en directe, continua disponible a List
		}
	}
	return e
}

// List retorna les entrades de la més nova a la més antiga.
func (f *Feed) List() []FeedEntry {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n := f.next
	if f.full {
		n = len(f.entries)
	}
	out := make([]FeedEntry, 0, n)
	for i := 1; i <= n; i++ {
		idx := (f.next - i + len(f.entries)) % len(f.entries)
		out = append(out, f.entries[idx])
	}
	return out
}

// Subscribe retorna un canal amb les entrades noves i la funció per donar-se de baixa.
func (f *Feed) Subscribe() (<-chan FeedEntry, func()) {
	ch := make(chan FeedEntry, 16)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, ch)
			f.mu.Unlock()
		})
	}
}

func (a *App) ListFeed(w http.ResponseWriter, r *http.Request) {
	entries := a.Feed.List()
	writeList(w, entries, len(entries))
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 50 * time.Second
)

// FeedStream envia les entrades noves del feed per websocket.
func (a *App) FeedStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		Debugf("upgrade websocket fallit: %v", err)
		return
	}
	defer conn.Close()

	entries, cancel := a.Feed.Subscribe()
	defer cancel()

	// lector: només per detectar el tancament i respondre pongs
	closed := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(wsPongWait)) })
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-closed:
			return
		case e := <-entries:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
