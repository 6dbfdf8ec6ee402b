package core

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/marcmoiagese/SpartaClaims/cnf"
	"github.com/marcmoiagese/SpartaClaims/db"
)

// EventType és l'etiqueta d'un esdeveniment notificable.
type EventType string

const (
	EventClaimCreated     EventType = "ClaimCreated"
	EventClaimUpdated     EventType = "ClaimUpdated"
	EventStatusChanged    EventType = "StatusChanged"
	EventDocumentAdded    EventType = "DocumentAdded"
	EventDecisionAdded    EventType = "DecisionAdded"
	EventRecourseAdded    EventType = "RecourseAdded"
	EventSettlementAdded  EventType = "SettlementAdded"
	EventAppealAdded      EventType = "AppealAdded"
	EventAppealReminder30 EventType = "AppealReminder30"
	EventAppealReminder60 EventType = "AppealReminder60"
)

// AllEvents és el conjunt tancat d'esdeveniments.
var AllEvents = []EventType{
	EventClaimCreated, EventClaimUpdated, EventStatusChanged, EventDocumentAdded, EventDecisionAdded,
	EventRecourseAdded, EventSettlementAdded, EventAppealAdded, EventAppealReminder30, EventAppealReminder60,
}

func parseEventType(s string) (EventType, bool) {
	for _, ev := range AllEvents {
		if string(ev) == s {
			return ev, true
		}
	}
	return "", false
}

// maxRecipients limita els enviaments per notificació als primers destinataris configurats.
const maxRecipients = 3

// Notifier decideix si cal notificar un esdeveniment i envia els correus.
// La configuració és immutable un cop publicada: cada actualització en publica una de nova.
type Notifier struct {
	settings atomic.Pointer[cnf.NotificationSettings]
	mailer   Mailer
	baseURL  string
	path     string
	mu       sync.Mutex
}

func NewNotifier(m Mailer, initial cnf.NotificationSettings, baseURL, path string) *Notifier {
	n := &Notifier{mailer: m, baseURL: strings.TrimRight(baseURL, "/"), path: path}
	s := cloneSettings(initial)
	n.settings.Store(&s)
	return n
}

func cloneSettings(s cnf.NotificationSettings) cnf.NotificationSettings {
	return cnf.NotificationSettings{
		Version:       s.Version,
		Recipients:    slices.Clone(s.Recipients),
		EnabledEvents: slices.Clone(s.EnabledEvents),
	}
}

// Settings retorna una còpia de la configuració vigent.
func (n *Notifier) Settings() cnf.NotificationSettings {
	return cloneSettings(*n.settings.Load())
}

// UpdateSettings valida, incrementa la versió, persisteix i publica la configuració nova.
// Si expectedVersion > 0 i no coincideix amb la vigent es retorna un conflicte.
func (n *Notifier) UpdateSettings(in cnf.NotificationSettings, expectedVersion int64) (cnf.NotificationSettings, error) {
	fields := map[string]string{}
	recipients := make([]string, 0, len(in.Recipients))
	for i, r := range in.Recipients {
		r = strings.TrimSpace(r)
		if r == "" || !strings.Contains(r, "@") {
			fields[fmt.Sprintf("recipients[%d]", i)] = "invalid email address"
			continue
		}
		recipients = append(recipients, r)
	}
	events := make([]string, 0, len(in.EnabledEvents))
	for i, e := range in.EnabledEvents {
		if _, ok := parseEventType(e); !ok {
			fields[fmt.Sprintf("enabledEvents[%d]", i)] = "unknown event"
			continue
		}
		events = append(events, e)
	}
	if len(fields) > 0 {
		return cnf.NotificationSettings{}, &fieldError{Fields: fields}
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	cur := n.settings.Load()
	if expectedVersion > 0 && expectedVersion != cur.Version {
		return cnf.NotificationSettings{}, conflictf("settings version %d is stale, current is %d", expectedVersion, cur.Version)
	}
	next := cnf.NotificationSettings{Version: cur.Version + 1, Recipients: recipients, EnabledEvents: events}
	if err := cnf.SaveNotificationSettings(n.path, next); err != nil {
		return cnf.NotificationSettings{}, fmt.Errorf("error desant la configuració de notificacions: %w", err)
	}
	n.settings.Store(&next)
	Infof("Configuració de notificacions actualitzada a la versió %d", next.Version)
	return cloneSettings(next), nil
}

// Notify envia l'esdeveniment als primers destinataris si està habilitat.
// Retorna el nombre d'enviaments intentats. Cap error es propaga al cridant.
func (n *Notifier) Notify(claim *db.Claim, actor *db.User, ev EventType) int {
	if claim == nil {
		return 0
	}
	s := n.settings.Load()
	if len(s.Recipients) == 0 || len(s.EnabledEvents) == 0 || !slices.Contains(s.EnabledEvents, string(ev)) {
		return 0
	}

	subject, body := renderNotification(ev, claim, actor, n.baseURL)
	recipients := s.Recipients
	if len(recipients) > maxRecipients {
		recipients = recipients[:maxRecipients]
	}
	for _, to := range recipients {
		if err := n.mailer.Send(to, subject, body); err != nil {
			Log().Error().Err(err).Str("claim_id", claim.ID).Str("event", string(ev)).Str("to", to).
				Msg("error enviant notificació")
		}
	}
	return len(recipients)
}

func claimDisplayNumber(c *db.Claim) string {
	if strings.TrimSpace(c.ClaimNumber) != "" {
		return c.ClaimNumber
	}
	if c.SpartaNumber != nil && *c.SpartaNumber != "" {
		return *c.SpartaNumber
	}
	return c.ID
}

func actorName(u *db.User) string {
	if u == nil {
		return "system"
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

var eventSubjects = map[EventType]string{
	EventClaimCreated:     "Nowa szkoda %s",
	EventClaimUpdated:     "Aktualizacja szkody %s",
	EventStatusChanged:    "Zmiana statusu szkody %s",
	EventDocumentAdded:    "Nowy dokument w szkodzie %s",
	EventDecisionAdded:    "Nowa decyzja w szkodzie %s",
	EventRecourseAdded:    "Nowy regres w szkodzie %s",
	EventSettlementAdded:  "Nowa ugoda w szkodzie %s",
	EventAppealAdded:      "Nowe odwołanie w szkodzie %s",
	EventAppealReminder30: "Przypomnienie: odwołanie bez decyzji od 30 dni (%s)",
	EventAppealReminder60: "Przypomnienie: odwołanie bez decyzji od 60 dni (%s)",
}

// renderNotification deriva assumpte i cos de manera determinista.
func renderNotification(ev EventType, c *db.Claim, actor *db.User, baseURL string) (string, string) {
	num := claimDisplayNumber(c)
	format, ok := eventSubjects[ev]
	if !ok {
		format = "Powiadomienie dotyczące szkody %s"
	}
	subject := fmt.Sprintf(format, num)

	status := c.Status
	if status == "" {
		status = "-"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Szkoda: %s\n", num)
	fmt.Fprintf(&b, "Status: %s\n", status)
	if c.HandlerName != "" {
		fmt.Fprintf(&b, "Likwidator: %s\n", c.HandlerName)
	}
	fmt.Fprintf(&b, "Zdarzenie: %s\n", ev)
	fmt.Fprintf(&b, "Użytkownik: %s\n", actorName(actor))
	fmt.Fprintf(&b, "Link: %s/claims/%s\n", baseURL, c.ID)
	return subject, b.String()
}

func (a *App) GetNotificationSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Notifier.Settings())
}

// PutNotificationSettings publica una configuració nova. Si el cos porta version ha de ser la vigent.
func (a *App) PutNotificationSettings(w http.ResponseWriter, r *http.Request) {
	var in cnf.NotificationSettings
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	s, err := a.Notifier.UpdateSettings(in, in.Version)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}
