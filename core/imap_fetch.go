package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"

	"github.com/marcmoiagese/SpartaClaims/db"
)

var (
	spartaTokenRe = regexp.MustCompile(`SPARTA/\d{4}/\d{4,}`)
	// candidats a número de sinistre del client: paraules amb xifres, barres o guions
	claimNumberRe = regexp.MustCompile(`[A-Za-z0-9][A-Za-z0-9/_\-.]*\d[A-Za-z0-9/_\-.]*`)
)

// fetchedMail és un missatge ja descodificat.
type fetchedMail struct {
	MessageID string
	From      string
	To        string
	Cc        string
	Subject   string
	Body      string
	Date      time.Time
}

func formatAddresses(list []*mail.Address) string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.Address)
	}
	return strings.Join(out, ", ")
}

// parseMessage llegeix un missatge RFC 5322 i en treu el primer cos de text pla.
func parseMessage(r io.Reader) (fetchedMail, error) {
	var m fetchedMail
	mr, err := mail.CreateReader(r)
	if err != nil {
		return m, err
	}
	defer mr.Close()

	h := mr.Header
	if m.Subject, err = h.Subject(); err != nil {
		m.Subject = h.Get("Subject")
	}
	if id, err := h.MessageID(); err == nil && id != "" {
		m.MessageID = "<" + id + ">"
	}
	if from, err := h.AddressList("From"); err == nil {
		m.From = formatAddresses(from)
	}
	if to, err := h.AddressList("To"); err == nil {
		m.To = formatAddresses(to)
	}
	if cc, err := h.AddressList("Cc"); err == nil {
		m.Cc = formatAddresses(cc)
	}
	if d, err := h.Date(); err == nil {
		m.Date = d.UTC()
	}

	var html string
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return m, err
		}
		ih, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := ih.ContentType()
		b, err := io.ReadAll(p.Body)
		if err != nil {
			return m, err
		}
		switch {
		case ct == "text/plain" && m.Body == "":
			m.Body = string(b)
		case ct == "text/html" && html == "":
			html = string(b)
		}
	}
	if m.Body == "" {
		m.Body = html
	}
	return m, nil
}

// extractClaimToken retorna el primer número Sparta del text.
func extractClaimToken(text string) string {
	return spartaTokenRe.FindString(text)
}

// matchClaim busca el sinistre pel número Sparta o, si no n'hi ha, per un número de sinistre conegut.
func matchClaim(ctx context.Context, h db.Handle, m fetchedMail) (*string, error) {
	text := m.Subject + "\n" + m.Body
	if tok := extractClaimToken(text); tok != "" {
		ids, err := db.Claims.IDs(ctx, h, db.Eq("sparta_number", tok))
		if err != nil {
			return nil, err
		}
		if len(ids) > 0 {
			return &ids[0], nil
		}
	}
	candidates := claimNumberRe.FindAllString(m.Subject, 20)
	if len(candidates) == 0 {
		return nil, nil
	}
	ids, err := db.Claims.IDs(ctx, h, db.Cond{Column: "claim_number", Op: "IN", Value: candidates})
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	return &ids[0], nil
}

// ingestMail desa el missatge si encara no existeix. Retorna fals si ja s'havia importat.
func (a *App) ingestMail(ctx context.Context, m fetchedMail, direction string) (bool, error) {
	h := a.DB.Handle()
	if m.MessageID == "" {
		m.MessageID = "<" + uuid.NewString() + "@imported>"
	} else {
		n, err := h.Count(ctx, "SELECT COUNT(*) FROM emails WHERE message_id = ?", m.MessageID)
		if err != nil {
			return false, err
		}
		if n > 0 {
			return false, nil
		}
	}
	claimID, err := matchClaim(ctx, h, m)
	if err != nil {
		return false, err
	}

	now := a.now()
	e := db.Email{
		ID:        uuid.NewString(),
		ClaimID:   claimID,
		MessageID: m.MessageID,
		Direction: direction,
		From:      m.From,
		To:        m.To,
		Cc:        m.Cc,
		Subject:   m.Subject,
		Body:      m.Body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	date := m.Date
	if date.IsZero() {
		date = now
	}
	if direction == EmailDirectionIn {
		e.Status = EmailStatusReceived
		e.ReceivedAt = &date
	} else {
		e.Status = EmailStatusSent
		e.SentAt = &date
	}
	if err := db.Emails.Insert(ctx, h, &e); err != nil {
		return false, err
	}
	if claimID != nil {
		a.refreshSearch(ctx, *claimID)
	}
	return true, nil
}

// mailbox és la part del client IMAP que fa servir el bucle d'importació.
type mailbox interface {
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	UidSearch(criteria *imap.SearchCriteria) ([]uint32, error)
	UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	UidStore(seqset *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error
}

// fetchFolder importa els missatges que compleixen el criteri. Si markSeen, els marca com a llegits.
func (a *App) fetchFolder(ctx context.Context, c mailbox, folder string, criteria *imap.SearchCriteria, direction string, markSeen bool) (int, error) {
	if _, err := c.Select(folder, !markSeen); err != nil {
		return 0, fmt.Errorf("select %s: %w", folder, err)
	}
	uids, err := c.UidSearch(criteria)
	if err != nil {
		return 0, fmt.Errorf("search %s: %w", folder, err)
	}
	if len(uids) == 0 {
		return 0, nil
	}
	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, []imap.FetchItem{section.FetchItem(), imap.FetchUid}, messages)
	}()

	stored := 0
	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		m, err := parseMessage(body)
		if err != nil {
			Log().Error().Err(err).Uint32("uid", msg.Uid).Str("folder", folder).Msg("missatge no descodificable")
			continue
		}
		ok, err := a.ingestMail(ctx, m, direction)
		if err != nil {
			Log().Error().Err(err).Str("message_id", m.MessageID).Msg("error desant correu importat")
			continue
		}
		if ok {
			stored++
		}
	}
	if err := <-done; err != nil {
		return stored, fmt.Errorf("fetch %s: %w", folder, err)
	}

	if markSeen {
		flags := []interface{}{imap.SeenFlag}
		if err := c.UidStore(seqset, imap.FormatFlagsOp(imap.AddFlags, true), flags, nil); err != nil {
			return stored, fmt.Errorf("store %s: %w", folder, err)
		}
	}
	return stored, nil
}

// pollMailbox fa una passada: missatges no llegits de la safata d'entrada i l'últim dia d'enviats.
func (a *App) pollMailbox(ctx context.Context) error {
	addr := a.Config.IMAPHost + ":" + a.Config.IMAPPort
	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return fmt.Errorf("connexió IMAP a %s: %w", addr, err)
	}
	defer c.Logout()
	if err := c.Login(a.Config.IMAPUser, a.Config.IMAPPass); err != nil {
		return fmt.Errorf("login IMAP: %w", err)
	}

	unseen := imap.NewSearchCriteria()
	unseen.WithoutFlags = []string{imap.SeenFlag}
	in, err := a.fetchFolder(ctx, c, "INBOX", unseen, EmailDirectionIn, true)
	if err != nil {
		return err
	}

	recent := imap.NewSearchCriteria()
	recent.Since = a.now().Add(-24 * time.Hour)
	out, err := a.fetchFolder(ctx, c, a.Config.IMAPSentFolder, recent, EmailDirectionOut, false)
	if err != nil {
		return err
	}
	Debugf("IMAP: %d rebuts, %d enviats importats", in, out)
	return nil
}

// RunMailFetcher consulta el servidor IMAP cada IMAP_POLL_MINUTES fins que es cancel·la el context.
func (a *App) RunMailFetcher(ctx context.Context) {
	if a.Config.IMAPHost == "" {
		return
	}
	interval := a.Config.IMAPPoll
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	for {
		if err := a.pollMailbox(ctx); err != nil {
			Log().Error().Err(err).Msg("error important correu")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}
