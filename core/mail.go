package core

import (
	"bytes"
	"fmt"
	"mime"
	"net/smtp"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/marcmoiagese/SpartaClaims/cnf"
)

// Mailer envia un correu de text pla a un destinatari.
type Mailer interface {
	Send(to, subject, body string) error
}

// MailConfig encapsula la configuració d'enviament de correu.
type MailConfig struct {
	Enabled  bool
	From     string
	SMTPHost string
	SMTPPort string
}

var mailSendOverride func(to, subject, body string) error

// SetMailSendOverride permet injectar un sender per tests.
func SetMailSendOverride(fn func(to, subject, body string) error) {
	mailSendOverride = fn
}

// NewMailConfig construeix una MailConfig a partir de la configuració tipada.
func NewMailConfig(ac cnf.AppConfig) MailConfig {
	return MailConfig{
		Enabled:  ac.MailEnabled,
		From:     ac.MailFrom,
		SMTPHost: ac.MailSMTPHost,
		SMTPPort: ac.MailSMTPPort,
	}
}

// Send envia un correu utilitzant primer el binari local sendmail i, si no està disponible, fa servir SMTP.
func (mc MailConfig) Send(to, subject, body string) error {
	if !mc.Enabled {
		Debugf("correu deshabilitat, no s'envia '%s' a %s", subject, to)
		return nil
	}
	if mailSendOverride != nil {
		return mailSendOverride(to, subject, body)
	}

	msg := buildRFC822(mc.From, to, subject, body, time.Now())

	if err := mc.sendViaSendmail(msg); err == nil {
		return nil
	} else {
		Debugf("sendmail no disponible, provant SMTP: %v", err)
	}

	return mc.sendViaSMTP(msg, to)
}

func (mc MailConfig) sendViaSendmail(msg []byte) error {
	path, err := exec.LookPath("sendmail")
	if err != nil {
		return err
	}

	cmd := exec.Command(path, "-t", "-oi")
	cmd.Stdin = bytes.NewReader(msg)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return fmt.Errorf("sendmail: %w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return fmt.Errorf("sendmail: %w", err)
	}

	return nil
}

func (mc MailConfig) sendViaSMTP(msg []byte, to string) error {
	addr := fmt.Sprintf("%s:%s", mc.SMTPHost, mc.SMTPPort)
	return smtp.SendMail(addr, nil, mc.From, splitAddresses(to), msg)
}

// buildRFC822 codifica l'assumpte en UTF-8 (els textos són en polonès) i genera un Message-ID propi.
func buildRFC822(from, to, subject, body string, date time.Time) []byte {
	domain := "localhost"
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		domain = strings.Trim(from[at+1:], "> ")
	}
	headers := []string{
		fmt.Sprintf("From: %s", from),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", mime.QEncoding.Encode("utf-8", subject)),
		fmt.Sprintf("Date: %s", date.Format(time.RFC1123Z)),
		fmt.Sprintf("Message-ID: <%s@%s>", uuid.NewString(), domain),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"",
		body,
	}
	return []byte(strings.Join(headers, "\r\n"))
}

func splitAddresses(list string) []string {
	var out []string
	for _, a := range strings.FieldsFunc(list, func(r rune) bool { return r == ',' || r == ';' }) {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}
