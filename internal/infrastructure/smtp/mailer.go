package smtp

import (
	"time"

	"github.com/civic-alerts/internal/config"
	"gopkg.in/mail.v2"
)

// Mailer sends HTML e-mail.
type Mailer interface {
	SendEmail(to, subject, htmlBody string) error
}

type mailer struct {
	from   string
	dialer *mail.Dialer
}

func NewMailer(cfg *config.Config) Mailer {
	d := mail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	d.Timeout = 10 * time.Second
	if cfg.SMTPUsername == "" {
		// Local relays (MailHog, Mailpit) speak plain SMTP.
		d.StartTLSPolicy = mail.NoStartTLS
	}
	return &mailer{from: cfg.SMTPFrom, dialer: d}
}

func (m *mailer) SendEmail(to, subject, htmlBody string) error {
	return m.dialer.DialAndSend(buildMessage(m.from, to, subject, htmlBody))
}

func buildMessage(from, to, subject, htmlBody string) *mail.Message {
	msg := mail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)
	return msg
}
