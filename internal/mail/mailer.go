// Package mail dispatches plaintext messages. The only message this
// service sends is the password-reset link.
package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/mo-sawah/sawah-register/internal/config"
	"github.com/mo-sawah/sawah-register/internal/logger"
)

type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer sends through a plain SMTP relay.
type SMTPMailer struct {
	addr string
	auth smtp.Auth
	from string
}

func NewSMTP(cfg config.SMTP) *SMTPMailer {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPMailer{
		addr: cfg.Host + ":" + cfg.Port,
		auth: auth,
		from: cfg.From,
	}
}

func (m *SMTPMailer) Send(_ context.Context, to, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + m.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("mail: send to %s: %w", to, err)
	}
	return nil
}

// LogMailer logs instead of sending. Used when no SMTP relay is
// configured (local development).
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, to, subject, body string) error {
	logger.Info("mail not sent, no SMTP configured", map[string]any{
		"to":      to,
		"subject": subject,
		"bytes":   len(body),
	})
	return nil
}

// FromConfig picks the SMTP mailer when a host is configured.
func FromConfig(cfg config.SMTP) Mailer {
	if cfg.Host == "" {
		return LogMailer{}
	}
	return NewSMTP(cfg)
}
