// Package mailer delivers plain-text email for the relay.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
)

// ErrAuth means the SMTP server rejected the configured credentials.
var ErrAuth = errors.New("smtp authentication failed")

// ErrNotConfigured means no sender credentials were provided.
var ErrNotConfigured = errors.New("smtp credentials missing")

// SMTPConfig holds the outbound server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTP sends mail through an authenticated submission server.
type SMTP struct {
	cfg SMTPConfig
	log zerolog.Logger
}

// NewSMTP creates an SMTP mailer. From defaults to the username.
func NewSMTP(cfg SMTPConfig, log zerolog.Logger) *SMTP {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTP{cfg: cfg, log: log}
}

// Send delivers one message.
func (s *SMTP) Send(ctx context.Context, to, subject, body string) error {
	if s.cfg.Username == "" || s.cfg.Password == "" {
		return ErrNotConfigured
	}
	msg := mail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return fmt.Errorf("from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("to address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	client, err := mail.NewClient(s.cfg.Host,
		mail.WithPort(s.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.cfg.Username),
		mail.WithPassword(s.cfg.Password),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		if isAuthError(err) {
			return fmt.Errorf("%w: %v", ErrAuth, err)
		}
		return fmt.Errorf("send mail: %w", err)
	}
	s.log.Info().Str("to", to).Str("subject", subject).Msg("email sent")
	return nil
}

func isAuthError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "535") || strings.Contains(msg, "auth")
}

// Sent is one delivered message recorded by Log.
type Sent struct {
	To      string
	Subject string
	Body    string
}

// Log writes messages to the logger instead of sending them. Used in dev.
type Log struct {
	log  zerolog.Logger
	mu   sync.Mutex
	sent []Sent
}

// NewLog creates a log-only mailer.
func NewLog(log zerolog.Logger) *Log {
	return &Log{log: log}
}

func (l *Log) Send(_ context.Context, to, subject, body string) error {
	l.mu.Lock()
	l.sent = append(l.sent, Sent{To: to, Subject: subject, Body: body})
	l.mu.Unlock()
	l.log.Info().Str("to", to).Str("subject", subject).Msg("email (log only)")
	return nil
}

// Sent returns a copy of everything sent so far.
func (l *Log) Sent() []Sent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Sent(nil), l.sent...)
}
