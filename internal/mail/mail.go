// Package mail delivers outbound email.
//
// The service never sends mail inline: registration writes an outbox row
// and the Dispatcher (dispatcher.go) delivers it in the background through
// a Sender. SMTPSender is the production implementation; LogSender stands
// in when no SMTP server is configured.
package mail

import (
	"context"
	"fmt"
	"log/slog"

	gomail "github.com/wneessen/go-mail"
)

// Sender delivers a single email. Implementations must be safe for
// concurrent use.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPConfig holds the SMTP connection settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender sends plain-text email over authenticated SMTP.
type SMTPSender struct {
	client *gomail.Client
	from   string
}

var _ Sender = (*SMTPSender)(nil)

// NewSMTPSender creates an SMTPSender. The connection is dialed per send,
// not here, so a down SMTP server doesn't block startup.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	client, err := gomail.NewClient(cfg.Host,
		gomail.WithPort(cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(cfg.Username),
		gomail.WithPassword(cfg.Password),
	)
	if err != nil {
		return nil, fmt.Errorf("mail: creating SMTP client: %w", err)
	}
	return &SMTPSender{client: client, from: cfg.From}, nil
}

// Send delivers one plain-text message.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	msg := gomail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return fmt.Errorf("mail: setting sender %q: %w", s.from, err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("mail: setting recipient %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("mail: sending to %q: %w", to, err)
	}
	return nil
}

// LogSender logs messages instead of delivering them. Used when SMTP is not
// configured so the rest of the flow (outbox, dispatcher) still works in
// development.
type LogSender struct {
	logger *slog.Logger
}

var _ Sender = (*LogSender)(nil)

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, to, subject, _ string) error {
	s.logger.Warn("mail delivery disabled, dropping message",
		slog.String("to", to),
		slog.String("subject", subject),
	)
	return nil
}
