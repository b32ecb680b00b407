package mailer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	mail "gopkg.in/mail.v2"

	"github.com/saveyours/booking-api/pkg/config"
)

// Message is a rendered email ready for delivery.
type Message struct {
	To      string
	ToName  string
	Subject string
	HTML    string
}

// Mailer delivers rendered messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer sends mail through an SMTP relay.
type SMTPMailer struct {
	dialer   *mail.Dialer
	from     string
	fromName string
}

// NewSMTPMailer builds a mailer for cfg.
func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer:   mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:     cfg.FromAddress,
		fromName: cfg.FromName,
	}
}

// Send delivers msg. The dialer opens one connection per message.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("mail recipient required")
	}
	if err := m.dialer.DialAndSend(m.build(msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

func (m *SMTPMailer) build(msg Message) *mail.Message {
	out := mail.NewMessage()
	out.SetAddressHeader("From", m.from, m.fromName)
	if msg.ToName != "" {
		out.SetAddressHeader("To", msg.To, msg.ToName)
	} else {
		out.SetHeader("To", msg.To)
	}
	out.SetHeader("Subject", msg.Subject)
	out.SetBody("text/html", msg.HTML)
	return out
}

// LogMailer records messages instead of sending them. Used when no SMTP host is configured.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer returns a mailer that only logs.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

// Send logs msg metadata.
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("mail not sent: smtp disabled",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("html_bytes", len(msg.HTML)),
	)
	return nil
}

// New picks the SMTP mailer when a host is configured.
func New(cfg config.MailConfig, logger *zap.Logger) Mailer {
	if strings.TrimSpace(cfg.Host) == "" {
		return NewLogMailer(logger)
	}
	return NewSMTPMailer(cfg)
}
