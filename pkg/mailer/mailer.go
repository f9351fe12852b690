// Package mailer delivers transactional email through SendGrid.
package mailer

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/fashionmarket/storefront-backend/pkg/config"
	"github.com/fashionmarket/storefront-backend/pkg/logger"
)

const defaultTimeout = 10 * time.Second

// Attachment is a file sent alongside a message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is a single plain-text email.
type Message struct {
	To          string
	ToName      string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Validate checks the fields every transport needs.
func (m Message) Validate() error {
	switch {
	case strings.TrimSpace(m.To) == "":
		return errors.New("recipient is required")
	case strings.TrimSpace(m.Subject) == "":
		return errors.New("subject is required")
	case m.Body == "":
		return errors.New("body is required")
	}
	return nil
}

// Sender is what domain services depend on.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type sendFunc func(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)

// SendGrid sends messages through the SendGrid v3 API.
type SendGrid struct {
	send    sendFunc
	from    *mail.Email
	timeout time.Duration
	logg    *logger.Logger
}

// New returns the SendGrid transport, or a log-only sender when delivery is disabled.
func New(cfg config.MailConfig, enabled bool, logg *logger.Logger) (Sender, error) {
	if logg == nil {
		logg = logger.Nop()
	}
	if !enabled {
		return &LogSender{logg: logg}, nil
	}
	if strings.TrimSpace(cfg.SendgridAPIKey) == "" {
		return nil, errors.New("sendgrid api key is required when email delivery is enabled")
	}
	if strings.TrimSpace(cfg.FromEmail) == "" {
		return nil, errors.New("from email is required")
	}
	client := sendgrid.NewSendClient(cfg.SendgridAPIKey)
	return newSendGrid(client.SendWithContext, cfg, logg), nil
}

func newSendGrid(send sendFunc, cfg config.MailConfig, logg *logger.Logger) *SendGrid {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &SendGrid{
		send:    send,
		from:    mail.NewEmail(cfg.FromName, cfg.FromEmail),
		timeout: timeout,
		logg:    logg,
	}
}

// Send delivers msg, bounded by the configured timeout.
func (s *SendGrid) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.send(ctx, build(s.from, msg))
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp != nil && resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, strings.TrimSpace(resp.Body))
	}
	s.logg.Debug(s.logg.WithField(ctx, "subject", msg.Subject), "email sent")
	return nil
}

func build(from *mail.Email, msg Message) *mail.SGMailV3 {
	m := mail.NewV3Mail()
	m.SetFrom(from)
	m.Subject = msg.Subject

	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail(msg.ToName, msg.To))
	m.AddPersonalizations(p)
	m.AddContent(mail.NewContent("text/plain", msg.Body))

	for _, att := range msg.Attachments {
		a := mail.NewAttachment()
		a.SetFilename(att.Filename)
		contentType := att.ContentType
		if contentType == "" {
			contentType = "text/plain"
		}
		a.SetType(contentType)
		a.SetDisposition("attachment")
		a.SetContent(base64.StdEncoding.EncodeToString(att.Content))
		m.AddAttachment(a)
	}
	return m
}

// LogSender records messages instead of sending them (local runs, email disabled).
type LogSender struct {
	logg *logger.Logger
}

// Send logs the envelope of msg.
func (l *LogSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	logCtx := l.logg.WithFields(ctx, map[string]any{
		"to":          msg.To,
		"subject":     msg.Subject,
		"attachments": len(msg.Attachments),
	})
	l.logg.Info(logCtx, "email delivery disabled, message logged")
	return nil
}
