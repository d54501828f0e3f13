// Package mailer renders and sends outgoing mail.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

// ErrNotConfigured is returned when no transport is available.
var ErrNotConfigured = errors.New("email service not configured (missing RESEND_API_KEY)")

// Message is a plain-text mail.
type Message struct {
	From    string
	To      string
	Subject string
	Text    string
}

// Sender delivers a Message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ResendSender delivers mail through the Resend API.
type ResendSender struct {
	client *resend.Client
}

// NewResendSender creates a sender for apiKey.
func NewResendSender(apiKey string) *ResendSender {
	return &ResendSender{client: resend.NewClient(apiKey)}
}

// Send implements Sender.
func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	if s == nil || s.client == nil {
		return ErrNotConfigured
	}
	params := &resend.SendEmailRequest{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Text:    msg.Text,
	}
	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	return nil
}

// LogSender only logs mail. It is used in development.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send implements Sender.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "email sent (dev mode)",
		"to", msg.To,
		"subject", msg.Subject,
	)
	return nil
}

// NewSender picks the transport: logging only in development, Resend when
// an API key is set.
func NewSender(apiKey string, isDev bool, logger *slog.Logger) (Sender, error) {
	if isDev {
		return NewLogSender(logger), nil
	}
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	return NewResendSender(apiKey), nil
}
