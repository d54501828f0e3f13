package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/userhub/userhub/internal/mailqueue"
	"github.com/userhub/userhub/internal/model"
	"github.com/userhub/userhub/internal/service"
)

// UserReader loads a user with its emails.
type UserReader interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
}

// WelcomeHandler sends the welcome mail for a queued job. It implements
// mailqueue.Handler.
type WelcomeHandler struct {
	users  UserReader
	sender Sender
	from   string
	logger *slog.Logger
}

// NewWelcomeHandler creates a WelcomeHandler.
func NewWelcomeHandler(users UserReader, sender Sender, from string, logger *slog.Logger) *WelcomeHandler {
	return &WelcomeHandler{
		users:  users,
		sender: sender,
		from:   from,
		logger: logger.With("component", "mailer.welcome"),
	}
}

// Handle renders the mail from the user's current data and sends it to the
// job's address. A user deleted since the job was queued fails permanently.
func (h *WelcomeHandler) Handle(ctx context.Context, job model.WelcomeJob) error {
	user, err := h.users.GetUser(ctx, job.UserID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return mailqueue.Permanent(fmt.Errorf("user %s: %w", job.UserID, err))
		}
		return fmt.Errorf("load user: %w", err)
	}

	subject, body := welcomeEmailTemplate(user, job.Address)
	err = h.sender.Send(ctx, Message{
		From:    h.from,
		To:      job.Address,
		Subject: subject,
		Text:    body,
	})
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			return mailqueue.Permanent(err)
		}
		return err
	}

	h.logger.InfoContext(ctx, "welcome email delivered",
		"user_id", job.UserID,
		"job_id", job.ID,
	)
	return nil
}
