package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/userhub/userhub/internal/handler/dto"
	"github.com/userhub/userhub/internal/model"
	"github.com/userhub/userhub/internal/service"
)

// EmailService is the email use-case surface the handlers depend on.
type EmailService interface {
	ListUserEmails(ctx context.Context, userID string) ([]model.Email, error)
	AddEmail(ctx context.Context, userID string, input service.AddEmailInput) (*model.Email, error)
	UpdateEmail(ctx context.Context, userID, emailID string, input service.UpdateEmailInput) (*model.Email, error)
	DeleteEmail(ctx context.Context, userID, emailID string) error
	SetPrimaryEmail(ctx context.Context, userID, emailID string) (*model.Email, error)
}

// EmailHandler handles HTTP requests for a user's email addresses.
type EmailHandler struct {
	errorResponder
	svc    EmailService
	logger *slog.Logger
}

// NewEmailHandler creates a new EmailHandler.
func NewEmailHandler(svc EmailService, logger *slog.Logger, debug bool) *EmailHandler {
	return &EmailHandler{
		errorResponder: errorResponder{logger: logger, debug: debug},
		svc:            svc,
		logger:         logger,
	}
}

// List handles GET /api/v1/users/{user}/emails.
func (h *EmailHandler) List(w http.ResponseWriter, r *http.Request) {
	emails, err := h.svc.ListUserEmails(r.Context(), chi.URLParam(r, "user"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "", dto.ToEmailResponses(emails))
}

// Create handles POST /api/v1/users/{user}/emails.
func (h *EmailHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.AddEmailRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	userID := chi.URLParam(r, "user")
	email, err := h.svc.AddEmail(r.Context(), userID, service.AddEmailInput{
		Address:   req.Email,
		IsPrimary: req.IsPrimary,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Info("email_added",
		"user_id", userID,
		"email_id", email.ID,
		"is_primary", email.IsPrimary,
	)

	writeSuccess(w, http.StatusCreated, "Email address added successfully", dto.ToEmailResponse(email))
}

// Update handles PUT and PATCH /api/v1/users/{user}/emails/{email}.
func (h *EmailHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateEmailRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	userID := chi.URLParam(r, "user")
	email, err := h.svc.UpdateEmail(r.Context(), userID, chi.URLParam(r, "email"), service.UpdateEmailInput{
		Address:   req.Email,
		IsPrimary: req.IsPrimary,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Info("email_updated", "user_id", userID, "email_id", email.ID)

	writeSuccess(w, http.StatusOK, "Email address updated successfully", dto.ToEmailResponse(email))
}

// Delete handles DELETE /api/v1/users/{user}/emails/{email}.
func (h *EmailHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user")
	emailID := chi.URLParam(r, "email")
	if err := h.svc.DeleteEmail(r.Context(), userID, emailID); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Info("email_deleted", "user_id", userID, "email_id", emailID)

	writeSuccess(w, http.StatusOK, "Email address deleted successfully", nil)
}

// SetPrimary handles PATCH /api/v1/users/{user}/emails/{email}/set-primary.
func (h *EmailHandler) SetPrimary(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user")
	email, err := h.svc.SetPrimaryEmail(r.Context(), userID, chi.URLParam(r, "email"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Info("primary_email_changed", "user_id", userID, "email_id", email.ID)

	writeSuccess(w, http.StatusOK, "Primary email address updated successfully", dto.ToEmailResponse(email))
}
