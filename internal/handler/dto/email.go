package dto

import (
	"time"

	"github.com/userhub/userhub/internal/model"
)

// AddEmailRequest represents the request body for adding an email.
type AddEmailRequest struct {
	Email     string `json:"email"`
	IsPrimary bool   `json:"is_primary,omitempty"`
}

// UpdateEmailRequest represents the request body for updating an email.
type UpdateEmailRequest struct {
	Email     *string `json:"email,omitempty"`
	IsPrimary *bool   `json:"is_primary,omitempty"`
}

// EmailResponse represents an email in API responses.
type EmailResponse struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	IsPrimary  bool       `json:"is_primary"`
	VerifiedAt *time.Time `json:"verified_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// ToEmailResponse converts an Email model to EmailResponse DTO.
func ToEmailResponse(email *model.Email) *EmailResponse {
	return &EmailResponse{
		ID:         email.ID,
		Email:      email.Address,
		IsPrimary:  email.IsPrimary,
		VerifiedAt: email.VerifiedAt,
		CreatedAt:  email.CreatedAt,
		UpdatedAt:  email.UpdatedAt,
	}
}

// ToEmailResponses converts a slice of emails. The result is never nil.
func ToEmailResponses(emails []model.Email) []EmailResponse {
	out := make([]EmailResponse, 0, len(emails))
	for i := range emails {
		out = append(out, *ToEmailResponse(&emails[i]))
	}
	return out
}

// WelcomeResponse is the body of a successful send-welcome call.
type WelcomeResponse struct {
	Success     bool     `json:"success"`
	Message     string   `json:"message"`
	EmailsCount int      `json:"emails_count"`
	Emails      []string `json:"emails"`
}
