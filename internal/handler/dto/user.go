// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"encoding/json"
	"time"

	"github.com/userhub/userhub/internal/model"
)

// EmailEntry is one element of the emails list in user create/update bodies.
type EmailEntry struct {
	Email     string `json:"email"`
	IsPrimary *bool  `json:"is_primary,omitempty"`
}

// CreateUserRequest represents the request body for creating a user.
type CreateUserRequest struct {
	FirstName string       `json:"first_name"`
	LastName  string       `json:"last_name"`
	Phone     *string      `json:"phone,omitempty"`
	Password  string       `json:"password"`
	Emails    []EmailEntry `json:"emails"`
}

// UpdateUserRequest represents the request body for updating a user.
// A present emails list replaces every email of the user.
type UpdateUserRequest struct {
	FirstName *string        `json:"first_name,omitempty"`
	LastName  *string        `json:"last_name,omitempty"`
	Phone     OptionalString `json:"phone"`
	Password  *string        `json:"password,omitempty"`
	Emails    []EmailEntry   `json:"emails,omitempty"`
}

// OptionalString tells an absent field apart from an explicit null.
type OptionalString struct {
	Set   bool
	Value *string
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *OptionalString) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

// Cleared reports whether the field was sent as null or an empty string.
func (o OptionalString) Cleared() bool {
	return o.Set && (o.Value == nil || *o.Value == "")
}

// EmailInputs converts request entries to model inputs. A nil list stays nil
// so callers can tell "omitted" from "empty".
func EmailInputs(entries []EmailEntry) []model.EmailInput {
	if entries == nil {
		return nil
	}
	out := make([]model.EmailInput, len(entries))
	for i, e := range entries {
		out[i] = model.EmailInput{Address: e.Email, IsPrimary: e.IsPrimary}
	}
	return out
}

// UserResponse represents a user in API responses.
type UserResponse struct {
	ID           string          `json:"id"`
	FirstName    string          `json:"first_name"`
	LastName     string          `json:"last_name"`
	FullName     string          `json:"full_name"`
	Phone        *string         `json:"phone"`
	PrimaryEmail *string         `json:"primary_email"`
	Emails       []EmailResponse `json:"emails"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Pagination carries page metadata for list responses.
type Pagination struct {
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
	LastPage    int `json:"last_page"`
}

// ToUserResponse converts a User model to UserResponse DTO.
func ToUserResponse(user *model.User) *UserResponse {
	resp := &UserResponse{
		ID:        user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		FullName:  user.FullName(),
		Phone:     user.Phone,
		Emails:    ToEmailResponses(user.Emails),
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
	if p := user.PrimaryEmail(); p != nil {
		address := p.Address
		resp.PrimaryEmail = &address
	}
	return resp
}

// ToUserResponses converts a slice of users.
func ToUserResponses(users []*model.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, *ToUserResponse(u))
	}
	return out
}
