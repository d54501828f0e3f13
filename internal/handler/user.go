package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/userhub/userhub/internal/handler/dto"
	"github.com/userhub/userhub/internal/model"
	"github.com/userhub/userhub/internal/service"
)

// UserService is the user use-case surface the handlers depend on.
type UserService interface {
	ListUsers(ctx context.Context, input service.ListUsersInput) (*service.ListUsersOutput, error)
	GetUser(ctx context.Context, id string) (*model.User, error)
	CreateUser(ctx context.Context, input service.CreateUserInput) (*model.User, error)
	UpdateUser(ctx context.Context, input service.UpdateUserInput) (*model.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// WelcomeSender queues welcome mails for a user.
type WelcomeSender interface {
	SendWelcome(ctx context.Context, userID string) (*service.WelcomeResult, error)
}

// UserHandler handles HTTP requests for user operations.
type UserHandler struct {
	errorResponder
	svc     UserService
	welcome WelcomeSender
	logger  *slog.Logger
}

// NewUserHandler creates a new UserHandler. debug exposes internal error
// messages in 500 responses.
func NewUserHandler(svc UserService, welcome WelcomeSender, logger *slog.Logger, debug bool) *UserHandler {
	return &UserHandler{
		errorResponder: errorResponder{logger: logger, debug: debug},
		svc:            svc,
		welcome:        welcome,
		logger:         logger,
	}
}

// List handles GET /api/v1/users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	input := service.ListUsersInput{
		Search:  query.Get("search"),
		Page:    positiveInt(query.Get("page")),
		PerPage: positiveInt(query.Get("per_page")),
	}

	result, err := h.svc.ListUsers(r.Context(), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Data:    dto.ToUserResponses(result.Users),
		Pagination: &dto.Pagination{
			CurrentPage: result.Page,
			PerPage:     result.PerPage,
			Total:       result.Total,
			LastPage:    result.LastPage,
		},
	})
}

// Create handles POST /api/v1/users.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	phone := req.Phone
	if phone != nil && *phone == "" {
		phone = nil
	}

	user, err := h.svc.CreateUser(r.Context(), service.CreateUserInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     phone,
		Password:  req.Password,
		Emails:    dto.EmailInputs(req.Emails),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Info("user_created",
		"user_id", user.ID,
		"email_count", len(user.Emails),
	)

	writeSuccess(w, http.StatusCreated, "User created successfully", dto.ToUserResponse(user))
}

// Get handles GET /api/v1/users/{user}.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.GetUser(r.Context(), chi.URLParam(r, "user"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "", dto.ToUserResponse(user))
}

// Update handles PUT and PATCH /api/v1/users/{user}.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	input := service.UpdateUserInput{
		ID:         chi.URLParam(r, "user"),
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		ClearPhone: req.Phone.Cleared(),
		Password:   req.Password,
		Emails:     dto.EmailInputs(req.Emails),
	}
	if req.Phone.Set && !input.ClearPhone {
		input.Phone = req.Phone.Value
	}

	user, err := h.svc.UpdateUser(r.Context(), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Info("user_updated",
		"user_id", user.ID,
		"emails_replaced", req.Emails != nil,
	)

	writeSuccess(w, http.StatusOK, "User updated successfully", dto.ToUserResponse(user))
}

// Delete handles DELETE /api/v1/users/{user}.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "user")
	if err := h.svc.DeleteUser(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Info("user_deleted", "user_id", id)

	writeSuccess(w, http.StatusOK, "User deleted successfully", nil)
}

// SendWelcome handles POST /api/v1/users/{user}/send-welcome.
func (h *UserHandler) SendWelcome(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "user")
	result, err := h.welcome.SendWelcome(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Info("welcome_queued", "user_id", id, "count", result.Count)

	writeJSON(w, http.StatusOK, dto.WelcomeResponse{
		Success:     true,
		Message:     fmt.Sprintf("Welcome email job queued for %d email addresses", result.Count),
		EmailsCount: result.Count,
		Emails:      result.Emails,
	})
}

// positiveInt parses a query value, returning 0 for anything that is not
// a positive integer so the service falls back to its default.
func positiveInt(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0
	}
	return n
}
