// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/userhub/userhub/internal/handler/dto"
	"github.com/userhub/userhub/internal/middleware"
	"github.com/userhub/userhub/internal/service"
)

// Handler serves the root info endpoint and the JSON 404/405 fallbacks.
type Handler struct {
	name    string
	version string
}

// New creates a new Handler instance.
func New(name, version string) *Handler {
	return &Handler{name: name, version: version}
}

// Info returns the service name and version.
// GET /
func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"name":    h.name,
		"version": h.version,
	})
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeFailure(w, http.StatusNotFound, "Endpoint not found", nil)
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeFailure(w, http.StatusMethodNotAllowed, "Method not allowed", nil)
}

// envelope is the common response shape of the API.
type envelope struct {
	Success    bool                `json:"success"`
	Message    string              `json:"message,omitempty"`
	Data       any                 `json:"data,omitempty"`
	Pagination *dto.Pagination     `json:"pagination,omitempty"`
	Errors     map[string][]string `json:"errors,omitempty"`
}

func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

func writeFailure(w http.ResponseWriter, status int, message string, fields map[string][]string) {
	writeJSON(w, status, envelope{Success: false, Message: message, Errors: fields})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// errInvalidBody marks a body that is not a JSON object.
var errInvalidBody = errors.New("invalid request body")

// decodeJSON reads the request body into dst. A value of the wrong JSON
// type for a field is reported as a validation error on that field.
func decodeJSON(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		verr := &service.ValidationError{}
		verr.Add(typeErr.Field, fmt.Sprintf("The %s field must be a %s.", typeErr.Field, jsonKind(typeErr.Type.Kind().String())))
		return verr
	}
	return errInvalidBody
}

func jsonKind(goKind string) string {
	switch goKind {
	case "string":
		return "string"
	case "bool":
		return "boolean"
	case "slice":
		return "list"
	case "struct", "map":
		return "object"
	default:
		return "number"
	}
}

// errorResponder maps service errors to HTTP responses.
type errorResponder struct {
	logger *slog.Logger
	debug  bool
}

func (e errorResponder) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr *service.ValidationError
		cerr *service.ConflictError
	)
	switch {
	case errors.Is(err, errInvalidBody):
		writeFailure(w, http.StatusBadRequest, "Invalid JSON payload", nil)
	case errors.As(err, &verr):
		writeFailure(w, http.StatusUnprocessableEntity, "Validation failed", verr.Fields)
	case errors.Is(err, service.ErrUserNotFound):
		writeFailure(w, http.StatusNotFound, "Resource not found", nil)
	case errors.Is(err, service.ErrEmailNotFound):
		writeFailure(w, http.StatusNotFound, "Email address not found for this user", nil)
	case errors.As(err, &cerr):
		writeFailure(w, http.StatusBadRequest, cerr.Message, nil)
	default:
		e.logger.Error("internal_error",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
			slog.String("path", r.URL.Path),
		)
		message := "Internal server error"
		if e.debug {
			message = err.Error()
		}
		writeFailure(w, http.StatusInternalServerError, message, nil)
	}
}
