package service

import (
	"errors"
	"fmt"
	"sort"
)

// Not-found errors. Both map to 404.
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrEmailNotFound = errors.New("email address not found for this user")
)

// Conflict errors. These map to 400.
var (
	ErrPrimaryEmailDelete = &ConflictError{Message: "Cannot delete primary email address. Set another email as primary first."}
	ErrNoEmailAddresses   = &ConflictError{Message: "User has no email addresses"}
)

// ValidationError collects per-field messages for caller-fixable input.
type ValidationError struct {
	Fields map[string][]string
}

// Error implements error.
func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("validation failed: %s: %s", keys[0], e.Fields[keys[0]][0])
}

// Add records msg against field.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

// Has reports whether field already has a message.
func (e *ValidationError) Has(field string) bool {
	return len(e.Fields[field]) > 0
}

// Err returns e when it holds at least one message, nil otherwise.
func (e *ValidationError) Err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// ConflictError rejects a request that is well formed but not allowed in
// the aggregate's current state.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// InternalError wraps a storage or transport failure.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// internal wraps err unless it is already one of the service error kinds.
func internal(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		verr *ValidationError
		cerr *ConflictError
		ierr *InternalError
	)
	switch {
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrEmailNotFound),
		errors.As(err, &verr), errors.As(err, &cerr), errors.As(err, &ierr):
		return err
	}
	return &InternalError{Op: op, Err: err}
}
