// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/userhub/userhub/internal/model"
	"github.com/userhub/userhub/internal/repository"
)

// Queries is the persistence surface used inside and outside transactions.
type Queries interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	LockUser(ctx context.Context, id string) error
	UpdateUser(ctx context.Context, user *model.User) error
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context, filter repository.UserFilter, offset, limit int) ([]*model.User, int, error)

	CreateEmail(ctx context.Context, email *model.Email) error
	GetUserEmail(ctx context.Context, userID, emailID string) (*model.Email, error)
	ListUserEmails(ctx context.Context, userID string) ([]model.Email, error)
	ListEmailsForUsers(ctx context.Context, userIDs []string) (map[string][]model.Email, error)
	CountUserEmails(ctx context.Context, userID string) (int, error)
	UpdateEmail(ctx context.Context, email *model.Email) error
	DeleteUserEmail(ctx context.Context, userID, emailID string) error
	DeleteAllUserEmails(ctx context.Context, userID string) error
	ClearPrimary(ctx context.Context, userID string, at time.Time) error
	MarkPrimary(ctx context.Context, userID, emailID string, at time.Time) error
	EmailAddressTaken(ctx context.Context, address string, excl repository.AddressExclusion) (bool, error)
}

// Store adds transactions to Queries. Every Queries call made through the
// callback's argument belongs to the same transaction.
type Store interface {
	Queries
	WithTx(ctx context.Context, fn func(q Queries) error) error
}

type repoStore struct {
	*repository.Repository
}

// NewStore adapts a Repository to Store.
func NewStore(repo *repository.Repository) Store {
	return repoStore{Repository: repo}
}

func (s repoStore) WithTx(ctx context.Context, fn func(q Queries) error) error {
	return s.Repository.WithTx(ctx, func(tx *repository.Repository) error {
		return fn(tx)
	})
}

// isAddressAvailable is the single uniqueness predicate for email addresses.
// Create passes an empty exclusion, user update excludes the owner and email
// update excludes the row being edited.
func isAddressAvailable(ctx context.Context, q Queries, address string, excl repository.AddressExclusion) (bool, error) {
	taken, err := q.EmailAddressTaken(ctx, address, excl)
	if err != nil {
		return false, err
	}
	return !taken, nil
}

// lockUser locks the user row and translates a missing row.
func lockUser(ctx context.Context, q Queries, userID string) error {
	if err := q.LockUser(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

// ownedEmail loads an email only if userID owns it.
func ownedEmail(ctx context.Context, q Queries, userID, emailID string) (*model.Email, error) {
	email, err := q.GetUserEmail(ctx, userID, emailID)
	if err != nil {
		if errors.Is(err, repository.ErrEmailNotFound) {
			return nil, ErrEmailNotFound
		}
		return nil, err
	}
	return email, nil
}

// setPrimary clears every primary flag of the user and marks emailID.
// Callers hold the user lock.
func setPrimary(ctx context.Context, q Queries, userID, emailID string, at time.Time) error {
	if err := q.ClearPrimary(ctx, userID, at); err != nil {
		return err
	}
	if err := q.MarkPrimary(ctx, userID, emailID, at); err != nil {
		if errors.Is(err, repository.ErrEmailNotFound) {
			return ErrEmailNotFound
		}
		return err
	}
	return nil
}

func newID() string {
	return ulid.Make().String()
}
