package service

import (
	"context"
	"errors"
	"time"

	"github.com/userhub/userhub/internal/metrics"
	"github.com/userhub/userhub/internal/model"
	"github.com/userhub/userhub/internal/repository"
)

// EmailService handles single-email mutations of a user's email set.
// Every mutation locks the owning user so that concurrent primary changes
// for the same user are applied one after another.
type EmailService struct {
	store   Store
	metrics metrics.Recorder
	now     func() time.Time
}

// NewEmailService creates a new EmailService.
func NewEmailService(store Store, recorder metrics.Recorder) *EmailService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &EmailService{
		store:   store,
		metrics: recorder,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ListUserEmails returns the user's emails, primary first.
func (s *EmailService) ListUserEmails(ctx context.Context, userID string) ([]model.Email, error) {
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, internal("list emails", err)
	}

	emails, err := s.store.ListUserEmails(ctx, userID)
	if err != nil {
		return nil, internal("list emails", err)
	}
	return emails, nil
}

// AddEmailInput defines input for adding an email.
type AddEmailInput struct {
	Address   string
	IsPrimary bool
}

// AddEmail inserts a new email. A primary email replaces the current
// primary in the same transaction.
func (s *EmailService) AddEmail(ctx context.Context, userID string, input AddEmailInput) (*model.Email, error) {
	verr := &ValidationError{}
	validateAddress(verr, "email", input.Address)

	now := s.now()
	email := &model.Email{
		ID:        newID(),
		UserID:    userID,
		Address:   input.Address,
		IsPrimary: input.IsPrimary,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.store.WithTx(ctx, func(q Queries) error {
		if err := lockUser(ctx, q, userID); err != nil {
			return err
		}
		if err := verr.Err(); err != nil {
			return err
		}

		ok, err := isAddressAvailable(ctx, q, input.Address, repository.AddressExclusion{})
		if err != nil {
			return err
		}
		if !ok {
			return takenError("email")
		}

		if input.IsPrimary {
			if err := q.ClearPrimary(ctx, userID, now); err != nil {
				return err
			}
		}
		if err := q.CreateEmail(ctx, email); err != nil {
			if errors.Is(err, repository.ErrEmailExists) {
				return takenError("email")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, internal("add email", err)
	}

	s.metrics.IncEmailAdded()
	if email.IsPrimary {
		s.metrics.IncPrimaryChanged()
	}
	return email, nil
}

// UpdateEmailInput defines input for updating an email. Nil fields are
// left untouched.
type UpdateEmailInput struct {
	Address   *string
	IsPrimary *bool
}

// UpdateEmail changes an owned email. IsPrimary=true moves the primary flag
// to this email; IsPrimary=false only clears it on this email. A new address
// must be unused by every other row.
func (s *EmailService) UpdateEmail(ctx context.Context, userID, emailID string, input UpdateEmailInput) (*model.Email, error) {
	verr := &ValidationError{}
	if input.Address != nil {
		validateAddress(verr, "email", *input.Address)
	}

	var (
		email          *model.Email
		primaryChanged bool
	)
	err := s.store.WithTx(ctx, func(q Queries) error {
		if err := lockUser(ctx, q, userID); err != nil {
			return err
		}

		var err error
		email, err = ownedEmail(ctx, q, userID, emailID)
		if err != nil {
			return err
		}
		if err := verr.Err(); err != nil {
			return err
		}

		now := s.now()
		if input.Address != nil && *input.Address != email.Address {
			ok, err := isAddressAvailable(ctx, q, *input.Address, repository.AddressExclusion{EmailID: email.ID})
			if err != nil {
				return err
			}
			if !ok {
				return takenError("email")
			}
			email.Address = *input.Address
		}

		if input.IsPrimary != nil {
			if *input.IsPrimary && !email.IsPrimary {
				if err := q.ClearPrimary(ctx, userID, now); err != nil {
					return err
				}
				primaryChanged = true
			}
			email.IsPrimary = *input.IsPrimary
		}

		email.UpdatedAt = now
		if err := q.UpdateEmail(ctx, email); err != nil {
			switch {
			case errors.Is(err, repository.ErrEmailExists):
				return takenError("email")
			case errors.Is(err, repository.ErrEmailNotFound):
				return ErrEmailNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, internal("update email", err)
	}

	if primaryChanged {
		s.metrics.IncPrimaryChanged()
	}
	return email, nil
}

// DeleteEmail removes an owned email. The primary email of a user with
// other emails cannot be removed; the sole email always can.
func (s *EmailService) DeleteEmail(ctx context.Context, userID, emailID string) error {
	err := s.store.WithTx(ctx, func(q Queries) error {
		if err := lockUser(ctx, q, userID); err != nil {
			return err
		}

		email, err := ownedEmail(ctx, q, userID, emailID)
		if err != nil {
			return err
		}

		if email.IsPrimary {
			count, err := q.CountUserEmails(ctx, userID)
			if err != nil {
				return err
			}
			if count > 1 {
				return ErrPrimaryEmailDelete
			}
		}

		if err := q.DeleteUserEmail(ctx, userID, emailID); err != nil {
			if errors.Is(err, repository.ErrEmailNotFound) {
				return ErrEmailNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return internal("delete email", err)
	}

	s.metrics.IncEmailDeleted()
	return nil
}

// SetPrimaryEmail makes an owned email the user's only primary email.
// Setting the current primary again leaves the same state.
func (s *EmailService) SetPrimaryEmail(ctx context.Context, userID, emailID string) (*model.Email, error) {
	var email *model.Email
	err := s.store.WithTx(ctx, func(q Queries) error {
		if err := lockUser(ctx, q, userID); err != nil {
			return err
		}

		var err error
		email, err = ownedEmail(ctx, q, userID, emailID)
		if err != nil {
			return err
		}

		now := s.now()
		if err := setPrimary(ctx, q, userID, emailID, now); err != nil {
			return err
		}
		email.IsPrimary = true
		email.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, internal("set primary email", err)
	}

	s.metrics.IncPrimaryChanged()
	return email, nil
}

const msgAddressTaken = "This email address is already taken"

func takenError(field string) error {
	verr := &ValidationError{}
	verr.Add(field, msgAddressTaken)
	return verr
}
