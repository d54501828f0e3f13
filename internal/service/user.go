package service

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/userhub/userhub/internal/metrics"
	"github.com/userhub/userhub/internal/model"
	"github.com/userhub/userhub/internal/repository"
)

// PasswordHasher turns a plaintext password into a storable hash.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// Pagination bounds for ListUsers.
type Pagination struct {
	DefaultPerPage int
	MaxPerPage     int
}

// UserService handles the user aggregate: a user together with its emails.
type UserService struct {
	store      Store
	hasher     PasswordHasher
	metrics    metrics.Recorder
	pagination Pagination
	now        func() time.Time
}

// NewUserService creates a new UserService.
func NewUserService(store Store, hasher PasswordHasher, pagination Pagination, recorder metrics.Recorder) *UserService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if pagination.DefaultPerPage <= 0 {
		pagination.DefaultPerPage = 15
	}
	if pagination.MaxPerPage <= 0 {
		pagination.MaxPerPage = 100
	}
	return &UserService{
		store:      store,
		hasher:     hasher,
		metrics:    recorder,
		pagination: pagination,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ListUsersInput defines input for listing users.
type ListUsersInput struct {
	Search  string
	Page    int
	PerPage int
}

// ListUsersOutput is one page of users with their emails.
type ListUsersOutput struct {
	Users    []*model.User
	Total    int
	Page     int
	PerPage  int
	LastPage int
}

// ListUsers returns a page of users ordered by id. Search matches first
// name, last name or phone case-insensitively.
func (s *UserService) ListUsers(ctx context.Context, input ListUsersInput) (*ListUsersOutput, error) {
	perPage := input.PerPage
	if perPage <= 0 {
		perPage = s.pagination.DefaultPerPage
	}
	if perPage > s.pagination.MaxPerPage {
		perPage = s.pagination.MaxPerPage
	}
	page := input.Page
	if page < 1 {
		page = 1
	}
	// Keeps the offset from overflowing; such pages are empty anyway.
	if maxPage := math.MaxInt / perPage; page > maxPage {
		page = maxPage
	}

	users, total, err := s.store.ListUsers(ctx, repository.UserFilter{Search: input.Search}, (page-1)*perPage, perPage)
	if err != nil {
		return nil, internal("list users", err)
	}

	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	emails, err := s.store.ListEmailsForUsers(ctx, ids)
	if err != nil {
		return nil, internal("list users", err)
	}
	for _, u := range users {
		u.Emails = emails[u.ID]
		if u.Emails == nil {
			u.Emails = []model.Email{}
		}
	}

	lastPage := (total + perPage - 1) / perPage
	if lastPage < 1 {
		lastPage = 1
	}

	return &ListUsersOutput{
		Users:    users,
		Total:    total,
		Page:     page,
		PerPage:  perPage,
		LastPage: lastPage,
	}, nil
}

// GetUser retrieves a user with its emails, primary first.
func (s *UserService) GetUser(ctx context.Context, id string) (*model.User, error) {
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, internal("get user", err)
	}

	user.Emails, err = s.store.ListUserEmails(ctx, id)
	if err != nil {
		return nil, internal("get user", err)
	}

	return user, nil
}

// CreateUserInput defines input for creating a user.
type CreateUserInput struct {
	FirstName string
	LastName  string
	Phone     *string
	Password  string
	Emails    []model.EmailInput
}

// CreateUser persists a user and its emails atomically. The first email
// flagged primary becomes primary; if none is flagged the first one does.
func (s *UserService) CreateUser(ctx context.Context, input CreateUserInput) (*model.User, error) {
	verr := &ValidationError{}
	validateName(verr, "first_name", "first name", input.FirstName)
	validateName(verr, "last_name", "last name", input.LastName)
	if input.Phone != nil {
		validatePhone(verr, *input.Phone)
	}
	validatePassword(verr, input.Password)
	validateEmailList(verr, input.Emails)
	if err := verr.Err(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, internal("hash password", err)
	}

	now := s.now()
	user := &model.User{
		ID:           newID(),
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Phone:        input.Phone,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.store.WithTx(ctx, func(q Queries) error {
		if err := checkAddresses(ctx, q, input.Emails, repository.AddressExclusion{}); err != nil {
			return err
		}
		if err := q.CreateUser(ctx, user); err != nil {
			return err
		}
		if err := insertEmails(ctx, q, user.ID, input.Emails, now); err != nil {
			return err
		}
		emails, err := q.ListUserEmails(ctx, user.ID)
		if err != nil {
			return err
		}
		user.Emails = emails
		return nil
	})
	if err != nil {
		return nil, internal("create user", err)
	}

	s.metrics.IncUserCreated()
	return user, nil
}

// UpdateUserInput defines input for updating a user. Nil fields are left
// untouched. A non-nil Emails replaces the user's whole email set.
type UpdateUserInput struct {
	ID         string
	FirstName  *string
	LastName   *string
	Phone      *string
	ClearPhone bool
	Password   *string
	Emails     []model.EmailInput
}

// UpdateUser applies a partial update. When Emails is supplied every owned
// email is deleted and the new list is inserted with the same primary rule
// as CreateUser. Addresses already owned by this user may be resubmitted.
func (s *UserService) UpdateUser(ctx context.Context, input UpdateUserInput) (*model.User, error) {
	verr := &ValidationError{}
	if input.FirstName != nil {
		validateName(verr, "first_name", "first name", *input.FirstName)
	}
	if input.LastName != nil {
		validateName(verr, "last_name", "last name", *input.LastName)
	}
	if input.Phone != nil && !input.ClearPhone {
		validatePhone(verr, *input.Phone)
	}
	if input.Password != nil {
		validatePassword(verr, *input.Password)
	}
	if input.Emails != nil {
		validateEmailList(verr, input.Emails)
	}

	var hash string
	if input.Password != nil && verr.Err() == nil {
		var err error
		if hash, err = s.hasher.Hash(*input.Password); err != nil {
			return nil, internal("hash password", err)
		}
	}

	var user *model.User
	err := s.store.WithTx(ctx, func(q Queries) error {
		if err := lockUser(ctx, q, input.ID); err != nil {
			return err
		}
		if err := verr.Err(); err != nil {
			return err
		}

		var err error
		user, err = q.GetUserByID(ctx, input.ID)
		if err != nil {
			return err
		}

		if input.FirstName != nil {
			user.FirstName = *input.FirstName
		}
		if input.LastName != nil {
			user.LastName = *input.LastName
		}
		if input.ClearPhone {
			user.Phone = nil
		} else if input.Phone != nil {
			user.Phone = input.Phone
		}
		if hash != "" {
			user.PasswordHash = hash
		}
		user.UpdatedAt = s.now()

		if err := q.UpdateUser(ctx, user); err != nil {
			return err
		}

		if input.Emails != nil {
			if err := checkAddresses(ctx, q, input.Emails, repository.AddressExclusion{UserID: user.ID}); err != nil {
				return err
			}
			if err := q.DeleteAllUserEmails(ctx, user.ID); err != nil {
				return err
			}
			if err := insertEmails(ctx, q, user.ID, input.Emails, user.UpdatedAt); err != nil {
				return err
			}
		}

		user.Emails, err = q.ListUserEmails(ctx, user.ID)
		return err
	})
	if err != nil {
		return nil, internal("update user", err)
	}

	s.metrics.IncUserUpdated()
	return user, nil
}

// DeleteUser removes the user and every email it owns in one transaction.
func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	err := s.store.WithTx(ctx, func(q Queries) error {
		if err := lockUser(ctx, q, id); err != nil {
			return err
		}
		if err := q.DeleteAllUserEmails(ctx, id); err != nil {
			return err
		}
		if err := q.DeleteUser(ctx, id); err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return internal("delete user", err)
	}

	s.metrics.IncUserDeleted()
	return nil
}

// checkAddresses reports every submitted address that is already in use
// outside excl.
func checkAddresses(ctx context.Context, q Queries, emails []model.EmailInput, excl repository.AddressExclusion) error {
	verr := &ValidationError{}
	for i, e := range emails {
		ok, err := isAddressAvailable(ctx, q, e.Address, excl)
		if err != nil {
			return err
		}
		if !ok {
			verr.Add(emailField(i), msgAddressTaken)
		}
	}
	return verr.Err()
}

// insertEmails inserts the list in submission order, resolving the primary
// flag as it goes. A unique violation from a concurrent writer surfaces as
// a validation error on the offending entry.
func insertEmails(ctx context.Context, q Queries, userID string, emails []model.EmailInput, at time.Time) error {
	primary := model.ResolvePrimary(emails)
	for i, e := range emails {
		email := &model.Email{
			ID:        newID(),
			UserID:    userID,
			Address:   e.Address,
			IsPrimary: primary[i],
			CreatedAt: at,
			UpdatedAt: at,
		}
		if err := q.CreateEmail(ctx, email); err != nil {
			if errors.Is(err, repository.ErrEmailExists) {
				return takenError(emailField(i))
			}
			return err
		}
	}
	return nil
}
