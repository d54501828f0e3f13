package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/userhub/userhub/internal/model"
	"github.com/userhub/userhub/internal/repository"
)

// memStore is an in-memory Store. Transactions are serialized and roll
// back to a snapshot when the callback fails.
type memStore struct {
	txMu   sync.Mutex
	mu     sync.Mutex
	users  map[string]model.User
	emails map[string]model.Email

	// failCreateEmailAfter makes CreateEmail fail once this many inserts
	// have succeeded. Negative disables it.
	failCreateEmailAfter int
	createdEmails        int
}

var errInjected = errors.New("injected failure")

func newMemStore() *memStore {
	return &memStore{
		users:                map[string]model.User{},
		emails:               map[string]model.Email{},
		failCreateEmailAfter: -1,
	}
}

func (m *memStore) WithTx(ctx context.Context, fn func(q Queries) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	users := make(map[string]model.User, len(m.users))
	for k, v := range m.users {
		users[k] = v
	}
	emails := make(map[string]model.Email, len(m.emails))
	for k, v := range m.emails {
		emails[k] = v
	}
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.users, m.emails = users, emails
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) CreateUser(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; ok {
		return errors.New("duplicate user id")
	}
	u := *user
	u.Emails = nil
	m.users[u.ID] = u
	return nil
}

func (m *memStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

func (m *memStore) LockUser(ctx context.Context, id string) error {
	_, err := m.GetUserByID(ctx, id)
	return err
}

func (m *memStore) UpdateUser(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return repository.ErrUserNotFound
	}
	u := *user
	u.Emails = nil
	m.users[u.ID] = u
	return nil
}

func (m *memStore) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(m.users, id)
	for k, e := range m.emails {
		if e.UserID == id {
			delete(m.emails, k)
		}
	}
	return nil
}

func (m *memStore) ListUsers(_ context.Context, filter repository.UserFilter, offset, limit int) ([]*model.User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	needle := strings.ToLower(filter.Search)
	var matched []*model.User
	for _, u := range m.users {
		phone := ""
		if u.Phone != nil {
			phone = *u.Phone
		}
		if needle == "" ||
			strings.Contains(strings.ToLower(u.FirstName), needle) ||
			strings.Contains(strings.ToLower(u.LastName), needle) ||
			strings.Contains(strings.ToLower(phone), needle) {
			matched = append(matched, &u)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := len(matched)
	if offset >= total {
		return []*model.User{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (m *memStore) CreateEmail(_ context.Context, email *model.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreateEmailAfter >= 0 && m.createdEmails >= m.failCreateEmailAfter {
		return errInjected
	}
	if _, ok := m.users[email.UserID]; !ok {
		return errors.New("foreign key violation")
	}
	for _, e := range m.emails {
		if e.Address == email.Address {
			return repository.ErrEmailExists
		}
	}
	m.emails[email.ID] = *email
	m.createdEmails++
	return nil
}

func (m *memStore) GetUserEmail(_ context.Context, userID, emailID string) (*model.Email, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.emails[emailID]
	if !ok || e.UserID != userID {
		return nil, repository.ErrEmailNotFound
	}
	return &e, nil
}

func (m *memStore) ListUserEmails(_ context.Context, userID string) ([]model.Email, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.emailsOf(userID), nil
}

func (m *memStore) emailsOf(userID string) []model.Email {
	out := []model.Email{}
	for _, e := range m.emails {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsPrimary != out[j].IsPrimary {
			return out[i].IsPrimary
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *memStore) ListEmailsForUsers(_ context.Context, userIDs []string) (map[string][]model.Email, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]model.Email, len(userIDs))
	for _, id := range userIDs {
		if emails := m.emailsOf(id); len(emails) > 0 {
			out[id] = emails
		}
	}
	return out, nil
}

func (m *memStore) CountUserEmails(ctx context.Context, userID string) (int, error) {
	emails, _ := m.ListUserEmails(ctx, userID)
	return len(emails), nil
}

func (m *memStore) UpdateEmail(_ context.Context, email *model.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.emails[email.ID]
	if !ok || cur.UserID != email.UserID {
		return repository.ErrEmailNotFound
	}
	for id, e := range m.emails {
		if id != email.ID && e.Address == email.Address {
			return repository.ErrEmailExists
		}
	}
	m.emails[email.ID] = *email
	return nil
}

func (m *memStore) DeleteUserEmail(_ context.Context, userID, emailID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.emails[emailID]
	if !ok || e.UserID != userID {
		return repository.ErrEmailNotFound
	}
	delete(m.emails, emailID)
	return nil
}

func (m *memStore) DeleteAllUserEmails(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, e := range m.emails {
		if e.UserID == userID {
			delete(m.emails, k)
		}
	}
	return nil
}

func (m *memStore) ClearPrimary(_ context.Context, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, e := range m.emails {
		if e.UserID == userID && e.IsPrimary {
			e.IsPrimary = false
			e.UpdatedAt = at
			m.emails[k] = e
		}
	}
	return nil
}

func (m *memStore) MarkPrimary(_ context.Context, userID, emailID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.emails[emailID]
	if !ok || e.UserID != userID {
		return repository.ErrEmailNotFound
	}
	e.IsPrimary = true
	e.UpdatedAt = at
	m.emails[emailID] = e
	return nil
}

func (m *memStore) EmailAddressTaken(_ context.Context, address string, excl repository.AddressExclusion) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.emails {
		if e.Address != address {
			continue
		}
		if excl.UserID != "" && e.UserID == excl.UserID {
			continue
		}
		if excl.EmailID != "" && e.ID == excl.EmailID {
			continue
		}
		return true, nil
	}
	return false, nil
}

// primaryCount counts primary emails of userID directly from storage.
func (m *memStore) primaryCount(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.emails {
		if e.UserID == userID && e.IsPrimary {
			n++
		}
	}
	return n
}

func (m *memStore) userCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

func (m *memStore) emailCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.emails)
}

type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}
