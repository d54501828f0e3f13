package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/userhub/userhub/internal/metrics"
	"github.com/userhub/userhub/internal/model"
	"github.com/userhub/userhub/internal/repository"
)

// WelcomeEnqueuer schedules one welcome mail for delivery after delay.
type WelcomeEnqueuer interface {
	Enqueue(ctx context.Context, job model.WelcomeJob, delay time.Duration) error
}

// WelcomeService queues welcome mails for every address a user owns.
type WelcomeService struct {
	store    Store
	queue    WelcomeEnqueuer
	metrics  metrics.Recorder
	minDelay time.Duration
	maxDelay time.Duration
	now      func() time.Time
	jitter   func(n int64) int64
}

// NewWelcomeService creates a WelcomeService. Each job is delayed by a
// whole number of seconds drawn uniformly from [minDelay, maxDelay].
func NewWelcomeService(store Store, queue WelcomeEnqueuer, minDelay, maxDelay time.Duration, recorder metrics.Recorder) *WelcomeService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &WelcomeService{
		store:    store,
		queue:    queue,
		metrics:  recorder,
		minDelay: minDelay,
		maxDelay: maxDelay,
		now:      func() time.Time { return time.Now().UTC() },
		jitter:   rand.Int64N,
	}
}

// WelcomeResult lists the addresses a welcome mail was queued for.
type WelcomeResult struct {
	Count  int
	Emails []string
}

// SendWelcome reads the user's current emails and queues one job per
// address. A user without emails gets ErrNoEmailAddresses.
func (s *WelcomeService) SendWelcome(ctx context.Context, userID string) (*WelcomeResult, error) {
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, internal("send welcome", err)
	}

	emails, err := s.store.ListUserEmails(ctx, userID)
	if err != nil {
		return nil, internal("send welcome", err)
	}
	if len(emails) == 0 {
		return nil, ErrNoEmailAddresses
	}

	result := &WelcomeResult{Emails: make([]string, 0, len(emails))}
	now := s.now()
	for _, e := range emails {
		delay := s.delay()
		job := model.WelcomeJob{
			ID:        newID(),
			UserID:    userID,
			Address:   e.Address,
			NotBefore: now.Add(delay),
			QueuedAt:  now,
		}
		if err := s.queue.Enqueue(ctx, job, delay); err != nil {
			return nil, internal("enqueue welcome", err)
		}
		result.Emails = append(result.Emails, e.Address)
	}
	result.Count = len(result.Emails)

	s.metrics.AddWelcomeQueued(result.Count)
	return result, nil
}

func (s *WelcomeService) delay() time.Duration {
	lo := int64(s.minDelay / time.Second)
	hi := int64(s.maxDelay / time.Second)
	return time.Duration(lo+s.jitter(hi-lo+1)) * time.Second
}
