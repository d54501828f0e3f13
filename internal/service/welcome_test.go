package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/userhub/userhub/internal/metrics"
	"github.com/userhub/userhub/internal/model"
)

type queuedJob struct {
	job   model.WelcomeJob
	delay time.Duration
}

type fakeEnqueuer struct {
	mu   sync.Mutex
	jobs []queuedJob
	err  error
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, job model.WelcomeJob, delay time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, queuedJob{job: job, delay: delay})
	return nil
}

func TestSendWelcome(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	rec := metrics.NewInMemory()
	users := NewUserService(store, fakeHasher{}, Pagination{}, rec)
	queue := &fakeEnqueuer{}
	svc := NewWelcomeService(store, queue, 2*time.Second, 15*time.Second, rec)
	ctx := context.Background()

	user, err := users.CreateUser(ctx, validCreateInput("w1@example.com", "w2@example.com", "w3@example.com"))
	require.NoError(t, err)

	result, err := svc.SendWelcome(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Count)
	assert.ElementsMatch(t, []string{"w1@example.com", "w2@example.com", "w3@example.com"}, result.Emails)

	require.Len(t, queue.jobs, 3)
	for _, q := range queue.jobs {
		assert.Equal(t, user.ID, q.job.UserID)
		assert.NotEmpty(t, q.job.ID)
		assert.GreaterOrEqual(t, q.delay, 2*time.Second)
		assert.LessOrEqual(t, q.delay, 15*time.Second)
		assert.Zero(t, q.delay%time.Second, "whole seconds")
		assert.Equal(t, q.job.QueuedAt.Add(q.delay), q.job.NotBefore)
	}
	assert.Equal(t, uint64(3), rec.Snapshot().WelcomeQueued)
}

func TestSendWelcome_DelayBounds(t *testing.T) {
	t.Parallel()
	svc := NewWelcomeService(newMemStore(), &fakeEnqueuer{}, 2*time.Second, 15*time.Second, nil)

	svc.jitter = func(int64) int64 { return 0 }
	assert.Equal(t, 2*time.Second, svc.delay())

	svc.jitter = func(n int64) int64 { return n - 1 }
	assert.Equal(t, 15*time.Second, svc.delay())

	fixed := NewWelcomeService(newMemStore(), &fakeEnqueuer{}, 5*time.Second, time.Second, nil)
	assert.Equal(t, 5*time.Second, fixed.delay(), "max below min collapses to min")
}

func TestSendWelcome_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("unknown user", func(t *testing.T) {
		queue := &fakeEnqueuer{}
		svc := NewWelcomeService(newMemStore(), queue, time.Second, time.Second, nil)

		_, err := svc.SendWelcome(ctx, "missing")
		assert.ErrorIs(t, err, ErrUserNotFound)
		assert.Empty(t, queue.jobs)
	})

	t.Run("no emails", func(t *testing.T) {
		store := newMemStore()
		users := NewUserService(store, fakeHasher{}, Pagination{}, nil)
		emails := NewEmailService(store, nil)
		user, err := users.CreateUser(ctx, validCreateInput("gone@example.com"))
		require.NoError(t, err)
		require.NoError(t, emails.DeleteEmail(ctx, user.ID, user.Emails[0].ID))

		queue := &fakeEnqueuer{}
		svc := NewWelcomeService(store, queue, time.Second, time.Second, nil)

		_, err = svc.SendWelcome(ctx, user.ID)
		var cerr *ConflictError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, "User has no email addresses", cerr.Message)
		assert.Empty(t, queue.jobs)
	})

	t.Run("enqueue failure", func(t *testing.T) {
		store := newMemStore()
		users := NewUserService(store, fakeHasher{}, Pagination{}, nil)
		user, err := users.CreateUser(ctx, validCreateInput("fail@example.com"))
		require.NoError(t, err)

		boom := errors.New("redis down")
		svc := NewWelcomeService(store, &fakeEnqueuer{err: boom}, time.Second, time.Second, nil)

		_, err = svc.SendWelcome(ctx, user.ID)
		var ierr *InternalError
		require.ErrorAs(t, err, &ierr)
		assert.ErrorIs(t, err, boom)
	})
}
