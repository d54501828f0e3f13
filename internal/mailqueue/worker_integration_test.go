//go:build integration

package mailqueue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/userhub/userhub/internal/metrics"
	"github.com/userhub/userhub/internal/model"
	"github.com/userhub/userhub/internal/testutil"
)

func newTestQueue(t *testing.T) (*Queue, *redis.Client, *metrics.InMemoryRecorder) {
	t.Helper()
	redisURL := testutil.RequireEnv(t, "REDIS_URL")

	opts, err := redis.ParseURL(redisURL)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Skipping integration test: Redis not available: %v", err)
	}
	require.NoError(t, testutil.FlushRedis(ctx, client))

	rec := metrics.NewInMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(client, logger, rec), client, rec
}

func newJob(id string) model.WelcomeJob {
	return model.WelcomeJob{ID: id, UserID: "01HZUSER", Address: id + "@example.com"}
}

func startWorker(t *testing.T, w *Worker) {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(context.Background()) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = w.Shutdown(ctx)
		<-errCh
	})
}

func TestIntegrationQueue_DelayedJobsWaitUntilDue(t *testing.T) {
	q, client, _ := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, newJob("later"), time.Hour))
	require.NoError(t, q.Enqueue(ctx, newJob("now"), 0))

	moved, err := q.PromoteDue(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)

	entries, err := client.XRange(ctx, StreamKey, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	job, err := DecodeJob(entries[0].Values["payload"].(string))
	require.NoError(t, err)
	assert.Equal(t, "now", job.ID)
}

func TestIntegrationWorker_SendsJobs(t *testing.T) {
	q, _, rec := newTestQueue(t)
	ctx := context.Background()

	var mu sync.Mutex
	var sent []string
	handler := HandlerFunc(func(_ context.Context, job model.WelcomeJob) error {
		mu.Lock()
		defer mu.Unlock()
		sent = append(sent, job.Address)
		return nil
	})

	w := NewWorker(q, handler, WorkerConfig{
		PromoteInterval: 50 * time.Millisecond,
		BlockTimeout:    100 * time.Millisecond,
	})
	startWorker(t, w)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(ctx, newJob(id), 0))
	}

	require.Eventually(t, func() bool {
		return rec.Snapshot().WelcomeSent == 3
	}, 5*time.Second, 50*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"a@example.com", "b@example.com", "c@example.com"}, sent)
}

func TestIntegrationWorker_RetriesThenDeadLetters(t *testing.T) {
	q, client, rec := newTestQueue(t)
	ctx := context.Background()

	var mu sync.Mutex
	attempts := 0
	handler := HandlerFunc(func(_ context.Context, job model.WelcomeJob) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		return errors.New("smtp unavailable")
	})

	w := NewWorker(q, handler, WorkerConfig{
		PromoteInterval: 20 * time.Millisecond,
		BlockTimeout:    50 * time.Millisecond,
		RetryDelay:      func(int) time.Duration { return 10 * time.Millisecond },
	})
	startWorker(t, w)

	require.NoError(t, q.Enqueue(ctx, newJob("flaky"), 0))

	require.Eventually(t, func() bool {
		return rec.Snapshot().WelcomeDead == 1
	}, 5*time.Second, 20*time.Millisecond)

	mu.Lock()
	assert.Equal(t, DefaultMaxAttempts, attempts)
	mu.Unlock()
	assert.Equal(t, uint64(2), rec.Snapshot().WelcomeRetried)

	dead, err := client.XRange(ctx, DeadLetterStreamKey, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, "exhausted", dead[0].Values["reason"])
	job, err := DecodeJob(dead[0].Values["payload"].(string))
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxAttempts, job.Attempt)
}

func TestIntegrationWorker_PermanentErrorSkipsRetries(t *testing.T) {
	q, _, rec := newTestQueue(t)
	ctx := context.Background()

	handler := HandlerFunc(func(context.Context, model.WelcomeJob) error {
		return Permanent(errors.New("user deleted"))
	})

	w := NewWorker(q, handler, WorkerConfig{
		PromoteInterval: 20 * time.Millisecond,
		BlockTimeout:    50 * time.Millisecond,
	})
	startWorker(t, w)

	require.NoError(t, q.Enqueue(ctx, newJob("gone"), 0))

	require.Eventually(t, func() bool {
		return rec.Snapshot().WelcomeDead == 1
	}, 5*time.Second, 20*time.Millisecond)
	assert.Zero(t, rec.Snapshot().WelcomeRetried)
}

func TestIntegrationWorker_PoisonMessage(t *testing.T) {
	q, client, rec := newTestQueue(t)
	ctx := context.Background()

	w := NewWorker(q, HandlerFunc(func(context.Context, model.WelcomeJob) error { return nil }), WorkerConfig{
		BlockTimeout: 50 * time.Millisecond,
	})
	startWorker(t, w)

	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		Values: map[string]interface{}{"payload": "not-json"},
	}).Err())

	require.Eventually(t, func() bool {
		return rec.Snapshot().WelcomeDead == 1
	}, 5*time.Second, 20*time.Millisecond)
	assert.Zero(t, rec.Snapshot().WelcomeSent)
}
