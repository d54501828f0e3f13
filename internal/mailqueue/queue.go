// Package mailqueue schedules and delivers welcome mail jobs through Redis.
//
// Jobs wait in a sorted set scored by their due time. A scheduler moves due
// jobs onto a stream that a consumer group drains. Failed jobs are put back
// into the delay set with backoff until they run out of attempts, after
// which they land on a dead-letter stream.
package mailqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/userhub/userhub/internal/metrics"
	"github.com/userhub/userhub/internal/model"
)

const (
	// Name is the logical queue name.
	Name = "emails"

	// DelayedKey is the sorted set of jobs waiting for their due time.
	DelayedKey = "queue:emails:delayed"

	// StreamKey is the Redis stream of jobs ready to run.
	StreamKey = "queue:emails"

	// DeadLetterStreamKey is the Redis stream for exhausted or poison jobs.
	DeadLetterStreamKey = "queue:emails:dlq"

	// MaxStreamLen is the approximate max length of the ready stream.
	MaxStreamLen = 100000

	// MaxDeadLetterLen is the approximate max length of the dead-letter stream.
	MaxDeadLetterLen = 10000
)

// promoteScript moves up to ARGV[2] jobs scored at or below ARGV[1] from the
// delay set onto the stream in one atomic step.
var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, payload in ipairs(due) do
  redis.call('ZREM', KEYS[1], payload)
  redis.call('XADD', KEYS[2], 'MAXLEN', '~', ARGV[3], '*', 'payload', payload)
end
return #due
`)

// Queue enqueues welcome jobs and promotes them once due.
type Queue struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
	now     func() time.Time
}

// New creates a Queue on client.
func New(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Queue {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Queue{
		redis:   client,
		logger:  logger.With("component", "mailqueue"),
		metrics: recorder,
		now:     time.Now,
	}
}

// Enqueue schedules job to become ready after delay.
func (q *Queue) Enqueue(ctx context.Context, job model.WelcomeJob, delay time.Duration) error {
	if delay < 0 {
		delay = 0
	}
	if job.NotBefore.IsZero() {
		job.NotBefore = q.now().Add(delay)
	}
	if job.QueuedAt.IsZero() {
		job.QueuedAt = q.now()
	}

	payload, err := EncodeJob(job)
	if err != nil {
		return err
	}

	err = q.redis.ZAdd(ctx, DelayedKey, redis.Z{
		Score:  float64(job.NotBefore.UnixMilli()),
		Member: payload,
	}).Err()
	if err != nil {
		return fmt.Errorf("zadd: %w", err)
	}

	q.logger.Debug("welcome job queued",
		"job_id", job.ID,
		"user_id", job.UserID,
		"attempt", job.Attempt,
		"not_before", job.NotBefore,
	)
	return nil
}

// PromoteDue moves at most limit due jobs onto the ready stream and returns
// how many were moved.
func (q *Queue) PromoteDue(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	n, err := promoteScript.Run(ctx, q.redis,
		[]string{DelayedKey, StreamKey},
		q.now().UnixMilli(), limit, MaxStreamLen,
	).Int()
	if err != nil {
		return 0, fmt.Errorf("promote due jobs: %w", err)
	}
	return n, nil
}

// Depth returns the number of jobs still waiting in the delay set.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	n, err := q.redis.ZCard(ctx, DelayedKey).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard: %w", err)
	}
	return n, nil
}

// EncodeJob serializes a job for storage in Redis.
func EncodeJob(job model.WelcomeJob) (string, error) {
	if job.ID == "" {
		return "", errors.New("job id is required")
	}
	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal job: %w", err)
	}
	return string(data), nil
}

// DecodeJob parses a stored job and checks its required fields.
func DecodeJob(payload string) (model.WelcomeJob, error) {
	var job model.WelcomeJob
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return job, fmt.Errorf("unmarshal job: %w", err)
	}
	switch {
	case job.ID == "":
		return job, errors.New("job id is missing")
	case job.UserID == "":
		return job, errors.New("user id is missing")
	case job.Address == "":
		return job, errors.New("email address is missing")
	}
	return job, nil
}
