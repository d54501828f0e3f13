package mailqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/userhub/userhub/internal/metrics"
	"github.com/userhub/userhub/internal/model"
)

const (
	// ConsumerGroup is the Redis consumer group name.
	ConsumerGroup = "mail_workers"

	// DefaultBatchSize is the max jobs read per poll.
	DefaultBatchSize = 10

	// DefaultBlockTimeout is how long to block waiting for messages.
	DefaultBlockTimeout = 5 * time.Second

	// DefaultPromoteInterval is how often due jobs are moved to the stream.
	DefaultPromoteInterval = time.Second

	// DefaultClaimIdle is the idle time before reclaiming pending messages.
	DefaultClaimIdle = 2 * DefaultJobTimeout

	// DefaultMetricsInterval is how often to refresh queue depth metrics.
	DefaultMetricsInterval = 5 * time.Second
)

// Handler runs one job. Returning an error marked with Permanent skips the
// remaining attempts.
type Handler interface {
	Handle(ctx context.Context, job model.WelcomeJob) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job model.WelcomeJob) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, job model.WelcomeJob) error {
	return f(ctx, job)
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// WorkerConfig tunes a Worker. Zero values take the defaults.
type WorkerConfig struct {
	ConsumerID      string
	MaxAttempts     int
	JobTimeout      time.Duration
	BatchSize       int
	BlockTimeout    time.Duration
	PromoteInterval time.Duration
	ClaimIdle       time.Duration
	MetricsInterval time.Duration

	// RetryDelay returns the wait before the next attempt after the given
	// number of failed attempts. Defaults to NextRetryDelay.
	RetryDelay func(failedAttempts int) time.Duration
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.ConsumerID == "" {
		c.ConsumerID = NewConsumerID()
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = DefaultJobTimeout
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.BlockTimeout <= 0 {
		c.BlockTimeout = DefaultBlockTimeout
	}
	if c.PromoteInterval <= 0 {
		c.PromoteInterval = DefaultPromoteInterval
	}
	if c.ClaimIdle <= 0 {
		c.ClaimIdle = DefaultClaimIdle
	}
	if c.MetricsInterval <= 0 {
		c.MetricsInterval = DefaultMetricsInterval
	}
	if c.RetryDelay == nil {
		c.RetryDelay = NextRetryDelay
	}
	return c
}

// Worker promotes due jobs and consumes the ready stream.
type Worker struct {
	queue        *Queue
	handler      Handler
	logger       *slog.Logger
	metrics      metrics.Recorder
	cfg          WorkerConfig
	claimStartID string
	lastClaim    time.Time
	lastMetrics  time.Time

	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	mu      sync.Mutex
}

// NewWorker creates a worker that runs jobs from queue through handler.
func NewWorker(queue *Queue, handler Handler, cfg WorkerConfig) *Worker {
	cfg = cfg.withDefaults()
	return &Worker{
		queue:        queue,
		handler:      handler,
		logger:       queue.logger.With("component", "mailqueue.worker", "consumer_id", cfg.ConsumerID),
		metrics:      queue.metrics,
		cfg:          cfg,
		claimStartID: "0-0",
	}
}

// Run promotes and consumes jobs until ctx is cancelled or Shutdown is
// called. A clean stop returns nil.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return errors.New("worker already started")
	}
	w.started = true
	w.done = make(chan struct{})
	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	defer close(w.done)

	if err := w.ensureConsumerGroup(ctx); err != nil {
		return fmt.Errorf("ensure consumer group: %w", err)
	}

	w.logger.Info("mail worker started")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.promoteLoop(gctx) })
	g.Go(func() error { return w.consumeLoop(gctx) })

	err := g.Wait()
	w.logger.Info("mail worker stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Shutdown stops the worker and waits for the in-flight job to finish.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return nil
	}
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	w.logger.Info("mail worker shutdown initiated")
	if cancel != nil {
		cancel()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		w.logger.Warn("mail worker shutdown timed out")
		return ctx.Err()
	}
}

func (w *Worker) promoteLoop(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PromoteInterval)
	defer ticker.Stop()

	for {
		if _, err := w.queue.PromoteDue(ctx, w.cfg.BatchSize*10); err != nil && ctx.Err() == nil {
			w.logger.Warn("failed to promote due jobs", "error", err)
		}
		w.maybeUpdateQueueDepth(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *Worker) consumeLoop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.processOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error("process error", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
		}
	}
}

// ensureConsumerGroup creates the consumer group if it doesn't exist.
func (w *Worker) ensureConsumerGroup(ctx context.Context) error {
	err := w.queue.redis.XGroupCreateMkStream(ctx, StreamKey, ConsumerGroup, "0").Err()
	if err != nil && !isConsumerGroupExistsError(err) {
		return err
	}
	return nil
}

// processOnce reads one batch and runs every job in it.
func (w *Worker) processOnce(ctx context.Context) error {
	messages, err := w.claimPending(ctx)
	if err != nil {
		w.logger.Warn("failed to claim pending messages", "error", err)
	}
	if len(messages) == 0 {
		messages, err = w.readBatch(ctx)
		if err != nil {
			return err
		}
	}

	for _, msg := range messages {
		w.processMessage(ctx, msg)
	}
	return nil
}

// processMessage runs one stream entry. The entry is acknowledged once the
// job has been sent, rescheduled or dead-lettered; otherwise it stays
// pending and is reclaimed later.
func (w *Worker) processMessage(ctx context.Context, msg redis.XMessage) {
	payload, ok := msg.Values["payload"].(string)
	if !ok {
		w.deadLetter(ctx, msg.ID, nil, "invalid_format", "payload field missing or not a string")
		w.ack(ctx, msg.ID)
		return
	}

	job, err := DecodeJob(payload)
	if err != nil {
		w.deadLetter(ctx, msg.ID, payload, "decode_error", err.Error())
		w.ack(ctx, msg.ID)
		return
	}

	job.Attempt++
	start := time.Now()
	jobCtx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	err = w.handler.Handle(jobCtx, job)
	cancel()
	w.metrics.ObserveWelcomeSendDuration(time.Since(start))

	if err == nil {
		w.logger.Info("welcome email sent",
			"job_id", job.ID,
			"user_id", job.UserID,
			"attempt", job.Attempt,
		)
		w.metrics.IncWelcomeProcessed(metrics.WelcomeSent)
		w.ack(ctx, msg.ID)
		return
	}

	if ctx.Err() != nil {
		// Shutting down; leave the entry pending for another consumer.
		return
	}

	w.logger.Error("failed to send welcome email",
		"job_id", job.ID,
		"user_id", job.UserID,
		"attempt", job.Attempt,
		"error", err,
	)

	if IsPermanent(err) || IsExhausted(job.Attempt, w.cfg.MaxAttempts) {
		w.logger.Error("welcome email job failed permanently",
			"job_id", job.ID,
			"user_id", job.UserID,
			"attempts", job.Attempt,
			"error", err,
		)
		encoded, encErr := EncodeJob(job)
		if encErr != nil {
			encoded = payload
		}
		w.deadLetter(ctx, msg.ID, encoded, "exhausted", err.Error())
		w.ack(ctx, msg.ID)
		return
	}

	delay := w.cfg.RetryDelay(job.Attempt)
	job.NotBefore = time.Now().Add(delay)
	if err := w.queue.Enqueue(ctx, job, delay); err != nil {
		w.logger.Error("failed to reschedule welcome job", "job_id", job.ID, "error", err)
		return
	}
	w.metrics.IncWelcomeProcessed(metrics.WelcomeRetried)
	w.ack(ctx, msg.ID)
}

// claimPending reclaims entries left pending by a consumer that died.
func (w *Worker) claimPending(ctx context.Context) ([]redis.XMessage, error) {
	if !w.lastClaim.IsZero() && time.Since(w.lastClaim) < w.cfg.ClaimIdle/2 {
		return nil, nil
	}
	w.lastClaim = time.Now()

	messages, start, err := w.queue.redis.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   StreamKey,
		Group:    ConsumerGroup,
		Consumer: w.cfg.ConsumerID,
		MinIdle:  w.cfg.ClaimIdle,
		Start:    w.claimStartID,
		Count:    int64(w.cfg.BatchSize),
	}).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("xautoclaim: %w", err)
	}
	if start != "" {
		w.claimStartID = start
	}
	return messages, nil
}

// readBatch reads new messages using XREADGROUP.
func (w *Worker) readBatch(ctx context.Context) ([]redis.XMessage, error) {
	streams, err := w.queue.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: w.cfg.ConsumerID,
		Streams:  []string{StreamKey, ">"},
		Count:    int64(w.cfg.BatchSize),
		Block:    w.cfg.BlockTimeout,
	}).Result()

	if err == redis.Nil || len(streams) == 0 {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}
	return streams[0].Messages, nil
}

// deadLetter writes a job that will not be retried to the dead-letter stream.
func (w *Worker) deadLetter(ctx context.Context, messageID string, payload any, reason, detail string) {
	w.logger.Warn("dead-lettering welcome job",
		"message_id", messageID,
		"reason", reason,
		"detail", detail,
	)

	if payload == nil {
		payload = ""
	}
	err := w.queue.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: DeadLetterStreamKey,
		MaxLen: MaxDeadLetterLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"original_id":      messageID,
			"original_stream":  StreamKey,
			"reason":           reason,
			"detail":           detail,
			"payload":          payload,
			"dead_lettered_at": time.Now().UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		w.logger.Error("failed to write to dead-letter queue",
			"message_id", messageID,
			"error", err,
		)
	}

	w.metrics.IncWelcomeProcessed(metrics.WelcomeDead)
}

func (w *Worker) ack(ctx context.Context, messageID string) {
	if err := w.queue.redis.XAck(ctx, StreamKey, ConsumerGroup, messageID).Err(); err != nil {
		w.logger.Error("xack failed", "message_id", messageID, "error", err)
	}
}

func (w *Worker) maybeUpdateQueueDepth(ctx context.Context) {
	if !w.lastMetrics.IsZero() && time.Since(w.lastMetrics) < w.cfg.MetricsInterval {
		return
	}
	w.lastMetrics = time.Now()

	depth, err := w.queue.Depth(ctx)
	if err != nil {
		w.logger.Warn("failed to read queue depth", "error", err)
		return
	}

	groups, err := w.queue.redis.XInfoGroups(ctx, StreamKey).Result()
	if err != nil && err != redis.Nil {
		w.logger.Warn("failed to read stream group info", "error", err)
	}
	for _, group := range groups {
		if group.Name == ConsumerGroup {
			depth += group.Pending + group.Lag
		}
	}
	w.metrics.SetWelcomeQueueDepth(depth)
}

// isConsumerGroupExistsError checks if the error is "BUSYGROUP" (group exists).
func isConsumerGroupExistsError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}
