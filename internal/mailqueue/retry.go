package mailqueue

import (
	"math/rand/v2"
	"time"
)

// Retry delays for failed attempts. Attempt 1 waits 10s, attempt 2 waits
// 30s and anything later waits 90s.
var retryDelays = []time.Duration{
	10 * time.Second,
	30 * time.Second,
	90 * time.Second,
}

const (
	// DefaultMaxAttempts is the number of times a job is tried.
	DefaultMaxAttempts = 3

	// DefaultJobTimeout bounds a single attempt.
	DefaultJobTimeout = 60 * time.Second

	// JitterFactor is the ±percentage of jitter applied to delays.
	JitterFactor = 0.2
)

// NextRetryDelay returns the backoff after the given number of failed
// attempts (1-indexed), with ±20% jitter.
func NextRetryDelay(failedAttempts int) time.Duration {
	i := failedAttempts - 1
	if i < 0 {
		i = 0
	}
	if i >= len(retryDelays) {
		i = len(retryDelays) - 1
	}

	base := retryDelays[i]
	jitterRange := float64(base) * JitterFactor
	jitter := (rand.Float64()*2 - 1) * jitterRange

	return time.Duration(float64(base) + jitter)
}

// IsExhausted reports whether a job has used up its attempts.
func IsExhausted(attempts, maxAttempts int) bool {
	return attempts >= maxAttempts
}
