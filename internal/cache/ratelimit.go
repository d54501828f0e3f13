package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// rateLimitClientPrefix is the Redis key prefix for per-client limits.
	rateLimitClientPrefix = "ratelimit:client:"
	// rateLimitClientTTL outlives a full refill of the bucket.
	rateLimitClientTTL = 120 * time.Second
)

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// tokenBucketScript refills and consumes one token atomically.
// Returns {allowed, retry_after_seconds, remaining_tokens}.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local rate = tonumber(ARGV[1])
	local burst = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])

	local data = redis.call('HMGET', key, 'tokens', 'last_update')
	local tokens = tonumber(data[1]) or burst
	local last_update = tonumber(data[2]) or now

	local elapsed = math.max(0, now - last_update)
	tokens = math.min(burst, tokens + (elapsed * rate))

	local allowed = 0
	local retry_after = 0
	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	else
		retry_after = math.ceil((1 - tokens) / rate)
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_update', now)
	redis.call('EXPIRE', key, ttl)

	return {allowed, retry_after, math.floor(tokens)}
`)

// CheckClientRateLimit consumes one request from the bucket identified by
// signature. A client may burst up to perMinute requests and then gets
// perMinute requests spread over each minute.
func (c *Cache) CheckClientRateLimit(ctx context.Context, signature string, perMinute int) (*RateLimitResult, error) {
	if perMinute <= 0 {
		return &RateLimitResult{Allowed: true}, nil
	}

	ratePerSecond := float64(perMinute) / 60.0
	now := time.Now()

	res, err := tokenBucketScript.Run(ctx, c.client,
		[]string{rateLimitClientPrefix + hashKey(signature)},
		ratePerSecond, perMinute, now.Unix(), int(rateLimitClientTTL.Seconds()),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit script: %w", err)
	}

	result := &RateLimitResult{
		Allowed:    res[0] == 1,
		Limit:      perMinute,
		Remaining:  res[2],
		RetryAfter: time.Duration(res[1]) * time.Second,
	}
	// Time until the bucket is full again.
	missing := float64(int64(perMinute) - result.Remaining)
	result.ResetAt = now.Add(time.Duration(missing / ratePerSecond * float64(time.Second)))
	return result, nil
}

// hashKey creates a truncated SHA256 hash so raw client details never
// become Redis keys.
func hashKey(raw string) string {
	hash := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(hash[:8])
}
