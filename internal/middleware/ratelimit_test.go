package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/userhub/userhub/internal/cache"
)

type fakeLimiter struct {
	signatures []string
	result     *cache.RateLimitResult
	err        error
}

func (f *fakeLimiter) CheckClientRateLimit(_ context.Context, signature string, _ int) (*cache.RateLimitResult, error) {
	f.signatures = append(f.signatures, signature)
	return f.result, f.err
}

func newRateLimitHandler(limiter RateLimiter, enabled bool) (http.Handler, *bytes.Buffer) {
	var buf bytes.Buffer
	cfg := RateLimitConfig{
		Logger:    slog.New(slog.NewJSONHandler(&buf, nil)),
		Limiter:   limiter,
		Enabled:   enabled,
		PerMinute: 60,
	}
	return RateLimit(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})), &buf
}

func TestRateLimit_Allowed(t *testing.T) {
	limiter := &fakeLimiter{result: &cache.RateLimitResult{
		Allowed:   true,
		Limit:     60,
		Remaining: 45,
		ResetAt:   time.Unix(1700000000, 0),
	}}
	handler, _ := newRateLimitHandler(limiter, true)

	req := httptest.NewRequest(http.MethodGet, "http://api.example.com/api/v1/users", nil)
	req.RemoteAddr = "203.0.113.9:51234"
	req.Header.Set("User-Agent", "TestAgent/1.0")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("X-RateLimit-Limit"); got != "60" {
		t.Errorf("X-RateLimit-Limit = %q", got)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "45" {
		t.Errorf("X-RateLimit-Remaining = %q", got)
	}
	if got := rec.Header().Get("X-RateLimit-Reset"); got != "1700000000" {
		t.Errorf("X-RateLimit-Reset = %q", got)
	}

	want := "GET|api.example.com|203.0.113.9|TestAgent/1.0"
	if len(limiter.signatures) != 1 || limiter.signatures[0] != want {
		t.Errorf("signatures = %v, want [%s]", limiter.signatures, want)
	}
}

func TestRateLimit_Rejected(t *testing.T) {
	limiter := &fakeLimiter{result: &cache.RateLimitResult{
		Allowed:    false,
		Limit:      60,
		RetryAfter: 1500 * time.Millisecond,
	}}
	handler, logs := newRateLimitHandler(limiter, true)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/users", nil))

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "2" {
		t.Errorf("Retry-After = %q, want 2", got)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["success"] != false {
		t.Errorf("success = %v", body["success"])
	}
	if body["message"] != "Too many requests. Please try again later." {
		t.Errorf("message = %v", body["message"])
	}
	if body["retry_after"] != float64(2) {
		t.Errorf("retry_after = %v", body["retry_after"])
	}
	if !bytes.Contains(logs.Bytes(), []byte("rate limit exceeded")) {
		t.Error("expected a rate limit warning in logs")
	}
}

func TestRateLimit_FailOpenAndDisabled(t *testing.T) {
	tests := []struct {
		name    string
		limiter *fakeLimiter
		enabled bool
		calls   int
	}{
		{"limiter error", &fakeLimiter{err: errors.New("redis down")}, true, 1},
		{"disabled", &fakeLimiter{}, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, _ := newRateLimitHandler(tt.limiter, tt.enabled)

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users", nil))

			if rec.Code != http.StatusOK {
				t.Errorf("status = %d, want 200", rec.Code)
			}
			if len(tt.limiter.signatures) != tt.calls {
				t.Errorf("limiter calls = %d, want %d", len(tt.limiter.signatures), tt.calls)
			}
		})
	}
}
