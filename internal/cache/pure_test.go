package cache

import (
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestHashKey(t *testing.T) {
	t.Parallel()

	signatures := []string{
		"GET|api.example.com|192.168.1.1|curl/8.0",
		"GET|api.example.com|192.168.1.2|curl/8.0",
		"POST|api.example.com|192.168.1.1|curl/8.0",
		"GET|api.example.com|::1|Mozilla/5.0",
		"",
	}

	seen := make(map[string]string, len(signatures))
	for _, sig := range signatures {
		hash := hashKey(sig)
		if len(hash) != 16 {
			t.Errorf("hashKey(%q) length = %d, want 16", sig, len(hash))
		}
		if hashKey(sig) != hash {
			t.Errorf("hashKey(%q) is not deterministic", sig)
		}
		if other, dup := seen[hash]; dup {
			t.Errorf("hashKey collision between %q and %q", sig, other)
		}
		seen[hash] = sig
	}
}

func TestCheckClientRateLimit_Disabled(t *testing.T) {
	t.Parallel()

	// A zero limit never reaches Redis.
	c := &Cache{}
	res, err := c.CheckClientRateLimit(t.Context(), "sig", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Allowed {
		t.Error("expected request to be allowed when limit is disabled")
	}
}

func TestCheckClientRateLimit_RedisDown(t *testing.T) {
	t.Parallel()

	c := NewFromClient(redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	}))
	t.Cleanup(func() { _ = c.Close() })

	if err := c.Ping(t.Context()); err == nil {
		t.Fatal("expected ping to fail")
	}
	res, err := c.CheckClientRateLimit(t.Context(), "sig", 60)
	if err == nil {
		t.Fatalf("expected error, got %+v", res)
	}
	if !strings.Contains(err.Error(), "rate limit script") {
		t.Errorf("error = %v, want it wrapped", err)
	}
}
