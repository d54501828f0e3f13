package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/userhub/userhub/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 731731

// schemaMigrations lists the up migrations in apply order.
var schemaMigrations = []string{
	"000001_users",
	"000002_user_emails",
}

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetSchema drops the users and user_emails tables and recreates them
// from the migrations directory.
func ResetSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for i := len(schemaMigrations) - 1; i >= 0; i-- {
		if err := ApplyMigration(ctx, pool, schemaMigrations[i]+".down.sql"); err != nil {
			return err
		}
	}
	for _, name := range schemaMigrations {
		if err := ApplyMigration(ctx, pool, name+".up.sql"); err != nil {
			return err
		}
	}
	return nil
}

// ApplyMigration executes one file from the migrations directory.
func ApplyMigration(ctx context.Context, pool *pgxpool.Pool, file string) error {
	root, err := ProjectRoot()
	if err != nil {
		return err
	}

	sql, err := os.ReadFile(filepath.Join(root, "migrations", file))
	if err != nil {
		return fmt.Errorf("read migration %s: %w", file, err)
	}
	if _, err := pool.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("apply migration %s: %w", file, err)
	}
	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestUser creates a user with sensible defaults and no emails.
func NewTestUser(t testing.TB) *model.User {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	phone := "+1 (555) 010-0000"
	return &model.User{
		ID:           ulid.Make().String(),
		FirstName:    "Test",
		LastName:     "User",
		Phone:        &phone,
		PasswordHash: "$argon2id$v=19$m=65536,t=3,p=4$c2FsdA$aGFzaA",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NewTestEmail creates an email owned by userID.
func NewTestEmail(t testing.TB, userID, address string, primary bool) *model.Email {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &model.Email{
		ID:        ulid.Make().String(),
		UserID:    userID,
		Address:   address,
		IsPrimary: primary,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// UniqueAddress generates an email address that will not collide across tests.
func UniqueAddress(prefix string) string {
	return fmt.Sprintf("%s-%d@example.com", prefix, time.Now().UnixNano())
}
