// Package testutil holds helpers shared by integration tests.
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

	"github.com/utrscan/utrscan/internal/auth"
	"github.com/utrscan/utrscan/internal/model"
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

const advisoryLockID int64 = 720512

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

// ResetSchema drops and recreates every table from the migration files.
func ResetSchema(ctx context.Context, pool *pgxpool.Pool) error {
	root, err := ProjectRoot()
	if err != nil {
		return err
	}
	dir := filepath.Join(root, "internal", "repository", "migrations")

	downSQL, err := os.ReadFile(filepath.Join(dir, "000001_init.down.sql"))
	if err != nil {
		return fmt.Errorf("read down migration: %w", err)
	}
	if _, err := pool.Exec(ctx, string(downSQL)); err != nil {
		return fmt.Errorf("apply down migration: %w", err)
	}

	upSQL, err := os.ReadFile(filepath.Join(dir, "000001_init.up.sql"))
	if err != nil {
		return fmt.Errorf("read up migration: %w", err)
	}
	if _, err := pool.Exec(ctx, string(upSQL)); err != nil {
		return fmt.Errorf("apply up migration: %w", err)
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

// NewTestUser creates an unsaved user with a freshly generated key.
// The plaintext key is returned alongside for requests.
func NewTestUser(t testing.TB, isAdmin bool) (*model.User, string) {
	t.Helper()

	key, err := auth.GenerateAPIKey()
	if err != nil {
		t.Fatalf("generate api key: %v", err)
	}

	id := ulid.Make().String()
	return &model.User{
		ID:        id,
		Name:      "Test " + id[len(id)-6:],
		Email:     UniqueEmail("user"),
		KeyPrefix: key.Prefix,
		KeyHash:   key.Hash,
		IsAdmin:   isAdmin,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}, key.Plaintext
}

// NewTestSubmission builds a submission for userID stamped at ts.
func NewTestSubmission(userID string, ts time.Time, retention time.Duration) *model.Submission {
	data := model.ExtractedData{
		Date:   ts.Format("02 Jan 2006"),
		UTR:    "412345678901",
		Amount: "1500",
	}
	return &model.Submission{
		Transaction: &model.Transaction{
			ID:        ulid.Make().String(),
			UserID:    userID,
			Date:      data.Date,
			UTR:       data.UTR,
			Amount:    data.Amount,
			CreatedAt: ts,
		},
		Log: &model.Log{
			ID:        ulid.Make().String(),
			UserID:    userID,
			Data:      data,
			Timestamp: ts,
			ExpiresAt: ts.Add(retention),
		},
	}
}

// UniqueEmail generates a unique email address for tests.
func UniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%d@example.com", prefix, time.Now().UnixNano())
}
