// Package repotest connects repository tests to a PostgreSQL instance.
package repotest

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"

	"github.com/mishasvintus/access_mirror/internal/repository"
)

// SetupTestDB connects to the test database, applies migrations and truncates
// all tables. The test is skipped when the database is unreachable.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		getEnv("TEST_DB_HOST", "localhost"),
		getEnv("TEST_DB_PORT", "5432"),
		getEnv("TEST_DB_USER", "mirror_user"),
		getEnv("TEST_DB_PASSWORD", "mirror_password"),
		getEnv("TEST_DB_NAME", "mirror_test"),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := repository.NewPostgresDB(ctx, dsn)
	if err != nil {
		t.Skipf("test database unavailable: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := repository.Migrate(ctx, db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	if err := CleanupTestDB(db); err != nil {
		t.Fatalf("failed to cleanup test database: %v", err)
	}

	return db
}

// CleanupTestDB truncates all tables to clean up test data.
func CleanupTestDB(db *sql.DB) error {
	// Truncate tables in reverse order of dependencies
	tables := []string{
		"correlation_items",
		"members",
	}

	for _, table := range tables {
		_, err := db.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table))
		if err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
