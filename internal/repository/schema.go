package repository

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"fmt"

	"github.com/mishasvintus/access_mirror/internal/logging"
)

type migration struct {
	key   string
	query string
}

func migQuery(query string) migration {
	return migration{
		key:   fmt.Sprintf("%x", sha1.Sum([]byte(query)))[0:8],
		query: query,
	}
}

func migrations() []migration {
	var queries []migration

	// Members
	queries = append(queries, migQuery(`CREATE TABLE IF NOT EXISTS members (
		id              BIGSERIAL    PRIMARY KEY,
		group_id        VARCHAR(100) NOT NULL,
		login           VARCHAR(100) NOT NULL,
		display_name    VARCHAR(255) NOT NULL DEFAULT '',
		avatar_url      TEXT         NOT NULL DEFAULT '',
		is_maintainer   BOOLEAN      NOT NULL DEFAULT false,
		is_active       BOOLEAN      NOT NULL DEFAULT true,
		government_flag BOOLEAN      NULL,
		first_seen_at   TIMESTAMPTZ  NOT NULL,
		last_synced_at  TIMESTAMPTZ  NOT NULL,
		created_at      TIMESTAMPTZ  NOT NULL DEFAULT now(),
		updated_at      TIMESTAMPTZ  NOT NULL DEFAULT now(),
		UNIQUE (group_id, login)
	);`))
	queries = append(queries, migQuery(`CREATE INDEX IF NOT EXISTS members_group_active ON members(group_id, is_active);`))

	// Correlation items
	queries = append(queries, migQuery(`CREATE TABLE IF NOT EXISTS correlation_items (
		id                  BIGSERIAL   PRIMARY KEY,
		member_id           BIGINT      NOT NULL REFERENCES members(id) ON DELETE CASCADE,
		number              INTEGER     NOT NULL,
		url                 TEXT        NOT NULL DEFAULT '',
		title               TEXT        NOT NULL DEFAULT '',
		description         VARCHAR(1000) NOT NULL DEFAULT '',
		status              VARCHAR(10) NOT NULL CHECK (status IN ('open', 'resolved')),
		external_created_at TIMESTAMPTZ NULL,
		external_updated_at TIMESTAMPTZ NULL,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (member_id, number)
	);`))
	queries = append(queries, migQuery(`ALTER TABLE correlation_items ADD COLUMN IF NOT EXISTS expires_at TIMESTAMPTZ NULL;`))
	queries = append(queries, migQuery(`ALTER TABLE correlation_items ADD COLUMN IF NOT EXISTS author TEXT NOT NULL DEFAULT '';`))

	return queries
}

// Migrate applies pending migrations. Each one is recorded by the short hash
// of its text, so re-running is a no-op.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		migration  VARCHAR(16) PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	processed := make(map[string]bool)
	rows, err := db.QueryContext(ctx, `SELECT migration FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			_ = rows.Close()
			return fmt.Errorf("failed to scan migration: %w", err)
		}
		processed[key] = true
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("rows iteration error: %w", err)
	}
	_ = rows.Close()

	for _, m := range migrations() {
		if processed[m.key] {
			continue
		}
		if err := applyMigration(ctx, db, m); err != nil {
			return err
		}
		logging.Info().Str("migration", m.key).Msg("applied migration")
	}
	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.query); err != nil {
		return fmt.Errorf("failed to apply migration %s: %w", m.key, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (migration) VALUES ($1) ON CONFLICT DO NOTHING`, m.key); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", m.key, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
