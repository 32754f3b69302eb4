package member

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/mishasvintus/access_mirror/internal/domain"
	"github.com/mishasvintus/access_mirror/internal/repository"
)

const selectColumns = `id, group_id, login, display_name, avatar_url, is_maintainer, is_active,
		government_flag, first_seen_at, last_synced_at, created_at, updated_at`

// UpsertResult reports one row written by BulkUpsert.
type UpsertResult struct {
	Login    string
	Inserted bool
}

// BulkUpsert inserts or refreshes members of a group in one statement.
// first_seen_at, created_at and government_flag of existing rows are kept;
// every written row becomes active and is stamped with syncedAt.
func BulkUpsert(ctx context.Context, exec repository.DBTX, groupID string, members []domain.Member, syncedAt time.Time) ([]UpsertResult, error) {
	if len(members) == 0 {
		return nil, nil
	}

	logins := make([]string, len(members))
	names := make([]string, len(members))
	avatars := make([]string, len(members))
	maintainers := make([]bool, len(members))
	for i, m := range members {
		logins[i] = m.Login
		names[i] = m.DisplayName
		avatars[i] = m.AvatarURL
		maintainers[i] = m.IsMaintainer
	}

	query := `
		INSERT INTO members (group_id, login, display_name, avatar_url, is_maintainer, is_active,
			first_seen_at, last_synced_at, created_at, updated_at)
		SELECT $1, m.login, m.display_name, m.avatar_url, m.is_maintainer, true, $6, $6, $6, $6
		FROM unnest($2::text[], $3::text[], $4::text[], $5::bool[])
			AS m(login, display_name, avatar_url, is_maintainer)
		ON CONFLICT (group_id, login) DO UPDATE SET
			display_name   = excluded.display_name,
			avatar_url     = excluded.avatar_url,
			is_maintainer  = excluded.is_maintainer,
			is_active      = true,
			last_synced_at = excluded.last_synced_at,
			updated_at     = excluded.updated_at
		RETURNING login, (xmax = 0) AS inserted
	`
	rows, err := exec.QueryContext(ctx, query, groupID,
		pq.Array(logins), pq.Array(names), pq.Array(avatars), pq.Array(maintainers), syncedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert members: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]UpsertResult, 0, len(members))
	for rows.Next() {
		var r UpsertResult
		if err := rows.Scan(&r.Login, &r.Inserted); err != nil {
			return nil, fmt.Errorf("failed to scan upserted member: %w", err)
		}
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return results, nil
}

// MarkAbsentInactive deactivates every active member of the group whose login
// is not in present. It returns the number of deactivated rows.
func MarkAbsentInactive(ctx context.Context, exec repository.DBTX, groupID string, present []string, syncedAt time.Time) (int, error) {
	query := `
		UPDATE members
		SET is_active = false, updated_at = $3
		WHERE group_id = $1 AND is_active = true AND NOT (login = ANY($2))
	`
	result, err := exec.ExecContext(ctx, query, groupID, pq.Array(present), syncedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate absent members: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rowsAffected), nil
}

// CountByGroup returns the number of stored members of the group, active or not.
func CountByGroup(ctx context.Context, exec repository.DBTX, groupID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM members WHERE group_id = $1`
	if err := exec.QueryRowContext(ctx, query, groupID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return count, nil
}

// Get retrieves a member by ID.
func Get(ctx context.Context, exec repository.DBTX, id int64) (*domain.Member, error) {
	query := `SELECT ` + selectColumns + ` FROM members WHERE id = $1`

	m, err := scanMember(exec.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return m, nil
}

// ListByGroup returns the members of a group ordered by login.
func ListByGroup(ctx context.Context, exec repository.DBTX, groupID string) ([]domain.Member, error) {
	query := `SELECT ` + selectColumns + ` FROM members WHERE group_id = $1 ORDER BY login`
	return list(ctx, exec, query, groupID)
}

// ListActiveByGroup returns the active members of a group ordered by login.
func ListActiveByGroup(ctx context.Context, exec repository.DBTX, groupID string) ([]domain.Member, error) {
	query := `SELECT ` + selectColumns + ` FROM members WHERE group_id = $1 AND is_active = true ORDER BY login`
	return list(ctx, exec, query, groupID)
}

func list(ctx context.Context, exec repository.DBTX, query string, args ...any) ([]domain.Member, error) {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer func() { _ = rows.Close() }()

	members := make([]domain.Member, 0)
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, *m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return members, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMember(row scanner) (*domain.Member, error) {
	var (
		m          domain.Member
		government sql.NullBool
		firstSeen  time.Time
		lastSynced time.Time
		createdAt  time.Time
		updatedAt  time.Time
	)
	err := row.Scan(
		&m.ID,
		&m.GroupID,
		&m.Login,
		&m.DisplayName,
		&m.AvatarURL,
		&m.IsMaintainer,
		&m.IsActive,
		&government,
		&firstSeen,
		&lastSynced,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if government.Valid {
		flag := government.Bool
		m.GovernmentFlag = &flag
	}
	m.FirstSeenAt = &firstSeen
	m.LastSyncedAt = &lastSynced
	m.CreatedAt = &createdAt
	m.UpdatedAt = &updatedAt
	return &m, nil
}
