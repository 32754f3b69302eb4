package stats

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mishasvintus/access_mirror/internal/repository"
)

// MemberStat represents correlation counts for one member.
type MemberStat struct {
	MemberID      int64  `json:"member_id"`
	Login         string `json:"login"`
	OpenItems     int64  `json:"open_items"`
	ResolvedItems int64  `json:"resolved_items"`
}

// GroupStats represents overall statistics of one group.
type GroupStats struct {
	ActiveMembers   int64      `json:"active_members"`
	InactiveMembers int64      `json:"inactive_members"`
	OpenItems       int64      `json:"open_items"`
	ResolvedItems   int64      `json:"resolved_items"`
	LastSyncedAt    *time.Time `json:"last_synced_at,omitempty"`
}

// GetMemberStats returns correlation counts per active member of the group,
// busiest first.
func GetMemberStats(ctx context.Context, exec repository.DBTX, groupID string) ([]MemberStat, error) {
	query := `
		SELECT m.id, m.login,
			COUNT(c.id) FILTER (WHERE c.status = 'open')     AS open_count,
			COUNT(c.id) FILTER (WHERE c.status = 'resolved') AS resolved_count
		FROM members m
		LEFT JOIN correlation_items c ON c.member_id = m.id
		WHERE m.group_id = $1 AND m.is_active = true
		GROUP BY m.id, m.login
		ORDER BY open_count DESC, m.login
	`
	rows, err := exec.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get member stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	stats := make([]MemberStat, 0)
	for rows.Next() {
		var stat MemberStat
		if err := rows.Scan(&stat.MemberID, &stat.Login, &stat.OpenItems, &stat.ResolvedItems); err != nil {
			return nil, fmt.Errorf("failed to scan member stat: %w", err)
		}
		stats = append(stats, stat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return stats, nil
}

// GetGroupStats returns overall statistics of the group.
func GetGroupStats(ctx context.Context, exec repository.DBTX, groupID string) (*GroupStats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM members WHERE group_id = $1 AND is_active = true)  AS active_members,
			(SELECT COUNT(*) FROM members WHERE group_id = $1 AND is_active = false) AS inactive_members,
			(SELECT COUNT(*) FROM correlation_items c JOIN members m ON m.id = c.member_id
				WHERE m.group_id = $1 AND c.status = 'open')                          AS open_items,
			(SELECT COUNT(*) FROM correlation_items c JOIN members m ON m.id = c.member_id
				WHERE m.group_id = $1 AND c.status = 'resolved')                      AS resolved_items,
			(SELECT MAX(last_synced_at) FROM members WHERE group_id = $1)            AS last_synced_at
	`
	var (
		stats      GroupStats
		lastSynced sql.NullTime
	)
	err := exec.QueryRowContext(ctx, query, groupID).Scan(
		&stats.ActiveMembers,
		&stats.InactiveMembers,
		&stats.OpenItems,
		&stats.ResolvedItems,
		&lastSynced,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get group stats: %w", err)
	}
	if lastSynced.Valid {
		stats.LastSyncedAt = &lastSynced.Time
	}

	return &stats, nil
}
