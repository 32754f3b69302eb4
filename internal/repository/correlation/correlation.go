package correlation

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/mishasvintus/access_mirror/internal/domain"
	"github.com/mishasvintus/access_mirror/internal/repository"
)

// Upsert writes items of a member in one statement keyed on (member_id, number).
// created_at of existing rows is kept. It returns how many rows were inserted
// and how many were updated.
func Upsert(ctx context.Context, exec repository.DBTX, memberID int64, items []domain.CorrelationItem, syncedAt time.Time) (inserted, updated int, err error) {
	if len(items) == 0 {
		return 0, 0, nil
	}

	numbers := make([]int64, len(items))
	urls := make([]string, len(items))
	titles := make([]string, len(items))
	descriptions := make([]string, len(items))
	statuses := make([]string, len(items))
	createdAts := make([]string, len(items))
	updatedAts := make([]string, len(items))
	expiresAts := make([]string, len(items))
	authors := make([]string, len(items))
	for i, item := range items {
		numbers[i] = int64(item.Number)
		urls[i] = item.URL
		titles[i] = item.Title
		descriptions[i] = domain.TruncateDescription(item.Description)
		statuses[i] = string(item.Status)
		createdAts[i] = formatTime(item.ExternalCreatedAt)
		updatedAts[i] = formatTime(item.ExternalUpdatedAt)
		expiresAts[i] = formatTime(item.ExpiresAt)
		authors[i] = item.Author
	}

	query := `
		INSERT INTO correlation_items (member_id, number, url, title, description, status,
			external_created_at, external_updated_at, expires_at, author, created_at, updated_at)
		SELECT $1, i.number, i.url, i.title, i.description, i.status,
			NULLIF(i.ext_created, '')::timestamptz, NULLIF(i.ext_updated, '')::timestamptz,
			NULLIF(i.expires, '')::timestamptz, i.author, $11, $11
		FROM unnest($2::int[], $3::text[], $4::text[], $5::text[], $6::text[], $7::text[], $8::text[], $9::text[], $10::text[])
			AS i(number, url, title, description, status, ext_created, ext_updated, expires, author)
		ON CONFLICT (member_id, number) DO UPDATE SET
			url                 = excluded.url,
			author              = excluded.author,
			title               = excluded.title,
			description         = excluded.description,
			status              = excluded.status,
			external_created_at = excluded.external_created_at,
			external_updated_at = excluded.external_updated_at,
			expires_at          = excluded.expires_at,
			updated_at          = excluded.updated_at
		RETURNING (xmax = 0) AS inserted
	`
	rows, err := exec.QueryContext(ctx, query, memberID,
		pq.Array(numbers), pq.Array(urls), pq.Array(titles), pq.Array(descriptions),
		pq.Array(statuses), pq.Array(createdAts), pq.Array(updatedAts), pq.Array(expiresAts),
		pq.Array(authors), syncedAt)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to upsert correlation items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var isNew bool
		if err := rows.Scan(&isNew); err != nil {
			return 0, 0, fmt.Errorf("failed to scan upserted item: %w", err)
		}
		if isNew {
			inserted++
		} else {
			updated++
		}
	}

	if err := rows.Err(); err != nil {
		return 0, 0, fmt.Errorf("rows iteration error: %w", err)
	}

	return inserted, updated, nil
}

// DeleteMissing removes every item of the member whose number is not in keep.
// An empty keep removes all of them.
func DeleteMissing(ctx context.Context, exec repository.DBTX, memberID int64, keep []int) (int, error) {
	numbers := make([]int64, len(keep))
	for i, n := range keep {
		numbers[i] = int64(n)
	}

	query := `DELETE FROM correlation_items WHERE member_id = $1 AND NOT (number = ANY($2))`
	result, err := exec.ExecContext(ctx, query, memberID, pq.Array(numbers))
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale correlation items: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rowsAffected), nil
}

// ListByMember returns the items of a member ordered by number.
func ListByMember(ctx context.Context, exec repository.DBTX, memberID int64) ([]domain.CorrelationItem, error) {
	query := `
		SELECT id, member_id, number, url, title, description, status,
			external_created_at, external_updated_at, expires_at, author, created_at, updated_at
		FROM correlation_items
		WHERE member_id = $1
		ORDER BY number
	`
	rows, err := exec.QueryContext(ctx, query, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to list correlation items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]domain.CorrelationItem, 0)
	for rows.Next() {
		var (
			item                 domain.CorrelationItem
			createdAt, updatedAt time.Time
		)
		if err := rows.Scan(
			&item.ID,
			&item.MemberID,
			&item.Number,
			&item.URL,
			&item.Title,
			&item.Description,
			&item.Status,
			&item.ExternalCreatedAt,
			&item.ExternalUpdatedAt,
			&item.ExpiresAt,
			&item.Author,
			&createdAt,
			&updatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan correlation item: %w", err)
		}
		item.CreatedAt = &createdAt
		item.UpdatedAt = &updatedAt
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return items, nil
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
