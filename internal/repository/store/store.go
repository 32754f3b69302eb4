// Package store is the transactional PostgreSQL store behind the reconcilers.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mishasvintus/access_mirror/internal/domain"
	"github.com/mishasvintus/access_mirror/internal/repository"
	"github.com/mishasvintus/access_mirror/internal/repository/correlation"
	"github.com/mishasvintus/access_mirror/internal/repository/member"
	"github.com/mishasvintus/access_mirror/internal/repository/stats"
)

// MembershipResult reports the writes of one membership reconciliation.
type MembershipResult struct {
	Inserted    int
	Updated     int
	Deactivated int

	// NewLogins lists the members inserted by this run.
	NewLogins []string
}

// ReplaceResult reports the writes of one correlation replacement.
type ReplaceResult struct {
	Inserted int
	Updated  int
	Deleted  int
}

// Store handles member and correlation database operations.
type Store struct {
	db *sql.DB
}

// New creates a new store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// ApplyMembership upserts the remote members of a group and deactivates every
// active member absent from them, in a single transaction.
func (s *Store) ApplyMembership(ctx context.Context, groupID string, members []domain.Member, syncedAt time.Time) (*MembershipResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	upserted, err := member.BulkUpsert(ctx, tx, groupID, members, syncedAt)
	if err != nil {
		return nil, err
	}

	result := &MembershipResult{}
	present := make([]string, 0, len(upserted))
	for _, u := range upserted {
		present = append(present, u.Login)
		if u.Inserted {
			result.Inserted++
			result.NewLogins = append(result.NewLogins, u.Login)
		} else {
			result.Updated++
		}
	}

	result.Deactivated, err = member.MarkAbsentInactive(ctx, tx, groupID, present, syncedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return result, nil
}

// ReplaceCorrelations makes the stored items of a member equal to items:
// upsert by number, then delete every number not in items.
func (s *Store) ReplaceCorrelations(ctx context.Context, memberID int64, items []domain.CorrelationItem, syncedAt time.Time) (*ReplaceResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	inserted, updated, err := correlation.Upsert(ctx, tx, memberID, items, syncedAt)
	if err != nil {
		if repository.IsForeignKeyViolation(err) {
			return nil, sql.ErrNoRows
		}
		if repository.IsCheckViolation(err) {
			return nil, fmt.Errorf("item rejected by constraint: %w", err)
		}
		return nil, err
	}

	keep := make([]int, len(items))
	for i, item := range items {
		keep[i] = item.Number
	}
	deleted, err := correlation.DeleteMissing(ctx, tx, memberID, keep)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &ReplaceResult{Inserted: inserted, Updated: updated, Deleted: deleted}, nil
}

// CountMembers returns the number of stored members of a group.
func (s *Store) CountMembers(ctx context.Context, groupID string) (int, error) {
	return member.CountByGroup(ctx, s.db, groupID)
}

// ListMembers returns all stored members of a group.
func (s *Store) ListMembers(ctx context.Context, groupID string) ([]domain.Member, error) {
	return member.ListByGroup(ctx, s.db, groupID)
}

// ListActiveMembers returns the active members of a group.
func (s *Store) ListActiveMembers(ctx context.Context, groupID string) ([]domain.Member, error) {
	return member.ListActiveByGroup(ctx, s.db, groupID)
}

// GetMember returns sql.ErrNoRows when the member does not exist.
func (s *Store) GetMember(ctx context.Context, id int64) (*domain.Member, error) {
	return member.Get(ctx, s.db, id)
}

// ListCorrelations returns the stored items of a member.
func (s *Store) ListCorrelations(ctx context.Context, memberID int64) ([]domain.CorrelationItem, error) {
	return correlation.ListByMember(ctx, s.db, memberID)
}

// GroupStats returns overall and per-member statistics of a group.
func (s *Store) GroupStats(ctx context.Context, groupID string) (*stats.GroupStats, []stats.MemberStat, error) {
	overall, err := stats.GetGroupStats(ctx, s.db, groupID)
	if err != nil {
		return nil, nil, err
	}
	perMember, err := stats.GetMemberStats(ctx, s.db, groupID)
	if err != nil {
		return nil, nil, err
	}
	return overall, perMember, nil
}
