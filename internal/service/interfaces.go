package service

import (
	"context"
	"time"

	"github.com/mishasvintus/access_mirror/internal/batch"
	"github.com/mishasvintus/access_mirror/internal/domain"
	"github.com/mishasvintus/access_mirror/internal/github"
	"github.com/mishasvintus/access_mirror/internal/ratelimit"
	"github.com/mishasvintus/access_mirror/internal/repository/stats"
	"github.com/mishasvintus/access_mirror/internal/repository/store"
)

// MemberStore persists group membership.
type MemberStore interface {
	CountMembers(ctx context.Context, groupID string) (int, error)
	ListMembers(ctx context.Context, groupID string) ([]domain.Member, error)
	ListActiveMembers(ctx context.Context, groupID string) ([]domain.Member, error)
	GetMember(ctx context.Context, id int64) (*domain.Member, error)
	ApplyMembership(ctx context.Context, groupID string, members []domain.Member, syncedAt time.Time) (*store.MembershipResult, error)
}

// CorrelationStore persists the items linked to each member.
type CorrelationStore interface {
	ListCorrelations(ctx context.Context, memberID int64) ([]domain.CorrelationItem, error)
	ReplaceCorrelations(ctx context.Context, memberID int64, items []domain.CorrelationItem, syncedAt time.Time) (*store.ReplaceResult, error)
}

// Store is everything the sync service reads and writes locally.
type Store interface {
	MemberStore
	CorrelationStore
	GroupStats(ctx context.Context, groupID string) (*stats.GroupStats, []stats.MemberStat, error)
}

// MemberSource lists remote group membership one page at a time.
type MemberSource interface {
	ListMembersPage(ctx context.Context, group, cursor string) (*github.MemberPage, error)
}

// IssueSearcher runs one composite search.
type IssueSearcher interface {
	Search(ctx context.Context, g batch.Group) (*github.SearchResults, error)
}

// Remote is the remote API as seen by one sync invocation.
type Remote interface {
	MemberSource
	IssueSearcher
	RateLimit(ctx context.Context) (ratelimit.Quota, error)
}

// RemoteFactory creates a Remote that reports quota to observer.
type RemoteFactory func(observer github.QuotaObserver) (Remote, error)

// Enricher attaches extra attributes to newly discovered members.
type Enricher interface {
	Enrich(ctx context.Context, groupID string, members []domain.Member) error
}

// NopEnricher does nothing.
type NopEnricher struct{}

// Enrich implements Enricher.
func (NopEnricher) Enrich(context.Context, string, []domain.Member) error { return nil }
