package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mishasvintus/access_mirror/internal/apperr"
	"github.com/mishasvintus/access_mirror/internal/domain"
	"github.com/mishasvintus/access_mirror/internal/executor"
	"github.com/mishasvintus/access_mirror/internal/logging"
	"github.com/mishasvintus/access_mirror/internal/metrics"
	"github.com/mishasvintus/access_mirror/internal/ratelimit"
	"github.com/mishasvintus/access_mirror/internal/repository/stats"
)

const membershipOperation = "membership"

// Options configures a SyncService.
type Options struct {
	MaxRetries int
	BatchSize  int
	Limiter    ratelimit.Options

	// Extractor stamps access expiration dates on correlated items. Optional.
	Extractor domain.ExpirationExtractor

	// Sleep replaces the executor's countdown sleep, mainly in tests.
	Sleep executor.SleepFunc
}

// SyncService orchestrates sync invocations. Each invocation gets its own
// limiter, remote client and executor.
type SyncService struct {
	store     Store
	newRemote RemoteFactory
	enricher  Enricher
	opts      Options
}

// NewSyncService creates a new sync service. A nil enricher is a no-op.
func NewSyncService(store Store, newRemote RemoteFactory, enricher Enricher, opts Options) *SyncService {
	if enricher == nil {
		enricher = NopEnricher{}
	}
	return &SyncService{
		store:     store,
		newRemote: newRemote,
		enricher:  enricher,
		opts:      opts,
	}
}

type session struct {
	remote Remote
	exec   *executor.Executor
}

func (s *SyncService) newSession() (*session, error) {
	limiter := ratelimit.New(s.opts.Limiter)
	remote, err := s.newRemote(limiter)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindUnexpected {
			return nil, apperr.New(apperr.KindConfiguration, "create remote client", err)
		}
		return nil, err
	}
	limiter.SetProbe(remote.RateLimit)

	return &session{
		remote: remote,
		exec:   executor.New(limiter, executor.Options{MaxRetries: s.opts.MaxRetries, Sleep: s.opts.Sleep}),
	}, nil
}

// SyncMembership mirrors the remote membership of groupID and hands newly
// discovered members to the enricher.
func (s *SyncService) SyncMembership(ctx context.Context, groupID string, progress executor.ProgressFunc) (summary *domain.SyncSummary, err error) {
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return nil, ErrGroupRequired
	}

	ctx = withRunID(ctx)
	start := time.Now()
	defer func() { record(ctx, membershipOperation, groupID, start, err) }()

	sess, err := s.newSession()
	if err != nil {
		return nil, err
	}

	outcome, err := NewMembershipReconciler(sess.remote, s.store, sess.exec).Reconcile(ctx, groupID, progress)
	if err != nil {
		return nil, err
	}

	metrics.AddRecords(membershipOperation, "new", outcome.Summary.NewCount)
	metrics.AddRecords(membershipOperation, "updated", outcome.Summary.UpdatedCount)
	metrics.AddRecords(membershipOperation, "deactivated", outcome.Summary.Deactivated)

	if len(outcome.NewMembers) > 0 {
		if err := s.enricher.Enrich(ctx, groupID, outcome.NewMembers); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("group", groupID).Msg("failed to enrich new members")
		}
	}

	return &outcome.Summary, nil
}

// SyncCorrelations refreshes the correlated items of every active member of groupID.
func (s *SyncService) SyncCorrelations(ctx context.Context, groupID string, q Query, progress executor.ProgressFunc) (summary *domain.CorrelationSummary, err error) {
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return nil, ErrGroupRequired
	}

	ctx = withRunID(ctx)
	start := time.Now()
	defer func() { record(ctx, correlationsOperation, groupID, start, err) }()

	sess, err := s.newSession()
	if err != nil {
		return nil, err
	}

	members, err := s.store.ListActiveMembers(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active members: %w", err)
	}

	reconciler := NewCorrelationReconciler(sess.remote, s.store, sess.exec, s.opts.BatchSize).
		WithExpirationExtractor(s.opts.Extractor)
	return reconciler.ReconcileAll(ctx, members, q, progress)
}

// ListMembers returns the stored members of a group.
func (s *SyncService) ListMembers(ctx context.Context, groupID string) ([]domain.Member, error) {
	if strings.TrimSpace(groupID) == "" {
		return nil, ErrGroupRequired
	}
	members, err := s.store.ListMembers(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

// ListCorrelations returns the stored items of a member.
func (s *SyncService) ListCorrelations(ctx context.Context, memberID int64) ([]domain.CorrelationItem, error) {
	if _, err := s.store.GetMember(ctx, memberID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	items, err := s.store.ListCorrelations(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to list correlations: %w", err)
	}
	return items, nil
}

// GroupStatistics is a statistics view of one group.
type GroupStatistics struct {
	Overall *stats.GroupStats  `json:"overall"`
	Members []stats.MemberStat `json:"members"`
}

// GroupStats returns statistics of a group.
func (s *SyncService) GroupStats(ctx context.Context, groupID string) (*GroupStatistics, error) {
	if strings.TrimSpace(groupID) == "" {
		return nil, ErrGroupRequired
	}
	overall, perMember, err := s.store.GroupStats(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get group stats: %w", err)
	}
	return &GroupStatistics{Overall: overall, Members: perMember}, nil
}

func withRunID(ctx context.Context) context.Context {
	if logging.RunIDFromContext(ctx) != "" {
		return ctx
	}
	return logging.ContextWithRunID(ctx, logging.NewRunID())
}

func record(ctx context.Context, operation, groupID string, start time.Time, err error) {
	duration := time.Since(start)
	errKind := ""
	if err != nil {
		errKind = apperr.KindOf(err).String()
	}
	metrics.RecordSync(operation, duration, errKind)

	event := logging.Ctx(ctx).Info()
	if err != nil {
		event = logging.Ctx(ctx).Error().Err(err).Str("kind", errKind)
	}
	event.
		Str("operation", operation).
		Str("group", groupID).
		Dur("duration", duration).
		Msg("sync finished")
}
