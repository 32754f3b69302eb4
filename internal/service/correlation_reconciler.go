package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mishasvintus/access_mirror/internal/apperr"
	"github.com/mishasvintus/access_mirror/internal/batch"
	"github.com/mishasvintus/access_mirror/internal/domain"
	"github.com/mishasvintus/access_mirror/internal/executor"
	"github.com/mishasvintus/access_mirror/internal/github"
	"github.com/mishasvintus/access_mirror/internal/logging"
	"github.com/mishasvintus/access_mirror/internal/metrics"
)

const correlationsOperation = "correlations"

// Query selects the remote items correlated with each member.
type Query struct {
	Repository     string `json:"repository"`
	SearchTerms    string `json:"search_terms"`
	ExclusionTerms string `json:"exclusion_terms"`
}

// CorrelationReconciler replaces each member's stored items with the result
// of a remote search for that member.
type CorrelationReconciler struct {
	searcher  IssueSearcher
	store     CorrelationStore
	exec      *executor.Executor
	batchSize int
	extractor domain.ExpirationExtractor
	now       func() time.Time
}

// NewCorrelationReconciler creates a new correlation reconciler. A
// non-positive batchSize uses batch.DefaultGroupLimit.
func NewCorrelationReconciler(searcher IssueSearcher, store CorrelationStore, exec *executor.Executor, batchSize int) *CorrelationReconciler {
	return &CorrelationReconciler{
		searcher:  searcher,
		store:     store,
		exec:      exec,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// WithExpirationExtractor sets the extractor used to stamp ExpiresAt on items
// from their title and description. A nil extractor leaves ExpiresAt unset.
func (r *CorrelationReconciler) WithExpirationExtractor(e domain.ExpirationExtractor) *CorrelationReconciler {
	r.extractor = e
	return r
}

// ReconcileAll searches and replaces items for every member. Searches are
// batched; a batch that fails for a non-retryable reason is retried one
// member at a time. A member that fails is recorded in the summary and the
// others continue. Cancellation and configuration errors abort the run.
func (r *CorrelationReconciler) ReconcileAll(ctx context.Context, members []domain.Member, q Query, progress executor.ProgressFunc) (*domain.CorrelationSummary, error) {
	factory, err := batch.NewIssueSearch(q.Repository, q.SearchTerms, q.ExclusionTerms, 0)
	if err != nil {
		return nil, apperr.New(apperr.KindConfiguration, "reconcile correlations", fmt.Errorf("%w: %q", err, q.Repository))
	}

	byLogin := make(map[string]domain.Member, len(members))
	targets := make([]string, 0, len(members))
	for _, m := range members {
		if _, ok := byLogin[m.Login]; ok {
			continue
		}
		byLogin[m.Login] = m
		targets = append(targets, m.Login)
	}

	run := &correlationRun{
		reconciler: r,
		summary:    &domain.CorrelationSummary{},
		byLogin:    byLogin,
		exclusion:  strings.ToLower(strings.TrimSpace(q.ExclusionTerms)),
		syncedAt:   r.now(),
		progress:   progress,
	}

	for _, group := range batch.Build(targets, r.batchSize, factory) {
		if err := run.group(ctx, group, factory); err != nil {
			return run.summary, err
		}
	}

	logging.Ctx(ctx).Info().
		Int("members", run.summary.Members).
		Int("upserted", run.summary.Upserted).
		Int("deleted", run.summary.Deleted).
		Int("failures", len(run.summary.Failures)).
		Msg("correlations reconciled")

	return run.summary, nil
}

type correlationRun struct {
	reconciler *CorrelationReconciler
	summary    *domain.CorrelationSummary
	byLogin    map[string]domain.Member
	exclusion  string
	syncedAt   time.Time
	progress   executor.ProgressFunc
}

func (run *correlationRun) search(ctx context.Context, g batch.Group) (*github.SearchResults, error) {
	r := run.reconciler
	return executor.Run(ctx, r.exec, run.progress, func(ctx context.Context) (*github.SearchResults, error) {
		return r.searcher.Search(ctx, g)
	})
}

func (run *correlationRun) group(ctx context.Context, g batch.Group, factory batch.QueryFactory) error {
	results, err := run.search(ctx, g)
	if err != nil {
		if abort(ctx, err) {
			return err
		}
		if len(g.Targets) > 1 && !apperr.IsRetryable(err) {
			logging.Ctx(ctx).Warn().
				Err(err).
				Int("targets", len(g.Targets)).
				Msg("batched search failed, retrying members one by one")
			for _, target := range g.Targets {
				if err := run.group(ctx, batch.BuildSingle(target, factory), factory); err != nil {
					return err
				}
			}
			return nil
		}
		for _, target := range g.Targets {
			run.fail(ctx, target, err)
		}
		return nil
	}

	for _, target := range g.Targets {
		if failure, ok := results.Failed[target]; ok {
			run.fail(ctx, target, failure)
			continue
		}
		items, ok := results.Items[target]
		if !ok {
			run.fail(ctx, target, apperr.New(apperr.KindUnexpected, "search issues", errors.New("no result for member")))
			continue
		}
		if err := run.apply(ctx, run.byLogin[target], items); err != nil {
			if abort(ctx, err) {
				return err
			}
			run.fail(ctx, target, err)
		}
	}
	return nil
}

func (run *correlationRun) apply(ctx context.Context, m domain.Member, found []domain.CorrelationItem) error {
	items := make([]domain.CorrelationItem, 0, len(found))
	seen := make(map[int]struct{}, len(found))
	for _, item := range found {
		if run.exclusion != "" && strings.Contains(strings.ToLower(item.Title), run.exclusion) {
			continue
		}
		if _, dup := seen[item.Number]; dup {
			continue
		}
		seen[item.Number] = struct{}{}

		item.MemberID = m.ID
		if run.reconciler.extractor != nil {
			if expiresAt, ok := run.reconciler.extractor.Extract(item.Title + "\n" + item.Description); ok {
				item.ExpiresAt = &expiresAt
			}
		}
		item.Description = domain.TruncateDescription(item.Description)
		if !item.Status.IsValid() {
			item.Status = domain.StatusOpen
		}
		items = append(items, item)
	}

	result, err := run.reconciler.store.ReplaceCorrelations(ctx, m.ID, items, run.syncedAt)
	if err != nil {
		return fmt.Errorf("failed to replace correlations of %s: %w", m.Login, err)
	}

	run.summary.Members++
	run.summary.Upserted += result.Inserted + result.Updated
	run.summary.Deleted += result.Deleted
	metrics.AddRecords(correlationsOperation, "upserted", result.Inserted+result.Updated)
	metrics.AddRecords(correlationsOperation, "deleted", result.Deleted)
	return nil
}

func (run *correlationRun) fail(ctx context.Context, login string, err error) {
	kind := apperr.KindOf(err)
	logging.Ctx(ctx).Warn().
		Err(err).
		Str("login", login).
		Str("kind", kind.String()).
		Msg("failed to sync member correlations")
	metrics.SyncErrors.WithLabelValues(correlationsOperation+"_member", kind.String()).Inc()

	run.summary.Failures = append(run.summary.Failures, domain.MemberFailure{
		Login: login,
		Kind:  kind.String(),
		Error: err.Error(),
	})
}

// abort reports whether err must stop the whole run rather than one member.
func abort(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return apperr.Is(err, apperr.KindConfiguration)
}
