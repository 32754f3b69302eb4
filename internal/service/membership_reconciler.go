package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mishasvintus/access_mirror/internal/apperr"
	"github.com/mishasvintus/access_mirror/internal/domain"
	"github.com/mishasvintus/access_mirror/internal/executor"
	"github.com/mishasvintus/access_mirror/internal/github"
	"github.com/mishasvintus/access_mirror/internal/logging"
)

// MembershipOutcome is the result of one membership reconciliation.
type MembershipOutcome struct {
	Summary    domain.SyncSummary
	NewMembers []domain.Member
}

// MembershipReconciler mirrors remote group membership into the store.
type MembershipReconciler struct {
	source MemberSource
	store  MemberStore
	exec   *executor.Executor
	now    func() time.Time
}

// NewMembershipReconciler creates a new membership reconciler.
func NewMembershipReconciler(source MemberSource, store MemberStore, exec *executor.Executor) *MembershipReconciler {
	return &MembershipReconciler{
		source: source,
		store:  store,
		exec:   exec,
		now:    time.Now,
	}
}

// Reconcile fetches the full membership of groupID and applies it: every
// remote member is upserted and every stored member absent remotely is
// deactivated. An empty remote list for a group with stored members is
// refused with a data-loss error and nothing is written.
func (r *MembershipReconciler) Reconcile(ctx context.Context, groupID string, progress executor.ProgressFunc) (*MembershipOutcome, error) {
	log := logging.Ctx(ctx)

	remote, err := r.fetchAll(ctx, groupID, progress)
	if err != nil {
		return nil, err
	}
	remote = dedupeMembers(remote)

	if len(remote) == 0 {
		local, err := r.store.CountMembers(ctx, groupID)
		if err != nil {
			return nil, fmt.Errorf("failed to count members: %w", err)
		}
		if local > 0 {
			log.Error().
				Str("group", groupID).
				Int("local_members", local).
				Msg("remote returned no members, refusing to deactivate the whole group")
			return nil, apperr.New(apperr.KindDataLoss, "reconcile membership", ErrEmptyRemoteMembership)
		}
		return &MembershipOutcome{}, nil
	}

	result, err := r.store.ApplyMembership(ctx, groupID, remote, r.now())
	if err != nil {
		return nil, fmt.Errorf("failed to apply membership: %w", err)
	}

	outcome := &MembershipOutcome{
		Summary: domain.SyncSummary{
			Total:        len(remote),
			NewCount:     result.Inserted,
			UpdatedCount: len(remote) - result.Inserted,
			Deactivated:  result.Deactivated,
		},
	}
	if len(result.NewLogins) > 0 {
		isNew := make(map[string]bool, len(result.NewLogins))
		for _, login := range result.NewLogins {
			isNew[login] = true
		}
		for _, m := range remote {
			if isNew[m.Login] {
				outcome.NewMembers = append(outcome.NewMembers, m)
			}
		}
	}

	log.Info().
		Str("group", groupID).
		Int("total", outcome.Summary.Total).
		Int("new", outcome.Summary.NewCount).
		Int("updated", outcome.Summary.UpdatedCount).
		Int("deactivated", outcome.Summary.Deactivated).
		Msg("membership reconciled")

	return outcome, nil
}

// fetchAll pages through the remote membership. A group unknown to the remote
// yields an empty list.
func (r *MembershipReconciler) fetchAll(ctx context.Context, groupID string, progress executor.ProgressFunc) ([]domain.Member, error) {
	var (
		members []domain.Member
		cursor  string
	)
	for page := 1; ; page++ {
		result, err := executor.Run(ctx, r.exec, progress, func(ctx context.Context) (*github.MemberPage, error) {
			return r.source.ListMembersPage(ctx, groupID, cursor)
		})
		if err != nil {
			if page == 1 && apperr.Is(err, apperr.KindNotFound) {
				logging.Ctx(ctx).Warn().Str("group", groupID).Msg("group not found remotely")
				return nil, nil
			}
			return nil, err
		}

		members = append(members, result.Members...)
		if !result.HasNextPage {
			return members, nil
		}
		cursor = result.EndCursor
	}
}

// dedupeMembers keeps the first occurrence of every login, compared
// case-insensitively.
func dedupeMembers(members []domain.Member) []domain.Member {
	seen := make(map[string]struct{}, len(members))
	out := make([]domain.Member, 0, len(members))
	for _, m := range members {
		key := strings.ToLower(m.Login)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, m)
	}
	return out
}
