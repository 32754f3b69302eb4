package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mishasvintus/access_mirror/internal/apperr"
	"github.com/mishasvintus/access_mirror/internal/batch"
	"github.com/mishasvintus/access_mirror/internal/domain"
)

var testQuery = Query{Repository: "acme/access", SearchTerms: "access request"}

func item(number int, title string) domain.CorrelationItem {
	return domain.CorrelationItem{
		Number: number,
		Title:  title,
		URL:    fmt.Sprintf("https://github.com/acme/access/issues/%d", number),
		Status: domain.StatusOpen,
	}
}

func numbers(items []domain.CorrelationItem) []int {
	out := make([]int, 0, len(items))
	for _, it := range items {
		out = append(out, it.Number)
	}
	return out
}

func reconcileCorrelations(t *testing.T, st *memStore, remote *fakeRemote, members []domain.Member, q Query) (*domain.CorrelationSummary, error) {
	t.Helper()
	r := NewCorrelationReconciler(remote, st, newTestExecutor(3), 5)
	return r.ReconcileAll(context.Background(), members, q, nil)
}

func TestCorrelationReconciler_FullReplace(t *testing.T) {
	st := newMemStore()
	members := st.seed("acme", "alice")
	alice := members[0]

	_, err := st.ReplaceCorrelations(context.Background(), alice.ID,
		[]domain.CorrelationItem{item(101, "old"), item(102, "kept")}, time.Now())
	require.NoError(t, err)

	remote := &fakeRemote{items: map[string][]domain.CorrelationItem{
		"alice": {item(102, "kept, edited"), item(103, "new")},
	}}

	summary, err := reconcileCorrelations(t, st, remote, members, testQuery)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Members)
	assert.Equal(t, 2, summary.Upserted)
	assert.Equal(t, 1, summary.Deleted)
	assert.Empty(t, summary.Failures)

	stored, err := st.ListCorrelations(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{102, 103}, numbers(stored))
	assert.Equal(t, "kept, edited", stored[0].Title)
	assert.Equal(t, alice.ID, stored[0].MemberID)
}

func TestCorrelationReconciler_EmptyResultClearsMember(t *testing.T) {
	st := newMemStore()
	members := st.seed("acme", "alice")
	_, err := st.ReplaceCorrelations(context.Background(), members[0].ID, []domain.CorrelationItem{item(1, "x")}, time.Now())
	require.NoError(t, err)

	summary, err := reconcileCorrelations(t, st, &fakeRemote{}, members, testQuery)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Deleted)

	stored, err := st.ListCorrelations(context.Background(), members[0].ID)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestCorrelationReconciler_ExclusionFilter(t *testing.T) {
	st := newMemStore()
	members := st.seed("acme", "alice")
	remote := &fakeRemote{items: map[string][]domain.CorrelationItem{
		"alice": {item(1, "Grant prod access"), item(2, "[DRAFT] grant staging"), item(3, "revoke draft rights")},
	}}

	q := testQuery
	q.ExclusionTerms = "Draft"
	_, err := reconcileCorrelations(t, st, remote, members, q)
	require.NoError(t, err)

	stored, err := st.ListCorrelations(context.Background(), members[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, numbers(stored))

	require.Len(t, remote.searches, 1)
	for _, v := range remote.searches[0].Variables {
		assert.Contains(t, v, `NOT "Draft"`)
	}
}

func TestCorrelationReconciler_ExclusionFilterUsesRawTerm(t *testing.T) {
	tests := []struct {
		name      string
		exclusion string
		title     string
		wantKept  int
	}{
		{name: "apostrophe", exclusion: "won't fix", title: "Won't fix: access for alice", wantKept: 0},
		{name: "symbols", exclusion: "c++", title: "Access request for alice", wantKept: 1},
		{name: "symbols match", exclusion: "c++", title: "C++ toolchain access for alice", wantKept: 0},
		{name: "surrounding space", exclusion: "  Draft ", title: "draft: alice", wantKept: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newMemStore()
			members := st.seed("acme", "alice")
			remote := &fakeRemote{items: map[string][]domain.CorrelationItem{
				"alice": {item(1, tt.title)},
			}}

			q := testQuery
			q.ExclusionTerms = tt.exclusion
			_, err := reconcileCorrelations(t, st, remote, members, q)
			require.NoError(t, err)

			stored, err := st.ListCorrelations(context.Background(), members[0].ID)
			require.NoError(t, err)
			assert.Len(t, stored, tt.wantKept)
		})
	}
}

func TestCorrelationReconciler_NormalizesItems(t *testing.T) {
	st := newMemStore()
	members := st.seed("acme", "alice")

	long := item(7, "long")
	long.Description = strings.Repeat("é", domain.MaxDescriptionLength+50)
	long.Status = ""
	remote := &fakeRemote{items: map[string][]domain.CorrelationItem{
		"alice": {long, item(7, "duplicate"), item(8, "other")},
	}}

	summary, err := reconcileCorrelations(t, st, remote, members, testQuery)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Upserted)

	stored, err := st.ListCorrelations(context.Background(), members[0].ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "long", stored[0].Title)
	assert.Equal(t, domain.StatusOpen, stored[0].Status)
	assert.Equal(t, domain.MaxDescriptionLength, len([]rune(stored[0].Description)))
}

func TestCorrelationReconciler_BatchesMembers(t *testing.T) {
	st := newMemStore()
	members := st.seed("acme", "m1", "m2", "m3", "m4", "m5", "m6", "m7")
	remote := &fakeRemote{}

	summary, err := reconcileCorrelations(t, st, remote, members, testQuery)
	require.NoError(t, err)
	assert.Equal(t, 7, summary.Members)
	require.Len(t, remote.searches, 2)
	assert.Len(t, remote.searches[0].Targets, 5)
	assert.Len(t, remote.searches[1].Targets, 2)
}

func TestCorrelationReconciler_FallsBackToSingleQueries(t *testing.T) {
	st := newMemStore()
	members := st.seed("acme", "alice", "bob", "carol")
	remote := &fakeRemote{
		items: map[string][]domain.CorrelationItem{
			"alice": {item(1, "a")},
			"bob":   {item(2, "b")},
		},
		searchErr: func(g batch.Group) error {
			if len(g.Targets) > 1 {
				return apperr.New(apperr.KindUnexpected, "search issues", errors.New("query too complex"))
			}
			if g.Targets[0] == "carol" {
				return apperr.New(apperr.KindUnexpected, "search issues", errors.New("bad login"))
			}
			return nil
		},
	}

	summary, err := reconcileCorrelations(t, st, remote, members, testQuery)
	require.NoError(t, err)

	assert.Len(t, remote.searches, 4)
	assert.Equal(t, 2, summary.Members)
	assert.Equal(t, 2, summary.Upserted)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "carol", summary.Failures[0].Login)
	assert.Equal(t, "unexpected", summary.Failures[0].Kind)
	assert.Contains(t, summary.Failures[0].Error, "bad login")
}

func TestCorrelationReconciler_RetryableExhaustionFailsGroupWithoutFallback(t *testing.T) {
	st := newMemStore()
	members := st.seed("acme", "alice", "bob")
	_, err := st.ReplaceCorrelations(context.Background(), members[0].ID, []domain.CorrelationItem{item(1, "keep")}, time.Now())
	require.NoError(t, err)

	remote := &fakeRemote{searchErr: func(batch.Group) error {
		return apperr.New(apperr.KindServerError, "search issues", errors.New("502"))
	}}

	summary, err := reconcileCorrelations(t, st, remote, members, testQuery)
	require.NoError(t, err)
	assert.Len(t, remote.searches, 3)
	assert.Equal(t, 0, summary.Members)
	require.Len(t, summary.Failures, 2)
	assert.Equal(t, "server_error", summary.Failures[0].Kind)

	stored, err := st.ListCorrelations(context.Background(), members[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, numbers(stored))
}

func TestCorrelationReconciler_PerTargetFailureKeepsStoredItems(t *testing.T) {
	st := newMemStore()
	members := st.seed("acme", "alice", "bob")
	_, err := st.ReplaceCorrelations(context.Background(), members[1].ID, []domain.CorrelationItem{item(9, "keep")}, time.Now())
	require.NoError(t, err)

	remote := &fakeRemote{
		items:       map[string][]domain.CorrelationItem{"alice": {item(1, "a")}},
		failTargets: map[string]error{"bob": apperr.New(apperr.KindUnexpected, "search issues", errors.New("blocked"))},
	}

	summary, err := reconcileCorrelations(t, st, remote, members, testQuery)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Members)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "bob", summary.Failures[0].Login)

	stored, err := st.ListCorrelations(context.Background(), members[1].ID)
	require.NoError(t, err)
	assert.Equal(t, []int{9}, numbers(stored))
}

func TestCorrelationReconciler_StoreFailureIsPerMember(t *testing.T) {
	st := newMemStore()
	members := st.seed("acme", "alice", "bob")
	st.failFor[members[0].ID] = errors.New("deadlock detected")

	remote := &fakeRemote{items: map[string][]domain.CorrelationItem{
		"alice": {item(1, "a")},
		"bob":   {item(2, "b")},
	}}

	summary, err := reconcileCorrelations(t, st, remote, members, testQuery)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Members)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "alice", summary.Failures[0].Login)
	assert.Contains(t, summary.Failures[0].Error, "deadlock detected")
}

func TestCorrelationReconciler_ConfigurationErrorAborts(t *testing.T) {
	st := newMemStore()
	members := st.seed("acme", "m1", "m2", "m3", "m4", "m5", "m6")
	remote := &fakeRemote{searchErr: func(batch.Group) error {
		return apperr.New(apperr.KindConfiguration, "search issues", errors.New("bad credentials"))
	}}

	_, err := reconcileCorrelations(t, st, remote, members, testQuery)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConfiguration))
	assert.Len(t, remote.searches, 1)
	assert.Equal(t, 0, st.replaced)
}

func TestCorrelationReconciler_CancelledContextAborts(t *testing.T) {
	st := newMemStore()
	members := st.seed("acme", "alice")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewCorrelationReconciler(&fakeRemote{}, st, newTestExecutor(3), 5)
	_, err := r.ReconcileAll(ctx, members, testQuery, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, st.replaced)
}

func TestCorrelationReconciler_InvalidRepository(t *testing.T) {
	st := newMemStore()
	members := st.seed("acme", "alice")
	remote := &fakeRemote{}

	for _, repo := range []string{"", "acme", "acme/access/extra", "../etc"} {
		t.Run(repo, func(t *testing.T) {
			_, err := reconcileCorrelations(t, st, remote, members, Query{Repository: repo})
			require.Error(t, err)
			assert.ErrorIs(t, err, batch.ErrInvalidRepository)
			assert.True(t, apperr.Is(err, apperr.KindConfiguration))
		})
	}
	assert.Empty(t, remote.searches)
}

func TestCorrelationReconciler_DuplicateMembersSearchedOnce(t *testing.T) {
	st := newMemStore()
	members := st.seed("acme", "alice")
	members = append(members, members[0])
	remote := &fakeRemote{}

	summary, err := reconcileCorrelations(t, st, remote, members, testQuery)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Members)
	require.Len(t, remote.searches, 1)
	assert.Equal(t, []string{"alice"}, remote.searches[0].Targets)
}

type untilExtractor struct {
	at time.Time
}

func (e untilExtractor) Extract(text string) (time.Time, bool) {
	if strings.Contains(text, "until") {
		return e.at, true
	}
	return time.Time{}, false
}

func TestCorrelationReconciler_StampsExpiration(t *testing.T) {
	st := newMemStore()
	members := st.seed("acme", "alice")
	expires := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)

	withDate := item(1, "prod access")
	withDate.Description = strings.Repeat("x", domain.MaxDescriptionLength) + " needed until end of year"
	remote := &fakeRemote{items: map[string][]domain.CorrelationItem{
		"alice": {withDate, item(2, "no date")},
	}}

	r := NewCorrelationReconciler(remote, st, newTestExecutor(3), 5).
		WithExpirationExtractor(untilExtractor{at: expires})
	_, err := r.ReconcileAll(context.Background(), members, testQuery, nil)
	require.NoError(t, err)

	stored, err := st.ListCorrelations(context.Background(), members[0].ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	require.NotNil(t, stored[0].ExpiresAt)
	assert.True(t, expires.Equal(*stored[0].ExpiresAt))
	assert.Equal(t, domain.MaxDescriptionLength, len([]rune(stored[0].Description)))
	assert.NotContains(t, stored[0].Description, "until")
	assert.Nil(t, stored[1].ExpiresAt)
}
