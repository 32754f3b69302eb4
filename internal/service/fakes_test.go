package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mishasvintus/access_mirror/internal/batch"
	"github.com/mishasvintus/access_mirror/internal/domain"
	"github.com/mishasvintus/access_mirror/internal/executor"
	"github.com/mishasvintus/access_mirror/internal/github"
	"github.com/mishasvintus/access_mirror/internal/ratelimit"
	"github.com/mishasvintus/access_mirror/internal/repository/stats"
	"github.com/mishasvintus/access_mirror/internal/repository/store"
)

// memStore is an in-memory Store with the same upsert and replace semantics
// as the PostgreSQL store.
type memStore struct {
	mu        sync.Mutex
	nextID    int64
	members   map[string]map[string]*domain.Member // group -> login -> member
	items     map[int64]map[int]domain.CorrelationItem
	applied   int
	replaced  int
	failApply error
	failFor   map[int64]error
}

func newMemStore() *memStore {
	return &memStore{
		members: make(map[string]map[string]*domain.Member),
		items:   make(map[int64]map[int]domain.CorrelationItem),
		failFor: make(map[int64]error),
	}
}

func (s *memStore) seed(groupID string, logins ...string) []domain.Member {
	group := s.members[groupID]
	if group == nil {
		group = make(map[string]*domain.Member)
		s.members[groupID] = group
	}
	out := make([]domain.Member, 0, len(logins))
	for _, l := range logins {
		s.nextID++
		m := &domain.Member{ID: s.nextID, GroupID: groupID, Login: l, IsActive: true}
		group[l] = m
		out = append(out, *m)
	}
	return out
}

func (s *memStore) CountMembers(_ context.Context, groupID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.members[groupID]), nil
}

func (s *memStore) ListMembers(_ context.Context, groupID string) ([]domain.Member, error) {
	return s.list(groupID, false), nil
}

func (s *memStore) ListActiveMembers(_ context.Context, groupID string) ([]domain.Member, error) {
	return s.list(groupID, true), nil
}

func (s *memStore) list(groupID string, activeOnly bool) []domain.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Member, 0)
	for _, m := range s.members[groupID] {
		if activeOnly && !m.IsActive {
			continue
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Login < out[j].Login })
	return out
}

func (s *memStore) GetMember(_ context.Context, id int64) (*domain.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, group := range s.members {
		for _, m := range group {
			if m.ID == id {
				cp := *m
				return &cp, nil
			}
		}
	}
	return nil, sql.ErrNoRows
}

func (s *memStore) ApplyMembership(_ context.Context, groupID string, members []domain.Member, syncedAt time.Time) (*store.MembershipResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failApply != nil {
		return nil, s.failApply
	}
	s.applied++

	group := s.members[groupID]
	if group == nil {
		group = make(map[string]*domain.Member)
		s.members[groupID] = group
	}

	result := &store.MembershipResult{}
	present := make(map[string]bool, len(members))
	for _, m := range members {
		present[m.Login] = true
		ts := syncedAt
		existing, ok := group[m.Login]
		if !ok {
			s.nextID++
			created := m
			created.ID = s.nextID
			created.GroupID = groupID
			created.IsActive = true
			created.FirstSeenAt = &ts
			created.LastSyncedAt = &ts
			group[m.Login] = &created
			result.Inserted++
			result.NewLogins = append(result.NewLogins, m.Login)
			continue
		}
		existing.DisplayName = m.DisplayName
		existing.AvatarURL = m.AvatarURL
		existing.IsMaintainer = m.IsMaintainer
		existing.IsActive = true
		existing.LastSyncedAt = &ts
		result.Updated++
	}
	for login, m := range group {
		if !present[login] && m.IsActive {
			m.IsActive = false
			result.Deactivated++
		}
	}
	return result, nil
}

func (s *memStore) ListCorrelations(_ context.Context, memberID int64) ([]domain.CorrelationItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.CorrelationItem, 0)
	for _, item := range s.items[memberID] {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (s *memStore) ReplaceCorrelations(_ context.Context, memberID int64, items []domain.CorrelationItem, syncedAt time.Time) (*store.ReplaceResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failFor[memberID]; err != nil {
		return nil, err
	}
	s.replaced++

	current := s.items[memberID]
	next := make(map[int]domain.CorrelationItem, len(items))
	result := &store.ReplaceResult{}
	for _, item := range items {
		ts := syncedAt
		if old, ok := current[item.Number]; ok {
			item.CreatedAt = old.CreatedAt
			result.Updated++
		} else {
			item.CreatedAt = &ts
			result.Inserted++
		}
		item.UpdatedAt = &ts
		next[item.Number] = item
	}
	for number := range current {
		if _, ok := next[number]; !ok {
			result.Deleted++
		}
	}
	s.items[memberID] = next
	return result, nil
}

func (s *memStore) GroupStats(_ context.Context, groupID string) (*stats.GroupStats, []stats.MemberStat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	overall := &stats.GroupStats{}
	for _, m := range s.members[groupID] {
		if m.IsActive {
			overall.ActiveMembers++
		} else {
			overall.InactiveMembers++
		}
	}
	return overall, []stats.MemberStat{}, nil
}

// fakeRemote serves scripted member pages and search results.
type fakeRemote struct {
	mu sync.Mutex

	pages     []*github.MemberPage
	pageErrs  []error
	pageCalls int

	// items per login; logins missing here get an empty result
	items       map[string][]domain.CorrelationItem
	searchErr   func(g batch.Group) error
	failTargets map[string]error
	searches    []batch.Group
}

func (f *fakeRemote) ListMembersPage(_ context.Context, _ string, cursor string) (*github.MemberPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.pageCalls
	f.pageCalls++
	if i < len(f.pageErrs) && f.pageErrs[i] != nil {
		return nil, f.pageErrs[i]
	}
	if len(f.pages) == 0 {
		return &github.MemberPage{}, nil
	}
	if cursor == "" {
		return f.pages[0], nil
	}
	for j := 1; j < len(f.pages); j++ {
		if f.pages[j-1].EndCursor == cursor {
			return f.pages[j], nil
		}
	}
	return &github.MemberPage{}, nil
}

func (f *fakeRemote) Search(_ context.Context, g batch.Group) (*github.SearchResults, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, g)
	if f.searchErr != nil {
		if err := f.searchErr(g); err != nil {
			return nil, err
		}
	}
	res := &github.SearchResults{
		Items:  make(map[string][]domain.CorrelationItem),
		Failed: make(map[string]error),
	}
	for _, target := range g.ResultKeys {
		if err, ok := f.failTargets[target]; ok {
			res.Failed[target] = err
			continue
		}
		res.Items[target] = append([]domain.CorrelationItem(nil), f.items[target]...)
	}
	return res, nil
}

func (f *fakeRemote) RateLimit(context.Context) (ratelimit.Quota, error) {
	return ratelimit.Quota{}, errors.New("no quota in tests")
}

func noSleep(context.Context, time.Duration, executor.ProgressFunc) error { return nil }

func newTestExecutor(maxRetries int) *executor.Executor {
	return executor.New(ratelimit.New(ratelimit.Options{}), executor.Options{MaxRetries: maxRetries, Sleep: noSleep})
}

func page(cursor string, next bool, logins ...string) *github.MemberPage {
	p := &github.MemberPage{EndCursor: cursor, HasNextPage: next}
	for _, l := range logins {
		p.Members = append(p.Members, domain.Member{Login: l, DisplayName: strings.ToUpper(l), IsActive: true})
	}
	return p
}
