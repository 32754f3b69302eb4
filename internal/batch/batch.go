// Package batch packs per-target remote searches into composite GraphQL
// documents. It performs no I/O.
package batch

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// DefaultGroupLimit is the number of targets per group when none is given.
const DefaultGroupLimit = 5

// Group is one composite query over a contiguous run of targets.
type Group struct {
	// Targets in input order.
	Targets []string

	// Query is the GraphQL document.
	Query string

	// Variables maps a parameter name (q0, q1, ...) to its search string.
	Variables map[string]any

	// ResultKeys maps a response key (search0, search1, ...) to its target.
	ResultKeys map[string]string
}

// QueryFactory renders the per-target search string and the composite
// document around a set of aliased sub-queries.
type QueryFactory interface {
	SearchString(target string) string
	Document(keys []Key) string
}

// Key binds a response alias to the variable holding its search string.
type Key struct {
	Alias    string
	Variable string
}

// Build splits targets into contiguous groups of at most limit entries.
// A non-positive limit falls back to DefaultGroupLimit.
func Build(targets []string, limit int, f QueryFactory) []Group {
	if limit <= 0 {
		limit = DefaultGroupLimit
	}

	groups := make([]Group, 0, (len(targets)+limit-1)/limit)
	for start := 0; start < len(targets); start += limit {
		end := start + limit
		if end > len(targets) {
			end = len(targets)
		}
		groups = append(groups, build(targets[start:end], f))
	}
	return groups
}

// BuildSingle builds a group holding only target.
func BuildSingle(target string, f QueryFactory) Group {
	return build([]string{target}, f)
}

func build(targets []string, f QueryFactory) Group {
	g := Group{
		Targets:    append([]string(nil), targets...),
		Variables:  make(map[string]any, len(targets)),
		ResultKeys: make(map[string]string, len(targets)),
	}

	keys := make([]Key, len(targets))
	for i, target := range targets {
		key := Key{
			Alias:    fmt.Sprintf("search%d", i),
			Variable: fmt.Sprintf("q%d", i),
		}
		keys[i] = key
		g.Variables[key.Variable] = f.SearchString(target)
		g.ResultKeys[key.Alias] = target
	}
	g.Query = f.Document(keys)
	return g
}

// RateLimitFragment is appended to every composite document so each response
// carries fresh quota.
const RateLimitFragment = "rateLimit { remaining resetAt limit cost }"

// IssueSearch renders issue searches in one repository that mention a member
// login together with the configured terms.
type IssueSearch struct {
	Repository     string
	SearchTerms    string
	ExclusionTerms string

	// First is the page size per sub-query.
	First int
}

// NewIssueSearch sanitizes the inputs. It fails when repository is not of the
// form owner/name.
func NewIssueSearch(repository, searchTerms, exclusionTerms string, first int) (*IssueSearch, error) {
	repo, err := SanitizeRepository(repository)
	if err != nil {
		return nil, err
	}
	if first <= 0 {
		first = 100
	}
	return &IssueSearch{
		Repository:     repo,
		SearchTerms:    Sanitize(searchTerms),
		ExclusionTerms: Sanitize(exclusionTerms),
		First:          first,
	}, nil
}

// SearchString implements QueryFactory.
func (s *IssueSearch) SearchString(login string) string {
	login = Sanitize(login)

	var b strings.Builder
	fmt.Fprintf(&b, `repo:%s is:issue "%s" in:body "%s" in:title`, s.Repository, login, login)
	if s.SearchTerms != "" {
		fmt.Fprintf(&b, ` "%s"`, s.SearchTerms)
	}
	if s.ExclusionTerms != "" {
		fmt.Fprintf(&b, ` NOT "%s"`, s.ExclusionTerms)
	}
	return b.String()
}

// Document implements QueryFactory.
func (s *IssueSearch) Document(keys []Key) string {
	var b strings.Builder
	b.WriteString("query(")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "$%s: String!", k.Variable)
	}
	b.WriteString(") {\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "  %s: search(query: $%s, type: ISSUE, first: %d) {\n", k.Alias, k.Variable, s.First)
		b.WriteString("    issueCount\n")
		b.WriteString("    nodes { ... on Issue { number title bodyText url createdAt updatedAt state author { login } } }\n")
		b.WriteString("  }\n")
	}
	fmt.Fprintf(&b, "  %s\n}", RateLimitFragment)
	return b.String()
}

// ErrInvalidRepository is returned for repositories not of the form owner/name.
var ErrInvalidRepository = errors.New("repository must be owner/name")

var repositoryPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*/[A-Za-z0-9._-]+$`)

// SanitizeRepository validates an owner/name repository path.
func SanitizeRepository(repository string) (string, error) {
	repository = strings.TrimSpace(repository)
	if !repositoryPattern.MatchString(repository) {
		return "", ErrInvalidRepository
	}
	return repository, nil
}
