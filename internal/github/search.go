package github

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/mishasvintus/access_mirror/internal/apperr"
	"github.com/mishasvintus/access_mirror/internal/batch"
	"github.com/mishasvintus/access_mirror/internal/domain"
)

// ErrTruncatedResults is returned for a target whose search matched more
// issues than one page holds. Its stored items must be left as they are.
var ErrTruncatedResults = errors.New("search matched more issues than one page returns")

type searchResult struct {
	IssueCount int          `json:"issueCount"`
	Nodes      []*issueNode `json:"nodes"`
}

type issueNode struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	BodyText  string    `json:"bodyText"`
	URL       string    `json:"url"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Author    *struct {
		Login string `json:"login"`
	} `json:"author"`
}

// SearchResults maps a target to the items found for it. Targets whose
// sub-query failed are absent from Items and present in Failed.
type SearchResults struct {
	Items  map[string][]domain.CorrelationItem
	Failed map[string]error
}

// Search runs a composite search and routes each aliased result back to its
// target. Items carry no MemberID.
func (c *Client) Search(ctx context.Context, g batch.Group) (*SearchResults, error) {
	const op = "search issues"

	resp, err := c.Execute(ctx, g.Query, g.Variables)
	if err != nil {
		return nil, err
	}

	results := &SearchResults{
		Items:  make(map[string][]domain.CorrelationItem, len(g.ResultKeys)),
		Failed: make(map[string]error),
	}
	for key, target := range g.ResultKeys {
		raw, ok := resp.Data[key]
		if !ok || isNull(raw) {
			msg := "missing result"
			if gqlErr, found := fieldError(resp.Errors, key); found {
				msg = gqlErr.Message
			}
			results.Failed[target] = apperr.New(apperr.KindUnexpected, op, fmt.Errorf("%s: %s", key, msg))
			continue
		}

		var sr searchResult
		if err := json.Unmarshal(raw, &sr); err != nil {
			results.Failed[target] = apperr.New(apperr.KindUnexpected, op, fmt.Errorf("failed to decode %s: %w", key, err))
			continue
		}
		if sr.IssueCount > len(sr.Nodes) {
			results.Failed[target] = apperr.New(apperr.KindUnexpected, op,
				fmt.Errorf("%w: %s: %d of %d", ErrTruncatedResults, key, len(sr.Nodes), sr.IssueCount))
			continue
		}
		results.Items[target] = toItems(sr.Nodes)
	}
	return results, nil
}

// toItems keeps the full body; it is truncated once expiration is extracted.
func toItems(nodes []*issueNode) []domain.CorrelationItem {
	items := make([]domain.CorrelationItem, 0, len(nodes))
	for _, n := range nodes {
		// non-issue search hits decode as empty objects
		if n == nil || n.Number == 0 {
			continue
		}
		item := domain.CorrelationItem{
			Number:      n.Number,
			URL:         n.URL,
			Title:       n.Title,
			Description: n.BodyText,
			Status:      domain.MapStatus(n.State),
		}
		if n.Author != nil {
			item.Author = n.Author.Login
		}
		if !n.CreatedAt.IsZero() {
			created := n.CreatedAt
			item.ExternalCreatedAt = &created
		}
		if !n.UpdatedAt.IsZero() {
			updated := n.UpdatedAt
			item.ExternalUpdatedAt = &updated
		}
		items = append(items, item)
	}
	return items
}
