package github

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/mishasvintus/access_mirror/internal/apperr"
	"github.com/mishasvintus/access_mirror/internal/domain"
)

// MembersPageSize is the page size of membership listing.
const MembersPageSize = 100

const membersQuery = `query($login: String!, $first: Int!, $after: String) {
  organization(login: $login) {
    membersWithRole(first: $first, after: $after) {
      pageInfo { hasNextPage endCursor }
      edges { role node { login name avatarUrl } }
    }
  }
  rateLimit { remaining resetAt limit cost }
}`

// MemberPage is one page of group membership.
type MemberPage struct {
	Members     []domain.Member
	EndCursor   string
	HasNextPage bool
}

type organizationData struct {
	MembersWithRole struct {
		PageInfo struct {
			HasNextPage bool   `json:"hasNextPage"`
			EndCursor   string `json:"endCursor"`
		} `json:"pageInfo"`
		Edges []struct {
			Role string `json:"role"`
			Node struct {
				Login     string `json:"login"`
				Name      string `json:"name"`
				AvatarURL string `json:"avatarUrl"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"membersWithRole"`
}

// ListMembersPage fetches one page of members of group, starting after cursor.
// A group that does not exist fails with apperr.KindNotFound.
func (c *Client) ListMembersPage(ctx context.Context, group, cursor string) (*MemberPage, error) {
	const op = "list members"

	vars := map[string]any{
		"login": group,
		"first": MembersPageSize,
	}
	if cursor != "" {
		vars["after"] = cursor
	}

	resp, err := c.Execute(ctx, membersQuery, vars)
	if err != nil {
		return nil, err
	}

	raw, ok := resp.Data["organization"]
	if !ok || isNull(raw) {
		if gqlErr, found := fieldError(resp.Errors, "organization"); found && gqlErr.Type != "NOT_FOUND" {
			return nil, apperr.New(apperr.KindUnexpected, op, fmt.Errorf("graphql: %s", gqlErr.Message))
		}
		return nil, apperr.New(apperr.KindNotFound, op, fmt.Errorf("group %q not found", group))
	}

	var org organizationData
	if err := json.Unmarshal(raw, &org); err != nil {
		return nil, apperr.New(apperr.KindUnexpected, op, fmt.Errorf("failed to decode members: %w", err))
	}

	page := &MemberPage{
		Members:     make([]domain.Member, 0, len(org.MembersWithRole.Edges)),
		EndCursor:   org.MembersWithRole.PageInfo.EndCursor,
		HasNextPage: org.MembersWithRole.PageInfo.HasNextPage,
	}
	for _, edge := range org.MembersWithRole.Edges {
		if edge.Node.Login == "" {
			continue
		}
		page.Members = append(page.Members, domain.Member{
			GroupID:      group,
			Login:        edge.Node.Login,
			DisplayName:  edge.Node.Name,
			AvatarURL:    edge.Node.AvatarURL,
			IsMaintainer: strings.EqualFold(edge.Role, "ADMIN"),
			IsActive:     true,
		})
	}

	if page.HasNextPage && page.EndCursor == "" {
		return nil, apperr.New(apperr.KindUnexpected, op, errors.New("next page without cursor"))
	}
	return page, nil
}

func isNull(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}
