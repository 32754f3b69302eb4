package github

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mishasvintus/access_mirror/internal/apperr"
	"github.com/mishasvintus/access_mirror/internal/ratelimit"
)

// StatusError is an unsuccessful HTTP response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("remote returned status %d: %s", e.StatusCode, e.Message)
}

// classifyStatus tags a non-2xx response.
func classifyStatus(op string, status int, header http.Header, body []byte, now time.Time) error {
	statusErr := &StatusError{StatusCode: status, Message: truncate(strings.TrimSpace(string(body)), 200)}

	switch {
	case status == http.StatusUnauthorized:
		return apperr.New(apperr.KindConfiguration, op, statusErr)
	case status == http.StatusNotFound:
		return apperr.New(apperr.KindNotFound, op, statusErr)
	case status == http.StatusTooManyRequests, status == http.StatusForbidden && isRateLimited(header, body):
		return apperr.RateLimited(op, resetHint(header, now), statusErr)
	case status == http.StatusForbidden:
		return apperr.New(apperr.KindConfiguration, op, statusErr)
	case status >= 500:
		return apperr.New(apperr.KindServerError, op, statusErr)
	default:
		return apperr.New(apperr.KindUnexpected, op, statusErr)
	}
}

func isRateLimited(header http.Header, body []byte) bool {
	if header.Get("X-RateLimit-Remaining") == "0" {
		return true
	}
	if header.Get("Retry-After") != "" {
		return true
	}
	return strings.Contains(strings.ToLower(string(body)), "rate limit")
}

// resetHint reads the reset time from X-RateLimit-Reset (unix seconds) or
// Retry-After (seconds). Zero when neither is present.
func resetHint(header http.Header, now time.Time) time.Time {
	if reset := header.Get("X-RateLimit-Reset"); reset != "" {
		if secs, err := strconv.ParseInt(reset, 10, 64); err == nil && secs > 0 {
			return time.Unix(secs, 0)
		}
	}
	if after := header.Get("Retry-After"); after != "" {
		if secs, err := strconv.Atoi(strings.TrimSpace(after)); err == nil && secs >= 0 {
			return now.Add(time.Duration(secs) * time.Second)
		}
	}
	return time.Time{}
}

func quotaFromHeaders(header http.Header) (ratelimit.Quota, bool) {
	limit, err := strconv.Atoi(header.Get("X-RateLimit-Limit"))
	if err != nil || limit <= 0 {
		return ratelimit.Quota{}, false
	}
	remaining, err := strconv.Atoi(header.Get("X-RateLimit-Remaining"))
	if err != nil {
		return ratelimit.Quota{}, false
	}
	q := ratelimit.Quota{Remaining: remaining, Limit: limit}
	if secs, err := strconv.ParseInt(header.Get("X-RateLimit-Reset"), 10, 64); err == nil && secs > 0 {
		q.ResetAt = time.Unix(secs, 0)
	}
	return q, true
}

// classifyGraphQLErrors tags GraphQL-level errors. Partial errors next to data
// only fail the call when they signal rate limiting; the caller inspects the
// remaining ones per field.
func classifyGraphQLErrors(op string, errs []GraphQLError, noData bool) error {
	first := errs[0]
	for _, e := range errs {
		if e.Type == "RATE_LIMITED" {
			return apperr.RateLimited(op, time.Time{}, fmt.Errorf("graphql: %s", e.Message))
		}
	}
	if !noData {
		return nil
	}

	err := fmt.Errorf("graphql: %s", first.Message)
	switch first.Type {
	case "NOT_FOUND":
		return apperr.New(apperr.KindNotFound, op, err)
	case "FORBIDDEN", "INSUFFICIENT_SCOPES":
		return apperr.New(apperr.KindConfiguration, op, err)
	case "SERVICE_UNAVAILABLE", "INTERNAL":
		return apperr.New(apperr.KindServerError, op, err)
	default:
		return apperr.New(apperr.KindUnexpected, op, err)
	}
}

// fieldError returns the first error whose path starts at field.
func fieldError(errs []GraphQLError, field string) (GraphQLError, bool) {
	for _, e := range errs {
		if len(e.Path) > 0 {
			if p, ok := e.Path[0].(string); ok && p == field {
				return e, true
			}
		}
	}
	return GraphQLError{}, false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
