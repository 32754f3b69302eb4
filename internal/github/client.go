// Package github is the GraphQL transport to the remote membership and issue
// service. Every failure it returns is tagged with an apperr.Kind.
package github

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/mishasvintus/access_mirror/internal/apperr"
	"github.com/mishasvintus/access_mirror/internal/ratelimit"
)

// DefaultAPIURL is the public API root.
const DefaultAPIURL = "https://api.github.com"

// ErrMissingToken is returned when no API token is configured.
var ErrMissingToken = errors.New("github token is required")

// QuotaObserver receives quota observations from responses.
type QuotaObserver interface {
	Observe(q ratelimit.Quota)
}

// Options configures a Client. Zero values take defaults.
type Options struct {
	Token  string
	APIURL string

	// RequestInterval spaces consecutive requests. Zero disables pacing.
	RequestInterval time.Duration

	// Timeout bounds a single HTTP round trip.
	Timeout time.Duration

	// Base is the underlying transport, mainly for tests.
	Base http.RoundTripper

	Observer QuotaObserver
	Now      func() time.Time
}

// Client executes GraphQL documents against the remote API.
type Client struct {
	endpoint   string
	httpClient *http.Client
	pacer      *rate.Limiter
	breaker    *breaker
	observer   QuotaObserver
	now        func() time.Time
}

// New creates a Client. It fails with a configuration error when the token is empty.
func New(opts Options) (*Client, error) {
	token := strings.TrimSpace(opts.Token)
	if token == "" {
		return nil, apperr.New(apperr.KindConfiguration, "create github client", ErrMissingToken)
	}

	apiURL := strings.TrimRight(strings.TrimSpace(opts.APIURL), "/")
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	base := opts.Base
	if base == nil {
		base = http.DefaultTransport
	}
	limit := rate.Inf
	if opts.RequestInterval > 0 {
		limit = rate.Every(opts.RequestInterval)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Client{
		endpoint: apiURL + "/graphql",
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &oauth2.Transport{
				Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
				Base:   base,
			},
		},
		pacer:    rate.NewLimiter(limit, 1),
		breaker:  newBreaker("github-graphql"),
		observer: opts.Observer,
		now:      now,
	}, nil
}

// Response is a decoded GraphQL response. Data holds one raw entry per
// top-level field (or alias) of the document.
type Response struct {
	Data   map[string]json.RawMessage
	Errors []GraphQLError
}

// GraphQLError is one entry of the errors array.
type GraphQLError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Path    []any  `json:"path"`
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []GraphQLError             `json:"errors"`
}

type rateLimitBlock struct {
	Remaining int       `json:"remaining"`
	Limit     int       `json:"limit"`
	Cost      int       `json:"cost"`
	ResetAt   time.Time `json:"resetAt"`
}

// Execute posts one GraphQL document. Partial errors are returned in the
// Response alongside the data; a response with errors and no data fails.
func (c *Client) Execute(ctx context.Context, query string, variables map[string]any) (*Response, error) {
	const op = "execute graphql"

	payload, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, apperr.New(apperr.KindUnexpected, op, fmt.Errorf("failed to encode request: %w", err))
	}

	if err := c.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := c.breaker.execute(func() ([]byte, error) {
		return c.roundTrip(ctx, op, payload)
	})
	if err != nil {
		return nil, err
	}

	var decoded graphQLResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, apperr.New(apperr.KindUnexpected, op, fmt.Errorf("failed to decode response: %w", err))
	}

	if raw, ok := decoded.Data["rateLimit"]; ok {
		c.observeBody(raw)
	}

	if len(decoded.Errors) > 0 {
		if err := classifyGraphQLErrors(op, decoded.Errors, len(decoded.Data) == 0); err != nil {
			return nil, err
		}
	}
	if decoded.Data == nil {
		return nil, apperr.New(apperr.KindUnexpected, op, errors.New("response has no data"))
	}

	return &Response{Data: decoded.Data, Errors: decoded.Errors}, nil
}

func (c *Client) roundTrip(ctx context.Context, op string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, apperr.New(apperr.KindUnexpected, op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, apperr.New(apperr.KindServerError, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.New(apperr.KindServerError, op, fmt.Errorf("failed to read response: %w", err))
	}

	quota, hasQuota := quotaFromHeaders(resp.Header)
	if hasQuota {
		c.observe(quota)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, classifyStatus(op, resp.StatusCode, resp.Header, body, c.now())
	}
	return body, nil
}

func (c *Client) observeBody(raw json.RawMessage) {
	var rl rateLimitBlock
	if err := json.Unmarshal(raw, &rl); err != nil || rl.Limit <= 0 {
		return
	}
	c.observe(ratelimit.Quota{
		Remaining: rl.Remaining,
		Limit:     rl.Limit,
		Cost:      rl.Cost,
		ResetAt:   rl.ResetAt,
	})
}

func (c *Client) observe(q ratelimit.Quota) {
	if c.observer != nil {
		c.observer.Observe(q)
	}
}

const rateLimitQuery = `query { rateLimit { remaining resetAt limit cost } }`

// RateLimit fetches the current quota. The rateLimit field costs nothing.
func (c *Client) RateLimit(ctx context.Context) (ratelimit.Quota, error) {
	resp, err := c.Execute(ctx, rateLimitQuery, nil)
	if err != nil {
		return ratelimit.Quota{}, err
	}

	var rl rateLimitBlock
	if err := json.Unmarshal(resp.Data["rateLimit"], &rl); err != nil {
		return ratelimit.Quota{}, apperr.New(apperr.KindUnexpected, "fetch rate limit", err)
	}
	return ratelimit.Quota{
		Remaining: rl.Remaining,
		Limit:     rl.Limit,
		Cost:      rl.Cost,
		ResetAt:   rl.ResetAt,
	}, nil
}
