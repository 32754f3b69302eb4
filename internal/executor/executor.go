// Package executor runs remote operations under the rate limiter: it waits
// before a call when the quota is low and retries rate-limited and server
// failures with backoff.
package executor

import (
	"context"
	"time"

	"github.com/mishasvintus/access_mirror/internal/apperr"
	"github.com/mishasvintus/access_mirror/internal/logging"
	"github.com/mishasvintus/access_mirror/internal/metrics"
	"github.com/mishasvintus/access_mirror/internal/ratelimit"
)

// DefaultMaxRetries is the number of attempts when Options.MaxRetries is unset.
const DefaultMaxRetries = 3

// Throttler is the rate limiter contract used by the executor.
type Throttler interface {
	ShouldThrottle(ctx context.Context) ratelimit.Decision
	RecordFailure(f ratelimit.Failure) time.Duration
}

// ProgressFunc receives the remaining whole seconds of a wait, once per second.
type ProgressFunc func(remainingSeconds int)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration, progress ProgressFunc) error

// Options configures an Executor.
type Options struct {
	// MaxRetries is the total number of attempts per operation.
	MaxRetries int

	// Sleep replaces the countdown sleep, mainly in tests.
	Sleep SleepFunc
}

// Executor wraps remote operations with throttling and retries. It keeps no
// per-call state, so one Executor may serve many sequential calls.
type Executor struct {
	limiter    Throttler
	maxRetries int
	sleep      SleepFunc
}

// New creates an Executor bound to limiter.
func New(limiter Throttler, opts Options) *Executor {
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	return &Executor{
		limiter:    limiter,
		maxRetries: maxRetries,
		sleep:      sleep,
	}
}

// MaxRetries returns the attempt budget per operation.
func (e *Executor) MaxRetries() int {
	return e.maxRetries
}

// Run executes op, throttling before each attempt and retrying retryable
// failures. After the last attempt the last error is returned unchanged.
// Non-retryable errors are returned immediately.
func Run[T any](ctx context.Context, e *Executor, progress ProgressFunc, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	log := logging.Ctx(ctx)

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		if decision := e.limiter.ShouldThrottle(ctx); decision.Wait > 0 {
			metrics.ThrottleWaits.WithLabelValues(string(decision.Band)).Inc()
			log.Info().
				Str("band", string(decision.Band)).
				Dur("wait", decision.Wait).
				Msg("quota low, throttling before request")
			if err := e.sleep(ctx, decision.Wait, progress); err != nil {
				return zero, err
			}
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		kind := apperr.KindOf(err)
		if !kind.Retryable() || attempt >= e.maxRetries {
			return zero, err
		}

		resetAt, _ := apperr.ResetHint(err)
		wait := e.limiter.RecordFailure(ratelimit.Failure{Kind: kind, ResetAt: resetAt, Attempt: attempt})
		metrics.RequestRetries.WithLabelValues(kind.String()).Inc()
		log.Warn().
			Err(err).
			Str("kind", kind.String()).
			Int("attempt", attempt).
			Int("max_retries", e.maxRetries).
			Dur("retry_delay", wait).
			Msg("remote request failed, retrying")

		if err := e.sleep(ctx, wait, progress); err != nil {
			return zero, err
		}
	}
}

// Do is Run for operations without a result.
func (e *Executor) Do(ctx context.Context, progress ProgressFunc, op func(ctx context.Context) error) error {
	_, err := Run(ctx, e, progress, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
