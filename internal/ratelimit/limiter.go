// Package ratelimit tracks the remote API quota and decides how long to wait
// before a request and after a retryable failure.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/mishasvintus/access_mirror/internal/apperr"
	"github.com/mishasvintus/access_mirror/internal/logging"
	"github.com/mishasvintus/access_mirror/internal/metrics"
)

// Band classifies the remaining quota.
type Band string

const (
	BandHealthy  Band = "healthy"
	BandWarning  Band = "warning"
	BandCritical Band = "critical"
)

// Quota is the last observed remote quota.
type Quota struct {
	Remaining  int
	Limit      int
	ResetAt    time.Time
	Cost       int
	ObservedAt time.Time
}

// Known reports whether the quota has been observed at least once.
func (q Quota) Known() bool {
	return !q.ObservedAt.IsZero() && q.Limit > 0
}

// Decision is the outcome of a pre-flight check. A zero Wait means proceed.
type Decision struct {
	Band Band
	Wait time.Duration
}

// Failure describes a retryable failure reported to the limiter.
type Failure struct {
	Kind    apperr.Kind
	ResetAt time.Time // zero when the response carried no reset hint
	Attempt int       // 1-based attempt that failed
}

// ProbeFunc fetches the current quota without consuming meaningful quota.
type ProbeFunc func(ctx context.Context) (Quota, error)

// Options configures a Limiter. Zero values take defaults.
type Options struct {
	// DefaultDelay is used for rate-limit failures without a reset hint.
	DefaultDelay time.Duration

	// WarningDelay is the fixed wait in the warning band.
	WarningDelay time.Duration

	// CriticalDelay is the minimum wait in the critical band.
	CriticalDelay time.Duration

	// BackoffBase is the exponent base for server-error backoff, in seconds.
	BackoffBase float64

	// MaxBackoff caps server-error backoff.
	MaxBackoff time.Duration

	Probe ProbeFunc
	Now   func() time.Time
}

// Limiter holds the quota for one credential. Safe for concurrent use.
type Limiter struct {
	mu    sync.Mutex
	quota Quota

	defaultDelay  time.Duration
	warningDelay  time.Duration
	criticalDelay time.Duration
	backoffBase   float64
	maxBackoff    time.Duration
	probe         ProbeFunc
	now           func() time.Time
}

// New creates a Limiter.
func New(opts Options) *Limiter {
	l := &Limiter{
		defaultDelay:  opts.DefaultDelay,
		warningDelay:  opts.WarningDelay,
		criticalDelay: opts.CriticalDelay,
		backoffBase:   opts.BackoffBase,
		maxBackoff:    opts.MaxBackoff,
		probe:         opts.Probe,
		now:           opts.Now,
	}
	if l.defaultDelay <= 0 {
		l.defaultDelay = time.Second
	}
	if l.warningDelay <= 0 {
		l.warningDelay = time.Second
	}
	if l.criticalDelay <= 0 {
		l.criticalDelay = time.Second
	}
	if l.backoffBase <= 1 {
		l.backoffBase = 2
	}
	if l.maxBackoff <= 0 {
		l.maxBackoff = 5 * time.Minute
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// SetProbe installs the pre-flight probe. Used when the probe depends on a
// client that itself reports to this limiter.
func (l *Limiter) SetProbe(probe ProbeFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.probe = probe
}

// Quota returns the last observed quota.
func (l *Limiter) Quota() Quota {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.quota
}

// Observe overwrites the quota with a fresh observation.
func (l *Limiter) Observe(q Quota) {
	if q.Limit <= 0 {
		return
	}
	if q.ObservedAt.IsZero() {
		q.ObservedAt = l.now()
	}

	l.mu.Lock()
	l.quota = q
	l.mu.Unlock()

	metrics.QuotaRemaining.Set(float64(q.Remaining))
	metrics.QuotaLimit.Set(float64(q.Limit))
}

// Thresholds returns the critical and warning thresholds for a quota ceiling.
// They scale with the ceiling so that a 30/minute search quota and a
// 5000/hour core quota are both throttled sensibly.
func Thresholds(limit int) (critical, warning int) {
	critical = limit / 50
	if critical < 1 {
		critical = 1
	}
	warning = limit / 10
	if warning < 2 {
		warning = 2
	}
	if warning <= critical {
		warning = critical + 1
	}
	return critical, warning
}

// ShouldThrottle classifies the quota and returns how long to wait before the
// next request. If the quota was never observed and a probe is configured, the
// probe runs first.
func (l *Limiter) ShouldThrottle(ctx context.Context) Decision {
	l.mu.Lock()
	quota := l.quota
	probe := l.probe
	l.mu.Unlock()

	if !quota.Known() && probe != nil {
		probed, err := probe(ctx)
		if err != nil {
			logging.Ctx(ctx).Debug().Err(err).Msg("quota probe failed, proceeding")
		} else {
			l.Observe(probed)
			quota = l.Quota()
		}
	}

	if !quota.Known() {
		return Decision{Band: BandHealthy}
	}

	critical, warning := Thresholds(quota.Limit)
	switch {
	case quota.Remaining < critical:
		wait := quota.ResetAt.Sub(l.now())
		if wait < l.criticalDelay {
			wait = l.criticalDelay
		}
		return Decision{Band: BandCritical, Wait: wait}
	case quota.Remaining < warning:
		return Decision{Band: BandWarning, Wait: l.warningDelay}
	default:
		return Decision{Band: BandHealthy}
	}
}

// RecordFailure returns how long to wait after a retryable failure.
// Rate-limit failures wait until the reset hint (never negative); server
// errors back off exponentially.
func (l *Limiter) RecordFailure(f Failure) time.Duration {
	switch f.Kind {
	case apperr.KindRateLimited:
		if f.ResetAt.IsZero() {
			return l.defaultDelay
		}

		l.mu.Lock()
		if l.quota.Limit > 0 {
			l.quota.Remaining = 0
			l.quota.ResetAt = f.ResetAt
		}
		l.mu.Unlock()

		wait := f.ResetAt.Sub(l.now())
		if wait < 0 {
			wait = 0
		}
		return wait
	case apperr.KindServerError:
		attempt := f.Attempt
		if attempt < 1 {
			attempt = 1
		}
		seconds := math.Pow(l.backoffBase, float64(attempt))
		wait := time.Duration(seconds * float64(time.Second))
		if wait > l.maxBackoff || wait <= 0 {
			wait = l.maxBackoff
		}
		return wait
	default:
		return 0
	}
}
