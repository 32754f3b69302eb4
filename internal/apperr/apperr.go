// Package apperr provides tagged error kinds for the sync engine.
//
// A kind is assigned where a failure is first observed (the transport, the
// reconciler) and travels with the error through %w wrapping, so callers
// classify errors with KindOf instead of inspecting messages or types.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an error for retry and propagation decisions.
type Kind int

const (
	// KindUnexpected is an unclassified failure. Surfaced, not retried.
	KindUnexpected Kind = iota

	// KindConfiguration is a missing or invalid credential or setting.
	KindConfiguration

	// KindNotFound means the remote group or entity does not exist.
	KindNotFound

	// KindRateLimited means the remote quota is exhausted. Retryable.
	KindRateLimited

	// KindServerError is a 5xx, network failure or open circuit. Retryable.
	KindServerError

	// KindDataLoss means a destructive reconciliation was refused.
	KindDataLoss
)

// String returns the kind as a stable lower-case label, used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindServerError:
		return "server_error"
	case KindDataLoss:
		return "data_loss"
	default:
		return "unexpected"
	}
}

// Retryable reports whether an error of this kind should consume a retry slot.
func (k Kind) Retryable() bool {
	return k == KindRateLimited || k == KindServerError
}

// Error is an error tagged with a Kind.
type Error struct {
	Kind Kind
	Op   string
	Err  error

	// ResetAt is the quota reset hint carried by rate-limit responses.
	ResetAt time.Time
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return e.Kind.String()
	}
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a tagged error.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// RateLimited creates a rate-limit error carrying the quota reset hint.
func RateLimited(op string, resetAt time.Time, err error) *Error {
	return &Error{Kind: KindRateLimited, Op: op, Err: err, ResetAt: resetAt}
}

// KindOf returns the kind of the first tagged error in err's chain.
// Untagged errors are KindUnexpected.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

// ResetHint returns the quota reset hint of a rate-limit error, if any.
func ResetHint(err error) (time.Time, bool) {
	var e *Error
	if errors.As(err, &e) && !e.ResetAt.IsZero() {
		return e.ResetAt, true
	}
	return time.Time{}, false
}

// IsRetryable reports whether err should be retried.
func IsRetryable(err error) bool {
	return err != nil && KindOf(err).Retryable()
}

// Is reports whether err is tagged with kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
