package apperr

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "untagged", err: base, want: KindUnexpected},
		{name: "tagged", err: New(KindNotFound, "get org", base), want: KindNotFound},
		{name: "wrapped", err: fmt.Errorf("failed to sync: %w", New(KindServerError, "query", base)), want: KindServerError},
		{name: "nil", err: nil, want: KindUnexpected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, KindRateLimited.Retryable())
	assert.True(t, KindServerError.Retryable())
	assert.False(t, KindNotFound.Retryable())
	assert.False(t, KindConfiguration.Retryable())
	assert.False(t, KindUnexpected.Retryable())
	assert.False(t, KindDataLoss.Retryable())

	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(fmt.Errorf("wrap: %w", New(KindRateLimited, "", nil))))
}

func TestResetHint(t *testing.T) {
	reset := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	err := fmt.Errorf("outer: %w", RateLimited("search", reset, errors.New("slow down")))

	got, ok := ResetHint(err)
	assert.True(t, ok)
	assert.Equal(t, reset, got)

	_, ok = ResetHint(New(KindRateLimited, "search", nil))
	assert.False(t, ok)
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "fetch members: boom", New(KindServerError, "fetch members", errors.New("boom")).Error())
	assert.Equal(t, "boom", New(KindServerError, "", errors.New("boom")).Error())
	assert.Equal(t, "fetch members: data_loss", New(KindDataLoss, "fetch members", nil).Error())

	inner := errors.New("inner")
	assert.ErrorIs(t, New(KindUnexpected, "op", inner), inner)
}
