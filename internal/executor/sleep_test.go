package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func withTick(t *testing.T, d time.Duration) {
	t.Helper()
	old := tick
	tick = d
	t.Cleanup(func() { tick = old })
}

func TestSleep_CountdownReportsEachTick(t *testing.T) {
	withTick(t, 5*time.Millisecond)

	var seen []int
	err := Sleep(context.Background(), 12*time.Millisecond, func(remaining int) {
		seen = append(seen, remaining)
	})

	assert.NoError(t, err)
	assert.Equal(t, []int{3, 2, 1, 0}, seen)
}

func TestSleep_WithoutProgress(t *testing.T) {
	start := time.Now()
	err := Sleep(context.Background(), 10*time.Millisecond, nil)

	assert.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestSleep_ZeroDuration(t *testing.T) {
	called := false
	err := Sleep(context.Background(), 0, func(int) { called = true })

	assert.NoError(t, err)
	assert.False(t, called)
}

func TestSleep_CancelledMidCountdown(t *testing.T) {
	withTick(t, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	ticks := 0
	err := Sleep(ctx, time.Hour, func(remaining int) {
		ticks++
		if ticks == 2 {
			cancel()
		}
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, ticks)
}

func TestSleep_CancelledPlain(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	err := Sleep(ctx, time.Hour, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
