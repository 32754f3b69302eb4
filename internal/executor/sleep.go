package executor

import (
	"context"
	"time"
)

// tick is the countdown granularity.
var tick = time.Second

// Sleep waits for d. With a progress callback it counts down one tick at a
// time, reporting the remaining ticks and checking ctx at every tick; without
// one it is a single cancellable timer.
func Sleep(ctx context.Context, d time.Duration, progress ProgressFunc) error {
	if d <= 0 {
		return ctx.Err()
	}

	if progress == nil {
		return wait(ctx, d)
	}

	remaining := d
	for remaining > 0 {
		progress(ceilTicks(remaining))

		step := tick
		if remaining < step {
			step = remaining
		}
		if err := wait(ctx, step); err != nil {
			return err
		}
		remaining -= step
	}
	progress(0)
	return nil
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func ceilTicks(d time.Duration) int {
	n := int(d / tick)
	if d%tick != 0 {
		n++
	}
	return n
}
