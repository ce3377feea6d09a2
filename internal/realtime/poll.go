package realtime

import (
	"context"
	"time"
)

// Outcome is the definite result of a bounded wait
type Outcome int

const (
	Ready Outcome = iota
	TimedOut
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Ready:
		return "ready"
	case TimedOut:
		return "timed_out"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Until evaluates cond every interval, at most maxAttempts waits.
// cond is checked before the first wait and after the last one, so the
// wall-clock bound is maxAttempts*interval.
func Until(ctx context.Context, interval time.Duration, maxAttempts int, cond func() bool) Outcome {
	if cond() {
		return Ready
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			timer.Reset(interval)
		}

		select {
		case <-ctx.Done():
			return Cancelled
		case <-timer.C:
		}

		if cond() {
			return Ready
		}
	}

	return TimedOut
}

// UntilTimeout is Until with the attempt count derived from a total bound
func UntilTimeout(ctx context.Context, interval, timeout time.Duration, cond func() bool) Outcome {
	attempts := 1
	if interval > 0 {
		attempts = int(timeout / interval)
		if attempts < 1 {
			attempts = 1
		}
	}
	return Until(ctx, interval, attempts, cond)
}
