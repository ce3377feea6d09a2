package realtime

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUntil_ReadyImmediately(t *testing.T) {
	calls := 0
	out := Until(context.Background(), time.Hour, 5, func() bool {
		calls++
		return true
	})

	assert.Equal(t, Ready, out)
	assert.Equal(t, 1, calls)
}

func TestUntil_ReadyAfterSomeAttempts(t *testing.T) {
	var calls int32
	out := Until(context.Background(), time.Millisecond, 50, func() bool {
		return atomic.AddInt32(&calls, 1) >= 3
	})

	assert.Equal(t, Ready, out)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestUntil_TimesOut(t *testing.T) {
	calls := 0
	start := time.Now()
	out := Until(context.Background(), 2*time.Millisecond, 5, func() bool {
		calls++
		return false
	})

	assert.Equal(t, TimedOut, out)
	assert.Equal(t, 6, calls)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestUntil_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := Until(ctx, time.Second, 10, func() bool { return false })
	assert.Equal(t, Cancelled, out)
}

func TestUntilTimeout(t *testing.T) {
	start := time.Now()
	out := UntilTimeout(context.Background(), 5*time.Millisecond, 20*time.Millisecond, func() bool { return false })

	assert.Equal(t, TimedOut, out)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, "timed_out", out.String())
}
