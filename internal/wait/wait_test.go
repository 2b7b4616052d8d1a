// internal/wait/wait_test.go
package wait

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestUntil_ImmediateSuccess(t *testing.T) {
	var calls int32
	start := time.Now()
	got, err := Until(context.Background(), func(ctx context.Context) (string, bool, error) {
		atomic.AddInt32(&calls, 1)
		return "ready", true, nil
	}, Options{Timeout: time.Second, Interval: 100 * time.Millisecond})

	require.NoError(t, err)
	assert.Equal(t, "ready", got)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Less(t, time.Since(start), 50*time.Millisecond, "first evaluation must not wait an interval")
}

func TestUntil_SucceedsAfterRetries(t *testing.T) {
	var calls int32
	got, err := Until(context.Background(), func(ctx context.Context) (int, bool, error) {
		n := atomic.AddInt32(&calls, 1)
		return int(n), n >= 3, nil
	}, Options{Timeout: time.Second, Interval: 10 * time.Millisecond})

	require.NoError(t, err)
	assert.Equal(t, 3, got)
}

func TestUntil_TimesOutWithinWindow(t *testing.T) {
	timeout := 300 * time.Millisecond
	interval := 20 * time.Millisecond

	start := time.Now()
	_, err := Until(context.Background(), func(ctx context.Context) (bool, bool, error) {
		return false, false, nil
	}, Options{Timeout: timeout, Interval: interval, Description: "element #missing"})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))

	var te *TimeoutError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "element #missing", te.Description)
	assert.Equal(t, timeout, te.Timeout)
	assert.Greater(t, te.Attempts, 5, "polling should repeat, not give up after one try")
	assert.Contains(t, err.Error(), "element #missing")

	// Not instant, not unbounded.
	assert.GreaterOrEqual(t, elapsed, timeout-2*interval)
	assert.Less(t, elapsed, timeout+200*time.Millisecond)
}

func TestUntil_IsNotABusyLoop(t *testing.T) {
	var calls int32
	_, err := Until(context.Background(), func(ctx context.Context) (bool, bool, error) {
		atomic.AddInt32(&calls, 1)
		return false, false, nil
	}, Options{Timeout: 200 * time.Millisecond, Interval: 50 * time.Millisecond})

	require.Error(t, err)
	// One poll per interval plus the check at the deadline.
	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(6))
}

func TestUntil_TimeoutShorterThanInterval(t *testing.T) {
	t.Run("should check again at the deadline", func(t *testing.T) {
		readyAt := time.Now().Add(100 * time.Millisecond)
		var calls int32
		start := time.Now()
		got, err := Until(context.Background(), func(ctx context.Context) (string, bool, error) {
			atomic.AddInt32(&calls, 1)
			return "shown", time.Now().After(readyAt), nil
		}, Options{Timeout: 300 * time.Millisecond, Interval: time.Second})

		require.NoError(t, err)
		assert.Equal(t, "shown", got)
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
		assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
	})

	t.Run("should wait out the full timeout before failing", func(t *testing.T) {
		timeout := 150 * time.Millisecond
		start := time.Now()
		_, err := Until(context.Background(), func(ctx context.Context) (bool, bool, error) {
			return false, false, nil
		}, Options{Timeout: timeout, Interval: time.Second})
		elapsed := time.Since(start)

		var te *TimeoutError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, 2, te.Attempts)
		assert.GreaterOrEqual(t, elapsed, timeout)
		assert.Less(t, elapsed, timeout+200*time.Millisecond)
	})

	t.Run("should honour cancellation while sleeping out the timeout", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(30*time.Millisecond, cancel)

		_, err := Until(ctx, func(ctx context.Context) (bool, bool, error) {
			return false, false, nil
		}, Options{Timeout: 5 * time.Second, Interval: 10 * time.Second})

		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestUntil_ConditionErrorAborts(t *testing.T) {
	boom := errors.New("driver went away")
	var calls int32
	_, err := Until(context.Background(), func(ctx context.Context) (bool, bool, error) {
		atomic.AddInt32(&calls, 1)
		return false, false, boom
	}, Options{Timeout: time.Second, Interval: 10 * time.Millisecond})

	assert.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, ErrTimeout))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestUntil_CallerCancellationWins(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := Until(ctx, func(ctx context.Context) (bool, bool, error) {
		return false, false, nil
	}, Options{Timeout: 5 * time.Second, Interval: 10 * time.Millisecond})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, ErrTimeout))
}

func TestUntil_Defaults(t *testing.T) {
	opts := Options{}.normalized()
	assert.Equal(t, DefaultTimeout, opts.Timeout)
	assert.Equal(t, DefaultInterval, opts.Interval)
	assert.Equal(t, "condition", opts.Description)
}

func TestSleep(t *testing.T) {
	t.Run("elapses", func(t *testing.T) {
		start := time.Now()
		require.NoError(t, Sleep(context.Background(), 20*time.Millisecond))
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	})

	t.Run("honours cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	})

	t.Run("zero is a no-op", func(t *testing.T) {
		assert.NoError(t, Sleep(context.Background(), 0))
	})
}
