// internal/wait/wait.go
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is used when Options.Timeout is zero.
	DefaultTimeout = 10 * time.Second
	// DefaultInterval is used when Options.Interval is zero.
	DefaultInterval = 500 * time.Millisecond
)

// ErrTimeout is matched by every *TimeoutError.
var ErrTimeout = errors.New("timed out")

// TimeoutError reports a bounded wait that expired before its condition held.
type TimeoutError struct {
	Description string
	Timeout     time.Duration
	Attempts    int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %v waiting for %s (%d attempts)", e.Timeout, e.Description, e.Attempts)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// Condition observes live state. It returns ok=true with the result once satisfied,
// ok=false to be polled again, or a non-nil error to abort the wait.
type Condition[T any] func(ctx context.Context) (result T, ok bool, err error)

// Options bound a single wait.
type Options struct {
	Timeout     time.Duration
	Interval    time.Duration
	Description string
}

func (o Options) normalized() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.Description == "" {
		o.Description = "condition"
	}
	return o
}

// Until evaluates cond immediately and then at most once per interval until it
// is satisfied, it fails, or the timeout expires. When the next poll would
// land past the deadline, cond is checked one last time at the deadline.
func Until[T any](ctx context.Context, cond Condition[T], opts Options) (T, error) {
	opts = opts.normalized()
	var zero T

	deadline := time.Now().Add(opts.Timeout)
	waitCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	limiter := rate.NewLimiter(rate.Every(opts.Interval), 1)
	attempts := 0
	for {
		// Wait refuses up front when the next token lands after the deadline.
		if err := limiter.Wait(waitCtx); err != nil {
			if ctx.Err() != nil {
				return zero, ctx.Err()
			}
			return finalCheck(ctx, cond, opts, deadline, attempts)
		}
		attempts++
		result, ok, err := cond(waitCtx)
		if err != nil {
			if waitCtx.Err() != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
				return zero, expired(ctx, opts, attempts)
			}
			return zero, err
		}
		if ok {
			return result, nil
		}
		if waitCtx.Err() != nil {
			return zero, expired(ctx, opts, attempts)
		}
	}
}

// finalCheck sleeps out the rest of the timeout and evaluates cond once more
// under the caller's context.
func finalCheck[T any](ctx context.Context, cond Condition[T], opts Options, deadline time.Time, attempts int) (T, error) {
	var zero T
	if err := Sleep(ctx, time.Until(deadline)); err != nil {
		return zero, err
	}
	attempts++
	result, ok, err := cond(ctx)
	if err != nil {
		return zero, err
	}
	if ok {
		return result, nil
	}
	return zero, expired(ctx, opts, attempts)
}

// expired distinguishes the caller cancelling from the wait's own deadline.
func expired(ctx context.Context, opts Options, attempts int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return &TimeoutError{Description: opts.Description, Timeout: opts.Timeout, Attempts: attempts}
}

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
