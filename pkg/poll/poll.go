// Package poll implements bounded, interval-based waiting on page conditions.
//
// A wait evaluates its condition at offsets 0, interval, 2*interval, ...
// strictly below the timeout. Elapsed time is the sum of the intervals
// slept, not wall-clock time, so a slow condition check never shortens the
// number of attempts.
package poll

import (
	"context"
	"errors"
	"time"

	"imgscraper/pkg/retry"
)

// ErrTimeout is returned by Until when the condition never became ready.
var ErrTimeout = errors.New("poll: condition not met before timeout")

// Sleeper pauses the caller. Implementations must return ctx.Err() when
// the context ends first.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to the Sleeper interface.
type SleeperFunc func(ctx context.Context, d time.Duration) error

// Sleep calls f.
func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

// RealClock sleeps on the wall clock.
var RealClock Sleeper = SleeperFunc(retry.Wait)

// Check inspects the page once. ready reports whether the wait is over;
// a non-nil error aborts the wait.
type Check[T any] func(ctx context.Context) (value T, ready bool, err error)

// Until runs check until it reports ready, the accumulated wait reaches
// timeout, check fails, or ctx ends.
func Until[T any](ctx context.Context, clk Sleeper, interval, timeout time.Duration, check Check[T]) (T, error) {
	var zero T
	if interval <= 0 {
		interval = timeout
	}
	if clk == nil {
		clk = RealClock
	}

	for elapsed := time.Duration(0); elapsed < timeout; elapsed += interval {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		value, ready, err := check(ctx)
		if err != nil {
			return zero, err
		}
		if ready {
			return value, nil
		}
		if err := clk.Sleep(ctx, interval); err != nil {
			return zero, err
		}
	}
	return zero, ErrTimeout
}

// WaitFor is Until for plain conditions. It reports false, not an error,
// when the timeout expires.
func WaitFor(ctx context.Context, clk Sleeper, interval, timeout time.Duration, cond func(ctx context.Context) (bool, error)) (bool, error) {
	_, err := Until(ctx, clk, interval, timeout, func(ctx context.Context) (struct{}, bool, error) {
		ok, err := cond(ctx)
		return struct{}{}, ok, err
	})
	if errors.Is(err, ErrTimeout) {
		return false, nil
	}
	return err == nil, err
}
