// Package detect waits for a page to visibly change after an action.
package detect

import (
	"context"
	"time"

	"imgscraper/pkg/page"
	"imgscraper/pkg/poll"
)

// Predicate decides whether the awaited change has happened.
type Predicate func(ctx context.Context) (bool, error)

// Options bounds a wait.
type Options struct {
	// Timeout is how long to wait for the predicate to become true.
	Timeout time.Duration
	// Settle is slept after a detected change before returning.
	Settle time.Duration
	// Clock defaults to poll.RealClock.
	Clock poll.Sleeper
}

type outcome struct {
	changed bool
	err     error
}

// WaitForChange subscribes to mutations under target and re-evaluates
// changed on every notification. It returns true once changed holds (after
// sleeping Settle) and false when Timeout elapses first. The subscription
// is closed on every path.
func WaitForChange(ctx context.Context, src page.MutationSource, target string, changed Predicate, opts Options) (bool, error) {
	clk := opts.Clock
	if clk == nil {
		clk = poll.RealClock
	}

	sub, err := src.Observe(ctx, target)
	if err != nil {
		return false, err
	}
	defer sub.Close()

	// A change that landed before the subscription would never notify.
	ok, err := changed(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		ok, err = race(ctx, clk, sub, changed, opts.Timeout)
		if err != nil || !ok {
			return false, err
		}
	}
	sub.Close()

	if err := clk.Sleep(ctx, opts.Settle); err != nil {
		return false, err
	}
	return true, nil
}

// race runs the mutation watch against the timeout; whichever finishes
// first cancels the other.
func race(ctx context.Context, clk poll.Sleeper, sub *page.Subscription, changed Predicate, timeout time.Duration) (bool, error) {
	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan outcome, 2)

	go func() {
		for {
			select {
			case <-raceCtx.Done():
				results <- outcome{err: raceCtx.Err()}
				return
			case _, open := <-sub.C:
				if !open {
					results <- outcome{}
					return
				}
				ok, err := changed(raceCtx)
				if err != nil || ok {
					results <- outcome{changed: ok, err: err}
					return
				}
			}
		}
	}()

	go func() {
		err := clk.Sleep(raceCtx, timeout)
		results <- outcome{err: err}
	}()

	first := <-results
	cancel()

	if first.err != nil {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		return false, first.err
	}
	return first.changed, nil
}
