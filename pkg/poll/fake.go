package poll

import (
	"context"
	"sync"
	"time"
)

// FakeClock returns immediately from Sleep and records how long callers
// asked to sleep. Hooks run on every Sleep so tests can mutate the world
// as simulated time passes.
type FakeClock struct {
	mu      sync.Mutex
	elapsed time.Duration
	sleeps  []time.Duration
	hooks   []func(elapsed time.Duration)
}

// NewFakeClock returns a FakeClock at zero elapsed time.
func NewFakeClock() *FakeClock {
	return &FakeClock{}
}

// Sleep advances simulated time by d.
func (c *FakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.elapsed += d
	c.sleeps = append(c.sleeps, d)
	elapsed := c.elapsed
	hooks := append([]func(time.Duration){}, c.hooks...)
	c.mu.Unlock()

	for _, h := range hooks {
		h(elapsed)
	}
	return nil
}

// OnSleep registers a hook that runs after each simulated sleep.
func (c *FakeClock) OnSleep(h func(elapsed time.Duration)) {
	c.mu.Lock()
	c.hooks = append(c.hooks, h)
	c.mu.Unlock()
}

// Elapsed returns the total simulated time.
func (c *FakeClock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsed
}

// Sleeps returns every duration passed to Sleep, in order.
func (c *FakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}
