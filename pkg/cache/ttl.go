// Package cache holds a single memoized value that expires after a fixed TTL.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// LoadFunc produces a fresh value for the cache.
type LoadFunc[T any] func(ctx context.Context) (T, error)

// TTL memoizes the result of a LoadFunc for a fixed duration. A zero or
// negative ttl disables caching and every Get loads.
//
// Failed loads are never stored. Concurrent Gets during a fill wait for it
// rather than issuing their own load.
type TTL[T any] struct {
	ttl   time.Duration
	clock clockwork.Clock

	mu       sync.Mutex
	value    T
	expiry   time.Time
	filledAt time.Time
	valid    bool
}

// NewTTL creates an empty cache. A nil clock means the real clock.
func NewTTL[T any](ttl time.Duration, clock clockwork.Clock) *TTL[T] {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TTL[T]{ttl: ttl, clock: clock}
}

// Get returns the cached value, or calls load when the entry is missing or
// expired. hit reports whether the cached value was used.
func (c *TTL[T]) Get(ctx context.Context, load LoadFunc[T]) (value T, hit bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if c.valid && now.Before(c.expiry) {
		return c.value, true, nil
	}

	v, err := load(ctx)
	if err != nil {
		var zero T
		return zero, false, err
	}

	c.store(v, c.clock.Now())
	return v, false, nil
}

// Set replaces the cached value and restarts its TTL.
func (c *TTL[T]) Set(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store(v, c.clock.Now())
}

func (c *TTL[T]) store(v T, now time.Time) {
	if c.ttl <= 0 {
		c.valid = false
		return
	}
	c.value = v
	c.filledAt = now
	c.expiry = now.Add(c.ttl)
	c.valid = true
}

// Invalidate drops the cached value so the next Get loads.
func (c *TTL[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	c.value = zero
	c.valid = false
	c.expiry = time.Time{}
	c.filledAt = time.Time{}
}

// Expiry returns when the current value expires, and false if nothing is cached.
func (c *TTL[T]) Expiry() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expiry, c.valid
}

// FilledAt returns when the current value was stored, and false if nothing is cached.
func (c *TTL[T]) FilledAt() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filledAt, c.valid
}

// TTL returns the configured time-to-live.
func (c *TTL[T]) TTL() time.Duration {
	return c.ttl
}
