package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLoader struct {
	calls atomic.Int32
	err   error
}

func (l *countingLoader) load(_ context.Context) ([]string, error) {
	n := l.calls.Add(1)
	if l.err != nil {
		return nil, l.err
	}
	return []string{"load", string(rune('0' + n))}, nil
}

func TestTTL_ServesCachedValueUntilExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := NewTTL[[]string](10*time.Minute, clock)
	loader := &countingLoader{}
	ctx := context.Background()

	v, hit, err := c.Get(ctx, loader.load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []string{"load", "1"}, v)

	clock.Advance(9*time.Minute + 59*time.Second)
	v, hit, err = c.Get(ctx, loader.load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"load", "1"}, v)
	assert.Equal(t, int32(1), loader.calls.Load())
}

func TestTTL_RefillsAtExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := NewTTL[[]string](600*time.Second, clock)
	loader := &countingLoader{}
	ctx := context.Background()

	_, _, err := c.Get(ctx, loader.load)
	require.NoError(t, err)

	exp, ok := c.Expiry()
	require.True(t, ok)
	assert.Equal(t, clock.Now().Add(600*time.Second), exp)

	clock.Advance(600 * time.Second)
	v, hit, err := c.Get(ctx, loader.load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []string{"load", "2"}, v)
	assert.Equal(t, int32(2), loader.calls.Load())
}

func TestTTL_FailedLoadIsNotCached(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := NewTTL[[]string](time.Minute, clock)
	ctx := context.Background()

	failing := &countingLoader{err: errors.New("connection refused")}
	_, _, err := c.Get(ctx, failing.load)
	require.Error(t, err)

	_, ok := c.Expiry()
	assert.False(t, ok)

	loader := &countingLoader{}
	v, hit, err := c.Get(ctx, loader.load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []string{"load", "1"}, v)
}

func TestTTL_FailedRefillKeepsNothing(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := NewTTL[[]string](time.Minute, clock)
	ctx := context.Background()

	ok := &countingLoader{}
	_, _, err := c.Get(ctx, ok.load)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	failing := &countingLoader{err: errors.New("timeout")}
	_, _, err = c.Get(ctx, failing.load)
	require.Error(t, err)

	// the expired value is not resurrected
	_, _, err = c.Get(ctx, failing.load)
	require.Error(t, err)
	assert.Equal(t, int32(2), failing.calls.Load())
}

func TestTTL_Invalidate(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := NewTTL[[]string](time.Hour, clock)
	loader := &countingLoader{}
	ctx := context.Background()

	_, _, err := c.Get(ctx, loader.load)
	require.NoError(t, err)

	c.Invalidate()
	_, ok := c.FilledAt()
	assert.False(t, ok)

	v, hit, err := c.Get(ctx, loader.load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []string{"load", "2"}, v)
}

func TestTTL_SetRestartsExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := NewTTL[[]string](time.Minute, clock)
	loader := &countingLoader{}

	clock.Advance(30 * time.Second)
	c.Set([]string{"warm"})

	filled, ok := c.FilledAt()
	require.True(t, ok)
	assert.Equal(t, clock.Now(), filled)

	v, hit, err := c.Get(context.Background(), loader.load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"warm"}, v)
	assert.Zero(t, loader.calls.Load())
}

func TestTTL_ZeroTTLAlwaysLoads(t *testing.T) {
	c := NewTTL[[]string](0, clockwork.NewFakeClock())
	loader := &countingLoader{}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, hit, err := c.Get(ctx, loader.load)
		require.NoError(t, err)
		assert.False(t, hit)
	}
	assert.Equal(t, int32(3), loader.calls.Load())
}

func TestTTL_ConcurrentGetsLoadOnce(t *testing.T) {
	c := NewTTL[[]string](time.Minute, clockwork.NewFakeClock())
	loader := &countingLoader{}
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.Get(ctx, loader.load)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), loader.calls.Load())
}

func TestNewTTL_NilClockUsesRealClock(t *testing.T) {
	c := NewTTL[int](time.Second, nil)
	assert.NotNil(t, c.clock)
	assert.Equal(t, time.Second, c.TTL())
}
