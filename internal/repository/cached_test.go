package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"park-rain-watch/pkg/logging"
)

func TestCachedForecastStore_HitWithinTTL(t *testing.T) {
	clock := clockwork.NewFakeClock()
	collector := newTestCollector()
	inner := &stubStore{records: sampleRecords}
	store := NewCachedForecastStore(inner, 10*time.Minute, clock, logging.NewDiscardLogger(), collector)

	first, err := store.LoadForecasts(context.Background())
	require.NoError(t, err)
	clock.Advance(9 * time.Minute)
	second, err := store.LoadForecasts(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.callCount())
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.CacheRequestsTotal.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.CacheRequestsTotal.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.ForecastRecordsLoaded))
}

func TestCachedForecastStore_ReloadsAfterExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	inner := &stubStore{records: sampleRecords}
	store := NewCachedForecastStore(inner, 10*time.Minute, clock, logging.NewDiscardLogger(), newTestCollector())

	_, err := store.LoadForecasts(context.Background())
	require.NoError(t, err)
	clock.Advance(10 * time.Minute)
	_, err = store.LoadForecasts(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, inner.callCount())
}

func TestCachedForecastStore_FailureNotCached(t *testing.T) {
	clock := clockwork.NewFakeClock()
	boom := errors.New("store down")
	inner := &stubStore{err: boom, records: sampleRecords}
	store := NewCachedForecastStore(inner, 10*time.Minute, clock, logging.NewDiscardLogger(), newTestCollector())

	_, err := store.LoadForecasts(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.False(t, store.Status().Cached)

	inner.setErr(nil)
	records, err := store.LoadForecasts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sampleRecords, records)
	assert.Equal(t, 2, inner.callCount())
}

func TestCachedForecastStore_Refresh(t *testing.T) {
	clock := clockwork.NewFakeClock()
	inner := &stubStore{records: sampleRecords}
	store := NewCachedForecastStore(inner, 10*time.Minute, clock, logging.NewDiscardLogger(), newTestCollector())

	_, err := store.LoadForecasts(context.Background())
	require.NoError(t, err)
	_, err = store.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, inner.callCount())

	store.Invalidate()
	assert.False(t, store.Status().Cached)
}

func TestCachedForecastStore_FailedRefreshKeepsEntry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	boom := errors.New("mongo down")
	inner := &stubStore{records: sampleRecords}
	store := NewCachedForecastStore(inner, 10*time.Minute, clock, logging.NewDiscardLogger(), newTestCollector())

	_, err := store.LoadForecasts(context.Background())
	require.NoError(t, err)
	clock.Advance(time.Minute)

	inner.setErr(boom)
	_, err = store.Refresh(context.Background())
	assert.ErrorIs(t, err, boom)

	records, err := store.LoadForecasts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sampleRecords, records)
	assert.True(t, store.Status().Cached)
	assert.Equal(t, 2, inner.callCount())

	// expiry still applies to the kept entry
	clock.Advance(9 * time.Minute)
	_, err = store.LoadForecasts(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestCachedForecastStore_RefreshRestartsTTL(t *testing.T) {
	clock := clockwork.NewFakeClock()
	inner := &stubStore{records: sampleRecords}
	store := NewCachedForecastStore(inner, 10*time.Minute, clock, logging.NewDiscardLogger(), newTestCollector())

	_, err := store.LoadForecasts(context.Background())
	require.NoError(t, err)
	clock.Advance(5 * time.Minute)
	_, err = store.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, clock.Now().Add(10*time.Minute), store.Status().ExpiresAt)
	clock.Advance(9 * time.Minute)
	_, err = store.LoadForecasts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, inner.callCount())
}

func TestCachedForecastStore_Status(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewCachedForecastStore(&stubStore{records: sampleRecords}, 10*time.Minute, clock, logging.NewDiscardLogger(), newTestCollector())

	status := store.Status()
	assert.False(t, status.Cached)
	assert.True(t, status.FilledAt.IsZero())
	assert.Equal(t, "10m0s", status.TTL)

	start := clock.Now()
	_, err := store.LoadForecasts(context.Background())
	require.NoError(t, err)

	status = store.Status()
	assert.True(t, status.Cached)
	assert.Equal(t, start, status.FilledAt)
	assert.Equal(t, start.Add(10*time.Minute), status.ExpiresAt)

	clock.Advance(11 * time.Minute)
	assert.False(t, store.Status().Cached)
}

func TestCachedForecastStore_ZeroTTLAlwaysLoads(t *testing.T) {
	inner := &stubStore{records: sampleRecords}
	store := NewCachedForecastStore(inner, 0, clockwork.NewFakeClock(), logging.NewDiscardLogger(), newTestCollector())

	for i := 0; i < 3; i++ {
		_, err := store.LoadForecasts(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 3, inner.callCount())
}
