package repository

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"park-rain-watch/internal/models"
	"park-rain-watch/pkg/cache"
	"park-rain-watch/pkg/logging"
	"park-rain-watch/pkg/metrics"
)

// CachedForecastStore memoizes LoadForecasts for a fixed TTL.
// Returned slices are shared between callers and must not be modified.
type CachedForecastStore struct {
	inner   ForecastStore
	cache   *cache.TTL[[]models.ForecastRecord]
	clock   clockwork.Clock
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewCachedForecastStore creates a cache decorator around a forecast store.
// A nil clock means the real clock.
func NewCachedForecastStore(inner ForecastStore, ttl time.Duration, clock clockwork.Clock, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *CachedForecastStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CachedForecastStore{
		inner:   inner,
		cache:   cache.NewTTL[[]models.ForecastRecord](ttl, clock),
		clock:   clock,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// LoadForecasts serves the cached records, loading from the store on a miss
func (c *CachedForecastStore) LoadForecasts(ctx context.Context) ([]models.ForecastRecord, error) {
	records, hit, err := c.cache.Get(ctx, c.fill)
	c.metrics.RecordCacheLookup(hit)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (c *CachedForecastStore) fill(ctx context.Context) ([]models.ForecastRecord, error) {
	records, err := c.inner.LoadForecasts(ctx)
	if err != nil {
		c.logger.Error(ctx, "[CACHE_FILL_ERROR] Failed to fill forecast cache", logging.Fields{}, err)
		return nil, err
	}

	now := c.clock.Now()
	c.metrics.ForecastRecordsLoaded.Set(float64(len(records)))
	c.metrics.RecordCacheFill(now)
	c.logger.Info(ctx, "[CACHE_FILL] Forecast cache filled", logging.Fields{
		"records":    len(records),
		"ttl":        c.cache.TTL().String(),
		"expires_at": now.Add(c.cache.TTL()).UTC().Format(time.RFC3339),
	})
	return records, nil
}

// Refresh reloads the records from the store and replaces the cached entry.
// On failure the existing entry is kept until it expires.
func (c *CachedForecastStore) Refresh(ctx context.Context) ([]models.ForecastRecord, error) {
	records, err := c.fill(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.Set(records)
	return records, nil
}

// Invalidate drops the cached records
func (c *CachedForecastStore) Invalidate() {
	c.cache.Invalidate()
}

// CacheStatus describes the cached entry
type CacheStatus struct {
	Cached    bool      `json:"cached"`
	FilledAt  time.Time `json:"filled_at,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	TTL       string    `json:"ttl"`
}

// Status reports whether a value is cached and when it expires
func (c *CachedForecastStore) Status() CacheStatus {
	status := CacheStatus{TTL: c.cache.TTL().String()}
	filled, ok := c.cache.FilledAt()
	if !ok {
		return status
	}
	expiry, _ := c.cache.Expiry()
	status.Cached = c.clock.Now().Before(expiry)
	status.FilledAt = filled
	status.ExpiresAt = expiry
	return status
}

func (c *CachedForecastStore) HealthCheck(ctx context.Context) error {
	return c.inner.HealthCheck(ctx)
}
