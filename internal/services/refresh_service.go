package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"park-rain-watch/internal/models"
	"park-rain-watch/internal/repository"
	"park-rain-watch/pkg/logging"
	"park-rain-watch/pkg/metrics"
)

// CacheRefresher is the forecast cache as seen by the refresh paths
type CacheRefresher interface {
	Refresh(ctx context.Context) ([]models.ForecastRecord, error)
	Status() repository.CacheStatus
}

// RefreshService reloads the forecast cache on demand or on a schedule
type RefreshService struct {
	cache     CacheRefresher
	scheduler *gocron.Scheduler
	interval  time.Duration
	timeout   time.Duration
	logger    *logging.StructuredLogger
	metrics   *metrics.Collector
}

// RefreshResult describes one completed refresh
type RefreshResult struct {
	Records  int                    `json:"records"`
	Duration time.Duration          `json:"-"`
	Cache    repository.CacheStatus `json:"cache"`
}

// NewRefreshService creates a refresh service. interval <= 0 disables the
// scheduled warm; RefreshNow still works.
func NewRefreshService(cache CacheRefresher, interval, timeout time.Duration, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *RefreshService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RefreshService{
		cache:     cache,
		scheduler: gocron.NewScheduler(time.UTC),
		interval:  interval,
		timeout:   timeout,
		logger:    logger,
		metrics:   metricsCollector,
	}
}

// RefreshNow drops the cached forecasts and loads them again
func (s *RefreshService) RefreshNow(ctx context.Context) (*RefreshResult, error) {
	startTime := time.Now()

	records, err := s.cache.Refresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh forecasts: %w", err)
	}

	result := &RefreshResult{
		Records:  len(records),
		Duration: time.Since(startTime),
		Cache:    s.cache.Status(),
	}

	s.logger.Info(ctx, "[CACHE_REFRESH] Forecast cache refreshed", logging.Fields{
		"records":          result.Records,
		"duration_seconds": result.Duration.Seconds(),
	})

	return result, nil
}

// Status reports the cache state
func (s *RefreshService) Status() repository.CacheStatus {
	return s.cache.Status()
}

// Start schedules the periodic warm and starts the scheduler. The first
// warm runs immediately.
func (s *RefreshService) Start() error {
	if s.interval <= 0 {
		s.logger.Info(context.Background(), "[CACHE_WARMER_DISABLED] Scheduled cache refresh is off", logging.Fields{})
		return nil
	}

	_, err := s.scheduler.Every(s.interval).SingletonMode().Do(s.warm)
	if err != nil {
		return fmt.Errorf("failed to schedule cache refresh: %w", err)
	}

	s.scheduler.StartAsync()
	s.logger.Info(context.Background(), "[CACHE_WARMER_START] Scheduled cache refresh started", logging.Fields{
		"interval": s.interval.String(),
	})
	return nil
}

func (s *RefreshService) warm() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.RefreshNow(ctx); err != nil {
		s.logger.Error(ctx, "[CACHE_WARM_ERROR] Scheduled cache refresh failed", logging.Fields{
			"interval": s.interval.String(),
		}, err)
	}
}

// Stop stops the scheduler and cancels future refreshes
func (s *RefreshService) Stop() {
	if s.scheduler != nil && s.scheduler.IsRunning() {
		s.scheduler.Stop()
	}
}
