package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	"park-rain-watch/internal/models"
	"park-rain-watch/pkg/logging"
	"park-rain-watch/pkg/metrics"
)

// BreakerSettings configures BreakerStore
type BreakerSettings struct {
	Name        string
	MaxFailures uint32
	OpenTimeout time.Duration
}

// BreakerStore fails loads fast after repeated store failures
type BreakerStore struct {
	inner   ForecastStore
	cb      *gobreaker.CircuitBreaker[[]models.ForecastRecord]
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	name    string
}

// NewBreakerStore wraps inner in a circuit breaker that opens after
// settings.MaxFailures consecutive failed loads.
func NewBreakerStore(inner ForecastStore, settings BreakerSettings, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *BreakerStore {
	b := &BreakerStore{
		inner:   inner,
		logger:  logger,
		metrics: metricsCollector,
		name:    settings.Name,
	}

	maxFailures := settings.MaxFailures
	if maxFailures == 0 {
		maxFailures = 1
	}

	b.cb = gobreaker.NewCircuitBreaker[[]models.ForecastRecord](gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			// a caller giving up says nothing about the store
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.metrics.BreakerState.WithLabelValues(name).Set(stateValue(to))
			b.logger.Warn(context.Background(), "[BREAKER_STATE] Forecast store breaker changed state", logging.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})
	b.metrics.BreakerState.WithLabelValues(settings.Name).Set(stateValue(gobreaker.StateClosed))

	return b
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// LoadForecasts loads through the breaker
func (b *BreakerStore) LoadForecasts(ctx context.Context) ([]models.ForecastRecord, error) {
	records, err := b.cb.Execute(func() ([]models.ForecastRecord, error) {
		return b.inner.LoadForecasts(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("forecast store %s unavailable: %w", b.name, err)
		}
		return nil, err
	}
	return records, nil
}

// State returns the current breaker state
func (b *BreakerStore) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerStore) HealthCheck(ctx context.Context) error {
	return b.inner.HealthCheck(ctx)
}
