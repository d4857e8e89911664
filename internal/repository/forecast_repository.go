package repository

import (
	"context"
	"errors"
	"fmt"

	"park-rain-watch/internal/models"
	"park-rain-watch/pkg/logging"
	"park-rain-watch/pkg/metrics"
)

// ForecastStore provides read access to flattened park forecasts
type ForecastStore interface {
	// LoadForecasts returns one record per park and forecast day.
	LoadForecasts(ctx context.Context) ([]models.ForecastRecord, error)

	// HealthCheck reports whether the backing store is reachable.
	HealthCheck(ctx context.Context) error
}

// ParkWriter stores park documents with their nested forecasts
type ParkWriter interface {
	// UpsertParks inserts or replaces parks by name and returns how many were written.
	UpsertParks(ctx context.Context, parks []models.Park) (int, error)
}

// ForecastRepository is a store that can be both read and seeded
type ForecastRepository interface {
	ForecastStore
	ParkWriter
}

// ErrUnknownBackend is returned by Open for an unsupported STORE_BACKEND
var ErrUnknownBackend = errors.New("unknown store backend")

// keepValid drops records that fail validation, logging and counting each one.
func keepValid(ctx context.Context, records []models.ForecastRecord, logger *logging.ContextLogger, m *metrics.Collector) []models.ForecastRecord {
	valid := records[:0]
	for _, r := range records {
		if err := r.Validate(); err != nil {
			field := "unknown"
			var vErr *models.ValidationError
			if errors.As(err, &vErr) {
				field = vErr.Field
			}
			m.RecordSkippedRecord(field)
			logger.Warn(ctx, "[REPO_SKIP_RECORD] Skipping malformed forecast record", logging.Fields{
				"park":   r.ParkName,
				"date":   r.Date,
				"reason": err.Error(),
			})
			continue
		}
		valid = append(valid, r)
	}
	return valid
}

func loadFailed(backend string, err error) error {
	return fmt.Errorf("failed to load forecasts from %s: %w", backend, err)
}
