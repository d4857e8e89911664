package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"park-rain-watch/internal/models"
	"park-rain-watch/internal/repository"
	"park-rain-watch/pkg/logging"
	"park-rain-watch/pkg/metrics"
)

// IngestionService loads park forecast documents into the store
type IngestionService struct {
	writer  repository.ParkWriter
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// IngestionResult contains ingestion statistics
type IngestionResult struct {
	TotalParks    int
	UpsertedParks int
	RejectedParks int
	TotalRecords  int
	Duration      time.Duration
	Errors        []string
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(writer repository.ParkWriter, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *IngestionService {
	return &IngestionService{
		writer:  writer,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// LoadParksFile reads a JSON array of park documents
func LoadParksFile(path string) ([]models.Park, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parks file: %w", err)
	}

	var parks []models.Park
	if err := json.Unmarshal(data, &parks); err != nil {
		return nil, fmt.Errorf("failed to decode parks file %s: %w", path, err)
	}
	return parks, nil
}

// IngestParks validates parks and upserts the valid ones by name. A park
// with any invalid forecast entry is rejected whole.
func (s *IngestionService) IngestParks(ctx context.Context, parks []models.Park) (*IngestionResult, error) {
	startTime := time.Now()

	s.logger.Info(ctx, "[INGEST_START] Starting park ingestion", logging.Fields{
		"park_count": len(parks),
		"stage":      "INITIALIZATION",
	})

	result := &IngestionResult{
		TotalParks: len(parks),
		Errors:     make([]string, 0),
	}

	valid := make([]models.Park, 0, len(parks))
	for _, park := range parks {
		if err := validatePark(park); err != nil {
			result.RejectedParks++
			result.Errors = append(result.Errors, fmt.Sprintf("park %q: %v", park.Name, err))
			s.logger.Warn(ctx, "[INGEST_REJECT] Park rejected", logging.Fields{
				"park":  park.Name,
				"error": err.Error(),
				"stage": "VALIDATION",
			})
			continue
		}
		valid = append(valid, park)
		result.TotalRecords += len(park.DailyForecast)
	}

	upserted, err := s.writer.UpsertParks(ctx, valid)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert parks: %w", err)
	}
	result.UpsertedParks = upserted
	result.Duration = time.Since(startTime)

	s.logger.Info(ctx, "[INGEST_COMPLETE] Park ingestion completed", logging.Fields{
		"total_parks":      result.TotalParks,
		"upserted_parks":   result.UpsertedParks,
		"rejected_parks":   result.RejectedParks,
		"total_records":    result.TotalRecords,
		"duration_seconds": result.Duration.Seconds(),
		"stage":            "COMPLETE",
	})

	return result, nil
}

func validatePark(park models.Park) error {
	if park.Name == "" {
		return &models.ValidationError{Field: "name", Value: park.Name, Message: "park name is required"}
	}
	for _, r := range park.Flatten() {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}
