package repository

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"park-rain-watch/internal/models"
	"park-rain-watch/pkg/logging"
	"park-rain-watch/pkg/metrics"
)

// BackendMongoName labels metrics and logs for the document store
const BackendMongoName = "mongo"

// unwindPipeline expands daily_forecast into one document per forecast day.
var unwindPipeline = mongo.Pipeline{
	{{Key: "$unwind", Value: "$daily_forecast"}},
}

// DocumentCollection is the subset of database.MongoDB the repository uses
type DocumentCollection interface {
	Aggregate(ctx context.Context, queryType string, pipeline mongo.Pipeline, results interface{}) error
	BulkWrite(ctx context.Context, queryType string, writes []mongo.WriteModel) (*mongo.BulkWriteResult, error)
	HealthCheck(ctx context.Context) error
}

// unwoundPark is a park document after $unwind: daily_forecast is a single object.
type unwoundPark struct {
	Name          string     `bson:"name"`
	Latitude      float64    `bson:"latitude"`
	Longitude     float64    `bson:"longitude"`
	Distance      float64    `bson:"distance"`
	DailyForecast unwoundDay `bson:"daily_forecast"`
}

// unwoundDay keeps an absent or null chance distinguishable from 0.
type unwoundDay struct {
	Date                  string   `bson:"date"`
	ChanceOfPrecipitation *float64 `bson:"chance_of_precipitation"`
}

// record flattens the document. A missing chance becomes NaN so validation skips it.
func (u unwoundPark) record() models.ForecastRecord {
	chance := math.NaN()
	if u.DailyForecast.ChanceOfPrecipitation != nil {
		chance = *u.DailyForecast.ChanceOfPrecipitation
	}
	return models.ForecastRecord{
		ParkName:              u.Name,
		Latitude:              u.Latitude,
		Longitude:             u.Longitude,
		Distance:              u.Distance,
		Date:                  u.DailyForecast.Date,
		ChanceOfPrecipitation: chance,
	}
}

type mongoForecastRepository struct {
	coll    DocumentCollection
	logger  *logging.ContextLogger
	metrics *metrics.Collector
}

// NewMongoForecastRepository reads forecasts from a park collection
func NewMongoForecastRepository(coll DocumentCollection, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) ForecastRepository {
	return &mongoForecastRepository{
		coll:    coll,
		logger:  logger.WithFields(logging.Fields{"backend": BackendMongoName}),
		metrics: metricsCollector,
	}
}

// LoadForecasts runs the unwind aggregation and flattens each result
func (r *mongoForecastRepository) LoadForecasts(ctx context.Context) ([]models.ForecastRecord, error) {
	start := time.Now()
	defer func() {
		r.metrics.ForecastLoadDuration.WithLabelValues(BackendMongoName).Observe(time.Since(start).Seconds())
	}()

	var docs []unwoundPark
	if err := r.coll.Aggregate(ctx, "unwind_daily_forecast", unwindPipeline, &docs); err != nil {
		r.metrics.ForecastLoadErrors.WithLabelValues(BackendMongoName).Inc()
		return nil, loadFailed(BackendMongoName, err)
	}

	records := make([]models.ForecastRecord, 0, len(docs))
	for _, d := range docs {
		records = append(records, d.record())
	}
	records = keepValid(ctx, records, r.logger, r.metrics)

	r.logger.Debug(ctx, "[REPO_LOAD_FORECASTS] Forecasts loaded", logging.Fields{
		"records":  len(records),
		"unwound":  len(docs),
		"duration": time.Since(start).String(),
	})

	return records, nil
}

// UpsertParks replaces each park document by name, inserting it when absent
func (r *mongoForecastRepository) UpsertParks(ctx context.Context, parks []models.Park) (int, error) {
	if len(parks) == 0 {
		return 0, nil
	}

	writes := make([]mongo.WriteModel, 0, len(parks))
	for _, p := range parks {
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"name": p.Name}).
			SetReplacement(p).
			SetUpsert(true))
	}

	result, err := r.coll.BulkWrite(ctx, "upsert_parks", writes)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert parks: %w", err)
	}

	written := int(result.UpsertedCount + result.MatchedCount)
	r.logger.Info(ctx, "[REPO_UPSERT_PARKS] Parks written", logging.Fields{
		"upserted": result.UpsertedCount,
		"matched":  result.MatchedCount,
	})
	return written, nil
}

func (r *mongoForecastRepository) HealthCheck(ctx context.Context) error {
	return r.coll.HealthCheck(ctx)
}
