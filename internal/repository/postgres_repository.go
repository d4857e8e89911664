package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/jmoiron/sqlx"

	"park-rain-watch/internal/models"
	"park-rain-watch/pkg/database"
	"park-rain-watch/pkg/logging"
	"park-rain-watch/pkg/metrics"
)

// BackendPostgresName labels metrics and logs for the relational store
const BackendPostgresName = "postgres"

// unwindQuery is the relational form of unwinding daily_forecast: one row per
// array element, in park then array order.
const unwindQuery = `
	SELECT
		p.name,
		p.latitude,
		p.longitude,
		p.distance,
		f.elem->>'date' AS date,
		(f.elem->>'chance_of_precipitation')::double precision AS chance_of_precipitation
	FROM parks p
	CROSS JOIN LATERAL jsonb_array_elements(p.daily_forecast) WITH ORDINALITY AS f(elem, ord)
	ORDER BY p.id, f.ord
`

const upsertParkQuery = `
	INSERT INTO parks (name, latitude, longitude, distance, daily_forecast, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (name) DO UPDATE SET
		latitude = EXCLUDED.latitude,
		longitude = EXCLUDED.longitude,
		distance = EXCLUDED.distance,
		daily_forecast = EXCLUDED.daily_forecast,
		updated_at = EXCLUDED.updated_at
`

// forecastRow is one unwound row; a null chance stays distinguishable from 0.
type forecastRow struct {
	Name      string          `db:"name"`
	Latitude  float64         `db:"latitude"`
	Longitude float64         `db:"longitude"`
	Distance  float64         `db:"distance"`
	Date      sql.NullString  `db:"date"`
	Chance    sql.NullFloat64 `db:"chance_of_precipitation"`
}

// record converts the row. A null chance becomes NaN so validation skips it.
func (f forecastRow) record() models.ForecastRecord {
	chance := math.NaN()
	if f.Chance.Valid {
		chance = f.Chance.Float64
	}
	return models.ForecastRecord{
		ParkName:              f.Name,
		Latitude:              f.Latitude,
		Longitude:             f.Longitude,
		Distance:              f.Distance,
		Date:                  f.Date.String,
		ChanceOfPrecipitation: chance,
	}
}

type postgresForecastRepository struct {
	db      *database.PostgresDB
	logger  *logging.ContextLogger
	metrics *metrics.Collector
}

// NewPostgresForecastRepository reads forecasts from the parks table
func NewPostgresForecastRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) ForecastRepository {
	return &postgresForecastRepository{
		db:      db,
		logger:  logger.WithFields(logging.Fields{"backend": BackendPostgresName}),
		metrics: metricsCollector,
	}
}

// LoadForecasts expands every park's daily_forecast array into flat records
func (r *postgresForecastRepository) LoadForecasts(ctx context.Context) ([]models.ForecastRecord, error) {
	start := time.Now()
	defer func() {
		r.metrics.ForecastLoadDuration.WithLabelValues(BackendPostgresName).Observe(time.Since(start).Seconds())
	}()

	var rows []forecastRow
	if err := r.db.SelectContext(ctx, "unwind_daily_forecast", &rows, unwindQuery); err != nil {
		r.metrics.ForecastLoadErrors.WithLabelValues(BackendPostgresName).Inc()
		return nil, loadFailed(BackendPostgresName, err)
	}

	records := make([]models.ForecastRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	unwound := len(rows)
	records = keepValid(ctx, records, r.logger, r.metrics)

	r.logger.Debug(ctx, "[REPO_LOAD_FORECASTS] Forecasts loaded", logging.Fields{
		"records":  len(records),
		"unwound":  unwound,
		"duration": time.Since(start).String(),
	})

	return records, nil
}

// UpsertParks writes all parks in one transaction
func (r *postgresForecastRepository) UpsertParks(ctx context.Context, parks []models.Park) (int, error) {
	if len(parks) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx, upsertParkQuery)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, p := range parks {
			days := p.DailyForecast
			if days == nil {
				days = []models.DailyForecast{}
			}
			payload, err := json.Marshal(days)
			if err != nil {
				return fmt.Errorf("failed to encode forecast for %s: %w", p.Name, err)
			}

			if _, err := stmt.ExecContext(ctx, p.Name, p.Latitude, p.Longitude, p.Distance, string(payload), now); err != nil {
				return fmt.Errorf("failed to upsert park %s: %w", p.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	r.logger.Info(ctx, "[REPO_UPSERT_PARKS] Parks written", logging.Fields{
		"parks": len(parks),
	})
	return len(parks), nil
}

func (r *postgresForecastRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}
