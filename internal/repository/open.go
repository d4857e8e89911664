package repository

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"

	"park-rain-watch/internal/config"
	"park-rain-watch/pkg/database"
	"park-rain-watch/pkg/logging"
	"park-rain-watch/pkg/metrics"
)

// Stores is an opened backend: the raw repository plus the cached,
// breaker-protected read path the dashboard uses.
type Stores struct {
	Backend    string
	Repository ForecastRepository
	Forecasts  *CachedForecastStore
	Breaker    *BreakerStore
	close      func(ctx context.Context) error
}

// Close releases the backend connection
func (s *Stores) Close(ctx context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close(ctx)
}

// Open connects to the configured backend and assembles the read path
// cache -> breaker -> store.
func Open(ctx context.Context, cfg *config.Config, logger *logging.StructuredLogger, metricsCollector *metrics.Collector, clock clockwork.Clock) (*Stores, error) {
	var (
		repo    ForecastRepository
		closeFn func(ctx context.Context) error
	)

	switch cfg.Store.Backend {
	case config.BackendMongo:
		mdb, err := database.NewMongoDB(ctx, &database.MongoConfig{
			URI:        cfg.Mongo.URI,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.Collection,
			Timeout:    cfg.Mongo.Timeout,
		}, logger, metricsCollector)
		if err != nil {
			return nil, err
		}
		repo = NewMongoForecastRepository(mdb, logger, metricsCollector)
		closeFn = mdb.Close

	case config.BackendPostgres:
		pdb, err := database.NewPostgresDB(&database.Config{
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password,
			Database:        cfg.Database.Database,
			SSLMode:         cfg.Database.SSLMode,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		}, logger, metricsCollector)
		if err != nil {
			return nil, err
		}
		repo = NewPostgresForecastRepository(pdb, logger, metricsCollector)
		closeFn = func(context.Context) error { return pdb.Close() }

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Store.Backend)
	}

	return Assemble(cfg.Store.Backend, repo, cfg, logger, metricsCollector, clock, closeFn), nil
}

// Assemble wraps an existing repository in the breaker and cache.
func Assemble(backend string, repo ForecastRepository, cfg *config.Config, logger *logging.StructuredLogger, metricsCollector *metrics.Collector, clock clockwork.Clock, closeFn func(ctx context.Context) error) *Stores {
	breaker := NewBreakerStore(repo, BreakerSettings{
		Name:        backend,
		MaxFailures: cfg.Breaker.MaxFailures,
		OpenTimeout: cfg.Breaker.OpenTimeout,
	}, logger, metricsCollector)

	return &Stores{
		Backend:    backend,
		Repository: repo,
		Forecasts:  NewCachedForecastStore(breaker, cfg.Cache.TTL, clock, logger, metricsCollector),
		Breaker:    breaker,
		close:      closeFn,
	}
}
