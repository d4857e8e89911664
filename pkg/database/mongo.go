package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"park-rain-watch/pkg/logging"
	"park-rain-watch/pkg/metrics"
)

// MongoConfig holds document store connection configuration
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

// MongoDB wraps one collection of a mongo client with monitoring and metrics
type MongoDB struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *logging.StructuredLogger
	metrics    *metrics.Collector
	config     *MongoConfig
}

// NewMongoDB connects to the document store and pings it
func NewMongoDB(ctx context.Context, cfg *MongoConfig, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) (*MongoDB, error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.Timeout).
		SetServerSelectionTimeout(cfg.Timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	logger.Info(ctx, "[DB_INIT] MongoDB connection established", logging.Fields{
		"database":   cfg.Database,
		"collection": cfg.Collection,
	})

	return &MongoDB{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		logger:     logger,
		metrics:    metricsCollector,
		config:     cfg,
	}, nil
}

// Close disconnects the client
func (m *MongoDB) Close(ctx context.Context) error {
	m.logger.Info(ctx, "[DB_CLOSE] Closing mongo connection", logging.Fields{
		"database": m.config.Database,
	})
	return m.client.Disconnect(ctx)
}

// Aggregate runs pipeline on the collection and decodes every result into results,
// which must be a pointer to a slice.
func (m *MongoDB) Aggregate(ctx context.Context, queryType string, pipeline mongo.Pipeline, results interface{}) error {
	start := time.Now()
	defer func() {
		m.metrics.DBQueryDuration.WithLabelValues(queryType).Observe(time.Since(start).Seconds())
	}()

	cursor, err := m.collection.Aggregate(ctx, pipeline)
	if err != nil {
		m.metrics.RecordDBError("aggregate_error")
		m.logger.Error(ctx, "[DB_AGGREGATE_ERROR] Aggregation failed", logging.Fields{
			"query_type": queryType,
			"collection": m.config.Collection,
		}, err)
		return err
	}
	defer cursor.Close(ctx)

	if err := cursor.All(ctx, results); err != nil {
		m.metrics.RecordDBError("decode_error")
		m.logger.Error(ctx, "[DB_DECODE_ERROR] Failed to decode aggregation results", logging.Fields{
			"query_type": queryType,
		}, err)
		return err
	}

	return nil
}

// BulkWrite applies write models to the collection
func (m *MongoDB) BulkWrite(ctx context.Context, queryType string, writes []mongo.WriteModel) (*mongo.BulkWriteResult, error) {
	start := time.Now()
	defer func() {
		m.metrics.DBQueryDuration.WithLabelValues(queryType).Observe(time.Since(start).Seconds())
	}()

	result, err := m.collection.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if err != nil {
		m.metrics.RecordDBError("bulk_write_error")
		m.logger.Error(ctx, "[DB_BULK_WRITE_ERROR] Bulk write failed", logging.Fields{
			"query_type": queryType,
			"writes":     len(writes),
		}, err)
		return nil, err
	}
	return result, nil
}

// HealthCheck pings the primary
func (m *MongoDB) HealthCheck(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := m.client.Ping(pingCtx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongo health check failed: %w", err)
	}
	return nil
}
