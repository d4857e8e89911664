package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"park-rain-watch/internal/config"
	"park-rain-watch/internal/models"
	"park-rain-watch/pkg/logging"
)

type stubRepository struct {
	*stubStore
}

func (stubRepository) UpsertParks(_ context.Context, parks []models.Park) (int, error) {
	return len(parks), nil
}

func TestOpen_UnknownBackend(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Backend: "sqlite"}}

	_, err := Open(context.Background(), cfg, logging.NewDiscardLogger(), newTestCollector(), clockwork.NewFakeClock())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownBackend)
	assert.Contains(t, err.Error(), `"sqlite"`)
}

func TestAssemble_ReadPath(t *testing.T) {
	cfg := &config.Config{
		Cache:   config.CacheConfig{TTL: time.Minute},
		Breaker: config.BreakerConfig{MaxFailures: 2, OpenTimeout: time.Minute},
	}
	inner := &stubStore{records: sampleRecords}
	closed := false

	stores := Assemble("mongo", stubRepository{inner}, cfg, logging.NewDiscardLogger(), newTestCollector(), clockwork.NewFakeClock(),
		func(context.Context) error { closed = true; return nil })

	for i := 0; i < 3; i++ {
		records, err := stores.Forecasts.LoadForecasts(context.Background())
		require.NoError(t, err)
		assert.Equal(t, sampleRecords, records)
	}
	assert.Equal(t, 1, inner.callCount())
	assert.Equal(t, "mongo", stores.Backend)

	require.NoError(t, stores.Close(context.Background()))
	assert.True(t, closed)
}

func TestStores_CloseWithoutBackend(t *testing.T) {
	assert.NoError(t, (&Stores{}).Close(context.Background()))
}
