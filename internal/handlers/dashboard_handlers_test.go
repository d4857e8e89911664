package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"park-rain-watch/internal/models"
	"park-rain-watch/internal/repository"
	"park-rain-watch/internal/services"
	"park-rain-watch/pkg/logging"
	"park-rain-watch/pkg/metrics"
)

type stubStore struct {
	mu        sync.Mutex
	records   []models.ForecastRecord
	err       error
	healthErr error
	loads     int
}

func (s *stubStore) LoadForecasts(context.Context) ([]models.ForecastRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

func (s *stubStore) HealthCheck(context.Context) error { return s.healthErr }

func scenarioRecords() []models.ForecastRecord {
	return []models.ForecastRecord{
		{ParkName: "Ohiopyle", Latitude: 39.8, Longitude: -79.5, Distance: 60, Date: "Friday, Jun 2", ChanceOfPrecipitation: 0.3},
		{ParkName: "Ohiopyle", Latitude: 39.8, Longitude: -79.5, Distance: 60, Date: "Friday, Jun 2", ChanceOfPrecipitation: 0.1},
		{ParkName: "Presque Isle", Latitude: 42.1, Longitude: -80.1, Distance: 130, Date: "Friday, Jun 2", ChanceOfPrecipitation: 0.5},
		{ParkName: "Presque Isle", Latitude: 42.1, Longitude: -80.1, Distance: 130, Date: "Monday, Jun 5", ChanceOfPrecipitation: 0.7},
	}
}

func newTestRouter(t *testing.T, store *stubStore) *mux.Router {
	t.Helper()
	logger := logging.NewDiscardLogger()
	collector := metrics.NewCollectorWithRegistry("test", prometheus.NewRegistry())

	cached := repository.NewCachedForecastStore(store, time.Minute, clockwork.NewFakeClock(), logger, collector)
	dashboard := services.NewDashboardService(cached, logger, collector)
	refresher := services.NewRefreshService(cached, 0, time.Second, logger, collector)
	handler := NewDashboardHandler(dashboard, refresher, cached, "mongo", "pk.test-token", logger, collector)

	router := mux.NewRouter()
	router.Use(RequestID)
	handler.RegisterRoutes(router)
	return router
}

func do(router http.Handler, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestGetForecasts(t *testing.T) {
	router := newTestRouter(t, &stubStore{records: scenarioRecords()})

	rec := do(router, http.MethodGet, "/api/forecasts")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Data  []map[string]interface{} `json:"data"`
		Total int                      `json:"total"`
	}
	decode(t, rec, &body)
	assert.Equal(t, 4, body.Total)
	assert.Equal(t, "Ohiopyle", body.Data[0]["name"])
	assert.Equal(t, 0.3, body.Data[0]["chance_precipitation"])
	assert.Equal(t, 0.7, body.Data[0]["one_minus_chance_precipitation"])
	assert.Equal(t, 60.0, body.Data[0]["miles_from_pgh"])
}

func TestGetDates(t *testing.T) {
	router := newTestRouter(t, &stubStore{records: scenarioRecords()})

	rec := do(router, http.MethodGet, "/api/dates")
	require.Equal(t, http.StatusOK, rec.Code)

	var body services.DateOptions
	decode(t, rec, &body)
	assert.Equal(t, []string{"Friday, Jun 2", "Monday, Jun 5"}, body.Available)
	assert.Equal(t, []string{"Friday, Jun 2"}, body.Weekend)
}

func TestGetPivot(t *testing.T) {
	router := newTestRouter(t, &stubStore{records: scenarioRecords()})

	tests := []struct {
		name        string
		query       url.Values
		wantColumns []string
		wantRows    [][]interface{}
	}{
		{
			name:        "weekend default",
			query:       url.Values{},
			wantColumns: []string{"name", "lat", "lon", "miles_from_pgh", "Friday, Jun 2"},
			wantRows: [][]interface{}{
				{"Ohiopyle", 39.8, -79.5, 60.0, 0.1},
				{"Presque Isle", 42.1, -80.1, 130.0, 0.5},
			},
		},
		{
			name:        "explicit dates with a missing cell",
			query:       url.Values{"date": {"Monday, Jun 5", "Friday, Jun 2"}},
			wantColumns: []string{"name", "lat", "lon", "miles_from_pgh", "Friday, Jun 2", "Monday, Jun 5"},
			wantRows: [][]interface{}{
				{"Ohiopyle", 39.8, -79.5, 60.0, 0.1, nil},
				{"Presque Isle", 42.1, -80.1, 130.0, 0.5, 0.7},
			},
		},
		{
			name:        "date not in forecast",
			query:       url.Values{"date": {"Saturday, Jun 3"}},
			wantColumns: []string{"name", "lat", "lon", "miles_from_pgh"},
			wantRows:    [][]interface{}{},
		},
		{
			name:        "explicit empty",
			query:       url.Values{"dates": {""}},
			wantColumns: []string{"name", "lat", "lon", "miles_from_pgh"},
			wantRows:    [][]interface{}{},
		},
		{
			name:        "none",
			query:       url.Values{"none": {"1"}, "date": {"Friday, Jun 2"}},
			wantColumns: []string{"name", "lat", "lon", "miles_from_pgh"},
			wantRows:    [][]interface{}{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(router, http.MethodGet, "/api/pivot?"+tt.query.Encode())
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var body struct {
				Columns []string        `json:"columns"`
				Rows    [][]interface{} `json:"rows"`
			}
			decode(t, rec, &body)
			assert.Equal(t, tt.wantColumns, body.Columns)
			assert.Equal(t, tt.wantRows, body.Rows)
		})
	}
}

func TestGetMap(t *testing.T) {
	router := newTestRouter(t, &stubStore{records: scenarioRecords()})

	rec := do(router, http.MethodGet, "/api/map?highlight=high")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		MapStyle  string `json:"mapStyle"`
		Highlight string `json:"highlight"`
		Layers    []struct {
			Type       string                     `json:"@@type"`
			ColorRange [][3]int                   `json:"colorRange"`
			Data       []struct{ Weight float64 } `json:"data"`
		} `json:"layers"`
	}
	decode(t, rec, &body)
	assert.Equal(t, "mapbox://styles/mapbox/light-v9", body.MapStyle)
	assert.Equal(t, "high", body.Highlight)
	require.Len(t, body.Layers, 2)
	assert.Equal(t, "HeatmapLayer", body.Layers[1].Type)
	assert.Equal(t, [3]int{8, 104, 172}, body.Layers[1].ColorRange[5])
	require.Len(t, body.Layers[1].Data, 3)
	assert.Equal(t, 0.3, body.Layers[1].Data[0].Weight)
}

func TestBadQuery(t *testing.T) {
	router := newTestRouter(t, &stubStore{records: scenarioRecords()})

	for _, target := range []string{"/api/pivot?highlight=medium", "/api/map?none=2"} {
		t.Run(target, func(t *testing.T) {
			rec := do(router, http.MethodGet, target)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var body ErrorResponse
			decode(t, rec, &body)
			assert.Equal(t, "Bad Request", body.Error)
			assert.Equal(t, http.StatusBadRequest, body.Code)
			assert.Contains(t, body.Message, "invalid query")
		})
	}
}

func TestStoreFailure(t *testing.T) {
	router := newTestRouter(t, &stubStore{err: errors.New("connection refused")})

	for _, target := range []string{"/api/forecasts", "/api/dates", "/api/pivot", "/api/map"} {
		t.Run(target, func(t *testing.T) {
			rec := do(router, http.MethodGet, target)
			require.Equal(t, http.StatusBadGateway, rec.Code)

			var body ErrorResponse
			decode(t, rec, &body)
			assert.Equal(t, "Bad Gateway", body.Error)
			assert.Equal(t, "failed to load forecasts", body.Message)
		})
	}

	rec := do(router, http.MethodPost, "/api/cache/refresh")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestRefreshCache(t *testing.T) {
	store := &stubStore{records: scenarioRecords()}
	router := newTestRouter(t, store)

	require.Equal(t, http.StatusOK, do(router, http.MethodGet, "/api/forecasts").Code)
	require.Equal(t, http.StatusOK, do(router, http.MethodGet, "/api/forecasts").Code)
	assert.Equal(t, 1, store.loads)

	rec := do(router, http.MethodPost, "/api/cache/refresh")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Records int                    `json:"records"`
		Cache   repository.CacheStatus `json:"cache"`
	}
	decode(t, rec, &body)
	assert.Equal(t, 4, body.Records)
	assert.True(t, body.Cache.Cached)
	assert.Equal(t, 2, store.loads)

	assert.Equal(t, http.StatusMethodNotAllowed, do(router, http.MethodGet, "/api/cache/refresh").Code)
}

func TestRefreshCache_FailureKeepsServing(t *testing.T) {
	store := &stubStore{records: scenarioRecords()}
	router := newTestRouter(t, store)

	require.Equal(t, http.StatusOK, do(router, http.MethodGet, "/api/forecasts").Code)

	store.mu.Lock()
	store.err = errors.New("mongo down")
	store.mu.Unlock()

	assert.Equal(t, http.StatusBadGateway, do(router, http.MethodPost, "/api/cache/refresh").Code)

	rec := do(router, http.MethodGet, "/api/forecasts")
	require.Equal(t, http.StatusOK, rec.Code)
	var body ForecastsResponse
	decode(t, rec, &body)
	assert.Equal(t, 4, body.Total)
}

func TestHealthCheck(t *testing.T) {
	store := &stubStore{}
	router := newTestRouter(t, store)

	rec := do(router, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	decode(t, rec, &body)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "mongo", body["backend"])

	store.healthErr = errors.New("no reachable servers")
	rec = do(router, http.MethodGet, "/health")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	decode(t, rec, &body)
	assert.Equal(t, "unhealthy", body["status"])
	assert.Equal(t, "no reachable servers", body["error"])
}

func TestDashboardPage(t *testing.T) {
	router := newTestRouter(t, &stubStore{records: scenarioRecords()})

	rec := do(router, http.MethodGet, "/?highlight=high&date=Friday,+Jun+2&date=Monday,+Jun+5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	page := rec.Body.String()
	assert.Contains(t, page, "PA State Park 🌧️ Watch")
	assert.Contains(t, page, "Highlighted Weather Map")
	assert.Contains(t, page, "Selected Data")
	assert.Contains(t, page, "Full Forecast Data")
	assert.Contains(t, page, `<option value="Monday, Jun 5" selected>`)
	assert.Contains(t, page, `value="high" checked`)
	assert.Contains(t, page, "<th>Monday, Jun 5</th>")
	// Ohiopyle has no Monday reading
	assert.Contains(t, page, "<td>0.1</td><td></td>")
	assert.Contains(t, page, "HeatmapLayer")
	assert.Contains(t, page, "pk.test-token")
}

func TestDashboardPage_DefaultsToWeekend(t *testing.T) {
	router := newTestRouter(t, &stubStore{records: scenarioRecords()})

	page := do(router, http.MethodGet, "/").Body.String()
	assert.Contains(t, page, `<option value="Friday, Jun 2" selected>`)
	assert.Contains(t, page, `<option value="Monday, Jun 5">`)
	assert.Contains(t, page, `value="low" checked`)
	assert.NotContains(t, page, "<th>Monday, Jun 5</th>")
}

func TestDashboardPage_Errors(t *testing.T) {
	router := newTestRouter(t, &stubStore{err: errors.New("connection refused")})

	rec := do(router, http.MethodGet, "/")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "Forecast data is unavailable")
	assert.NotContains(t, rec.Body.String(), "connection refused")

	rec = do(router, http.MethodGet, "/?highlight=sideways")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid query")
}

func TestRequestID(t *testing.T) {
	router := newTestRouter(t, &stubStore{})

	rec := do(router, http.MethodGet, "/health")
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))
}

func TestDocs(t *testing.T) {
	router := newTestRouter(t, &stubStore{})

	rec := do(router, http.MethodGet, "/api/docs/openapi.json")
	require.Equal(t, http.StatusOK, rec.Code)
	var doc map[string]interface{}
	decode(t, rec, &doc)
	paths := doc["paths"].(map[string]interface{})
	for _, p := range []string{"/api/forecasts", "/api/dates", "/api/pivot", "/api/map", "/api/cache/refresh", "/health"} {
		assert.Contains(t, paths, p)
	}

	rec = do(router, http.MethodGet, "/api/docs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `url: "\/api\/docs\/openapi.json"`) ||
		strings.Contains(rec.Body.String(), `url: "/api/docs/openapi.json"`))
}

func TestSendJSON_UnencodableBody(t *testing.T) {
	h := &DashboardHandler{
		logger:  logging.NewDiscardLogger(),
		metrics: metrics.NewCollectorWithRegistry("test", prometheus.NewRegistry()),
	}

	rec := httptest.NewRecorder()
	h.sendJSON(rec, map[string]float64{"lat": math.NaN()}, http.StatusOK)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body ErrorResponse
	decode(t, rec, &body)
	assert.Equal(t, http.StatusInternalServerError, body.Code)
	assert.Equal(t, "failed to encode response", body.Message)
}
