package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"park-rain-watch/internal/repository"
	"park-rain-watch/internal/services"
	"park-rain-watch/internal/visualization"
	"park-rain-watch/pkg/logging"
	"park-rain-watch/pkg/metrics"
)

const healthCheckTimeout = 5 * time.Second

// DashboardHandler serves the dashboard page and its JSON API
type DashboardHandler struct {
	dashboard   *services.DashboardService
	refresher   *services.RefreshService
	store       repository.ForecastStore
	backend     string
	mapboxToken string
	validate    *validator.Validate
	logger      *logging.StructuredLogger
	metrics     *metrics.Collector
}

// NewDashboardHandler creates a new dashboard handler. store is only used for
// health checks.
func NewDashboardHandler(
	dashboard *services.DashboardService,
	refresher *services.RefreshService,
	store repository.ForecastStore,
	backend string,
	mapboxToken string,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *DashboardHandler {
	return &DashboardHandler{
		dashboard:   dashboard,
		refresher:   refresher,
		store:       store,
		backend:     backend,
		mapboxToken: mapboxToken,
		validate:    validator.New(),
		logger:      logger,
		metrics:     metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// ForecastsResponse is the body of GET /api/forecasts
type ForecastsResponse struct {
	Data  interface{} `json:"data"`
	Total int         `json:"total"`
}

// selectionQuery is the date and highlight selection shared by the page,
// pivot and map endpoints.
type selectionQuery struct {
	Dates     []string `validate:"max=64,dive,max=128"`
	Highlight string   `validate:"omitempty,oneof=low high"`
	None      string   `validate:"omitempty,oneof=0 1"`
	explicit  bool
}

// parseSelection reads repeated date params. Any of date, dates or none=1
// being present makes the selection explicit, so an empty form submit
// shows empty tables instead of the weekend default.
func (h *DashboardHandler) parseSelection(r *http.Request) (services.Selection, error) {
	q := r.URL.Query()

	query := selectionQuery{
		Highlight: q.Get("highlight"),
		None:      q.Get("none"),
		explicit:  q.Has("date") || q.Has("dates"),
	}
	for _, key := range []string{"date", "dates"} {
		for _, d := range q[key] {
			if d = strings.TrimSpace(d); d != "" {
				query.Dates = append(query.Dates, d)
			}
		}
	}

	if err := h.validate.Struct(query); err != nil {
		return services.Selection{}, validationError(err)
	}

	if query.None == "1" {
		query.explicit = true
		query.Dates = nil
	}

	highlight, err := visualization.ParseHighlight(query.Highlight)
	if err != nil {
		return services.Selection{}, err
	}

	return services.Selection{
		Dates:     query.Dates,
		Explicit:  query.explicit,
		Highlight: highlight,
	}, nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
	}
	return fmt.Errorf("invalid query: %s", strings.Join(msgs, "; "))
}

// GetForecasts handles GET /api/forecasts
func (h *DashboardHandler) GetForecasts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observe("/api/forecasts", time.Now())

	records, err := h.dashboard.Forecasts(ctx)
	if err != nil {
		h.storeError(w, r, "/api/forecasts", err)
		return
	}

	h.metrics.RecordAPIRequest("/api/forecasts", "GET", "200")
	h.sendJSON(w, ForecastsResponse{Data: records, Total: len(records)}, http.StatusOK)
}

// GetDates handles GET /api/dates
func (h *DashboardHandler) GetDates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observe("/api/dates", time.Now())

	options, err := h.dashboard.Dates(ctx)
	if err != nil {
		h.storeError(w, r, "/api/dates", err)
		return
	}

	h.metrics.RecordAPIRequest("/api/dates", "GET", "200")
	h.sendJSON(w, options, http.StatusOK)
}

// GetPivot handles GET /api/pivot
func (h *DashboardHandler) GetPivot(w http.ResponseWriter, r *http.Request) {
	d, ok := h.buildDashboard(w, r, "/api/pivot")
	if !ok {
		return
	}

	h.metrics.RecordAPIRequest("/api/pivot", "GET", "200")
	h.sendJSON(w, d.Table, http.StatusOK)
}

// GetMap handles GET /api/map
func (h *DashboardHandler) GetMap(w http.ResponseWriter, r *http.Request) {
	d, ok := h.buildDashboard(w, r, "/api/map")
	if !ok {
		return
	}

	h.metrics.RecordAPIRequest("/api/map", "GET", "200")
	h.sendJSON(w, d.Deck, http.StatusOK)
}

func (h *DashboardHandler) buildDashboard(w http.ResponseWriter, r *http.Request, endpoint string) (*services.Dashboard, bool) {
	defer h.observe(endpoint, time.Now())

	sel, err := h.parseSelection(r)
	if err != nil {
		h.metrics.RecordAPIError("bad_request", endpoint)
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return nil, false
	}

	d, err := h.dashboard.Build(r.Context(), sel)
	if err != nil {
		h.storeError(w, r, endpoint, err)
		return nil, false
	}
	return d, true
}

// RefreshCache handles POST /api/cache/refresh
func (h *DashboardHandler) RefreshCache(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observe("/api/cache/refresh", time.Now())

	result, err := h.refresher.RefreshNow(ctx)
	if err != nil {
		h.storeError(w, r, "/api/cache/refresh", err)
		return
	}

	h.metrics.RecordAPIRequest("/api/cache/refresh", "POST", "200")
	h.sendJSON(w, result, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *DashboardHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := map[string]interface{}{
		"status":    "healthy",
		"backend":   h.backend,
		"cache":     h.refresher.Status(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := h.store.HealthCheck(ctx); err != nil {
		h.logger.Warn(ctx, "[HEALTH_CHECK_FAILED] Forecast store is unreachable", logging.Fields{
			"backend": h.backend,
			"error":   err.Error(),
		})
		status["status"] = "unhealthy"
		status["error"] = err.Error()
		h.sendJSON(w, status, http.StatusServiceUnavailable)
		return
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, http.StatusOK)
}

// storeError reports a failed forecast load as 502
func (h *DashboardHandler) storeError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	h.logger.Error(r.Context(), "[API_STORE_ERROR] Failed to load forecasts", logging.Fields{
		"endpoint": endpoint,
		"backend":  h.backend,
	}, err)
	h.metrics.RecordAPIError("store_error", endpoint)
	h.sendError(w, r, "failed to load forecasts", http.StatusBadGateway)
}

func (h *DashboardHandler) observe(endpoint string, start time.Time) {
	h.metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// sendJSON sends a JSON response. A body that cannot be encoded becomes a 500.
func (h *DashboardHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	body, err := json.Marshal(data)
	if err != nil {
		h.logger.Error(context.Background(), "[API_ENCODE_ERROR] Failed to encode response", logging.Fields{
			"status_code": statusCode,
		}, err)
		statusCode = http.StatusInternalServerError
		body, _ = json.Marshal(ErrorResponse{
			Error:   http.StatusText(statusCode),
			Message: "failed to encode response",
			Code:    statusCode,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(append(body, '\n'))
}

// sendError sends an error response
func (h *DashboardHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	h.metrics.RecordAPIRequest(r.URL.Path, r.Method, strconv.Itoa(statusCode))

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// RegisterRoutes registers the dashboard page and API routes
func (h *DashboardHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/", h.Dashboard).Methods("GET")
	router.HandleFunc("/api/forecasts", h.GetForecasts).Methods("GET")
	router.HandleFunc("/api/dates", h.GetDates).Methods("GET")
	router.HandleFunc("/api/pivot", h.GetPivot).Methods("GET")
	router.HandleFunc("/api/map", h.GetMap).Methods("GET")
	router.HandleFunc("/api/cache/refresh", h.RefreshCache).Methods("POST")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc("/api/docs", SwaggerUI).Methods("GET")
	router.HandleFunc(openAPIPath, OpenAPISpec).Methods("GET")
}
