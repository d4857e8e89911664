package services

import (
	"context"
	"fmt"

	"park-rain-watch/internal/models"
	"park-rain-watch/internal/pivot"
	"park-rain-watch/internal/repository"
	"park-rain-watch/internal/visualization"
	"park-rain-watch/pkg/logging"
	"park-rain-watch/pkg/metrics"
)

// Selection is the user's choice of dates and highlight mode.
// When Explicit is false the weekend dates are used and Dates is ignored.
type Selection struct {
	Dates     []string
	Explicit  bool
	Highlight visualization.Highlight
}

// DateOptions lists the forecast dates a user can pick from
type DateOptions struct {
	Available []string `json:"available"`
	Weekend   []string `json:"weekend"`
}

// Dashboard is everything one page render needs
type Dashboard struct {
	Records   []models.DerivedRecord
	Dates     DateOptions
	Selected  []string
	Highlight visualization.Highlight
	Filtered  []models.DerivedRecord
	Table     pivot.Table
	Deck      visualization.Deck
}

// IsSelected reports whether date is part of the current selection
func (d *Dashboard) IsSelected(date string) bool {
	for _, s := range d.Selected {
		if s == date {
			return true
		}
	}
	return false
}

// DashboardService builds dashboard views from the forecast store
type DashboardService struct {
	store   repository.ForecastStore
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(store repository.ForecastStore, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *DashboardService {
	return &DashboardService{
		store:   store,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Forecasts returns every forecast record with its inverse chance
func (s *DashboardService) Forecasts(ctx context.Context) ([]models.DerivedRecord, error) {
	records, err := s.store.LoadForecasts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load forecasts: %w", err)
	}
	return models.Derive(records), nil
}

// Dates returns the available dates in first-appearance order and the weekend default
func (s *DashboardService) Dates(ctx context.Context) (DateOptions, error) {
	records, err := s.Forecasts(ctx)
	if err != nil {
		return DateOptions{}, err
	}
	return dateOptions(records), nil
}

func dateOptions(records []models.DerivedRecord) DateOptions {
	available := models.UniqueDates(records)
	return DateOptions{
		Available: available,
		Weekend:   models.WeekendDates(available),
	}
}

// Build loads the forecasts and assembles the dashboard for sel
func (s *DashboardService) Build(ctx context.Context, sel Selection) (*Dashboard, error) {
	records, err := s.Forecasts(ctx)
	if err != nil {
		return nil, err
	}

	highlight := sel.Highlight
	if highlight == "" {
		highlight = visualization.HighlightLow
	}

	options := dateOptions(records)
	selected := ResolveDates(options, sel)
	filtered := models.FilterByDates(records, selected)

	timer := s.metrics.NewTimer(s.metrics.PivotDuration)
	table := pivot.Pivot(filtered, selected)
	timer.ObserveDuration()
	s.metrics.PivotRows.Observe(float64(len(table.Rows)))

	s.logger.Debug(ctx, "[DASHBOARD_BUILD] Dashboard assembled", logging.Fields{
		"records":   len(records),
		"selected":  len(selected),
		"filtered":  len(filtered),
		"rows":      len(table.Rows),
		"highlight": string(highlight),
	})

	return &Dashboard{
		Records:   records,
		Dates:     options,
		Selected:  selected,
		Highlight: highlight,
		Filtered:  filtered,
		Table:     table,
		Deck:      visualization.BuildDeck(filtered, highlight),
	}, nil
}

// ResolveDates applies sel to the available dates. An explicit selection keeps
// only known dates, in availability order; otherwise the weekend dates apply.
func ResolveDates(options DateOptions, sel Selection) []string {
	if !sel.Explicit {
		return append([]string{}, options.Weekend...)
	}

	wanted := make(map[string]struct{}, len(sel.Dates))
	for _, d := range sel.Dates {
		wanted[d] = struct{}{}
	}
	selected := make([]string, 0, len(sel.Dates))
	for _, d := range options.Available {
		if _, ok := wanted[d]; ok {
			selected = append(selected, d)
		}
	}
	return selected
}
