package handlers

import (
	"embed"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"park-rain-watch/internal/services"
	"park-rain-watch/internal/visualization"
	"park-rain-watch/pkg/logging"
)

const (
	pageTitle   = "PA State Park 🌧️ Watch"
	headerImage = "https://cdn.shopify.com/s/files/1/0700/6373/products/0137-Pennsylvania-State-Parks-Map-Print-natural-earth-1.jpg?v=1573340562"
)

//go:embed templates/dashboard.html
var templateFS embed.FS

var dashboardTemplate = template.Must(template.New("dashboard.html").Funcs(template.FuncMap{
	"num":  formatNumber,
	"cell": formatCell,
}).ParseFS(templateFS, "templates/dashboard.html"))

type pageData struct {
	Title       string
	HeaderImage string
	MapboxToken string
	Highlights  []visualization.Highlight
	Dashboard   *services.Dashboard
	Error       string
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatCell renders an empty pivot cell as blank
func formatCell(v *float64) string {
	if v == nil {
		return ""
	}
	return formatNumber(*v)
}

// Dashboard handles GET /
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observe("/", time.Now())

	data := pageData{
		Title:       pageTitle,
		HeaderImage: headerImage,
		MapboxToken: h.mapboxToken,
		Highlights:  visualization.Highlights,
	}

	sel, err := h.parseSelection(r)
	if err != nil {
		h.metrics.RecordAPIError("bad_request", "/")
		data.Error = err.Error()
		h.renderPage(w, r, data, http.StatusBadRequest)
		return
	}

	d, err := h.dashboard.Build(ctx, sel)
	if err != nil {
		h.logger.Error(ctx, "[PAGE_STORE_ERROR] Failed to build dashboard", logging.Fields{
			"backend": h.backend,
		}, err)
		h.metrics.RecordAPIError("store_error", "/")
		data.Error = "Forecast data is unavailable right now. Try again shortly."
		h.renderPage(w, r, data, http.StatusBadGateway)
		return
	}

	data.Dashboard = d
	h.renderPage(w, r, data, http.StatusOK)
}

func (h *DashboardHandler) renderPage(w http.ResponseWriter, r *http.Request, data pageData, statusCode int) {
	h.metrics.RecordAPIRequest("/", r.Method, strconv.Itoa(statusCode))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := dashboardTemplate.Execute(w, data); err != nil {
		h.logger.Error(r.Context(), "[PAGE_RENDER_ERROR] Failed to render dashboard", logging.Fields{}, err)
	}
}
