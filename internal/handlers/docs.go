package handlers

import (
	"encoding/json"
	"net/http"
)

var selectionParameters = []map[string]interface{}{
	{
		"name":        "date",
		"in":          "query",
		"description": "Forecast date label to include, e.g. \"Saturday, Jun 3\". Repeatable. Omit date, dates and none to select the weekend days.",
		"required":    false,
		"style":       "form",
		"explode":     true,
		"schema":      map[string]interface{}{"type": "array", "items": map[string]string{"type": "string"}},
	},
	{
		"name":        "dates",
		"in":          "query",
		"description": "Present (even empty) to make the selection explicit",
		"required":    false,
		"schema":      map[string]string{"type": "string"},
	},
	{
		"name":        "none",
		"in":          "query",
		"description": "1 selects no dates",
		"required":    false,
		"schema":      map[string]interface{}{"type": "string", "enum": []string{"0", "1"}},
	},
	{
		"name":        "highlight",
		"in":          "query",
		"description": "low weights the map by 1 - chance (red scale), high by chance (blue scale)",
		"required":    false,
		"schema":      map[string]interface{}{"type": "string", "enum": []string{"low", "high"}, "default": "low"},
	},
}

func jsonResponse(description string, schema map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"description": description,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{"schema": schema},
		},
	}
}

var errorSchema = map[string]interface{}{"$ref": "#/components/schemas/Error"}

// OpenAPISpec returns the OpenAPI 3.0 specification for the Park Rain Watch API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "PA State Park Rain Watch API",
			"description": "Precipitation forecasts for Pennsylvania state parks: raw readings, per-date pivot tables and map layers",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": map[string]interface{}{
			"/api/forecasts": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Full forecast data",
					"description": "Every park and date reading with its inverse chance",
					"responses": map[string]interface{}{
						"200": jsonResponse("Successful response", map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"data": map[string]interface{}{
									"type":  "array",
									"items": map[string]interface{}{"$ref": "#/components/schemas/ForecastRecord"},
								},
								"total": map[string]string{"type": "integer"},
							},
						}),
						"502": jsonResponse("Forecast store unavailable", errorSchema),
					},
				},
			},
			"/api/dates": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Available forecast dates",
					"description": "Dates in first-appearance order and the weekend default selection",
					"responses": map[string]interface{}{
						"200": jsonResponse("Successful response", map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"available": map[string]interface{}{"type": "array", "items": map[string]string{"type": "string"}},
								"weekend":   map[string]interface{}{"type": "array", "items": map[string]string{"type": "string"}},
							},
						}),
						"502": jsonResponse("Forecast store unavailable", errorSchema),
					},
				},
			},
			"/api/pivot": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Selected data pivot",
					"description": "One row per park, one column per selected date in chronological order, each cell the minimum chance of precipitation or null",
					"parameters":  selectionParameters,
					"responses": map[string]interface{}{
						"200": jsonResponse("Successful response", map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"columns": map[string]interface{}{"type": "array", "items": map[string]string{"type": "string"}},
								"rows": map[string]interface{}{
									"type":  "array",
									"items": map[string]interface{}{"type": "array", "items": map[string]interface{}{"nullable": true}},
								},
							},
						}),
						"400": jsonResponse("Invalid query", errorSchema),
						"502": jsonResponse("Forecast store unavailable", errorSchema),
					},
				},
			},
			"/api/map": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Map layers",
					"description": "deck.gl hexagon and heatmap layer description for the selected dates",
					"parameters":  selectionParameters,
					"responses": map[string]interface{}{
						"200": jsonResponse("Successful response", map[string]interface{}{"type": "object"}),
						"400": jsonResponse("Invalid query", errorSchema),
						"502": jsonResponse("Forecast store unavailable", errorSchema),
					},
				},
			},
			"/api/cache/refresh": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":     "Refresh forecast cache",
					"description": "Reload the forecasts from the store. On failure the cached entry is kept.",
					"responses": map[string]interface{}{
						"200": jsonResponse("Cache reloaded", map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"records": map[string]string{"type": "integer"},
								"cache":   map[string]string{"type": "object"},
							},
						}),
						"502": jsonResponse("Forecast store unavailable", errorSchema),
					},
				},
			},
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Health check",
					"description": "Ping the forecast store",
					"responses": map[string]interface{}{
						"200": jsonResponse("Store reachable", map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"status":  map[string]string{"type": "string"},
								"backend": map[string]string{"type": "string"},
							},
						}),
						"503": jsonResponse("Store unreachable", map[string]interface{}{"type": "object"}),
					},
				},
			},
			"/metrics": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Prometheus metrics",
					"description": "Prometheus metrics endpoint for monitoring",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Prometheus metrics in text format",
							"content": map[string]interface{}{
								"text/plain": map[string]interface{}{
									"schema": map[string]string{"type": "string"},
								},
							},
						},
					},
				},
			},
		},
		"components": map[string]interface{}{
			"schemas": map[string]interface{}{
				"ForecastRecord": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"name":                           map[string]string{"type": "string"},
						"lat":                            map[string]string{"type": "number"},
						"lon":                            map[string]string{"type": "number"},
						"miles_from_pgh":                 map[string]string{"type": "number"},
						"date":                           map[string]string{"type": "string"},
						"chance_precipitation":           map[string]string{"type": "number"},
						"one_minus_chance_precipitation": map[string]string{"type": "number"},
					},
				},
				"Error": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"error":   map[string]string{"type": "string"},
						"message": map[string]string{"type": "string"},
						"code":    map[string]string{"type": "integer"},
					},
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}
