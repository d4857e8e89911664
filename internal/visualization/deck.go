// Package visualization builds the deck.gl description rendered by the dashboard map.
package visualization

import (
	"fmt"

	"park-rain-watch/internal/models"
)

// Highlight selects which end of the rain chance the map emphasizes
type Highlight string

const (
	// HighlightLow emphasizes parks least likely to see rain
	HighlightLow Highlight = "low"
	// HighlightHigh emphasizes parks most likely to see rain
	HighlightHigh Highlight = "high"
)

// Highlights lists the accepted modes in display order
var Highlights = []Highlight{HighlightLow, HighlightHigh}

// ParseHighlight maps a query value to a Highlight. Empty means low.
func ParseHighlight(s string) (Highlight, error) {
	switch Highlight(s) {
	case "", HighlightLow:
		return HighlightLow, nil
	case HighlightHigh:
		return HighlightHigh, nil
	}
	return "", fmt.Errorf("unknown highlight %q: must be low or high", s)
}

// Color is an RGB triple
type Color [3]uint8

// ColorBrewer sequential scales
var (
	BlueScale = []Color{
		{240, 249, 232},
		{204, 235, 197},
		{168, 221, 181},
		{123, 204, 196},
		{67, 162, 202},
		{8, 104, 172},
	}

	RedScale = []Color{
		{254, 240, 217},
		{253, 212, 158},
		{253, 187, 132},
		{252, 141, 89},
		{227, 74, 51},
		{179, 0, 0},
	}
)

// Map defaults
const (
	MapStyle         = "mapbox://styles/mapbox/light-v9"
	DefaultLatitude  = 40.44
	DefaultLongitude = -79.9957
	DefaultZoom      = 7

	HexagonRadius         = 2000
	HexagonElevationScale = 4
	HeatmapOpacity        = 0.9
	HeatmapAggregation    = "SUM"
)

// HexagonElevationRange is the elevation range of the hexagon layer
var HexagonElevationRange = [2]float64{0, 1000}

// ViewState is the initial camera
type ViewState struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Zoom      float64 `json:"zoom"`
}

// Point is a single forecast reading placed on the map
type Point struct {
	Position [2]float64 `json:"position"` // [lon, lat]
	Weight   float64    `json:"weight"`
	Name     string     `json:"name"`
	Date     string     `json:"date"`
	Chance   float64    `json:"chance"`
}

// Layer is a deck.gl layer. Fields not used by a layer type are omitted.
type Layer struct {
	Type           string      `json:"@@type"`
	ID             string      `json:"id"`
	Data           []Point     `json:"data"`
	Pickable       bool        `json:"pickable,omitempty"`
	AutoHighlight  bool        `json:"autoHighlight,omitempty"`
	Extruded       bool        `json:"extruded,omitempty"`
	Radius         float64     `json:"radius,omitempty"`
	ElevationScale float64     `json:"elevationScale,omitempty"`
	ElevationRange *[2]float64 `json:"elevationRange,omitempty"`
	Opacity        float64     `json:"opacity,omitempty"`
	ColorRange     []Color     `json:"colorRange,omitempty"`
	Aggregation    string      `json:"aggregation,omitempty"`
}

// Deck is the full map description consumed by the page script
type Deck struct {
	MapStyle         string    `json:"mapStyle"`
	InitialViewState ViewState `json:"initialViewState"`
	Highlight        Highlight `json:"highlight"`
	Layers           []Layer   `json:"layers"`
}

// Weight returns the heat weight of a record under h
func (h Highlight) Weight(r models.DerivedRecord) float64 {
	if h == HighlightHigh {
		return r.ChanceOfPrecipitation
	}
	return r.InverseChance
}

// ColorRange returns the heat color scale for h
func (h Highlight) ColorRange() []Color {
	if h == HighlightHigh {
		return BlueScale
	}
	return RedScale
}

// Points converts records into weighted map points, preserving order.
func Points(records []models.DerivedRecord, h Highlight) []Point {
	points := make([]Point, len(records))
	for i, r := range records {
		points[i] = Point{
			Position: [2]float64{r.Longitude, r.Latitude},
			Weight:   h.Weight(r),
			Name:     r.ParkName,
			Date:     r.Date,
			Chance:   r.ChanceOfPrecipitation,
		}
	}
	return points
}

// BuildDeck describes the hexagon and heatmap layers over the filtered records.
func BuildDeck(filtered []models.DerivedRecord, h Highlight) Deck {
	points := Points(filtered, h)
	elevation := HexagonElevationRange

	return Deck{
		MapStyle: MapStyle,
		InitialViewState: ViewState{
			Latitude:  DefaultLatitude,
			Longitude: DefaultLongitude,
			Zoom:      DefaultZoom,
		},
		Highlight: h,
		Layers: []Layer{
			{
				Type:           "HexagonLayer",
				ID:             "parks-hexagon",
				Data:           points,
				Pickable:       true,
				AutoHighlight:  true,
				Extruded:       true,
				Radius:         HexagonRadius,
				ElevationScale: HexagonElevationScale,
				ElevationRange: &elevation,
			},
			{
				Type:        "HeatmapLayer",
				ID:          "parks-heatmap",
				Data:        points,
				Opacity:     HeatmapOpacity,
				ColorRange:  h.ColorRange(),
				Aggregation: HeatmapAggregation,
			},
		},
	}
}
