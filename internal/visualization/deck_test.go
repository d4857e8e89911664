package visualization

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"park-rain-watch/internal/models"
)

func derived(name string, lat, lon float64, date string, chance float64) models.DerivedRecord {
	return models.Derive([]models.ForecastRecord{{
		ParkName: name, Latitude: lat, Longitude: lon, Distance: 60,
		Date: date, ChanceOfPrecipitation: chance,
	}})[0]
}

func TestParseHighlight(t *testing.T) {
	tests := []struct {
		in      string
		want    Highlight
		wantErr bool
	}{
		{"", HighlightLow, false},
		{"low", HighlightLow, false},
		{"high", HighlightHigh, false},
		{"HIGH", "", true},
		{"medium", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHighlight(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHighlight_WeightAndScale(t *testing.T) {
	r := derived("Ohiopyle", 39.8, -79.5, "Friday, Jun 2", 0.25)

	assert.Equal(t, 0.75, HighlightLow.Weight(r))
	assert.Equal(t, RedScale, HighlightLow.ColorRange())

	assert.Equal(t, 0.25, HighlightHigh.Weight(r))
	assert.Equal(t, BlueScale, HighlightHigh.ColorRange())
}

func TestPoints(t *testing.T) {
	records := []models.DerivedRecord{
		derived("Ohiopyle", 39.8, -79.5, "Friday, Jun 2", 0.3),
		derived("Presque Isle", 42.1, -80.1, "Friday, Jun 2", 0.5),
	}

	points := Points(records, HighlightHigh)
	require.Len(t, points, 2)
	assert.Equal(t, Point{
		Position: [2]float64{-79.5, 39.8},
		Weight:   0.3,
		Name:     "Ohiopyle",
		Date:     "Friday, Jun 2",
		Chance:   0.3,
	}, points[0])
	assert.Equal(t, "Presque Isle", points[1].Name)

	assert.Empty(t, Points(nil, HighlightLow))
}

func TestBuildDeck(t *testing.T) {
	records := []models.DerivedRecord{derived("Ohiopyle", 39.8, -79.5, "Friday, Jun 2", 0.3)}

	deck := BuildDeck(records, HighlightLow)

	assert.Equal(t, MapStyle, deck.MapStyle)
	assert.Equal(t, ViewState{Latitude: 40.44, Longitude: -79.9957, Zoom: 7}, deck.InitialViewState)
	require.Len(t, deck.Layers, 2)

	hex := deck.Layers[0]
	assert.Equal(t, "HexagonLayer", hex.Type)
	assert.Equal(t, 2000.0, hex.Radius)
	assert.Equal(t, 4.0, hex.ElevationScale)
	assert.Equal(t, &[2]float64{0, 1000}, hex.ElevationRange)
	assert.True(t, hex.Extruded)
	assert.True(t, hex.Pickable)
	assert.True(t, hex.AutoHighlight)

	heat := deck.Layers[1]
	assert.Equal(t, "HeatmapLayer", heat.Type)
	assert.Equal(t, 0.9, heat.Opacity)
	assert.Equal(t, "SUM", heat.Aggregation)
	assert.Equal(t, RedScale, heat.ColorRange)
	assert.InDelta(t, 0.7, heat.Data[0].Weight, 1e-9)
}

func TestBuildDeck_JSON(t *testing.T) {
	deck := BuildDeck([]models.DerivedRecord{derived("Ohiopyle", 39.8, -79.5, "Friday, Jun 2", 0.3)}, HighlightHigh)

	raw, err := json.Marshal(deck)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "high", decoded["highlight"])

	layers := decoded["layers"].([]any)
	heat := layers[1].(map[string]any)
	assert.Equal(t, "HeatmapLayer", heat["@@type"])
	assert.Equal(t, []any{240.0, 249.0, 232.0}, heat["colorRange"].([]any)[0])
	assert.NotContains(t, heat, "radius")

	point := heat["data"].([]any)[0].(map[string]any)
	assert.Equal(t, []any{-79.5, 39.8}, point["position"])
}

func TestBuildDeck_NoRecords(t *testing.T) {
	deck := BuildDeck(nil, HighlightLow)

	raw, err := json.Marshal(deck)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"data":[]`)
}
