package models

import (
	"fmt"
	"math"
	"strings"
)

// DailyForecast is one element of a park's stored daily_forecast array
type DailyForecast struct {
	Date                  string  `json:"date" bson:"date"`
	ChanceOfPrecipitation float64 `json:"chance_of_precipitation" bson:"chance_of_precipitation"`
}

// Park is a stored park document with its forecast days nested inside it
type Park struct {
	Name          string          `json:"name" bson:"name" db:"name"`
	Latitude      float64         `json:"latitude" bson:"latitude" db:"latitude"`
	Longitude     float64         `json:"longitude" bson:"longitude" db:"longitude"`
	Distance      float64         `json:"distance" bson:"distance" db:"distance"`
	DailyForecast []DailyForecast `json:"daily_forecast" bson:"daily_forecast"`
}

// Flatten expands the park into one ForecastRecord per forecast day, in array order.
// It is the in-memory equivalent of unwinding daily_forecast in the store.
func (p Park) Flatten() []ForecastRecord {
	records := make([]ForecastRecord, 0, len(p.DailyForecast))
	for _, day := range p.DailyForecast {
		records = append(records, ForecastRecord{
			ParkName:              p.Name,
			Latitude:              p.Latitude,
			Longitude:             p.Longitude,
			Distance:              p.Distance,
			Date:                  day.Date,
			ChanceOfPrecipitation: day.ChanceOfPrecipitation,
		})
	}
	return records
}

// FlattenParks flattens every park, preserving park order then day order.
func FlattenParks(parks []Park) []ForecastRecord {
	var records []ForecastRecord
	for _, p := range parks {
		records = append(records, p.Flatten()...)
	}
	return records
}

// ForecastRecord is a single park/day precipitation reading
type ForecastRecord struct {
	ParkName              string  `json:"name" db:"name"`
	Latitude              float64 `json:"lat" db:"latitude"`
	Longitude             float64 `json:"lon" db:"longitude"`
	Distance              float64 `json:"miles_from_pgh" db:"distance"`
	Date                  string  `json:"date" db:"date"`
	ChanceOfPrecipitation float64 `json:"chance_precipitation" db:"chance_of_precipitation"`
}

// Key returns the composite park key the pivot groups by
func (r ForecastRecord) Key() ParkKey {
	return ParkKey{
		ParkName:  r.ParkName,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Distance:  r.Distance,
	}
}

// Validate checks the shape the pivot relies on.
func (r ForecastRecord) Validate() error {
	if strings.TrimSpace(r.ParkName) == "" {
		return &ValidationError{Field: "name", Value: r.ParkName, Message: "park name is empty"}
	}
	if strings.TrimSpace(r.Date) == "" {
		return &ValidationError{Field: "date", Value: r.Date, Message: "forecast date is empty"}
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"latitude", r.Latitude},
		{"longitude", r.Longitude},
		{"distance", r.Distance},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return &ValidationError{Field: f.name, Value: fmt.Sprintf("%v", f.v), Message: f.name + " must be a finite number"}
		}
	}
	c := r.ChanceOfPrecipitation
	if math.IsNaN(c) {
		return &ValidationError{Field: "chance_of_precipitation", Value: "NaN", Message: "chance of precipitation is missing"}
	}
	if c < 0 || c > 1 {
		return &ValidationError{
			Field:   "chance_of_precipitation",
			Value:   fmt.Sprintf("%v", c),
			Message: "chance of precipitation must be within [0, 1]",
		}
	}
	return nil
}

// ParkKey identifies one park row of a pivot table
type ParkKey struct {
	ParkName  string  `json:"name"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Distance  float64 `json:"miles_from_pgh"`
}

// Less orders keys by name, then latitude, longitude and distance.
func (k ParkKey) Less(o ParkKey) bool {
	if k.ParkName != o.ParkName {
		return k.ParkName < o.ParkName
	}
	if k.Latitude != o.Latitude {
		return k.Latitude < o.Latitude
	}
	if k.Longitude != o.Longitude {
		return k.Longitude < o.Longitude
	}
	return k.Distance < o.Distance
}

// DerivedRecord is a ForecastRecord plus its inverse chance. Read-only once built.
type DerivedRecord struct {
	ForecastRecord
	InverseChance float64 `json:"one_minus_chance_precipitation"`
}

// Derive computes InverseChance = 1 - ChanceOfPrecipitation for every record.
func Derive(records []ForecastRecord) []DerivedRecord {
	derived := make([]DerivedRecord, len(records))
	for i, r := range records {
		derived[i] = DerivedRecord{
			ForecastRecord: r,
			InverseChance:  1 - r.ChanceOfPrecipitation,
		}
	}
	return derived
}

// WeekendDayNames are the day labels selected by default on the dashboard
var WeekendDayNames = []string{"Friday", "Saturday", "Sunday"}

// DayName returns the part of a date label before its first comma.
// A label without a comma is returned whole.
func DayName(date string) string {
	day, _, _ := strings.Cut(date, ",")
	return day
}

// IsWeekendDate reports whether the label's day name is a weekend day
func IsWeekendDate(date string) bool {
	day := DayName(date)
	for _, name := range WeekendDayNames {
		if day == name {
			return true
		}
	}
	return false
}

// WeekendDates filters dates down to weekend labels, keeping their order.
func WeekendDates(dates []string) []string {
	weekend := make([]string, 0, len(dates))
	for _, d := range dates {
		if IsWeekendDate(d) {
			weekend = append(weekend, d)
		}
	}
	return weekend
}

// UniqueDates returns the distinct dates of records in first-appearance order.
func UniqueDates(records []DerivedRecord) []string {
	seen := make(map[string]struct{})
	dates := make([]string, 0)
	for _, r := range records {
		if _, ok := seen[r.Date]; ok {
			continue
		}
		seen[r.Date] = struct{}{}
		dates = append(dates, r.Date)
	}
	return dates
}

// FilterByDates keeps records whose date is in selected, preserving input order.
func FilterByDates(records []DerivedRecord, selected []string) []DerivedRecord {
	set := make(map[string]struct{}, len(selected))
	for _, d := range selected {
		set[d] = struct{}{}
	}
	filtered := make([]DerivedRecord, 0)
	for _, r := range records {
		if _, ok := set[r.Date]; ok {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// ValidationError represents a data validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got %q)", e.Field, e.Message, e.Value)
}
