package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"park-rain-watch/internal/models"
	"park-rain-watch/internal/pivot"
	"park-rain-watch/internal/services"
	"park-rain-watch/internal/visualization"
	"park-rain-watch/pkg/logging"
)

type dateFlags []string

func (d *dateFlags) String() string { return strings.Join(*d, "; ") }

func (d *dateFlags) Set(v string) error {
	*d = append(*d, v)
	return nil
}

// preview pivots a parks fixture offline, without any store
func main() {
	var dates dateFlags
	file := flag.String("file", "data/parks.sample.json", "JSON file containing an array of park documents")
	flag.Var(&dates, "date", "Date label to include (repeatable). Defaults to the weekend days.")
	none := flag.Bool("none", false, "Select no dates")
	highlight := flag.String("highlight", "low", "Rank parks by low or high chance of rain")
	flag.Parse()

	logger := logging.New(os.Stderr, "text", "park-rain-watch-preview", "1.0.0", logging.WarnLevel)
	ctx := context.Background()

	h, err := visualization.ParseHighlight(*highlight)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid highlight: %v\n", err)
		os.Exit(2)
	}

	parks, err := services.LoadParksFile(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load parks: %v\n", err)
		os.Exit(1)
	}

	var valid []models.ForecastRecord
	skipped := 0
	for _, r := range models.FlattenParks(parks) {
		if err := r.Validate(); err != nil {
			logger.Warn(ctx, "[PREVIEW_SKIP] Skipping invalid forecast", logging.Fields{
				"park":  r.ParkName,
				"date":  r.Date,
				"error": err.Error(),
			})
			skipped++
			continue
		}
		valid = append(valid, r)
	}
	records := models.Derive(valid)

	available := models.UniqueDates(records)
	options := services.DateOptions{Available: available, Weekend: models.WeekendDates(available)}
	selected := services.ResolveDates(options, services.Selection{
		Dates:    dates,
		Explicit: len(dates) > 0 || *none,
	})
	if *none {
		selected = nil
	}

	filtered := models.FilterByDates(records, selected)
	table := pivot.Pivot(filtered, selected)

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("PA STATE PARK RAIN WATCH - FORECAST PREVIEW")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Parks:            %d\n", len(parks))
	fmt.Printf("Forecast records: %d (%d skipped)\n", len(records), skipped)
	fmt.Printf("Available dates:  %s\n", strings.Join(available, " | "))
	fmt.Printf("Selected dates:   %s\n", strings.Join(table.Dates, " | "))
	fmt.Println()

	fmt.Println("SELECTED DATA (minimum chance of precipitation)")
	fmt.Println(strings.Repeat("-", 80))
	if err := table.WriteText(os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write table: %v\n", err)
		os.Exit(1)
	}
	fmt.Println()

	deck := visualization.BuildDeck(filtered, h)
	fmt.Printf("MAP WEIGHTS (highlight=%s, %d points)\n", deck.Highlight, len(deck.Layers[1].Data))
	fmt.Println(strings.Repeat("-", 80))
	for _, p := range topPoints(deck.Layers[1].Data, 5) {
		fmt.Printf("  %-20s %-18s weight %.2f\n", p.Name, p.Date, p.Weight)
	}
}

// topPoints returns up to n points with the largest weight, ties in input order.
func topPoints(points []visualization.Point, n int) []visualization.Point {
	sorted := append([]visualization.Point(nil), points...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Weight > sorted[j].Weight })
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
