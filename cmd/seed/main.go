package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"park-rain-watch/internal/config"
	"park-rain-watch/internal/repository"
	"park-rain-watch/internal/services"
	"park-rain-watch/pkg/logging"
	"park-rain-watch/pkg/metrics"
)

func main() {
	// Parse command-line flags
	file := flag.String("file", "data/parks.sample.json", "JSON file containing an array of park documents")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall timeout for the seed run")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.Logging.Format, "park-rain-watch-seed", "1.0.0", logging.ParseLevel(cfg.Logging.Level))

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	logger.Info(ctx, "[SEED_START] Starting park seed", logging.Fields{
		"version": "1.0.0",
		"file":    *file,
		"backend": cfg.Store.Backend,
	})

	parks, err := services.LoadParksFile(*file)
	if err != nil {
		logger.Fatal(ctx, "[SEED_ERROR] Failed to read parks", logging.Fields{"file": *file}, err)
	}

	metricsCollector := metrics.NewCollectorWithRegistry("park_rain_watch_seed", prometheus.NewRegistry())

	stores, err := repository.Open(ctx, cfg, logger, metricsCollector, nil)
	if err != nil {
		logger.Fatal(ctx, "[SEED_ERROR] Failed to open forecast store", logging.Fields{
			"backend": cfg.Store.Backend,
		}, err)
	}
	defer stores.Close(context.Background())

	ingestionService := services.NewIngestionService(stores.Repository, logger, metricsCollector)

	result, err := ingestionService.IngestParks(ctx, parks)
	if err != nil {
		logger.Fatal(ctx, "[SEED_ERROR] Seed failed", logging.Fields{
			"backend": cfg.Store.Backend,
		}, err)
	}

	// Print results
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("SEED COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Backend:         %s\n", stores.Backend)
	fmt.Printf("Total Parks:     %d\n", result.TotalParks)
	fmt.Printf("Upserted Parks:  %d\n", result.UpsertedParks)
	fmt.Printf("Rejected Parks:  %d\n", result.RejectedParks)
	fmt.Printf("Forecast Days:   %d\n", result.TotalRecords)
	fmt.Printf("Duration:        %v\n", result.Duration)

	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(result.Errors))
		for i, errMsg := range result.Errors {
			if i < 10 {
				fmt.Printf("  - %s\n", errMsg)
			}
		}
		if len(result.Errors) > 10 {
			fmt.Printf("  ... and %d more errors\n", len(result.Errors)-10)
		}
	}

	logger.Info(ctx, "[SEED_COMPLETE] Park seed completed", logging.Fields{
		"upserted_parks":   result.UpsertedParks,
		"rejected_parks":   result.RejectedParks,
		"duration_seconds": result.Duration.Seconds(),
	})
}
