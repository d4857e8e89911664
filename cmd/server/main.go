package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"park-rain-watch/internal/config"
	"park-rain-watch/internal/handlers"
	"park-rain-watch/internal/repository"
	"park-rain-watch/internal/services"
	"park-rain-watch/pkg/logging"
	"park-rain-watch/pkg/metrics"
)

const (
	serviceName    = "park-rain-watch"
	serviceVersion = "1.0.0"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.Logging.Format, serviceName, serviceVersion, logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting park rain watch server", logging.Fields{
		"version":          serviceVersion,
		"server_host":      cfg.Server.Host,
		"server_port":      cfg.Server.Port,
		"store_backend":    cfg.Store.Backend,
		"cache_ttl":        cfg.Cache.TTL.String(),
		"refresh_interval": cfg.Cache.RefreshInterval.String(),
	})

	// Initialize metrics collector
	metricsCollector := metrics.NewCollector("park_rain_watch")

	// Open the forecast store: cache -> breaker -> backend
	openCtx, cancelOpen := context.WithTimeout(ctx, 30*time.Second)
	stores, err := repository.Open(openCtx, cfg, logger, metricsCollector, clockwork.NewRealClock())
	cancelOpen()
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to open forecast store", logging.Fields{
			"store_backend": cfg.Store.Backend,
		}, err)
	}

	// Initialize services
	dashboardService := services.NewDashboardService(stores.Forecasts, logger, metricsCollector)
	refreshService := services.NewRefreshService(stores.Forecasts, cfg.Cache.RefreshInterval, 30*time.Second, logger, metricsCollector)

	// Initialize handlers
	dashboardHandler := handlers.NewDashboardHandler(
		dashboardService,
		refreshService,
		stores.Forecasts,
		stores.Backend,
		cfg.Map.MapboxToken,
		logger,
		metricsCollector,
	)

	// Setup router
	router := mux.NewRouter()
	router.Use(handlers.RequestID, handlers.AccessLog(logger))

	dashboardHandler.RegisterRoutes(router)

	// Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	if err := refreshService.Start(); err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to start cache refresh", logging.Fields{}, err)
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	refreshService.Stop()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	if err := stores.Close(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Failed to close forecast store", logging.Fields{
			"store_backend": stores.Backend,
		}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}
