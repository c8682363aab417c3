package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hydro-dashboard/internal/config"
	"hydro-dashboard/internal/evaluator"
	"hydro-dashboard/internal/handlers"
	"hydro-dashboard/internal/repository"
	"hydro-dashboard/internal/services"
	"hydro-dashboard/pkg/database"
	"hydro-dashboard/pkg/logging"
	"hydro-dashboard/pkg/metrics"
)

const version = "1.0.0"

func main() {
	// A missing .env is fine; the environment may already be set
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("hydro-dashboard", version, logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting hydrological station dashboard", logging.Fields{
		"version":     version,
		"server_host": cfg.Server.Host,
		"server_port": cfg.Server.Port,
		"db_driver":   cfg.Database.Driver,
		"db_host":     cfg.Database.Host,
		"db_name":     cfg.Database.Database,
	})

	metricsCollector := metrics.NewCollector("hydro_dashboard", prometheus.DefaultRegisterer)

	db, err := database.Open(cfg.DatabaseConfig(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	allowed, err := repository.NewColumnAllowList(cfg.Dashboard.AllowedColumns)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Invalid column allow-list", logging.Fields{}, err)
	}

	constraints, err := evaluator.NewConstraintRegistry(cfg.Constraints)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Invalid constraint rules", logging.Fields{}, err)
	}

	// Repository behind the read-through cache
	stationRepo := repository.NewStationRepository(db, allowed, cfg.Dashboard.FetchTimeout, logger, metricsCollector)
	cache := services.NewReadingCache(cfg.Dashboard.CacheTTL)
	stationRepo = services.NewCachedRepository(stationRepo, cache, logger, metricsCollector)
	if cache.Enabled() {
		janitor, err := services.NewCacheJanitor(cache, cfg.Dashboard.CacheTTL, logger)
		if err != nil {
			logger.Fatal(ctx, "[STARTUP_ERROR] Failed to schedule cache purge", logging.Fields{}, err)
		}
		janitor.Start()
		defer janitor.Stop()
	}

	alerts := evaluator.NewAlertEvaluator(cfg.Alerts.Thresholds)
	dashboardService := services.NewDashboardService(stationRepo, alerts, constraints, logger, metricsCollector)
	searchService := services.NewSearchService(stationRepo, logger, metricsCollector)

	var monitor *services.AlertMonitor
	if cfg.Alerts.SweepEnabled {
		monitor, err = services.NewAlertMonitor(dashboardService, cfg.Alerts.SweepSchedule, logger, metricsCollector)
		if err != nil {
			logger.Fatal(ctx, "[STARTUP_ERROR] Failed to schedule alert sweep", logging.Fields{}, err)
		}
		monitor.Start(ctx)
		defer monitor.Stop()
	}

	dashboardHandler := handlers.NewDashboardHandler(dashboardService, searchService, monitor, stationRepo, logger, metricsCollector)

	router := mux.NewRouter()
	router.Use(handlers.RequestID, handlers.StationContext, handlers.AccessLog(logger))

	dashboardHandler.RegisterRoutes(router)

	// Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}
