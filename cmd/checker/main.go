package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"hydro-dashboard/internal/config"
	"hydro-dashboard/internal/evaluator"
	"hydro-dashboard/internal/models"
	"hydro-dashboard/internal/repository"
	"hydro-dashboard/internal/services"
	"hydro-dashboard/pkg/database"
	"hydro-dashboard/pkg/logging"
	"hydro-dashboard/pkg/metrics"
)

// exit code when -fail-on-alert is set and something was flagged
const exitFlagged = 2

func main() {
	dateFlag := flag.String("date", "", "Day to check (YYYY-MM-DD), defaults to today")
	stationFlag := flag.String("station", "", "Check a single station (River, Dam, EPAN, AWS, ARS, Gate)")
	checkConstraints := flag.Bool("constraints", true, "Also run the constraint range checks over the whole table")
	failOnAlert := flag.Bool("fail-on-alert", false, "Exit with status 2 when alerts or violations are found")
	flag.Parse()

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

	logger := logging.NewStructuredLogger("hydro-checker", "1.0.0", logging.ParseLevel(cfg.Logging.Level))
	logger.SetOutput(os.Stderr)

	ctx := context.Background()

	kinds := models.AllStationKinds
	if *stationFlag != "" {
		kind, err := models.ParseStationKind(*stationFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid -station: %v\n", err)
			os.Exit(1)
		}
		kinds = []models.StationKind{kind}
	}

	metricsCollector := metrics.NewCollector("hydro_checker", prometheus.NewRegistry())

	db, err := database.Open(cfg.DatabaseConfig(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[CHECKER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	allowed, err := repository.NewColumnAllowList(cfg.Dashboard.AllowedColumns)
	if err != nil {
		logger.Fatal(ctx, "[CHECKER_ERROR] Invalid column allow-list", logging.Fields{}, err)
	}
	constraints, err := evaluator.NewConstraintRegistry(cfg.Constraints)
	if err != nil {
		logger.Fatal(ctx, "[CHECKER_ERROR] Invalid constraint rules", logging.Fields{}, err)
	}

	stationRepo := repository.NewStationRepository(db, allowed, cfg.Dashboard.FetchTimeout, logger, metricsCollector)
	dashboardService := services.NewDashboardService(stationRepo, evaluator.NewAlertEvaluator(cfg.Alerts.Thresholds), constraints, logger, metricsCollector)

	day := dashboardService.Today()
	if *dateFlag != "" {
		day, err = models.ParseDate("date", *dateFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid -date: %v\n", err)
			os.Exit(1)
		}
	}

	logger.Info(ctx, "[CHECKER_START] Checking station readings", logging.Fields{
		"date":        day.Format(models.DateLayout),
		"stations":    len(kinds),
		"constraints": *checkConstraints,
	})

	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("STATION CHECK %s\n", day.Format(models.DateLayout))
	fmt.Println(strings.Repeat("=", 80))

	flagged := 0
	for _, kind := range kinds {
		result, err := dashboardService.StationDay(ctx, kind, day, "")
		if err != nil {
			logger.Error(ctx, "[CHECKER_STATION_ERROR] Station check failed", logging.Fields{
				"station": kind.String(),
			}, err)
			continue
		}

		if result.Unavailable {
			fmt.Printf("%-6s unavailable\n", kind)
			continue
		}
		fmt.Printf("%-6s readings: %-6d alerts: %d\n", kind, result.Readings.Len(), result.AlertCount)
		flagged += result.AlertCount

		for i, alert := range result.Alerts {
			for _, f := range alert.Fired {
				fmt.Printf("         row %d: %s %s=%g %s %g\n", i+1, f.Predicate, f.Column, f.Value, f.Comparison, f.Threshold)
			}
		}

		if !*checkConstraints {
			continue
		}
		report, err := dashboardService.Constraints(ctx, kind)
		if err != nil {
			logger.Error(ctx, "[CHECKER_CONSTRAINT_ERROR] Constraint check failed", logging.Fields{
				"station": kind.String(),
			}, err)
			continue
		}
		for _, v := range report.Violations {
			fmt.Printf("         %s\n", v.Message)
			flagged += v.InvalidCount
		}
	}

	fmt.Println(strings.Repeat("=", 80))

	logger.Info(ctx, "[CHECKER_COMPLETE] Station check completed", logging.Fields{
		"date":    day.Format(models.DateLayout),
		"flagged": flagged,
	})

	if *failOnAlert && flagged > 0 {
		db.Close()
		os.Exit(exitFlagged)
	}
}
