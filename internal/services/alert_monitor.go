package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"hydro-dashboard/internal/models"
	"hydro-dashboard/pkg/logging"
	"hydro-dashboard/pkg/metrics"
)

// SweepResult maps each station to its alert row count for the day.
// Stations whose data was unavailable are absent.
type SweepResult map[models.StationKind]int

// AlertMonitor periodically evaluates today's readings of every station
// and publishes the alert counts
type AlertMonitor struct {
	service *DashboardService
	logger  *logging.StructuredLogger
	metrics *metrics.Collector

	cron     *cron.Cron
	schedule string

	mu   sync.Mutex
	last SweepResult

	initial sync.WaitGroup
}

// NewAlertMonitor schedules a sweep on a standard five-field cron spec
func NewAlertMonitor(service *DashboardService, schedule string, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) (*AlertMonitor, error) {
	m := &AlertMonitor{
		service:  service,
		logger:   logger,
		metrics:  metricsCollector,
		cron:     cron.New(),
		schedule: schedule,
	}

	if _, err := m.cron.AddFunc(schedule, func() { m.Sweep(context.Background()) }); err != nil {
		return nil, fmt.Errorf("failed to schedule alert sweep %q: %w", schedule, err)
	}

	return m, nil
}

// Start begins the schedule and runs a first sweep in the background.
// It does not block.
func (m *AlertMonitor) Start(ctx context.Context) {
	m.cron.Start()
	m.logger.Info(ctx, "[ALERT_MONITOR_START] Alert sweep scheduled", logging.Fields{
		"schedule": m.schedule,
	})

	m.initial.Add(1)
	go func() {
		defer m.initial.Done()
		m.Sweep(ctx)
	}()
}

// Stop halts the scheduler and waits for running sweeps to finish
func (m *AlertMonitor) Stop() {
	<-m.cron.Stop().Done()
	m.initial.Wait()
}

// Last returns the result of the most recent sweep
func (m *AlertMonitor) Last() SweepResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Sweep evaluates today's rows of every station once
func (m *AlertMonitor) Sweep(ctx context.Context) SweepResult {
	timer := m.metrics.NewTimer(m.metrics.AlertSweepDuration)
	defer timer.ObserveDuration()

	today := m.service.Today()
	result := make(SweepResult, len(models.AllStationKinds))
	log := m.logger.WithFields(logging.Fields{"date": today.Format(models.DateLayout)})

	for _, kind := range models.AllStationKinds {
		day, err := m.service.StationDay(ctx, kind, today, "")
		if err != nil {
			log.Error(ctx, "[ALERT_SWEEP_ERROR] Station sweep failed", logging.Fields{
				"station": kind.String(),
			}, err)
			continue
		}
		if day.Unavailable {
			log.Warn(ctx, "[ALERT_SWEEP_UNAVAILABLE] Station data unavailable", logging.Fields{
				"station": kind.String(),
			})
			continue
		}

		result[kind] = day.AlertCount
		m.metrics.SetStationAlerts(kind.String(), day.AlertCount)

		if day.AlertCount > 0 {
			log.Warn(ctx, "[ALERT_SWEEP_ALERTS] Station has readings beyond thresholds", logging.Fields{
				"station":  kind.String(),
				"alerts":   day.AlertCount,
				"readings": day.Readings.Len(),
			})
		}
	}

	m.mu.Lock()
	m.last = result
	m.mu.Unlock()

	log.Info(ctx, "[ALERT_SWEEP_COMPLETE] Alert sweep finished", logging.Fields{
		"stations":    len(result),
		"duration_ms": timer.Elapsed().Milliseconds(),
	})

	return result
}
