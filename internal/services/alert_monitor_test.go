package services

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hydro-dashboard/internal/models"
	"hydro-dashboard/pkg/logging"
)

func TestAlertMonitor_Sweep(t *testing.T) {
	repo := newFakeRepository()
	seedRiver(repo)
	repo.set(models.Gate, []string{"data_date", "g1", "g2", "batt_volt"},
		models.Row{"data_date": "2025-05-02", "g1": 0.0, "g2": 0.25, "batt_volt": 12.0},
		models.Row{"data_date": "2025-05-02", "g1": 0.0, "g2": 0.0, "batt_volt": 12.0},
	)
	repo.unavailable[models.Dam] = true

	collector := newTestCollector()
	svc := newTestDashboard(repo, collector)
	svc.now = func() time.Time { return time.Date(2025, 5, 2, 15, 4, 0, 0, time.UTC) }

	monitor, err := NewAlertMonitor(svc, "*/15 * * * *", logging.NewNopLogger(), collector)
	require.NoError(t, err)

	result := monitor.Sweep(context.Background())

	assert.Equal(t, 1, result[models.River])
	assert.Equal(t, 1, result[models.Gate])
	assert.Equal(t, 0, result[models.AWS])
	_, swept := result[models.Dam]
	assert.False(t, swept, "unavailable stations are skipped")
	assert.Len(t, result, len(models.AllStationKinds)-1)
	assert.Equal(t, result, monitor.Last())

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.StationAlerts.WithLabelValues("River")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.StationAlerts.WithLabelValues("Gate")))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.AlertSweepDuration))
}

func TestNewAlertMonitor_BadSchedule(t *testing.T) {
	svc := newTestDashboard(newFakeRepository(), newTestCollector())
	_, err := NewAlertMonitor(svc, "every quarter hour", logging.NewNopLogger(), newTestCollector())
	assert.Error(t, err)
}

func TestAlertMonitor_StartStop(t *testing.T) {
	repo := newFakeRepository()
	collector := newTestCollector()
	svc := newTestDashboard(repo, collector)

	monitor, err := NewAlertMonitor(svc, "@every 1h", logging.NewNopLogger(), collector)
	require.NoError(t, err)

	monitor.Start(context.Background())
	monitor.Stop()

	assert.NotNil(t, monitor.Last(), "start runs an immediate sweep")
}
