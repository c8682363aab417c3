package services

import (
	"context"
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"hydro-dashboard/internal/evaluator"
	"hydro-dashboard/internal/models"
	"hydro-dashboard/pkg/logging"
	"hydro-dashboard/pkg/metrics"
)

// fakeRepository serves in-memory tables and applies the date range and
// filter of each spec the way the SQL gateway does
type fakeRepository struct {
	mu          sync.Mutex
	tables      map[models.StationKind]*models.ResultSet
	unavailable map[models.StationKind]bool
	calls       []models.QuerySpec
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		tables:      make(map[models.StationKind]*models.ResultSet),
		unavailable: make(map[models.StationKind]bool),
	}
}

func (f *fakeRepository) set(kind models.StationKind, columns []string, rows ...models.Row) {
	table, _ := kind.Table()
	f.tables[kind] = &models.ResultSet{Table: table, Columns: columns, Rows: rows}
}

func (f *fakeRepository) Fetch(_ context.Context, spec models.QuerySpec) (*models.ResultSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, spec)

	table := spec.Table()
	if f.unavailable[spec.Station()] {
		err := &models.UnavailableError{Table: table, Err: errors.New("connection refused")}
		return models.UnavailableResultSet(table, err), err
	}
	if spec.EmptyRange() {
		return models.EmptyResultSet(table), nil
	}

	src, ok := f.tables[spec.Station()]
	if !ok {
		return models.EmptyResultSet(table), nil
	}

	start, end, bounded := spec.DateRange()
	column, value, filtered := spec.Filter()
	return src.Filter(func(row models.Row) bool {
		if bounded {
			d, _ := row.Text(spec.DateColumn())
			if d < start.Format(models.DateLayout) || d > end.Format(models.DateLayout) {
				return false
			}
		}
		if filtered {
			v, _ := row.Text(column)
			if v != value {
				return false
			}
		}
		return true
	}), nil
}

func (f *fakeRepository) HealthCheck(context.Context) error { return nil }

func (f *fakeRepository) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestCollector() *metrics.Collector {
	return metrics.NewCollector("hydro_test", prometheus.NewRegistry())
}

func newTestDashboard(repo *fakeRepository, collector *metrics.Collector) *DashboardService {
	registry, err := evaluator.NewConstraintRegistry(evaluator.DefaultConstraintRules())
	if err != nil {
		panic(err)
	}
	return NewDashboardService(repo, evaluator.NewAlertEvaluator(evaluator.DefaultThresholds()), registry, logging.NewNopLogger(), collector)
}
