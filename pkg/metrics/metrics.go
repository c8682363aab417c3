package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector provides application metrics collection
type Collector struct {
	// API Metrics
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec
	APIErrorsTotal     *prometheus.CounterVec

	// Gateway Metrics
	FetchesTotal     *prometheus.CounterVec
	FetchRows        *prometheus.HistogramVec
	CacheLookupTotal *prometheus.CounterVec

	// Database Metrics
	DBQueryDuration  *prometheus.HistogramVec
	DBConnectionPool *prometheus.GaugeVec
	DBErrorsTotal    *prometheus.CounterVec

	// Evaluation Metrics
	StationAlerts        *prometheus.GaugeVec
	ConstraintViolations *prometheus.GaugeVec
	AlertSweepDuration   prometheus.Histogram
}

// NewCollector creates a new metrics collector registered with reg.
// Pass prometheus.DefaultRegisterer to expose the metrics on /metrics.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		APIRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of API requests by endpoint, method, and status",
			},
			[]string{"endpoint", "method", "status"},
		),

		APIRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0},
			},
			[]string{"endpoint"},
		),

		APIErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_errors_total",
				Help:      "Total number of API errors by type",
			},
			[]string{"error_type", "endpoint"},
		),

		FetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "station_fetches_total",
				Help:      "Station table fetches by table and outcome (ok, empty, unavailable, rejected)",
			},
			[]string{"table", "outcome"},
		),

		FetchRows: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "station_fetch_rows",
				Help:      "Rows returned per station table fetch",
				Buckets:   []float64{0, 10, 50, 100, 500, 1000, 5000, 10000, 50000},
			},
			[]string{"table"},
		),

		CacheLookupTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reading_cache_lookups_total",
				Help:      "Reading cache lookups by result (hit, miss)",
			},
			[]string{"result"},
		),

		DBQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "db_query_duration_seconds",
				Help:      "Database query duration in seconds by query type",
				Buckets:   []float64{0.001, 0.002, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1.0, 5.0},
			},
			[]string{"query_type"},
		),

		DBConnectionPool: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connection_pool",
				Help:      "Database connection pool statistics",
			},
			[]string{"state"}, // "in_use", "idle", "total"
		),

		DBErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "db_errors_total",
				Help:      "Total number of database errors by type",
			},
			[]string{"error_type"},
		),

		StationAlerts: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "station_alert_rows",
				Help:      "Rows flagged by the last alert sweep, by station",
			},
			[]string{"station"},
		),

		ConstraintViolations: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "constraint_violation_rows",
				Help:      "Rows outside their configured range in the last check, by table and column",
			},
			[]string{"table", "column"},
		),

		AlertSweepDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "alert_sweep_duration_seconds",
				Help:      "Duration of a full alert sweep across all stations",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
		),
	}
}

// Timer provides timing functionality for operations
type Timer struct {
	start    time.Time
	observer prometheus.Observer
}

// NewTimer creates a new timer
func (c *Collector) NewTimer(histogram prometheus.Observer) *Timer {
	return &Timer{
		start:    time.Now(),
		observer: histogram,
	}
}

// Elapsed returns the time since timer creation without recording it
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed time since timer creation
func (t *Timer) ObserveDuration() time.Duration {
	duration := time.Since(t.start)
	if t.observer != nil {
		t.observer.Observe(duration.Seconds())
	}
	return duration
}

// RecordAPIRequest increments API request counter
func (c *Collector) RecordAPIRequest(endpoint, method, status string) {
	c.APIRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

// RecordAPIError increments API error counter
func (c *Collector) RecordAPIError(errorType, endpoint string) {
	c.APIErrorsTotal.WithLabelValues(errorType, endpoint).Inc()
}

// RecordFetch counts a gateway fetch and its row count
func (c *Collector) RecordFetch(table, outcome string, rows int) {
	c.FetchesTotal.WithLabelValues(table, outcome).Inc()
	if outcome == "ok" || outcome == "empty" {
		c.FetchRows.WithLabelValues(table).Observe(float64(rows))
	}
}

// RecordCacheLookup counts a cache hit or miss
func (c *Collector) RecordCacheLookup(hit bool) {
	if hit {
		c.CacheLookupTotal.WithLabelValues("hit").Inc()
		return
	}
	c.CacheLookupTotal.WithLabelValues("miss").Inc()
}

// RecordDBError increments database error counter
func (c *Collector) RecordDBError(errorType string) {
	c.DBErrorsTotal.WithLabelValues(errorType).Inc()
}

// SetStationAlerts publishes the alert row count of a station
func (c *Collector) SetStationAlerts(station string, count int) {
	c.StationAlerts.WithLabelValues(station).Set(float64(count))
}

// SetConstraintViolations publishes the invalid row count of a column
func (c *Collector) SetConstraintViolations(table, column string, count int) {
	c.ConstraintViolations.WithLabelValues(table, column).Set(float64(count))
}

// UpdateDBConnectionPool updates database connection pool metrics
func (c *Collector) UpdateDBConnectionPool(inUse, idle, total int) {
	c.DBConnectionPool.WithLabelValues("in_use").Set(float64(inUse))
	c.DBConnectionPool.WithLabelValues("idle").Set(float64(idle))
	c.DBConnectionPool.WithLabelValues("total").Set(float64(total))
}
