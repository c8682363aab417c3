package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"time"

	"hydro-dashboard/internal/evaluator"
	"hydro-dashboard/internal/models"
	"hydro-dashboard/internal/repository"
	"hydro-dashboard/pkg/logging"
	"hydro-dashboard/pkg/metrics"
)

// AllParameters selects every column in the history view
const AllParameters = "All Parameters"

// ARSSeriesParameters are the charted ARS measurements
var ARSSeriesParameters = []string{"hour_rain", "daily_rain", "batt_volt"}

// DashboardService assembles the per-station views from gateway fetches
// and evaluator output
type DashboardService struct {
	repo        repository.StationRepository
	alerts      *evaluator.AlertEvaluator
	constraints *evaluator.ConstraintRegistry
	logger      *logging.StructuredLogger
	metrics     *metrics.Collector
	now         func() time.Time
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(
	repo repository.StationRepository,
	alerts *evaluator.AlertEvaluator,
	constraints *evaluator.ConstraintRegistry,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *DashboardService {
	return &DashboardService{
		repo:        repo,
		alerts:      alerts,
		constraints: constraints,
		logger:      logger,
		metrics:     metricsCollector,
		now:         time.Now,
	}
}

// Today returns the current date in UTC
func (s *DashboardService) Today() time.Time {
	n := s.now().UTC()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
}

// fetch builds and runs a spec. Unavailable stores come back as a flagged
// result with a nil error; only validation failures are returned.
func (s *DashboardService) fetch(ctx context.Context, kind models.StationKind, opts ...models.QueryOption) (*models.ResultSet, error) {
	spec, err := models.NewQuerySpec(kind, opts...)
	if err != nil {
		return nil, err
	}

	rs, err := s.repo.Fetch(ctx, spec)
	if err != nil {
		var unavailable *models.UnavailableError
		if errors.As(err, &unavailable) && rs != nil {
			return rs, nil
		}
		return nil, err
	}
	return rs, nil
}

// StationOverview is one station's line in the overview
type StationOverview struct {
	Station     models.StationKind `json:"station"`
	Table       string             `json:"table"`
	Records     int                `json:"records"`
	Unavailable bool               `json:"unavailable"`
	Error       string             `json:"error,omitempty"`
}

// Overview holds the headline figures across all stations
type Overview struct {
	ActiveStations int               `json:"active_stations"`
	TotalRecords   int               `json:"total_records"`
	Stations       []StationOverview `json:"stations"`
}

// Overview fetches every station table and counts what came back
func (s *DashboardService) Overview(ctx context.Context) (*Overview, error) {
	out := &Overview{Stations: make([]StationOverview, 0, len(models.AllStationKinds))}

	for _, kind := range models.AllStationKinds {
		rs, err := s.fetch(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", kind, err)
		}

		line := StationOverview{
			Station:     kind,
			Table:       rs.Table,
			Records:     rs.Len(),
			Unavailable: rs.Unavailable,
			Error:       rs.Error,
		}
		if !rs.Unavailable {
			out.ActiveStations++
		}
		out.TotalRecords += rs.Len()
		out.Stations = append(out.Stations, line)
	}

	s.logger.Debug(ctx, "[OVERVIEW] Overview assembled", logging.Fields{
		"active_stations": out.ActiveStations,
		"total_records":   out.TotalRecords,
	})

	return out, nil
}

// Thresholds returns the alert limits rows are evaluated against
func (s *DashboardService) Thresholds() evaluator.Thresholds {
	return s.alerts.Thresholds()
}

// StationDay is one station's readings for a single day with alert flags
type StationDay struct {
	Station     models.StationKind   `json:"station"`
	Date        string               `json:"date"`
	Project     string               `json:"project,omitempty"`
	Projects    []string             `json:"projects"`
	Readings    *models.ResultSet    `json:"readings"`
	Alerts      []evaluator.RowAlert `json:"alerts"`
	AlertRows   *models.ResultSet    `json:"alert_rows"`
	AlertCount  int                  `json:"alert_count"`
	Unavailable bool                 `json:"unavailable"`
}

// StationDay returns the readings of kind on day, optionally narrowed to
// one project, evaluated against the alert rules
func (s *DashboardService) StationDay(ctx context.Context, kind models.StationKind, day time.Time, project string) (*StationDay, error) {
	opts := []models.QueryOption{models.WithDay(day)}
	if project != "" {
		opts = append(opts, models.WithFilter("project_name", project))
	}

	readings, err := s.fetch(ctx, kind, opts...)
	if err != nil {
		return nil, err
	}

	out := &StationDay{
		Station:     kind,
		Date:        day.Format(models.DateLayout),
		Project:     project,
		Projects:    []string{},
		Readings:    readings,
		Unavailable: readings.Unavailable,
	}

	all, err := s.fetch(ctx, kind)
	if err != nil {
		return nil, err
	}
	out.Projects = distinctValues(all, "project_name")

	result := s.alerts.EvaluateResult(readings, kind)
	out.Alerts = result.Alerts
	out.AlertRows = result.AlertRows
	out.AlertCount = result.Count

	if out.AlertCount > 0 {
		s.logger.Info(ctx, "[STATION_ALERTS] Alert rows found", logging.Fields{
			"station": kind.String(),
			"date":    out.Date,
			"alerts":  out.AlertCount,
		})
	}

	return out, nil
}

func distinctValues(rs *models.ResultSet, column string) []string {
	values := []string{}
	if !rs.HasColumn(column) {
		return values
	}
	seen := make(map[string]bool)
	for _, row := range rs.Rows {
		v, ok := row.Text(column)
		if !ok || seen[v] {
			continue
		}
		seen[v] = true
		values = append(values, v)
	}
	return values
}

// History is a date-bounded slice of one station's readings
type History struct {
	Station    models.StationKind `json:"station"`
	StartDate  string             `json:"start_date"`
	EndDate    string             `json:"end_date"`
	Parameter  string             `json:"parameter,omitempty"`
	Parameters []string           `json:"parameters"`
	Readings   *models.ResultSet  `json:"readings"`
	Warning    string             `json:"warning,omitempty"`
}

// History fetches kind between start and end. A named parameter is moved
// to the front of the columns, right after data_date.
func (s *DashboardService) History(ctx context.Context, kind models.StationKind, start, end time.Time, parameter string) (*History, error) {
	if parameter == AllParameters {
		parameter = ""
	}

	readings, err := s.fetch(ctx, kind, models.WithDateRange(start, end))
	if err != nil {
		return nil, err
	}

	out := &History{
		Station:    kind,
		StartDate:  start.Format(models.DateLayout),
		EndDate:    end.Format(models.DateLayout),
		Parameter:  parameter,
		Parameters: readings.NumericColumns(),
		Readings:   readings,
	}
	if out.Parameters == nil {
		out.Parameters = []string{}
	}

	if parameter != "" && readings.Len() > 0 {
		if readings.HasColumn(parameter) {
			out.Readings = readings.WithLeadingColumns(models.DefaultDateColumn, parameter)
		} else {
			out.Warning = fmt.Sprintf("Parameter '%s' not found in data", parameter)
		}
	}

	return out, nil
}

// ConstraintReport lists the range violations of one station table
type ConstraintReport struct {
	Station     models.StationKind         `json:"station"`
	Table       string                     `json:"table"`
	Rules       []evaluator.ConstraintRule `json:"rules"`
	Violations  []evaluator.Violation      `json:"violations"`
	Records     int                        `json:"records"`
	Unavailable bool                       `json:"unavailable"`
}

// Constraints checks kind's rows, optionally bounded by a date range,
// against its constraint rules and publishes the counts as gauges
func (s *DashboardService) Constraints(ctx context.Context, kind models.StationKind, opts ...models.QueryOption) (*ConstraintReport, error) {
	rs, err := s.fetch(ctx, kind, opts...)
	if err != nil {
		return nil, err
	}

	table, _ := kind.Table()
	rules := s.constraints.Rules(table)
	if rules == nil {
		rules = []evaluator.ConstraintRule{}
	}

	out := &ConstraintReport{
		Station:     kind,
		Table:       table,
		Rules:       rules,
		Violations:  s.constraints.Check(rs, table),
		Records:     rs.Len(),
		Unavailable: rs.Unavailable,
	}

	if !rs.Unavailable {
		counts := make(map[string]int, len(out.Violations))
		for _, v := range out.Violations {
			counts[v.Column] = v.InvalidCount
		}
		for _, rule := range rules {
			s.metrics.SetConstraintViolations(table, rule.Column, counts[rule.Column])
		}
	}

	for _, v := range out.Violations {
		s.logger.Warn(ctx, "[CONSTRAINT_VIOLATION] Values outside configured range", logging.Fields{
			"table":   v.Table,
			"column":  v.Column,
			"invalid": v.InvalidCount,
		})
	}

	return out, nil
}

// SeriesPoint is one charted reading; Value is nil for missing readings
type SeriesPoint struct {
	Time  time.Time `json:"time"`
	Value *float64  `json:"value"`
}

// SeriesStats summarizes the non-missing values of a series
type SeriesStats struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Series is one parameter of a station plotted over time
type Series struct {
	Station     models.StationKind `json:"station"`
	Parameter   string             `json:"parameter"`
	Points      []SeriesPoint      `json:"points"`
	Stats       SeriesStats        `json:"stats"`
	Dropped     int                `json:"dropped"`
	Unavailable bool               `json:"unavailable"`
}

var daysPrefix = regexp.MustCompile(`\d+ days `)

// SeriesParameters returns the fixed parameter choices for kind, or nil
// when any numeric column may be charted
func SeriesParameters(kind models.StationKind) []string {
	if kind == models.ARS {
		return ARSSeriesParameters
	}
	return nil
}

// Series plots parameter of kind against data_date + data_time. Rows
// whose timestamp cannot be built are dropped.
func (s *DashboardService) Series(ctx context.Context, kind models.StationKind, parameter string, opts ...models.QueryOption) (*Series, error) {
	if parameter == "" {
		return nil, &models.ValidationError{Field: "parameter", Message: "parameter is required"}
	}
	if allowed := SeriesParameters(kind); allowed != nil && !contains(allowed, parameter) {
		return nil, &models.ValidationError{
			Field:   "parameter",
			Value:   parameter,
			Message: fmt.Sprintf("%s series supports %v", kind, allowed),
		}
	}

	rs, err := s.fetch(ctx, kind, opts...)
	if err != nil {
		return nil, err
	}

	out := &Series{
		Station:     kind,
		Parameter:   parameter,
		Points:      []SeriesPoint{},
		Unavailable: rs.Unavailable,
	}
	if rs.Len() == 0 {
		return out, nil
	}
	if !rs.HasColumn(parameter) {
		return nil, &models.ValidationError{
			Field:   "parameter",
			Value:   parameter,
			Message: "column not present in station data",
		}
	}

	var values []float64
	for _, row := range rs.Rows {
		ts, ok := readingTime(row)
		if !ok {
			out.Dropped++
			continue
		}
		point := SeriesPoint{Time: ts}
		if v, ok := row.Float(parameter); ok {
			point.Value = &v
			values = append(values, v)
		}
		out.Points = append(out.Points, point)
	}

	sort.SliceStable(out.Points, func(i, j int) bool {
		return out.Points[i].Time.Before(out.Points[j].Time)
	})
	out.Stats = describe(values)

	return out, nil
}

// readingTime joins data_date and data_time. Interval-typed times arrive
// as "0 days 08:00:00" and lose their day prefix.
func readingTime(row models.Row) (time.Time, bool) {
	date, ok := row.Text(models.DefaultDateColumn)
	if !ok || len(date) < len(models.DateLayout) {
		return time.Time{}, false
	}
	date = date[:len(models.DateLayout)]

	var clock string
	switch v := row["data_time"].(type) {
	case time.Time:
		clock = v.Format("15:04:05")
	case nil:
		return time.Time{}, false
	default:
		text, ok := row.Text("data_time")
		if !ok {
			return time.Time{}, false
		}
		clock = daysPrefix.ReplaceAllString(text, "")
	}

	ts, err := time.Parse("2006-01-02 15:04:05", date+" "+clock)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func describe(values []float64) SeriesStats {
	stats := SeriesStats{Count: len(values)}
	if len(values) == 0 {
		return stats
	}

	stats.Min, stats.Max = values[0], values[0]
	sum := 0.0
	for _, v := range values {
		sum += v
		stats.Min = math.Min(stats.Min, v)
		stats.Max = math.Max(stats.Max, v)
	}
	stats.Mean = sum / float64(len(values))

	if len(values) > 1 {
		sq := 0.0
		for _, v := range values {
			d := v - stats.Mean
			sq += d * d
		}
		// sample standard deviation
		stats.Std = math.Sqrt(sq / float64(len(values)-1))
	}
	return stats
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
