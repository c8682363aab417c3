package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"hydro-dashboard/internal/models"
	"hydro-dashboard/pkg/database"
	"hydro-dashboard/pkg/logging"
	"hydro-dashboard/pkg/metrics"
)

// StationRepository provides read access to the station tables
type StationRepository interface {
	// Fetch runs spec against its station table. Invalid specs fail with
	// *models.ValidationError before any query is built. Store failures
	// return an unavailable ResultSet together with *models.UnavailableError.
	Fetch(ctx context.Context, spec models.QuerySpec) (*models.ResultSet, error)

	HealthCheck(ctx context.Context) error
}

// DefaultAllowedColumns are the columns that may be used for date
// bounding, ordering and equality filtering.
var DefaultAllowedColumns = []string{"data_date", "timestamp", "data_time", "location_id", "project_name"}

// DefaultFetchTimeout bounds a single fetch
const DefaultFetchTimeout = 5 * time.Second

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ColumnAllowList is the set of column names accepted in query structure
type ColumnAllowList map[string]struct{}

// NewColumnAllowList builds an allow-list; names that are not plain
// lower-case SQL identifiers are refused.
func NewColumnAllowList(columns []string) (ColumnAllowList, error) {
	allowed := make(ColumnAllowList, len(columns))
	for _, c := range columns {
		if !identifierPattern.MatchString(c) {
			return nil, fmt.Errorf("invalid column name in allow-list: %q", c)
		}
		allowed[c] = struct{}{}
	}
	return allowed, nil
}

func (a ColumnAllowList) check(field, column string) error {
	if _, ok := a[column]; !ok || !identifierPattern.MatchString(column) {
		return &models.ValidationError{
			Field:   field,
			Value:   column,
			Message: "column is not queryable",
		}
	}
	return nil
}

// BuildSelect renders spec as a SELECT with '?' placeholders.
// Only the table name (from the station kind) and allow-listed column
// names reach the query text, each passed through quote; dates and the
// filter value are returned as arguments.
func BuildSelect(spec models.QuerySpec, allowed ColumnAllowList, quote func(string) string) (string, []interface{}, error) {
	table, ok := spec.Station().Table()
	if !ok || !identifierPattern.MatchString(table) {
		return "", nil, &models.ValidationError{
			Field:   "table",
			Value:   spec.Station().String(),
			Message: "unknown station table",
		}
	}

	dateColumn := spec.DateColumn()
	if err := allowed.check("date_column", dateColumn); err != nil {
		return "", nil, err
	}

	var (
		conditions []string
		args       []interface{}
	)

	if start, end, ok := spec.DateRange(); ok {
		conditions = append(conditions, quote(dateColumn)+" BETWEEN ? AND ?")
		args = append(args, start.Format(models.DateLayout), end.Format(models.DateLayout))
	}

	if column, value, ok := spec.Filter(); ok {
		if err := allowed.check("filter_column", column); err != nil {
			return "", nil, err
		}
		conditions = append(conditions, quote(column)+" = ?")
		args = append(args, value)
	}

	query := "SELECT * FROM " + quote(table)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY " + quote(dateColumn) + " ASC"

	return query, args, nil
}

// stationRepository implements StationRepository
type stationRepository struct {
	db      *database.DB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	allowed ColumnAllowList
	timeout time.Duration
}

// NewStationRepository creates a new station repository
func NewStationRepository(
	db *database.DB,
	allowed ColumnAllowList,
	timeout time.Duration,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) StationRepository {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &stationRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
		allowed: allowed,
		timeout: timeout,
	}
}

// Fetch retrieves the rows selected by spec ordered by its date column
func (r *stationRepository) Fetch(ctx context.Context, spec models.QuerySpec) (*models.ResultSet, error) {
	table := spec.Table()

	query, args, err := BuildSelect(spec, r.allowed, r.db.QuoteIdentifier)
	if err != nil {
		r.metrics.RecordFetch(table, "rejected", 0)
		r.logger.Warn(ctx, "[REPO_FETCH_REJECTED] Station query rejected", logging.Fields{
			"station": spec.Station().String(),
			"reason":  err.Error(),
		})
		return nil, err
	}

	if spec.EmptyRange() {
		r.metrics.RecordFetch(table, "empty", 0)
		r.logger.Debug(ctx, "[REPO_FETCH_EMPTY_RANGE] Start date after end date, skipping query", logging.Fields{
			"table": table,
		})
		return models.EmptyResultSet(table), nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rs, err := r.query(fetchCtx, table, r.db.Rebind(query), args)
	if err != nil {
		reason := "store_error"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		r.metrics.RecordFetch(table, "unavailable", 0)
		r.logger.Error(ctx, "[REPO_FETCH_UNAVAILABLE] Station data unavailable", logging.Fields{
			"table":      table,
			"reason":     reason,
			"timeout_ms": r.timeout.Milliseconds(),
		}, err)
		unavailable := &models.UnavailableError{Table: table, Err: err}
		return models.UnavailableResultSet(table, unavailable), unavailable
	}

	outcome := "ok"
	if rs.Len() == 0 {
		outcome = "empty"
	}
	r.metrics.RecordFetch(table, outcome, rs.Len())

	r.logger.Debug(ctx, "[REPO_FETCH] Station rows fetched", logging.Fields{
		"table": table,
		"rows":  rs.Len(),
		"key":   spec.Key(),
	})

	return rs, nil
}

func (r *stationRepository) query(ctx context.Context, table, query string, args []interface{}) (*models.ResultSet, error) {
	rows, err := r.db.QueryContext(ctx, "fetch_"+table, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	rs := models.EmptyResultSet(table)
	rs.Columns = columns

	for rows.Next() {
		raw := make(map[string]interface{}, len(columns))
		if err := rows.MapScan(raw); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		rs.Rows = append(rs.Rows, normalizeRow(raw))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return rs, nil
}

// normalizeRow converts driver byte slices to strings so rows encode as
// readable JSON and compare by value
func normalizeRow(raw map[string]interface{}) models.Row {
	row := make(models.Row, len(raw))
	for k, v := range raw {
		if b, ok := v.([]byte); ok {
			row[k] = string(b)
			continue
		}
		row[k] = v
	}
	return row
}

// HealthCheck performs a repository health check
func (r *stationRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}
