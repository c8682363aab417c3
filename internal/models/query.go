package models

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format used by the API and the store
const DateLayout = "2006-01-02"

// DefaultDateColumn is the canonical date column of every station table
const DefaultDateColumn = "data_date"

// QuerySpec is an immutable read request against one station table.
// Start/end dates are either both set or both unset, and so are the
// filter column and value; the options below make any other state
// unrepresentable.
type QuerySpec struct {
	station      StationKind
	startDate    time.Time
	endDate      time.Time
	hasRange     bool
	dateColumn   string
	filterColumn string
	filterValue  string
	hasFilter    bool
}

// QueryOption configures a QuerySpec
type QueryOption func(*QuerySpec)

// WithDateRange bounds the query to dates in [start, end], inclusive.
// Only the calendar date of each argument is used.
func WithDateRange(start, end time.Time) QueryOption {
	return func(q *QuerySpec) {
		q.startDate = truncateDate(start)
		q.endDate = truncateDate(end)
		q.hasRange = true
	}
}

// WithDay bounds the query to a single calendar date
func WithDay(day time.Time) QueryOption {
	return WithDateRange(day, day)
}

// WithDateColumn overrides the column used for range bounding and ordering
func WithDateColumn(column string) QueryOption {
	return func(q *QuerySpec) {
		q.dateColumn = column
	}
}

// WithFilter selects rows whose column equals value exactly
func WithFilter(column, value string) QueryOption {
	return func(q *QuerySpec) {
		q.filterColumn = column
		q.filterValue = value
		q.hasFilter = true
	}
}

// NewQuerySpec builds a QuerySpec for the given station kind
func NewQuerySpec(station StationKind, opts ...QueryOption) (QuerySpec, error) {
	q := QuerySpec{
		station:    station,
		dateColumn: DefaultDateColumn,
	}
	for _, opt := range opts {
		opt(&q)
	}

	if !station.Valid() {
		return QuerySpec{}, &ValidationError{
			Field:   "station",
			Value:   fmt.Sprintf("%d", int(station)),
			Message: "unknown station kind",
		}
	}
	if strings.TrimSpace(q.dateColumn) == "" {
		return QuerySpec{}, &ValidationError{Field: "date_column", Message: "date column must not be empty"}
	}
	if q.hasFilter && strings.TrimSpace(q.filterColumn) == "" {
		return QuerySpec{}, &ValidationError{Field: "filter_column", Message: "filter column must not be empty"}
	}

	return q, nil
}

// Station returns the target station kind
func (q QuerySpec) Station() StationKind { return q.station }

// Table returns the store table of the target station
func (q QuerySpec) Table() string {
	table, _ := q.station.Table()
	return table
}

// DateRange returns the inclusive date bounds, if any
func (q QuerySpec) DateRange() (start, end time.Time, ok bool) {
	return q.startDate, q.endDate, q.hasRange
}

// DateColumn returns the column used for range bounding and ordering
func (q QuerySpec) DateColumn() string { return q.dateColumn }

// Filter returns the equality filter, if any
func (q QuerySpec) Filter() (column, value string, ok bool) {
	return q.filterColumn, q.filterValue, q.hasFilter
}

// EmptyRange reports whether the date range can match nothing (start after end)
func (q QuerySpec) EmptyRange() bool {
	return q.hasRange && q.startDate.After(q.endDate)
}

// Key returns a canonical string covering every field of the spec
func (q QuerySpec) Key() string {
	var b strings.Builder
	b.WriteString(q.Table())
	b.WriteString("|")
	b.WriteString(q.dateColumn)
	if q.hasRange {
		fmt.Fprintf(&b, "|range=%s..%s", q.startDate.Format(DateLayout), q.endDate.Format(DateLayout))
	}
	if q.hasFilter {
		fmt.Fprintf(&b, "|filter=%q=%q", q.filterColumn, q.filterValue)
	}
	return b.String()
}

func truncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD request parameter
func ParseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, &ValidationError{
			Field:   field,
			Value:   value,
			Message: "invalid date format, expected YYYY-MM-DD",
		}
	}
	return t, nil
}
