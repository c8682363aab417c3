package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Row is a single record keyed by column name. Values are whatever the
// driver produced after normalization: nil, int64, float64, bool, string
// or time.Time.
type Row map[string]interface{}

// Float returns the numeric value of a column.
// ok is false when the column is absent, null or not parseable as a number.
func (r Row) Float(column string) (value float64, ok bool) {
	raw, present := r[column]
	if !present || raw == nil {
		return 0, false
	}

	switch v := raw.(type) {
	case float64:
		value = v
	case float32:
		value = float64(v)
	case int64:
		value = float64(v)
	case int32:
		value = float64(v)
	case int16:
		value = float64(v)
	case int:
		value = float64(v)
	case uint64:
		value = float64(v)
	case uint32:
		value = float64(v)
	case uint16:
		value = float64(v)
	case uint:
		value = float64(v)
	case []byte:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
		if err != nil {
			return 0, false
		}
		value = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		value = f
	default:
		return 0, false
	}

	if math.IsNaN(value) {
		return 0, false
	}
	return value, true
}

// Text returns the column value rendered as a string; ok is false for
// absent or null columns.
func (r Row) Text(column string) (string, bool) {
	raw, present := r[column]
	if !present || raw == nil {
		return "", false
	}
	switch v := raw.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	case time.Time:
		if v.Hour() == 0 && v.Minute() == 0 && v.Second() == 0 && v.Nanosecond() == 0 {
			return v.Format(DateLayout), true
		}
		return v.Format(time.RFC3339), true
	default:
		return fmt.Sprint(v), true
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	DateLayout,
}

// Time returns the column value as a time; strings are parsed in the
// common SQL layouts.
func (r Row) Time(column string) (time.Time, bool) {
	raw, present := r[column]
	if !present || raw == nil {
		return time.Time{}, false
	}
	switch v := raw.(type) {
	case time.Time:
		return v, true
	case string:
		return parseTime(v)
	case []byte:
		return parseTime(string(v))
	}
	return time.Time{}, false
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ResultSet is an ordered sequence of rows fetched from one station table.
// Its schema is whatever the table holds.
type ResultSet struct {
	Table       string   `json:"table"`
	Columns     []string `json:"columns"`
	Rows        []Row    `json:"rows"`
	Unavailable bool     `json:"unavailable"`
	Error       string   `json:"error,omitempty"`
}

// EmptyResultSet returns a result with no rows that is not an error
func EmptyResultSet(table string) *ResultSet {
	return &ResultSet{
		Table:   table,
		Columns: []string{},
		Rows:    []Row{},
	}
}

// UnavailableResultSet returns an empty result marking a failed fetch
func UnavailableResultSet(table string, err error) *ResultSet {
	rs := EmptyResultSet(table)
	rs.Unavailable = true
	if err != nil {
		rs.Error = err.Error()
	}
	return rs
}

// Len returns the number of rows
func (rs *ResultSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Rows)
}

// HasColumn reports whether the result schema contains column
func (rs *ResultSet) HasColumn(column string) bool {
	for _, c := range rs.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// Filter returns a new result holding the rows for which keep returns true
func (rs *ResultSet) Filter(keep func(Row) bool) *ResultSet {
	out := &ResultSet{
		Table:       rs.Table,
		Columns:     rs.Columns,
		Rows:        make([]Row, 0, len(rs.Rows)),
		Unavailable: rs.Unavailable,
		Error:       rs.Error,
	}
	for _, row := range rs.Rows {
		if keep(row) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// WithLeadingColumns returns a copy whose column order starts with the
// given columns (those present in the schema), followed by the rest in
// their original order. Rows are shared.
func (rs *ResultSet) WithLeadingColumns(first ...string) *ResultSet {
	seen := make(map[string]bool, len(rs.Columns))
	ordered := make([]string, 0, len(rs.Columns))
	for _, c := range first {
		if rs.HasColumn(c) && !seen[c] {
			ordered = append(ordered, c)
			seen[c] = true
		}
	}
	for _, c := range rs.Columns {
		if !seen[c] {
			ordered = append(ordered, c)
		}
	}

	out := *rs
	out.Columns = ordered
	return &out
}

// NumericColumns returns the columns whose non-null values all parse as
// numbers, in schema order. Columns with only nulls are excluded.
func (rs *ResultSet) NumericColumns() []string {
	var cols []string
	for _, c := range rs.Columns {
		numeric, seen := true, false
		for _, row := range rs.Rows {
			raw := row[c]
			if raw == nil {
				continue
			}
			if _, isTime := raw.(time.Time); isTime {
				numeric = false
				break
			}
			if _, ok := row.Float(c); !ok {
				numeric = false
				break
			}
			seen = true
		}
		if numeric && seen {
			cols = append(cols, c)
		}
	}
	return cols
}

// ResultSummary holds the headline figures shown above a result table
type ResultSummary struct {
	Records         int        `json:"records"`
	FirstDate       string     `json:"first_date,omitempty"`
	LastDate        string     `json:"last_date,omitempty"`
	UniqueLocations int        `json:"unique_locations"`
	MostRecent      *time.Time `json:"most_recent,omitempty"`
}

// Summarize computes record count, date span, distinct location_id count
// and the most recent timestamp of a result.
func Summarize(rs *ResultSet) ResultSummary {
	summary := ResultSummary{Records: rs.Len()}
	if rs.Len() == 0 {
		return summary
	}

	locations := make(map[string]struct{})
	for _, row := range rs.Rows {
		if d, ok := row.Text(DefaultDateColumn); ok {
			d = firstN(d, len(DateLayout))
			if summary.FirstDate == "" || d < summary.FirstDate {
				summary.FirstDate = d
			}
			if d > summary.LastDate {
				summary.LastDate = d
			}
		}
		if loc, ok := row.Text("location_id"); ok {
			locations[loc] = struct{}{}
		}
		if ts, ok := row.Time("timestamp"); ok {
			if summary.MostRecent == nil || ts.After(*summary.MostRecent) {
				t := ts
				summary.MostRecent = &t
			}
		}
	}
	summary.UniqueLocations = len(locations)

	return summary
}

func firstN(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
