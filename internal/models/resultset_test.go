package models

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestRow_Float(t *testing.T) {
	row := Row{
		"f64":   10.5,
		"i64":   int64(3),
		"i16":   int16(-4),
		"u64":   uint64(9),
		"u32":   uint32(11),
		"bytes": []byte(" 12.25 "),
		"str":   "7",
		"bad":   "n/a",
		"nan":   math.NaN(),
		"null":  nil,
		"when":  time.Now(),
	}

	tests := []struct {
		column string
		want   float64
		wantOK bool
	}{
		{"f64", 10.5, true},
		{"i64", 3, true},
		{"i16", -4, true},
		{"u64", 9, true},
		{"u32", 11, true},
		{"bytes", 12.25, true},
		{"str", 7, true},
		{"bad", 0, false},
		{"nan", 0, false},
		{"null", 0, false},
		{"when", 0, false},
		{"missing", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			got, ok := row.Float(tt.column)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Float(%q) = %v, %v; want %v, %v", tt.column, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func sampleResult() *ResultSet {
	return &ResultSet{
		Table:   "river_data",
		Columns: []string{"data_date", "timestamp", "location_id", "project_name", "water_level"},
		Rows: []Row{
			{"data_date": "2025-05-02", "timestamp": "2025-05-02 08:00:00", "location_id": "GOD1", "project_name": "Godavari", "water_level": 1500.0},
			{"data_date": "2025-05-01", "timestamp": "2025-05-01 08:00:00", "location_id": "GOD2", "project_name": "Godavari", "water_level": nil},
			{"data_date": "2025-05-03", "timestamp": "2025-05-03 09:30:00", "location_id": "GOD1", "project_name": "Tapi", "water_level": "1620.5"},
		},
	}
}

func TestSummarize(t *testing.T) {
	summary := Summarize(sampleResult())

	if summary.Records != 3 {
		t.Errorf("Records = %v, want 3", summary.Records)
	}
	if summary.FirstDate != "2025-05-01" || summary.LastDate != "2025-05-03" {
		t.Errorf("date span = %v..%v", summary.FirstDate, summary.LastDate)
	}
	if summary.UniqueLocations != 2 {
		t.Errorf("UniqueLocations = %v, want 2", summary.UniqueLocations)
	}
	want := time.Date(2025, 5, 3, 9, 30, 0, 0, time.UTC)
	if summary.MostRecent == nil || !summary.MostRecent.Equal(want) {
		t.Errorf("MostRecent = %v, want %v", summary.MostRecent, want)
	}

	empty := Summarize(EmptyResultSet("dam_data"))
	if empty.Records != 0 || empty.MostRecent != nil {
		t.Errorf("Summarize(empty) = %+v", empty)
	}
}

func TestResultSet_NumericColumns(t *testing.T) {
	got := sampleResult().NumericColumns()
	if len(got) != 1 || got[0] != "water_level" {
		t.Errorf("NumericColumns() = %v, want [water_level]", got)
	}
}

func TestResultSet_WithLeadingColumns(t *testing.T) {
	rs := sampleResult().WithLeadingColumns("data_date", "water_level", "missing")
	want := []string{"data_date", "water_level", "timestamp", "location_id", "project_name"}
	if len(rs.Columns) != len(want) {
		t.Fatalf("Columns = %v, want %v", rs.Columns, want)
	}
	for i := range want {
		if rs.Columns[i] != want[i] {
			t.Errorf("Columns[%d] = %v, want %v", i, rs.Columns[i], want[i])
		}
	}
}

func TestResultSet_Filter(t *testing.T) {
	rs := sampleResult().Filter(func(r Row) bool {
		p, _ := r.Text("project_name")
		return p == "Godavari"
	})
	if rs.Len() != 2 {
		t.Errorf("Filter() kept %d rows, want 2", rs.Len())
	}
}

func TestUnavailableResultSet(t *testing.T) {
	rs := UnavailableResultSet("aws_data", errors.New("connection refused"))
	if !rs.Unavailable || rs.Len() != 0 || rs.Error != "connection refused" {
		t.Errorf("UnavailableResultSet() = %+v", rs)
	}
}

func TestErrorTransience(t *testing.T) {
	if (&ValidationError{Message: "bad"}).IsTransient() {
		t.Error("ValidationError should not be transient")
	}

	cause := errors.New("timeout")
	uerr := &UnavailableError{Table: "dam_data", Err: cause}
	if !uerr.IsTransient() {
		t.Error("UnavailableError should be transient")
	}
	if !errors.Is(uerr, cause) {
		t.Error("UnavailableError should unwrap to its cause")
	}
}
