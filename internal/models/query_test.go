package models

import (
	"errors"
	"testing"
	"time"
)

func date(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

// TestNewQuerySpec covers defaults and the both-or-neither invariants
func TestNewQuerySpec(t *testing.T) {
	tests := []struct {
		name       string
		station    StationKind
		opts       []QueryOption
		wantErr    bool
		checkValue func(*testing.T, QuerySpec)
	}{
		{
			name:    "defaults",
			station: River,
			checkValue: func(t *testing.T, q QuerySpec) {
				if q.Table() != "river_data" {
					t.Errorf("Table() = %v, want river_data", q.Table())
				}
				if q.DateColumn() != DefaultDateColumn {
					t.Errorf("DateColumn() = %v, want %v", q.DateColumn(), DefaultDateColumn)
				}
				if _, _, ok := q.DateRange(); ok {
					t.Error("DateRange() should be unset")
				}
				if _, _, ok := q.Filter(); ok {
					t.Error("Filter() should be unset")
				}
			},
		},
		{
			name:    "date range is truncated to calendar dates",
			station: AWS,
			opts: []QueryOption{WithDateRange(
				time.Date(2025, 5, 1, 13, 45, 0, 0, time.UTC),
				time.Date(2025, 5, 3, 23, 59, 0, 0, time.UTC),
			)},
			checkValue: func(t *testing.T, q QuerySpec) {
				start, end, ok := q.DateRange()
				if !ok {
					t.Fatal("DateRange() should be set")
				}
				if !start.Equal(date("2025-05-01")) || !end.Equal(date("2025-05-03")) {
					t.Errorf("DateRange() = %v..%v", start, end)
				}
			},
		},
		{
			name:    "filter and custom date column",
			station: Gate,
			opts:    []QueryOption{WithDateColumn("timestamp"), WithFilter("location_id", "GOD123")},
			checkValue: func(t *testing.T, q QuerySpec) {
				col, val, ok := q.Filter()
				if !ok || col != "location_id" || val != "GOD123" {
					t.Errorf("Filter() = %v, %v, %v", col, val, ok)
				}
				if q.DateColumn() != "timestamp" {
					t.Errorf("DateColumn() = %v", q.DateColumn())
				}
			},
		},
		{
			name:    "unknown station",
			station: StationKind(42),
			wantErr: true,
		},
		{
			name:    "empty date column",
			station: Dam,
			opts:    []QueryOption{WithDateColumn(" ")},
			wantErr: true,
		},
		{
			name:    "empty filter column",
			station: Dam,
			opts:    []QueryOption{WithFilter("", "x")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := NewQuerySpec(tt.station, tt.opts...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewQuerySpec() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Errorf("error should be *ValidationError, got %T", err)
				}
				return
			}
			if tt.checkValue != nil {
				tt.checkValue(t, q)
			}
		})
	}
}

func TestQuerySpec_EmptyRange(t *testing.T) {
	q, err := NewQuerySpec(River, WithDateRange(date("2025-05-10"), date("2025-05-01")))
	if err != nil {
		t.Fatal(err)
	}
	if !q.EmptyRange() {
		t.Error("start after end should be an empty range")
	}

	q, _ = NewQuerySpec(River, WithDay(date("2025-05-10")))
	if q.EmptyRange() {
		t.Error("single day should not be an empty range")
	}
}

func TestQuerySpec_Key(t *testing.T) {
	a, _ := NewQuerySpec(ARS, WithDateRange(date("2025-05-01"), date("2025-05-02")), WithFilter("project_name", "Tapi"))
	b, _ := NewQuerySpec(ARS, WithFilter("project_name", "Tapi"), WithDateRange(date("2025-05-01"), date("2025-05-02")))
	c, _ := NewQuerySpec(ARS, WithDateRange(date("2025-05-01"), date("2025-05-03")), WithFilter("project_name", "Tapi"))
	d, _ := NewQuerySpec(ARS, WithDateRange(date("2025-05-01"), date("2025-05-02")), WithFilter("location_id", "Tapi"))
	e, _ := NewQuerySpec(ARS)

	if a.Key() != b.Key() {
		t.Errorf("option order changed the key: %q vs %q", a.Key(), b.Key())
	}
	for _, other := range []QuerySpec{c, d, e} {
		if a.Key() == other.Key() {
			t.Errorf("distinct specs share key %q", a.Key())
		}
	}
}

func TestParseDate(t *testing.T) {
	if _, err := ParseDate("start_date", "2025-05-01"); err != nil {
		t.Errorf("ParseDate() unexpected error: %v", err)
	}

	_, err := ParseDate("start_date", "01/05/2025")
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "start_date" {
		t.Errorf("ParseDate() error = %v, want ValidationError on start_date", err)
	}
}

func TestParseStationKind(t *testing.T) {
	tests := []struct {
		in      string
		want    StationKind
		wantErr bool
	}{
		{in: "River", want: River},
		{in: "aws", want: AWS},
		{in: " EPAN ", want: EPAN},
		{in: "gate_data", want: Gate},
		{in: "reservoir", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStationKind(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseStationKind(%q) error = %v", tt.in, err)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseStationKind(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestStations(t *testing.T) {
	stations := Stations()
	if len(stations) != 6 {
		t.Fatalf("Stations() returned %d entries, want 6", len(stations))
	}
	want := []string{"river_data", "dam_data", "epan_data", "aws_data", "ars_data", "gate_data"}
	for i, s := range stations {
		if s.Table != want[i] {
			t.Errorf("Stations()[%d].Table = %v, want %v", i, s.Table, want[i])
		}
	}
}
