// Package evaluator flags station readings that break threshold rules.
// Everything here is pure: no I/O, no shared mutable state.
package evaluator

import (
	"regexp"
	"sort"

	"hydro-dashboard/internal/models"
)

// Thresholds holds the numeric limits used by the row-level alert rules
type Thresholds struct {
	BatteryMinVolts   float64 `json:"battery_min_volts" mapstructure:"battery_min_volts"`
	GateMaxOpening    float64 `json:"gate_max_opening" mapstructure:"gate_max_opening"`
	EPANMinDepth      float64 `json:"epan_min_depth" mapstructure:"epan_min_depth"`
	AWSMaxRainfall    float64 `json:"aws_max_rainfall" mapstructure:"aws_max_rainfall"`
	AWSMaxWindSpeed   float64 `json:"aws_max_wind_speed" mapstructure:"aws_max_wind_speed"`
	AWSMaxTemperature float64 `json:"aws_max_temperature" mapstructure:"aws_max_temperature"`
}

// DefaultThresholds returns the limits used by the field dashboards:
// 10.5 V battery, any gate opening above 0.00, 15 mm pan depth,
// 50 mm rainfall, 30 km/h wind and 40 °C air temperature.
func DefaultThresholds() Thresholds {
	return Thresholds{
		BatteryMinVolts:   10.5,
		GateMaxOpening:    0.00,
		EPANMinDepth:      15,
		AWSMaxRainfall:    50,
		AWSMaxWindSpeed:   30,
		AWSMaxTemperature: 40,
	}
}

// Comparison is the direction in which a reading breaks its threshold
type Comparison string

const (
	Below Comparison = "<"
	Above Comparison = ">"
)

func (c Comparison) fires(value, threshold float64) bool {
	switch c {
	case Below:
		return value < threshold
	case Above:
		return value > threshold
	}
	return false
}

// Predicate is a single threshold check on one column, or on every
// column matching Pattern.
type Predicate struct {
	Name       string
	Column     string
	Pattern    *regexp.Regexp
	Comparison Comparison
	Threshold  float64
	// FirstMatchOnly stops scanning pattern columns after the first firing
	FirstMatchOnly bool
}

// columns returns the schema columns this predicate applies to
func (p Predicate) columns(schema []string) []string {
	if p.Pattern == nil {
		for _, c := range schema {
			if c == p.Column {
				return []string{c}
			}
		}
		return nil
	}

	var matched []string
	for _, c := range schema {
		if p.Pattern.MatchString(c) {
			matched = append(matched, c)
		}
	}
	return matched
}

// Firing records one predicate that fired on a row
type Firing struct {
	Predicate  string     `json:"predicate"`
	Column     string     `json:"column"`
	Value      float64    `json:"value"`
	Comparison Comparison `json:"comparison"`
	Threshold  float64    `json:"threshold"`
}

// RowAlert is the transient alert annotation of a single row
type RowAlert struct {
	Flagged bool     `json:"flagged"`
	Fired   []Firing `json:"fired,omitempty"`
}

var gateColumnPattern = regexp.MustCompile(`^g\d+$`)

// AlertEvaluator applies the per-station predicate lists
type AlertEvaluator struct {
	thresholds Thresholds
	universal  []Predicate
	byKind     map[models.StationKind][]Predicate
}

// NewAlertEvaluator builds the predicate lists for the given thresholds
func NewAlertEvaluator(th Thresholds) *AlertEvaluator {
	return &AlertEvaluator{
		thresholds: th,
		universal: []Predicate{
			{Name: "low_battery", Column: "batt_volt", Comparison: Below, Threshold: th.BatteryMinVolts},
		},
		byKind: map[models.StationKind][]Predicate{
			models.Gate: {
				{Name: "gate_open", Pattern: gateColumnPattern, Comparison: Above, Threshold: th.GateMaxOpening, FirstMatchOnly: true},
			},
			models.EPAN: {
				{Name: "low_pan_depth", Column: "epan_water_depth", Comparison: Below, Threshold: th.EPANMinDepth},
			},
			models.AWS: {
				{Name: "heavy_rainfall", Column: "rainfall", Comparison: Above, Threshold: th.AWSMaxRainfall},
				{Name: "high_wind", Column: "wind_speed", Comparison: Above, Threshold: th.AWSMaxWindSpeed},
				{Name: "high_temperature", Column: "temperature", Comparison: Above, Threshold: th.AWSMaxTemperature},
			},
		},
	}
}

// Thresholds returns the limits the evaluator was built with
func (e *AlertEvaluator) Thresholds() Thresholds {
	return e.thresholds
}

// Predicates returns the predicates applied to rows of the given kind,
// in evaluation order.
func (e *AlertEvaluator) Predicates(kind models.StationKind) []Predicate {
	preds := make([]Predicate, 0, len(e.universal)+len(e.byKind[kind]))
	preds = append(preds, e.universal...)
	return append(preds, e.byKind[kind]...)
}

// EvaluateRow flags a single row. Pattern predicates scan the row's
// columns in sorted order.
func (e *AlertEvaluator) EvaluateRow(row models.Row, kind models.StationKind) RowAlert {
	schema := make([]string, 0, len(row))
	for c := range row {
		schema = append(schema, c)
	}
	sort.Strings(schema)
	return e.evaluate(row, schema, kind)
}

func (e *AlertEvaluator) evaluate(row models.Row, schema []string, kind models.StationKind) RowAlert {
	var alert RowAlert

	for _, p := range e.Predicates(kind) {
		for _, col := range p.columns(schema) {
			value, ok := row.Float(col)
			if !ok {
				continue
			}
			if !p.Comparison.fires(value, p.Threshold) {
				continue
			}
			alert.Fired = append(alert.Fired, Firing{
				Predicate:  p.Name,
				Column:     col,
				Value:      value,
				Comparison: p.Comparison,
				Threshold:  p.Threshold,
			})
			if p.FirstMatchOnly {
				break
			}
		}
	}

	alert.Flagged = len(alert.Fired) > 0
	return alert
}

// ResultAlerts holds the row-level alerts of a whole result
type ResultAlerts struct {
	// Alerts is parallel to the result's rows
	Alerts    []RowAlert        `json:"alerts"`
	AlertRows *models.ResultSet `json:"alert_rows"`
	Count     int               `json:"count"`
}

// EvaluateResult flags every row of rs and collects the flagged ones.
// Pattern predicates follow the result's column order.
func (e *AlertEvaluator) EvaluateResult(rs *models.ResultSet, kind models.StationKind) ResultAlerts {
	out := ResultAlerts{Alerts: make([]RowAlert, 0, rs.Len())}
	for _, row := range rs.Rows {
		out.Alerts = append(out.Alerts, e.evaluate(row, rs.Columns, kind))
	}

	// Filter visits rows in order, so i tracks the parallel alert
	i := 0
	out.AlertRows = rs.Filter(func(models.Row) bool {
		flagged := out.Alerts[i].Flagged
		i++
		return flagged
	})
	out.Count = out.AlertRows.Len()

	return out
}
