package evaluator

import (
	"fmt"
	"strconv"

	"hydro-dashboard/internal/models"
)

// ConstraintRule is an inclusive numeric range for one column of a table
type ConstraintRule struct {
	Table  string  `json:"table" mapstructure:"table"`
	Column string  `json:"column" mapstructure:"column"`
	Min    float64 `json:"min" mapstructure:"min"`
	Max    float64 `json:"max" mapstructure:"max"`
}

// DefaultConstraintRules returns the stock per-table ranges
func DefaultConstraintRules() []ConstraintRule {
	return []ConstraintRule{
		{Table: "river_data", Column: "water_level", Min: 1000, Max: 2000},
		{Table: "dam_data", Column: "capacity", Min: 5000, Max: 10000},
		{Table: "epan_data", Column: "some_column", Min: 100, Max: 200},
		{Table: "aws_data", Column: "temperature", Min: 100, Max: 200},
		{Table: "ars_data", Column: "pressure", Min: 500, Max: 1000},
		{Table: "gate_data", Column: "status", Min: 2, Max: 3},
	}
}

// Violation summarizes the rows of a table that fall outside one rule
type Violation struct {
	Table        string  `json:"table"`
	Column       string  `json:"column"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	InvalidCount int     `json:"invalid_count"`
	Message      string  `json:"message"`
}

// ConstraintRegistry maps table names to their column ranges.
// Immutable once built.
type ConstraintRegistry struct {
	rules map[string][]ConstraintRule
}

// NewConstraintRegistry validates and indexes rules by table.
// Rules keep their declaration order within a table.
func NewConstraintRegistry(rules []ConstraintRule) (*ConstraintRegistry, error) {
	reg := &ConstraintRegistry{rules: make(map[string][]ConstraintRule)}

	for _, rule := range rules {
		if _, ok := models.StationKindForTable(rule.Table); !ok {
			return nil, fmt.Errorf("constraint on unknown table %q", rule.Table)
		}
		if rule.Column == "" {
			return nil, fmt.Errorf("constraint on table %q has no column", rule.Table)
		}
		if rule.Min > rule.Max {
			return nil, fmt.Errorf("constraint %s.%s: min %v greater than max %v", rule.Table, rule.Column, rule.Min, rule.Max)
		}
		reg.rules[rule.Table] = append(reg.rules[rule.Table], rule)
	}

	return reg, nil
}

// Rules returns the rules registered for table
func (r *ConstraintRegistry) Rules(table string) []ConstraintRule {
	return append([]ConstraintRule(nil), r.rules[table]...)
}

// Check scans rs once per rule of table and returns one violation per
// rule with at least one value outside [min, max]. Columns missing from
// the result, nulls and unparseable values are skipped.
func (r *ConstraintRegistry) Check(rs *models.ResultSet, table string) []Violation {
	violations := []Violation{}

	for _, rule := range r.rules[table] {
		if !rs.HasColumn(rule.Column) {
			continue
		}

		invalid := 0
		for _, row := range rs.Rows {
			v, ok := row.Float(rule.Column)
			if !ok {
				continue
			}
			if v < rule.Min || v > rule.Max {
				invalid++
			}
		}
		if invalid == 0 {
			continue
		}

		violations = append(violations, Violation{
			Table:        table,
			Column:       rule.Column,
			Min:          rule.Min,
			Max:          rule.Max,
			InvalidCount: invalid,
			Message: fmt.Sprintf(
				"Constraint violation in %s for column '%s': Values outside [%s, %s]. Found %d invalid entries.",
				table, rule.Column, formatBound(rule.Min), formatBound(rule.Max), invalid,
			),
		})
	}

	return violations
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
