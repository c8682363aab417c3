package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hydro-dashboard/internal/models"
)

func singleColumn(table, column string, values ...interface{}) *models.ResultSet {
	rs := &models.ResultSet{Table: table, Columns: []string{"data_date", column}}
	for _, v := range values {
		rs.Rows = append(rs.Rows, models.Row{"data_date": "2025-05-01", column: v})
	}
	return rs
}

// TestCheck_Bounds walks every default rule: min-1 and max+1 violate,
// min and max do not.
func TestCheck_Bounds(t *testing.T) {
	reg, err := NewConstraintRegistry(DefaultConstraintRules())
	require.NoError(t, err)

	for _, rule := range DefaultConstraintRules() {
		t.Run(rule.Table+"."+rule.Column, func(t *testing.T) {
			inside := singleColumn(rule.Table, rule.Column, rule.Min, rule.Max)
			assert.Empty(t, reg.Check(inside, rule.Table))

			outside := singleColumn(rule.Table, rule.Column, rule.Min-1, rule.Max, rule.Max+1)
			got := reg.Check(outside, rule.Table)
			require.Len(t, got, 1)
			assert.Equal(t, 2, got[0].InvalidCount)
			assert.Contains(t, got[0].Message, rule.Table)
			assert.Contains(t, got[0].Message, rule.Column)
			assert.Contains(t, got[0].Message, "["+formatBound(rule.Min)+", "+formatBound(rule.Max)+"]")
		})
	}
}

func TestCheck_Message(t *testing.T) {
	reg, err := NewConstraintRegistry(DefaultConstraintRules())
	require.NoError(t, err)

	got := reg.Check(singleColumn("river_data", "water_level", 999.0, 1500.0, 2500.0), "river_data")
	require.Len(t, got, 1)
	assert.Equal(t,
		"Constraint violation in river_data for column 'water_level': Values outside [1000, 2000]. Found 2 invalid entries.",
		got[0].Message,
	)
}

func TestCheck_SkipsMissingAndUnparseable(t *testing.T) {
	reg, err := NewConstraintRegistry(DefaultConstraintRules())
	require.NoError(t, err)

	// column absent from schema
	assert.Empty(t, reg.Check(singleColumn("dam_data", "inflow", 1.0), "dam_data"))

	// nulls and text are not counted
	assert.Empty(t, reg.Check(singleColumn("dam_data", "capacity", nil, "n/a", 7000.0), "dam_data"))

	// table with no rules
	empty, err := NewConstraintRegistry(nil)
	require.NoError(t, err)
	got := empty.Check(singleColumn("dam_data", "capacity", 1.0), "dam_data")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestNewConstraintRegistry_Validation(t *testing.T) {
	_, err := NewConstraintRegistry([]ConstraintRule{{Table: "lake_data", Column: "level", Min: 0, Max: 1}})
	assert.Error(t, err)

	_, err = NewConstraintRegistry([]ConstraintRule{{Table: "dam_data", Column: "", Min: 0, Max: 1}})
	assert.Error(t, err)

	_, err = NewConstraintRegistry([]ConstraintRule{{Table: "dam_data", Column: "capacity", Min: 10, Max: 1}})
	assert.Error(t, err)

	reg, err := NewConstraintRegistry([]ConstraintRule{
		{Table: "dam_data", Column: "capacity", Min: 0, Max: 10},
		{Table: "dam_data", Column: "inflow", Min: 0, Max: 5},
	})
	require.NoError(t, err)
	rules := reg.Rules("dam_data")
	require.Len(t, rules, 2)
	assert.Equal(t, "capacity", rules[0].Column)
	assert.Equal(t, "inflow", rules[1].Column)
}
