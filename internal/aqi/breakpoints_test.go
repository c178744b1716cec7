package aqi

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airwatch/internal/types"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name string
		pm25 float64
		want int
	}{
		{"zero", 0, 0},
		{"low good", 12, 24},
		{"good upper bound", 25, 50},
		{"moderate", 35.5, 71},
		{"poor", 55, 108},
		{"bad", 90, 157},
		{"very unhealthy", 200, 250},
		{"top bound", 500, 500},
		{"above table saturates", 600, 500},
		{"negative", -1, 0},
		{"half rounds to even down", 0.25, 0},
		{"half rounds to even up", 0.75, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compute(tt.pm25))
		})
	}
}

func TestCompute_NaN(t *testing.T) {
	assert.Equal(t, 0, Compute(math.NaN()))
}

func TestCompute_Monotonic(t *testing.T) {
	prev := Compute(0)
	for c := 0.0; c <= 520; c += 0.5 {
		got := Compute(c)
		require.GreaterOrEqual(t, got, prev, "index decreased at %.1f", c)
		require.LessOrEqual(t, got, MaxIndex)
		prev = got
	}
}

func TestTable_Compute_Gap(t *testing.T) {
	table := Table{
		{ConcLow: 0, ConcHigh: 10, IndexLow: 0, IndexHigh: 50},
		{ConcLow: 20, ConcHigh: 30, IndexLow: 50, IndexHigh: 100},
	}

	assert.Equal(t, 0, table.Compute(15), "unmatched value inside the table range")
	assert.Equal(t, MaxIndex, table.Compute(31))
}

func TestTable_Validate_Default(t *testing.T) {
	require.NoError(t, DefaultTable.Validate())
}

func TestTable_Validate_Violations(t *testing.T) {
	tests := []struct {
		name  string
		table Table
	}{
		{"empty", Table{}},
		{"does not start at zero", Table{
			{ConcLow: 5, ConcHigh: 500, IndexLow: 0, IndexHigh: 500},
		}},
		{"gap", Table{
			{ConcLow: 0, ConcHigh: 25, IndexLow: 0, IndexHigh: 50},
			{ConcLow: 30, ConcHigh: 500, IndexLow: 50, IndexHigh: 500},
		}},
		{"overlap", Table{
			{ConcLow: 0, ConcHigh: 30, IndexLow: 0, IndexHigh: 50},
			{ConcLow: 25, ConcHigh: 500, IndexLow: 50, IndexHigh: 500},
		}},
		{"unordered", Table{
			{ConcLow: 25, ConcHigh: 500, IndexLow: 50, IndexHigh: 500},
			{ConcLow: 0, ConcHigh: 25, IndexLow: 0, IndexHigh: 50},
		}},
		{"degenerate", Table{
			{ConcLow: 0, ConcHigh: 0, IndexLow: 0, IndexHigh: 500},
		}},
		{"short of 500", Table{
			{ConcLow: 0, ConcHigh: 250, IndexLow: 0, IndexHigh: 300},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.table.Validate()
			require.Error(t, err)
			assert.True(t, types.HasCode(err, types.ErrCodeInternalConfigInvariant), "got %v", err)
		})
	}
}
