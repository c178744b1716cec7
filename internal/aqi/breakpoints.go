// Package aqi converts PM2.5 concentrations into a 0-500 air quality index
// and classifies the index into severity tiers.
//
// The breakpoint table is fixed configuration. It is validated once at
// process start; Compute assumes a valid table.
package aqi

import (
	"fmt"
	"math"

	"airwatch/internal/types"
)

const (
	// MaxIndex is the ceiling of the index scale.
	MaxIndex = 500
	// MinIndex is the floor of the index scale.
	MinIndex = 0
)

// Breakpoint maps a PM2.5 concentration interval (μg/m³, inclusive on both
// ends) linearly onto an index interval.
type Breakpoint struct {
	ConcLow   float64 `json:"conc_low"`
	ConcHigh  float64 `json:"conc_high"`
	IndexLow  float64 `json:"index_low"`
	IndexHigh float64 `json:"index_high"`
}

// Table is an ordered, contiguous list of breakpoints.
type Table []Breakpoint

// DefaultTable is the PM2.5 breakpoint table used by the evaluation cycle.
var DefaultTable = Table{
	{ConcLow: 0, ConcHigh: 25, IndexLow: 0, IndexHigh: 50},
	{ConcLow: 25, ConcHigh: 50, IndexLow: 50, IndexHigh: 100},
	{ConcLow: 50, ConcHigh: 80, IndexLow: 100, IndexHigh: 150},
	{ConcLow: 80, ConcHigh: 150, IndexLow: 150, IndexHigh: 200},
	{ConcLow: 150, ConcHigh: 250, IndexLow: 200, IndexHigh: 300},
	{ConcLow: 250, ConcHigh: 500, IndexLow: 300, IndexHigh: 500},
}

// Compute returns the index for pm25 using DefaultTable.
func Compute(pm25 float64) int {
	return DefaultTable.Compute(pm25)
}

// Compute returns the index for pm25. The first entry whose interval
// contains pm25 wins, so a shared boundary resolves to the lower entry.
// Values above the top of the table saturate at MaxIndex. Negative, NaN, or
// otherwise unmatched values yield MinIndex.
func (t Table) Compute(pm25 float64) int {
	if math.IsNaN(pm25) || pm25 < 0 {
		return MinIndex
	}
	for _, bp := range t {
		if pm25 >= bp.ConcLow && pm25 <= bp.ConcHigh {
			v := (bp.IndexHigh-bp.IndexLow)/(bp.ConcHigh-bp.ConcLow)*(pm25-bp.ConcLow) + bp.IndexLow
			return int(math.RoundToEven(v))
		}
	}
	if len(t) > 0 && pm25 > t[len(t)-1].ConcHigh {
		return MaxIndex
	}
	return MinIndex
}

// Validate checks that the table is ordered, contiguous, non-degenerate and
// covers the full index scale starting at zero concentration. A violation is
// reported as ErrCodeInternalConfigInvariant.
func (t Table) Validate() error {
	if len(t) == 0 {
		return invariant("breakpoint table is empty", nil)
	}
	if t[0].ConcLow != 0 || t[0].IndexLow != MinIndex {
		return invariant("breakpoint table must start at concentration 0 and index 0",
			map[string]any{"entry": 0})
	}
	for i, bp := range t {
		if !(bp.ConcHigh > bp.ConcLow) || !(bp.IndexHigh > bp.IndexLow) {
			return invariant(fmt.Sprintf("breakpoint %d is degenerate", i), map[string]any{"entry": i})
		}
		if i == 0 {
			continue
		}
		prev := t[i-1]
		if bp.ConcLow != prev.ConcHigh || bp.IndexLow != prev.IndexHigh {
			return invariant(fmt.Sprintf("breakpoint %d is not contiguous with %d", i, i-1),
				map[string]any{"entry": i})
		}
	}
	if t[len(t)-1].IndexHigh != MaxIndex {
		return invariant("breakpoint table must end at index 500",
			map[string]any{"entry": len(t) - 1})
	}
	return nil
}

func invariant(msg string, details map[string]any) error {
	return types.NewAppErrorWithDetails(types.ErrCodeInternalConfigInvariant, msg, nil, details)
}
