package alerting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airwatch/internal/aqi"
)

var t0 = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func TestCooldownTracker_AcquireRelease_RecordsEntry(t *testing.T) {
	c := NewCooldownTracker(30 * time.Minute)

	require.True(t, c.Acquire("n1", aqi.TierBad, t0))
	c.Release("n1", aqi.TierBad, t0, true)

	e, ok := c.Lookup("n1", aqi.TierBad)
	require.True(t, ok)
	assert.Equal(t, t0, e.FirstSentAt)
	assert.Equal(t, t0, e.LastSentAt)
	assert.Equal(t, 1, e.SendCount)
}

func TestCooldownTracker_Acquire_SuppressedWithinWindow(t *testing.T) {
	c := NewCooldownTracker(30 * time.Minute)
	require.True(t, c.Acquire("n1", aqi.TierBad, t0))
	c.Release("n1", aqi.TierBad, t0, true)

	assert.False(t, c.Acquire("n1", aqi.TierBad, t0.Add(29*time.Minute)))
	assert.True(t, c.Acquire("n1", aqi.TierPoor, t0.Add(time.Minute)), "other tier is independent")
	assert.True(t, c.Acquire("n2", aqi.TierBad, t0.Add(time.Minute)), "other node is independent")
}

func TestCooldownTracker_Acquire_AllowedAtWindowBoundary(t *testing.T) {
	c := NewCooldownTracker(30 * time.Minute)
	require.True(t, c.Acquire("n1", aqi.TierBad, t0))
	c.Release("n1", aqi.TierBad, t0, true)

	later := t0.Add(30 * time.Minute)
	require.True(t, c.Acquire("n1", aqi.TierBad, later))
	c.Release("n1", aqi.TierBad, later, true)

	e, _ := c.Lookup("n1", aqi.TierBad)
	assert.Equal(t, t0, e.FirstSentAt)
	assert.Equal(t, later, e.LastSentAt)
	assert.Equal(t, 2, e.SendCount)
}

func TestCooldownTracker_Acquire_InFlightGuard(t *testing.T) {
	c := NewCooldownTracker(30 * time.Minute)

	require.True(t, c.Acquire("n1", aqi.TierBad, t0))
	assert.False(t, c.Acquire("n1", aqi.TierBad, t0), "second caller while in flight")

	c.Release("n1", aqi.TierBad, t0, false)
	assert.True(t, c.Acquire("n1", aqi.TierBad, t0), "released without send")
}

func TestCooldownTracker_Release_NotSentLeavesNoEntry(t *testing.T) {
	c := NewCooldownTracker(30 * time.Minute)
	require.True(t, c.Acquire("n1", aqi.TierBad, t0))
	c.Release("n1", aqi.TierBad, t0, false)

	_, ok := c.Lookup("n1", aqi.TierBad)
	assert.False(t, ok)
}

func TestCooldownTracker_History_OrderedBySeverity(t *testing.T) {
	c := NewCooldownTracker(time.Minute)
	for _, tier := range []aqi.Tier{aqi.TierHazardous, aqi.TierPoor, aqi.TierBad} {
		require.True(t, c.Acquire("n1", tier, t0))
		c.Release("n1", tier, t0, true)
	}
	require.True(t, c.Acquire("n2", aqi.TierPoor, t0))
	c.Release("n2", aqi.TierPoor, t0, true)

	h := c.History("n1")

	require.Len(t, h, 3)
	assert.Equal(t, aqi.TierPoor, h[0].Tier)
	assert.Equal(t, aqi.TierBad, h[1].Tier)
	assert.Equal(t, aqi.TierHazardous, h[2].Tier)
	assert.Empty(t, c.History("n3"))
}
