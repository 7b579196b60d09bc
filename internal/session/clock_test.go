package session

import (
	"testing"
	"time"

	"github.com/brindlecap/option15/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlignedStart(t *testing.T) {
	in := time.Date(2026, 1, 5, 14, 37, 12, 0, time.UTC)
	got := AlignedStart(in)
	assert.Equal(t, time.Date(2026, 1, 5, 14, 30, 0, 0, time.UTC), got)
}

func TestZoneMapping(t *testing.T) {
	c := NewClock(DefaultZoneBounds())
	cases := []struct {
		elapsed float64
		want    domain.Zone
	}{
		{0, domain.ZoneEarly},
		{149.9, domain.ZoneEarly},
		{150, domain.ZoneCore},
		{224.9, domain.ZoneCore},
		{225, domain.ZoneDead},
		{299.9, domain.ZoneDead},
		{300, domain.ZoneLate},
		{899, domain.ZoneLate},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, c.Zone(tc.elapsed), "elapsed=%v", tc.elapsed)
	}
}

func TestAdvanceSignalsBoundaryCrossing(t *testing.T) {
	c := NewClock(DefaultZoneBounds())
	t0 := time.Date(2026, 1, 5, 14, 30, 0, 0, time.UTC)

	sess1, crossed1 := c.Advance(t0)
	assert.False(t, crossed1, "first session establishment is not a crossing")

	sess1Again, crossed1Again := c.Advance(t0.Add(90 * time.Second))
	require.False(t, crossed1Again)
	assert.Equal(t, sess1.ID, sess1Again.ID)

	sess2, crossed2 := c.Advance(t0.Add(15 * time.Minute))
	assert.True(t, crossed2)
	assert.NotEqual(t, sess1.ID, sess2.ID)
}

func TestElapsedAndZone(t *testing.T) {
	c := NewClock(DefaultZoneBounds())
	t0 := time.Date(2026, 1, 5, 14, 30, 0, 0, time.UTC)
	c.Advance(t0)

	elapsed, zone, ok := c.ElapsedAndZone(t0.Add(170 * time.Second))
	require.True(t, ok)
	assert.InDelta(t, 170, elapsed, 0.001)
	assert.Equal(t, domain.ZoneCore, zone)
}
