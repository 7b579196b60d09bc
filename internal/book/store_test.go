package book

import (
	"testing"
	"time"

	"github.com/brindlecap/option15/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func decimalOf(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func TestSnapshotReturnsFreshQuotes(t *testing.T) {
	s := New(time.Second)
	now := time.Date(2026, 1, 5, 14, 32, 0, 0, time.UTC)

	s.Apply(Update{Side: domain.SideUp, Bid: 0.62, Ask: 0.64, ServerTimestamp: now})
	s.Apply(Update{Side: domain.SideDown, Bid: 0.36, Ask: 0.38, ServerTimestamp: now})

	snap := s.Snapshot(now)
	assert.True(t, snap.Up.Present)
	assert.True(t, snap.Down.Present)
	assert.True(t, snap.Up.Ask.Equal(decimalOf(0.64)))
}

func TestSnapshotMarksStaleQuoteAbsent(t *testing.T) {
	s := New(time.Second)
	updateTime := time.Date(2026, 1, 5, 14, 32, 0, 0, time.UTC)
	s.Apply(Update{Side: domain.SideUp, Bid: 0.62, Ask: 0.64, ServerTimestamp: updateTime})

	later := updateTime.Add(2 * time.Second)
	snap := s.Snapshot(later)
	assert.False(t, snap.Up.Present, "quote older than staleness threshold must be absent")
}

func TestResetClearsBothSides(t *testing.T) {
	s := New(time.Second)
	now := time.Now()
	s.Apply(Update{Side: domain.SideUp, Bid: 0.5, Ask: 0.52, ServerTimestamp: now})
	s.Reset("next-session")
	snap := s.Snapshot(now)
	assert.False(t, snap.Up.Present)
	assert.False(t, snap.Down.Present)
}
