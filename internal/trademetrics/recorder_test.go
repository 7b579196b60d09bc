package trademetrics

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/brindlecap/option15/internal/domain"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func newOpenTrade(r *Recorder, ask float64) uuid.UUID {
	trade := domain.Trade{ID: uuid.New(), SessionID: "sess-1", Side: domain.SideUp, AskAtDecision: d(ask)}
	r.Open(trade)
	return trade.ID
}

func TestCleanConvictionOnWinWithNoCrossings(t *testing.T) {
	r := New()
	id := newOpenTrade(r, 0.64)
	r.Observe(id, d(0.66), d(0.30))
	r.Observe(id, d(0.68), d(0.28))
	sample := r.Finalize(id, domain.OutcomeWin)
	assert.Equal(t, domain.ReasonCleanConviction, sample.Reason)
	assert.Equal(t, 0, sample.EntryCrossings)
}

func TestWhipsawOnLossWithManyCrossings(t *testing.T) {
	r := New()
	id := newOpenTrade(r, 0.64)
	// fav sign sequence: +, -, +, -  => 3 crossings
	r.Observe(id, d(0.66), d(0.30)) // fav > 0
	r.Observe(id, d(0.60), d(0.30)) // fav < 0
	r.Observe(id, d(0.66), d(0.30)) // fav > 0
	r.Observe(id, d(0.60), d(0.30)) // fav < 0
	sample := r.Finalize(id, domain.OutcomeLoss)
	assert.Equal(t, domain.ReasonWhipsaw, sample.Reason)
	assert.GreaterOrEqual(t, sample.EntryCrossings, 3)
}

func TestTrendBuiltAgainstOnLossWithLowPeak(t *testing.T) {
	r := New()
	id := newOpenTrade(r, 0.64)
	r.Observe(id, d(0.63), d(0.30))
	r.Observe(id, d(0.62), d(0.30))
	sample := r.Finalize(id, domain.OutcomeLoss)
	assert.Equal(t, domain.ReasonTrendBuiltAgainst, sample.Reason)
}

func TestLateFlipOnLossWithHighTimeInFavor(t *testing.T) {
	r := New()
	id := newOpenTrade(r, 0.64)
	// Favorable for 3 of 4 ticks (>=0.55), then loses.
	r.Observe(id, d(0.70), d(0.30))
	r.Observe(id, d(0.70), d(0.30))
	r.Observe(id, d(0.70), d(0.30))
	r.Observe(id, d(0.50), d(0.30))
	sample := r.Finalize(id, domain.OutcomeLoss)
	assert.Equal(t, domain.ReasonLateFlip, sample.Reason)
}

func TestDirectionFlippedFlagsWhenOppositeMidExceeds(t *testing.T) {
	r := New()
	id := newOpenTrade(r, 0.64)
	r.Observe(id, d(0.64), d(0.70))
	sample := r.Finalize(id, domain.OutcomeLoss)
	assert.True(t, sample.DirectionFlipped)
}

func TestFinalizeRemovesSampleFromLiveSet(t *testing.T) {
	r := New()
	id := newOpenTrade(r, 0.64)
	r.Finalize(id, domain.OutcomeWin)
	_, stillTracked := r.samples[id]
	assert.False(t, stillTracked)
}
