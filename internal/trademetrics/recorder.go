// Package trademetrics implements the Metrics Recorder: a strictly
// observational per-trade accumulator. It never influences a gate
// decision and never mutates the Trade it tracks.
package trademetrics

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/brindlecap/option15/internal/domain"
)

// tickSize is the minimum price increment used by the
// direction-flipped check in spec.md §4.H.
var tickSize = decimal.NewFromFloat(0.01)

// Recorder tracks one MetricSample per open trade, keyed by trade id.
// lastSign is kept out of the exported MetricSample — it is
// bookkeeping for the entry_crossings sign-flip count, not part of
// the sample a settled trade reports.
type Recorder struct {
	samples  map[uuid.UUID]*domain.MetricSample
	lastSign map[uuid.UUID]int
}

// New constructs an empty Recorder.
func New() *Recorder {
	return &Recorder{
		samples:  map[uuid.UUID]*domain.MetricSample{},
		lastSign: map[uuid.UUID]int{},
	}
}

// Open begins tracking a newly admitted trade.
func (r *Recorder) Open(trade domain.Trade) {
	r.samples[trade.ID] = &domain.MetricSample{
		TradeID:       trade.ID,
		SessionID:     trade.SessionID,
		Side:          trade.Side,
		AskAtDecision: trade.AskAtDecision,
	}
	r.lastSign[trade.ID] = 0
}

// Observe feeds one tick's book state into the sample for tradeID, per
// spec.md §4.H. currentMidOfSide is the chosen side's current mid;
// oppositeMid is the other side's current mid.
func (r *Recorder) Observe(tradeID uuid.UUID, currentMidOfSide, oppositeMid decimal.Decimal) {
	s, ok := r.samples[tradeID]
	if !ok {
		return
	}

	fav := currentMidOfSide.Sub(s.AskAtDecision)
	favPct := decimal.Zero
	if s.AskAtDecision.Sign() != 0 {
		favPct = fav.Div(s.AskAtDecision)
	}

	if favPct.GreaterThan(s.PeakFavorablePct) {
		s.PeakFavorablePct = favPct
	}
	if favPct.LessThan(s.MaxAdversePct) {
		s.MaxAdversePct = favPct
	}

	s.TicksObserved++
	if fav.Sign() > 0 {
		s.TicksInFavor++
	}

	sign := fav.Sign()
	last := r.lastSign[tradeID]
	if last != 0 && sign != 0 && sign != last {
		s.EntryCrossings++
	}
	if sign != 0 {
		r.lastSign[tradeID] = sign
	}

	if oppositeMid.Sub(currentMidOfSide).GreaterThanOrEqual(tickSize) {
		s.DirectionFlipped = true
	}
}

// Finalize assigns the terminal classification reason per spec.md
// §4.H's ordered, mutually-exclusive rules and returns the completed
// sample. The sample is removed from the recorder's live set.
func (r *Recorder) Finalize(tradeID uuid.UUID, outcome domain.Outcome) domain.MetricSample {
	s, ok := r.samples[tradeID]
	if !ok {
		return domain.MetricSample{}
	}
	delete(r.samples, tradeID)
	delete(r.lastSign, tradeID)

	s.Reason = classify(outcome, *s)
	return *s
}

func classify(outcome domain.Outcome, s domain.MetricSample) domain.MetricReason {
	timeInFavor := s.TimeInFavorPct()
	switch outcome {
	case domain.OutcomeWin:
		switch {
		case s.EntryCrossings == 0:
			return domain.ReasonCleanConviction
		case s.MaxAdversePct.LessThanOrEqual(decimal.NewFromFloat(-0.10)) && s.PeakFavorablePct.GreaterThanOrEqual(decimal.Zero):
			return domain.ReasonReversalHeld
		default:
			return domain.ReasonStrongFollow
		}
	case domain.OutcomeLoss:
		switch {
		case s.EntryCrossings >= 3:
			return domain.ReasonWhipsaw
		case timeInFavor.GreaterThanOrEqual(decimal.NewFromFloat(0.55)):
			return domain.ReasonLateFlip
		case s.PeakFavorablePct.LessThanOrEqual(decimal.NewFromFloat(0.02)):
			return domain.ReasonTrendBuiltAgainst
		default:
			return domain.ReasonWeakFollow
		}
	default:
		return ""
	}
}
