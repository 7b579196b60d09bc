// Package domain holds the types shared by every component of the
// decision-and-execution engine: sessions, book snapshots, trades and
// their settlement metrics. Nothing in this package owns mutable
// process state — ownership lives in risk.State and orchestrator.Orchestrator.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Side is one of the two binary outcomes tradable within a session.
type Side string

const (
	SideUp   Side = "UP"
	SideDown Side = "DOWN"
)

func (s Side) Opposite() Side {
	if s == SideUp {
		return SideDown
	}
	return SideUp
}

// Zone names a range of seconds-elapsed within a session.
type Zone string

const (
	ZoneEarly Zone = "EARLY"
	ZoneCore  Zone = "CORE"
	ZoneDead  Zone = "DEAD"
	ZoneLate  Zone = "LATE"
)

// FillStatus is the lifecycle state of an order placed against a Trade.
type FillStatus string

const (
	FillPending   FillStatus = "PENDING"
	FillFilled    FillStatus = "FILLED"
	FillDegraded  FillStatus = "DEGRADED"
	FillCancelled FillStatus = "CANCELLED"
)

// Outcome is the settled result of a Trade.
type Outcome string

const (
	OutcomeWin  Outcome = "WIN"
	OutcomeLoss Outcome = "LOSS"
)

// MetricReason is one of the seven mutually-exclusive terminal
// classifications the Metrics Recorder assigns at settlement.
type MetricReason string

const (
	ReasonCleanConviction    MetricReason = "clean_conviction"
	ReasonReversalHeld       MetricReason = "reversal_held"
	ReasonStrongFollow       MetricReason = "strong_follow_through"
	ReasonWhipsaw            MetricReason = "whipsaw"
	ReasonLateFlip           MetricReason = "late_flip"
	ReasonTrendBuiltAgainst  MetricReason = "trend_built_against"
	ReasonWeakFollow         MetricReason = "weak_follow_through"
)

// SessionCadence is the venue's recurring contract period.
const SessionCadence = 15 * time.Minute

// Session is immutable once created: a single fifteen-minute contract
// period identified by its start instant.
type Session struct {
	ID            string
	StartInstant  time.Time
	EndInstant    time.Time
	ContractUpID  string
	ContractDownID string
}

// NewSession derives a session from the wall-clock boundary it starts at.
// The id is deterministic in its start instant so replays with the same
// feed produce the same session identifiers.
func NewSession(start time.Time) Session {
	start = start.UTC()
	id := fmt.Sprintf("sess-%s", start.Format("20060102T150405"))
	return Session{
		ID:             id,
		StartInstant:   start,
		EndInstant:     start.Add(SessionCadence),
		ContractUpID:   id + "-UP",
		ContractDownID: id + "-DOWN",
	}
}

// ElapsedSeconds is how far into the session the given instant falls.
func (s Session) ElapsedSeconds(at time.Time) float64 {
	return at.Sub(s.StartInstant).Seconds()
}

// Quote is a single side's best bid/ask as of its last update.
type Quote struct {
	Bid               decimal.Decimal
	Ask               decimal.Decimal
	LastUpdateInstant time.Time
	Present           bool
}

// Mid returns (bid+ask)/2. Callers must check Present first.
func (q Quote) Mid() decimal.Decimal {
	return q.Bid.Add(q.Ask).Div(decimal.NewFromInt(2))
}

// BookSnapshot holds the latest two-sided quote pair for one session.
// Single-writer, many-reader: the Book Snapshot Store is the only writer.
type BookSnapshot struct {
	Up   Quote
	Down Quote
}

// Trade is created when the gate chain admits an entry and lives until
// settlement archives it.
type Trade struct {
	ID                    uuid.UUID
	SessionID             string
	Side                  Side
	AskAtDecision         decimal.Decimal
	EdgeAtDecision        decimal.Decimal
	RequiredEdgeAtDecision decimal.Decimal
	SpreadAtDecision      decimal.Decimal
	Notional              decimal.Decimal
	Shares                decimal.Decimal
	FillStatus            FillStatus
	AvgFillPrice          decimal.Decimal
	OpenInstant           time.Time
	SettleInstant         time.Time
	Outcome               Outcome
	PnL                   decimal.Decimal
	Retries               int
}

// MetricSample is the Metrics Recorder's rolling, per-trade state.
// It never influences a decision; it is strictly observational.
type MetricSample struct {
	TradeID           uuid.UUID
	SessionID         string
	Side              Side
	AskAtDecision     decimal.Decimal
	EntryCrossings    int
	PeakFavorablePct  decimal.Decimal
	MaxAdversePct     decimal.Decimal
	TicksInFavor      int
	TicksObserved     int
	DirectionFlipped  bool
	Reason            MetricReason
}

// TimeInFavorPct is the fraction of observed ticks where the position's
// side was ahead of its entry price.
func (m MetricSample) TimeInFavorPct() decimal.Decimal {
	if m.TicksObserved == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(m.TicksInFavor)).Div(decimal.NewFromInt(int64(m.TicksObserved)))
}
