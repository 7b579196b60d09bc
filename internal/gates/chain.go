// Package gates implements the ordered, pure Gate Chain: nine
// predicates evaluated in a fixed order, short-circuiting on the first
// failure. Nothing in this package mutates process state — the chain
// only reads the book snapshot, the session zone, and a risk capability.
package gates

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/brindlecap/option15/internal/domain"
)

// Reason names the gate that rejected a tick, or "" on admission.
type Reason string

const (
	ReasonZone       Reason = "ZONE_GATE"
	ReasonBook       Reason = "BOOK_GATE"
	ReasonSessionCap Reason = "SESSION_CAP_GATE"
	ReasonEdge       Reason = "EDGE_GATE"
	ReasonHardPrice  Reason = "HARD_PRICE_GATE"
	ReasonPrice      Reason = "PRICE_GATE"
	ReasonBadBook    Reason = "BAD_BOOK_GATE"
	ReasonSpread     Reason = "SPREAD_GATE"
	ReasonExecutor   Reason = "EXECUTOR_GATE"
)

// RiskCapability is the narrow view of the Risk Caps & Kill State the
// EXECUTOR gate needs. Implemented by *risk.State.
type RiskCapability interface {
	ExecutorAdmits(zone string, now time.Time) bool
}

// Thresholds holds the configurable knobs the EDGE/HARD_PRICE/PRICE/
// SPREAD gates evaluate against, sourced from spec.md §6.
type Thresholds struct {
	EdgeBase  decimal.Decimal // required edge when ask <= edgeBaseCeil
	EdgeMid   decimal.Decimal // required edge when ask <= edgeMidCeil
	EdgeHigh  decimal.Decimal // required edge otherwise
	AskCap    decimal.Decimal // HARD_PRICE ceiling, inclusive
	SpreadMax decimal.Decimal

	RegimeModEnabled bool
	RegimeModBonus   decimal.Decimal
}

// DefaultThresholds is the locked configuration from spec.md §4.C/§6.
func DefaultThresholds() Thresholds {
	return Thresholds{
		EdgeBase:         decimal.NewFromFloat(0.64),
		EdgeMid:          decimal.NewFromFloat(0.67),
		EdgeHigh:         decimal.NewFromFloat(0.70),
		AskCap:           decimal.NewFromFloat(0.68),
		SpreadMax:        decimal.NewFromFloat(0.02),
		RegimeModEnabled: false,
		RegimeModBonus:   decimal.NewFromFloat(0.03),
	}
}

var (
	edgeBaseCeil = decimal.NewFromFloat(0.66)
	edgeMidCeil  = decimal.NewFromFloat(0.69)
)

// RequiredEdge returns the price-conditional EDGE threshold for the
// given ask, plus the regime modifier bonus when enabled and the
// oscillation count exceeds six within the recent window.
func RequiredEdge(t Thresholds, ask decimal.Decimal, oscillationCount int) decimal.Decimal {
	var required decimal.Decimal
	switch {
	case ask.LessThanOrEqual(edgeBaseCeil):
		required = t.EdgeBase
	case ask.LessThanOrEqual(edgeMidCeil):
		required = t.EdgeMid
	default:
		required = t.EdgeHigh
	}
	if t.RegimeModEnabled && oscillationCount > 6 {
		required = required.Add(t.RegimeModBonus)
	}
	return required
}

// Input is the evaluation context for one tick: everything the gate
// chain needs, read-only.
type Input struct {
	Zone               domain.Zone
	Book               domain.BookSnapshot
	TradeAlreadyInSess bool
	Now                time.Time
	OscillationCount   int
	Risk               RiskCapability
}

// Result is the chain's verdict: either admitted with a fully-resolved
// decision, or skipped with the rejecting gate's reason.
type Result struct {
	Admitted bool
	Reason   Reason

	Side         domain.Side
	Ask          decimal.Decimal
	Bid          decimal.Decimal
	Edge         decimal.Decimal
	RequiredEdge decimal.Decimal
	Spread       decimal.Decimal
}

func skip(reason Reason) Result { return Result{Admitted: false, Reason: reason} }

// Evaluate runs the nine gates in order against in, returning the
// first rejection or a full admission.
func Evaluate(in Input, th Thresholds) Result {
	if in.Zone != domain.ZoneCore {
		return skip(ReasonZone)
	}

	up, down := in.Book.Up, in.Book.Down
	if !up.Present || !down.Present {
		return skip(ReasonBook)
	}
	if up.Bid.Sign() <= 0 || up.Ask.Sign() <= 0 || down.Bid.Sign() <= 0 || down.Ask.Sign() <= 0 {
		return skip(ReasonBook)
	}

	if in.TradeAlreadyInSess {
		return skip(ReasonSessionCap)
	}

	// Direction selection is fixed here, before EDGE is evaluated,
	// per spec.md §4.C.
	side := domain.SideUp
	chosenAsk, chosenBid := up.Ask, up.Bid
	if down.Mid().GreaterThan(up.Mid()) {
		side = domain.SideDown
		chosenAsk, chosenBid = down.Ask, down.Bid
	}
	edge := up.Mid()
	if side == domain.SideDown {
		edge = down.Mid()
	}

	required := RequiredEdge(th, chosenAsk, in.OscillationCount)
	if edge.LessThan(required) {
		return Result{Admitted: false, Reason: ReasonEdge, Side: side, Ask: chosenAsk, Bid: chosenBid, Edge: edge, RequiredEdge: required}
	}

	if chosenAsk.GreaterThan(th.AskCap) {
		return skip(ReasonHardPrice)
	}
	if !chosenAsk.LessThan(th.AskCap) {
		return skip(ReasonPrice)
	}

	spread := chosenAsk.Sub(chosenBid)
	if spread.Sign() < 0 || chosenBid.GreaterThan(chosenAsk) {
		return skip(ReasonBadBook)
	}
	if spread.GreaterThan(th.SpreadMax) {
		return Result{Admitted: false, Reason: ReasonSpread, Side: side, Ask: chosenAsk, Bid: chosenBid, Edge: edge, RequiredEdge: required, Spread: spread}
	}

	if !in.Risk.ExecutorAdmits(string(in.Zone), in.Now) {
		return skip(ReasonExecutor)
	}

	return Result{
		Admitted:     true,
		Side:         side,
		Ask:          chosenAsk,
		Bid:          chosenBid,
		Edge:         edge,
		RequiredEdge: required,
		Spread:       spread,
	}
}
