// Package settlement implements the Settlement Engine: at a session's
// end instant (or at shutdown, for any trade still open) it resolves
// the winning side, computes P&L, and updates the shared risk state.
package settlement

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/brindlecap/option15/internal/domain"
	"github.com/brindlecap/option15/internal/observ"
)

// WinnerResolver reports the winning side for a settled session. The
// live implementation asks the venue; the paper implementation compares
// the UP contract's final mid against its mid at session start.
type WinnerResolver interface {
	Winner(ctx context.Context, sessionID string) (domain.Side, error)
}

// RiskSink is the narrow capability the engine needs on the Risk Caps
// & Kill State to record a settlement's outcome.
type RiskSink interface {
	RecordSettlement(outcome string, pnl decimal.Decimal)
}

// Engine resolves outcomes and settles trades.
type Engine struct {
	resolver WinnerResolver
	risk     RiskSink
}

// New constructs a settlement Engine.
func New(resolver WinnerResolver, risk RiskSink) *Engine {
	return &Engine{resolver: resolver, risk: risk}
}

// Settle resolves trade's winner, computes PnL, stamps the trade's
// outcome fields in place, and updates RiskState. reason is "session_end"
// or "shutdown"; it is only used for the emitted log event.
func (e *Engine) Settle(ctx context.Context, trade *domain.Trade, now time.Time, reason string) error {
	winner, err := e.resolver.Winner(ctx, trade.SessionID)
	if err != nil {
		return err
	}

	pnl := pnlFor(trade.Side, winner, trade.AvgFillPrice, trade.Shares)

	trade.SettleInstant = now
	trade.PnL = pnl
	if trade.Side == winner {
		trade.Outcome = domain.OutcomeWin
	} else {
		trade.Outcome = domain.OutcomeLoss
	}

	e.risk.RecordSettlement(string(trade.Outcome), pnl)

	observ.Log("SETTLED", map[string]any{
		"trade_id":   trade.ID.String(),
		"session_id": trade.SessionID,
		"side":       string(trade.Side),
		"winner":     string(winner),
		"outcome":    string(trade.Outcome),
		"pnl":        pnl.String(),
		"reason":     reason,
	})

	return nil
}

// pnlFor implements spec.md §4.F: pnl = (1 - avg_fill_price) * shares
// if side == winner, else pnl = -avg_fill_price * shares.
func pnlFor(side, winner domain.Side, avgFillPrice, shares decimal.Decimal) decimal.Decimal {
	if side == winner {
		return decimal.NewFromInt(1).Sub(avgFillPrice).Mul(shares)
	}
	return avgFillPrice.Neg().Mul(shares)
}

// PaperResolver implements WinnerResolver per the paper-mode heuristic:
// UP wins iff the final mid of the UP contract is >= its mid at session
// start.
type PaperResolver struct {
	// MidAtStart returns the UP contract's mid at session start, keyed
	// by session id. Populated by the Orchestrator when a session opens.
	MidAtStart map[string]decimal.Decimal
	// FinalUpMid returns the UP contract's most recent mid, keyed by
	// session id. Populated by the Orchestrator from the book store at
	// the session's end instant.
	FinalUpMid map[string]decimal.Decimal
}

// NewPaperResolver constructs an empty PaperResolver; the Orchestrator
// fills its maps as sessions open and close.
func NewPaperResolver() *PaperResolver {
	return &PaperResolver{
		MidAtStart: map[string]decimal.Decimal{},
		FinalUpMid: map[string]decimal.Decimal{},
	}
}

func (r *PaperResolver) Winner(_ context.Context, sessionID string) (domain.Side, error) {
	start, ok := r.MidAtStart[sessionID]
	if !ok {
		start = decimal.Zero
	}
	final, ok := r.FinalUpMid[sessionID]
	if !ok {
		final = start
	}
	if final.GreaterThanOrEqual(start) {
		return domain.SideUp, nil
	}
	return domain.SideDown, nil
}
