package execution

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/brindlecap/option15/internal/domain"
)

// maxRetryAdverseMove is the 0.5% price-move ceiling from
// trade_executor.py's _should_retry: a retry is only attempted if the
// current ask has not moved against the trade by more than this much.
var maxRetryAdverseMove = decimal.NewFromFloat(0.005)

// RetryGate is queried at retry time to confirm the signal that
// justified the original placement is still valid. It mirrors the
// EDGE and HARD_PRICE checks the gate chain already performs, re-run
// against the book as of the retry instant.
type RetryGate interface {
	StillAdmissible(ctx context.Context, side domain.Side) (currentAsk decimal.Decimal, ok bool)
}

// RetryingAdapter wraps an Adapter with the single bounded conditional
// retry described in spec.md's Order Placement Adapter supplement: on
// a CANCELLED fill, retry exactly once if the retry gate still admits
// and the ask has not moved more than 0.5% against the order. An error
// from the wrapped adapter is returned as is, without a retry.
type RetryingAdapter struct {
	inner Adapter
	gate  RetryGate
}

// NewRetryingAdapter wraps inner with retry-on-cancel behavior.
func NewRetryingAdapter(inner Adapter, gate RetryGate) *RetryingAdapter {
	return &RetryingAdapter{inner: inner, gate: gate}
}

// SubmitBuy places the order, retrying at most once on a cancelled
// fill when the retry gate still admits the trade.
func (r *RetryingAdapter) SubmitBuy(ctx context.Context, side domain.Side, priceLimit, size decimal.Decimal) (FillReport, error) {
	report, err := r.inner.SubmitBuy(ctx, side, priceLimit, size)
	if err != nil {
		return report, err
	}
	if report.Status != domain.FillCancelled {
		return report, nil
	}

	currentAsk, ok := r.gate.StillAdmissible(ctx, side)
	if !ok {
		return report, nil
	}
	adverseMove := currentAsk.Sub(priceLimit).Div(priceLimit)
	if adverseMove.GreaterThan(maxRetryAdverseMove) {
		return report, nil
	}

	return r.inner.SubmitBuy(ctx, side, currentAsk, size)
}
