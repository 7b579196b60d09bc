// Package execution implements the Order Placement Adapter capability
// and its two implementations: a deterministic paper adapter for
// replay/backtest, and a live adapter speaking to the venue over a
// websocket client.
package execution

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/brindlecap/option15/internal/domain"
)

// FillReport is the result of one submit_buy call.
type FillReport struct {
	Status     domain.FillStatus
	AvgPrice   decimal.Decimal
	FilledSize decimal.Decimal
	LatencyMs  int64
}

// Adapter is the capability interface the Orchestrator links against.
// Core code never imports a concrete client package directly.
type Adapter interface {
	SubmitBuy(ctx context.Context, side domain.Side, priceLimit, size decimal.Decimal) (FillReport, error)
}
