package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brindlecap/option15/internal/domain"
)

type stubResolver struct {
	winner domain.Side
}

func (s stubResolver) Winner(_ context.Context, _ string) (domain.Side, error) {
	return s.winner, nil
}

type spyRiskSink struct {
	outcome string
	pnl     decimal.Decimal
	calls   int
}

func (s *spyRiskSink) RecordSettlement(outcome string, pnl decimal.Decimal) {
	s.outcome = outcome
	s.pnl = pnl
	s.calls++
}

func TestSettleWinningTradeComputesPositivePnL(t *testing.T) {
	risk := &spyRiskSink{}
	eng := New(stubResolver{winner: domain.SideUp}, risk)

	trade := &domain.Trade{
		ID:           uuid.New(),
		SessionID:    "sess-1",
		Side:         domain.SideUp,
		AvgFillPrice: decimal.NewFromFloat(0.64),
		Shares:       decimal.NewFromInt(100),
	}

	err := eng.Settle(context.Background(), trade, time.Now(), "session_end")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeWin, trade.Outcome)
	// (1 - 0.64) * 100 = 36
	assert.True(t, trade.PnL.Equal(decimal.NewFromFloat(36)))
	assert.Equal(t, 1, risk.calls)
	assert.Equal(t, "WIN", risk.outcome)
}

func TestSettleLosingTradeComputesNegativePnL(t *testing.T) {
	risk := &spyRiskSink{}
	eng := New(stubResolver{winner: domain.SideDown}, risk)

	trade := &domain.Trade{
		ID:           uuid.New(),
		SessionID:    "sess-1",
		Side:         domain.SideUp,
		AvgFillPrice: decimal.NewFromFloat(0.64),
		Shares:       decimal.NewFromInt(100),
	}

	err := eng.Settle(context.Background(), trade, time.Now(), "session_end")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeLoss, trade.Outcome)
	// -0.64 * 100 = -64
	assert.True(t, trade.PnL.Equal(decimal.NewFromFloat(-64)))
	assert.Equal(t, "LOSS", risk.outcome)
}

func TestPaperResolverUpWinsOnNonNegativeMove(t *testing.T) {
	r := NewPaperResolver()
	r.MidAtStart["sess-1"] = decimal.NewFromFloat(0.50)
	r.FinalUpMid["sess-1"] = decimal.NewFromFloat(0.50)
	winner, err := r.Winner(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SideUp, winner)
}

func TestPaperResolverDownWinsOnNegativeMove(t *testing.T) {
	r := NewPaperResolver()
	r.MidAtStart["sess-1"] = decimal.NewFromFloat(0.55)
	r.FinalUpMid["sess-1"] = decimal.NewFromFloat(0.40)
	winner, err := r.Winner(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SideDown, winner)
}
