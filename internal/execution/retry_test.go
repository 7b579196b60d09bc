package execution

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brindlecap/option15/internal/domain"
)

type scriptedAdapter struct {
	reports []FillReport
	calls   int
}

func (s *scriptedAdapter) SubmitBuy(_ context.Context, _ domain.Side, _, _ decimal.Decimal) (FillReport, error) {
	r := s.reports[s.calls]
	s.calls++
	return r, nil
}

type stubRetryGate struct {
	ask decimal.Decimal
	ok  bool
}

func (g stubRetryGate) StillAdmissible(_ context.Context, _ domain.Side) (decimal.Decimal, bool) {
	return g.ask, g.ok
}

func TestRetryingAdapterRetriesOnceOnCancelled(t *testing.T) {
	inner := &scriptedAdapter{reports: []FillReport{
		{Status: domain.FillCancelled},
		{Status: domain.FillFilled, AvgPrice: decimal.NewFromFloat(0.643)},
	}}
	// 0.643 is about 0.47% worse than the original 0.64 ask — inside the 0.5% ceiling.
	gate := stubRetryGate{ask: decimal.NewFromFloat(0.643), ok: true}
	a := NewRetryingAdapter(inner, gate)

	report, err := a.SubmitBuy(context.Background(), domain.SideUp, decimal.NewFromFloat(0.64), decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.Equal(t, domain.FillFilled, report.Status)
	assert.Equal(t, 2, inner.calls)
}

func TestRetryingAdapterDoesNotRetryWhenGateRejects(t *testing.T) {
	inner := &scriptedAdapter{reports: []FillReport{{Status: domain.FillCancelled}}}
	gate := stubRetryGate{ok: false}
	a := NewRetryingAdapter(inner, gate)

	report, err := a.SubmitBuy(context.Background(), domain.SideUp, decimal.NewFromFloat(0.64), decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.Equal(t, domain.FillCancelled, report.Status)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryingAdapterDoesNotRetryWhenPriceMovedTooMuch(t *testing.T) {
	inner := &scriptedAdapter{reports: []FillReport{{Status: domain.FillCancelled}}}
	// 1% worse than the original 0.64 ask — exceeds the 0.5% ceiling.
	gate := stubRetryGate{ask: decimal.NewFromFloat(0.6464), ok: true}
	a := NewRetryingAdapter(inner, gate)

	report, err := a.SubmitBuy(context.Background(), domain.SideUp, decimal.NewFromFloat(0.64), decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.Equal(t, domain.FillCancelled, report.Status)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryingAdapterDoesNotRetryOnFilled(t *testing.T) {
	inner := &scriptedAdapter{reports: []FillReport{{Status: domain.FillFilled, AvgPrice: decimal.NewFromFloat(0.64)}}}
	gate := stubRetryGate{ok: true}
	a := NewRetryingAdapter(inner, gate)

	_, err := a.SubmitBuy(context.Background(), domain.SideUp, decimal.NewFromFloat(0.64), decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)
}
