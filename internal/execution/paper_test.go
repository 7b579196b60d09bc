package execution

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brindlecap/option15/internal/domain"
)

func TestPaperAdapterDeterministicForSameRunID(t *testing.T) {
	a1 := NewPaperAdapter("RUN-123")
	a2 := NewPaperAdapter("RUN-123")

	price := decimal.NewFromFloat(0.64)
	size := decimal.NewFromInt(100)

	for i := 0; i < 5; i++ {
		r1, err1 := a1.SubmitBuy(context.Background(), domain.SideUp, price, size)
		r2, err2 := a2.SubmitBuy(context.Background(), domain.SideUp, price, size)
		require.NoError(t, err1)
		require.NoError(t, err2)
		assert.True(t, r1.AvgPrice.Equal(r2.AvgPrice))
		assert.Equal(t, r1.Status, r2.Status)
	}
}

func TestPaperAdapterDifferentRunIDsDiverge(t *testing.T) {
	a1 := NewPaperAdapter("RUN-A")
	a2 := NewPaperAdapter("RUN-B")
	price := decimal.NewFromFloat(0.64)
	size := decimal.NewFromInt(100)

	var anyDiff bool
	for i := 0; i < 20; i++ {
		r1, _ := a1.SubmitBuy(context.Background(), domain.SideUp, price, size)
		r2, _ := a2.SubmitBuy(context.Background(), domain.SideUp, price, size)
		if !r1.AvgPrice.Equal(r2.AvgPrice) {
			anyDiff = true
		}
	}
	assert.True(t, anyDiff, "distinct run ids should diverge over enough draws")
}

func TestPaperAdapterNeverFillsBelowPriceLimit(t *testing.T) {
	a := NewPaperAdapter("RUN-X")
	price := decimal.NewFromFloat(0.64)
	size := decimal.NewFromInt(100)
	for i := 0; i < 50; i++ {
		r, err := a.SubmitBuy(context.Background(), domain.SideUp, price, size)
		require.NoError(t, err)
		assert.True(t, r.AvgPrice.GreaterThanOrEqual(price))
	}
}
