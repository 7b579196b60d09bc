package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brindlecap/option15/internal/domain"
)

func TestPaperSourceEmitsBothSidesEachTick(t *testing.T) {
	src := NewPaperSource("RUN-1", 10*time.Millisecond, 0.5)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	ch, err := src.Start(ctx)
	require.NoError(t, err)

	up, down := false, false
	for i := 0; i < 2; i++ {
		select {
		case u := <-ch:
			if u.Side == domain.SideUp {
				up = true
			} else {
				down = true
			}
		case <-time.After(500 * time.Millisecond):
			t.Fatal("timed out waiting for update")
		}
	}
	assert.True(t, up)
	assert.True(t, down)
}

func TestPaperSourceStaysWithinBounds(t *testing.T) {
	src := NewPaperSource("RUN-1", 5*time.Millisecond, 0.98)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	ch, err := src.Start(ctx)
	require.NoError(t, err)
	for u := range ch {
		assert.True(t, u.Bid >= 0 && u.Bid <= 1)
		assert.True(t, u.Ask >= 0 && u.Ask <= 1)
	}
}
