package orchestrator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brindlecap/option15/internal/book"
	"github.com/brindlecap/option15/internal/config"
	"github.com/brindlecap/option15/internal/control"
	"github.com/brindlecap/option15/internal/domain"
	"github.com/brindlecap/option15/internal/execution"
	"github.com/brindlecap/option15/internal/risk"
	"github.com/brindlecap/option15/internal/settlement"
	"github.com/brindlecap/option15/internal/statusapi"
	"github.com/brindlecap/option15/internal/tradelog"
)

func newTestOrchestrator(t *testing.T) (*Orchestrator, *risk.State) {
	t.Helper()
	cfg := config.Defaults()
	cfg.RunID = "run-1"

	riskState := risk.New(cfg.RunID, risk.DefaultConfig())
	adapter := execution.NewPaperAdapter(cfg.RunID)
	resolver := settlement.NewPaperResolver()

	logWriter, err := tradelog.New(filepath.Join(t.TempDir(), "events.jsonl"), cfg.RunID)
	require.NoError(t, err)
	t.Cleanup(func() { _ = logWriter.Close() })

	metricsWriter, err := tradelog.New(filepath.Join(t.TempDir(), "metrics.jsonl"), cfg.RunID)
	require.NoError(t, err)
	t.Cleanup(func() { _ = metricsWriter.Close() })

	controlChannel := control.New(context.Background(), control.Config{
		SentinelPath: filepath.Join(t.TempDir(), "KILL_SWITCH"),
	}, riskState)

	events := statusapi.NewEventLog(10)

	return New(cfg, riskState, adapter, resolver, logWriter, metricsWriter, nil, events, nil, controlChannel), riskState
}

func applyTwoSidedBook(o *Orchestrator, now time.Time, upBid, upAsk, downBid, downAsk float64) {
	o.book.Apply(book.Update{Side: domain.SideUp, Bid: upBid, Ask: upAsk, ServerTimestamp: now})
	o.book.Apply(book.Update{Side: domain.SideDown, Bid: downBid, Ask: downAsk, ServerTimestamp: now})
}

func TestTickAdmitsAndFillsInsideCoreZone(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()
	t0 := time.Date(2026, 1, 5, 14, 30, 0, 0, time.UTC)

	// EARLY zone: establishes the session, no admission possible yet.
	applyTwoSidedBook(o, t0, 0.64, 0.66, 0.30, 0.32)
	o.tick(ctx, t0)
	assert.Nil(t, o.openTrade)

	// CORE zone, edge and spread admissible.
	tCore := t0.Add(170 * time.Second)
	applyTwoSidedBook(o, tCore, 0.64, 0.66, 0.30, 0.32)
	o.tick(ctx, tCore)

	require.NotNil(t, o.openTrade)
	assert.Equal(t, domain.SideUp, o.openTrade.Side)
	assert.True(t, o.openTrade.FillStatus == domain.FillFilled || o.openTrade.FillStatus == domain.FillDegraded)
}

func TestSessionCapBlocksASecondEntryWithinTheSameSession(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()
	t0 := time.Date(2026, 1, 5, 14, 30, 0, 0, time.UTC)

	tCore := t0.Add(170 * time.Second)
	applyTwoSidedBook(o, tCore, 0.64, 0.66, 0.30, 0.32)
	o.tick(ctx, tCore)
	require.NotNil(t, o.openTrade)
	firstTradeID := o.openTrade.ID

	tCoreLater := t0.Add(200 * time.Second)
	applyTwoSidedBook(o, tCoreLater, 0.64, 0.66, 0.30, 0.32)
	o.tick(ctx, tCoreLater)

	require.NotNil(t, o.openTrade)
	assert.Equal(t, firstTradeID, o.openTrade.ID, "an open trade in the session must block a second entry")
}

func TestSizingSkipsWithMinNotionalWhenGranularityRoundsToZeroShares(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	o.cfg.NotionalPerTrade = 5.00
	o.cfg.ShareGranularity = 10 // rounds 5/0.66≈7.57 shares down to 0
	o.cfg.MinNotional = 1.0
	ctx := context.Background()
	t0 := time.Date(2026, 1, 5, 14, 30, 0, 0, time.UTC)

	tCore := t0.Add(170 * time.Second)
	applyTwoSidedBook(o, tCore, 0.64, 0.66, 0.30, 0.32)
	o.tick(ctx, tCore)

	assert.Nil(t, o.openTrade, "rounding to zero shares must skip, not place a zero-size order")
	assert.Equal(t, reasonMinNotional, o.LastSkipReason())
}

func TestSessionCrossingFinalizesTheOpenTradeAndResetsTheBook(t *testing.T) {
	o, riskState := newTestOrchestrator(t)
	ctx := context.Background()
	t0 := time.Date(2026, 1, 5, 14, 30, 0, 0, time.UTC)

	tCore := t0.Add(170 * time.Second)
	applyTwoSidedBook(o, tCore, 0.64, 0.66, 0.30, 0.32)
	o.tick(ctx, tCore)
	require.NotNil(t, o.openTrade)

	// The UP contract rallies, so the paper resolver settles it a WIN.
	tLate := t0.Add(280 * time.Second)
	applyTwoSidedBook(o, tLate, 0.80, 0.82, 0.16, 0.18)
	o.tick(ctx, tLate)
	require.NotNil(t, o.openTrade, "still within the same session")

	// Re-applied at the crossing instant so the prior session's quote
	// is still fresh enough for finalizeSession's snapshot; the values
	// are unchanged from tLate.
	nextSession := t0.Add(15 * time.Minute)
	applyTwoSidedBook(o, nextSession, 0.80, 0.82, 0.16, 0.18)
	o.tick(ctx, nextSession)

	assert.Nil(t, o.openTrade, "crossing a session boundary must finalize any open trade")
	snap := riskState.Snapshot()
	assert.Equal(t, 1, snap.TradesThisRun)
	assert.True(t, snap.CumulativePnL.IsPositive(), "UP rallied and the trade was UP, so the win should be profitable")
}
