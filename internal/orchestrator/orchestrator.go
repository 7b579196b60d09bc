// Package orchestrator implements the Core Orchestrator: the per-tick
// loop that advances the session clock, drains the book store, polls
// the kill channel, evaluates the gate chain, and drives settlement
// and metrics for open trades.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/brindlecap/option15/internal/book"
	"github.com/brindlecap/option15/internal/config"
	"github.com/brindlecap/option15/internal/control"
	"github.com/brindlecap/option15/internal/domain"
	"github.com/brindlecap/option15/internal/execution"
	"github.com/brindlecap/option15/internal/feed"
	"github.com/brindlecap/option15/internal/gates"
	"github.com/brindlecap/option15/internal/observ"
	"github.com/brindlecap/option15/internal/risk"
	"github.com/brindlecap/option15/internal/session"
	"github.com/brindlecap/option15/internal/settlement"
	"github.com/brindlecap/option15/internal/statusapi"
	"github.com/brindlecap/option15/internal/tradelog"
	"github.com/brindlecap/option15/internal/trademetrics"
)

// reasonMinNotional is the sizing-stage skip from spec.md §4.I: distinct
// from the nine gates, it fires after a full admission once the
// granularity-rounded size would fall below the venue minimum.
const reasonMinNotional = "MIN_NOTIONAL"

// Orchestrator wires every component into the single-threaded,
// cooperative decision loop described in spec.md §4.I/§5.
type Orchestrator struct {
	cfg config.Root

	clock       *session.Clock
	book        *book.Store
	risk        *risk.State
	thresholds  gates.Thresholds
	adapter     execution.Adapter
	settlement  *settlement.Engine
	resolver    *settlement.PaperResolver
	log         *tradelog.Writer
	metricsLog  *tradelog.Writer
	events      *statusapi.EventLog
	metrics     *trademetrics.Recorder
	feedSource  feed.Source
	control     *control.Channel
	tickLimiter *rate.Limiter

	mu              sync.Mutex
	openTrade       *domain.Trade
	lastSkipReason  string
	lastTick        time.Time
	oscillationHist []decimal.Decimal // recent UP mids, for the regime-modifier oscillation count
	lastKillEngaged bool
	lastManualKill  bool
}

// ThresholdsFromConfig resolves the gate chain's configurable knobs from
// the run configuration. Exported so cmd/trader can build the same
// thresholds for a book-backed RetryGate without duplicating the
// mapping.
func ThresholdsFromConfig(cfg config.Root) gates.Thresholds {
	th := gates.DefaultThresholds()
	th.EdgeBase = decimal.NewFromFloat(cfg.EdgeBase)
	th.EdgeMid = decimal.NewFromFloat(cfg.EdgeMid)
	th.EdgeHigh = decimal.NewFromFloat(cfg.EdgeHigh)
	th.AskCap = decimal.NewFromFloat(cfg.AskCap)
	th.SpreadMax = decimal.NewFromFloat(cfg.SpreadMax)
	th.RegimeModEnabled = cfg.RegimeModEnabled
	return th
}

// New wires an Orchestrator from its resolved configuration and
// component instances. Callers (cmd/trader) are responsible for
// constructing the mode-appropriate adapter, feed source, and the
// shared book store (so a live RetryGate can read the same snapshots).
func New(
	cfg config.Root,
	riskState *risk.State,
	adapter execution.Adapter,
	resolver *settlement.PaperResolver,
	logWriter *tradelog.Writer,
	metricsLog *tradelog.Writer,
	bookStore *book.Store,
	events *statusapi.EventLog,
	feedSource feed.Source,
	controlChannel *control.Channel,
) *Orchestrator {
	if bookStore == nil {
		bookStore = book.New(book.DefaultStaleness)
	}

	return &Orchestrator{
		cfg:         cfg,
		clock:       session.NewClock(session.ZoneBounds{CoreLoSec: cfg.CoreLoSec, CoreHiSec: cfg.CoreHiSec}),
		book:        bookStore,
		risk:        riskState,
		thresholds:  ThresholdsFromConfig(cfg),
		adapter:     adapter,
		settlement:  settlement.New(resolver, riskState),
		resolver:    resolver,
		log:         logWriter,
		metricsLog:  metricsLog,
		events:      events,
		metrics:     trademetrics.New(),
		feedSource:  feedSource,
		control:     controlChannel,
		tickLimiter: rate.NewLimiter(rate.Every(900*time.Millisecond), 1),
	}
}

// writeLog appends a record to the trade log and mirrors it into the
// status API's recent-events ring, keeping both in lockstep per
// spec.md §4.J. A write error on the trade log is fatal: a last-gasp
// record goes to stderr and the process exits.
func (o *Orchestrator) writeLog(kind tradelog.EventKind, fields map[string]any) {
	if _, err := o.log.Write(kind, fields); err != nil {
		observ.Fatal("io_error", map[string]any{"kind": string(kind), "error": err.Error()})
	}
	if o.events != nil {
		o.events.Append(string(kind), fields)
	}
}

// checkKillTransition polls RiskState for the first latch of either
// kill switch and emits a KILL record the moment it engages, per
// spec.md §4.G. The event stream otherwise has no visibility into
// risk.State's latches, which up to now only reached observ.Log.
func (o *Orchestrator) checkKillTransition() {
	snap := o.risk.Snapshot()
	if snap.KillEngaged && !o.lastKillEngaged {
		o.lastKillEngaged = true
		o.writeLog(tradelog.EventKill, map[string]any{
			"reason":              "kill_engaged",
			"degraded_fill_count": snap.DegradedFillCount,
			"consecutive_losses":  snap.ConsecutiveLosses,
		})
	}
	if snap.ManualKill && !o.lastManualKill {
		o.lastManualKill = true
		o.writeLog(tradelog.EventKill, map[string]any{"reason": "manual_kill"})
	}
}

// LastTick satisfies statusapi.TickObserver.
func (o *Orchestrator) LastTick() time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastTick
}

// CurrentSessionID satisfies statusapi.SessionReader.
func (o *Orchestrator) CurrentSessionID() string {
	sess, ok := o.clock.Current()
	if !ok {
		return ""
	}
	return sess.ID
}

// LastSkipReason satisfies statusapi.SessionReader.
func (o *Orchestrator) LastSkipReason() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastSkipReason
}

// Run drives the decision loop until ctx is cancelled, then finalizes
// any open trade with reason="shutdown" and writes RUN_END.
func (o *Orchestrator) Run(ctx context.Context) error {
	updates, err := o.feedSource.Start(ctx)
	if err != nil {
		return err
	}

	o.writeLog(tradelog.EventRunStart, map[string]any{"mode": o.cfg.Mode})

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.shutdown(context.Background())
			return nil
		case u, ok := <-updates:
			if !ok {
				o.shutdown(context.Background())
				return nil
			}
			o.book.Apply(u)
		case <-ticker.C:
			if err := o.tickLimiter.Wait(ctx); err != nil {
				continue
			}
			o.tick(ctx, time.Now())
		}
	}
}

func (o *Orchestrator) tick(ctx context.Context, now time.Time) {
	o.mu.Lock()
	o.lastTick = now
	o.mu.Unlock()

	sess, crossed := o.clock.Advance(now)
	if crossed {
		o.finalizeSession(ctx, now, "session_end")
		o.book.Reset(sess.ID)
	}
	if _, ok := o.resolver.MidAtStart[sess.ID]; !ok {
		if snap := o.book.Snapshot(now); snap.Up.Present {
			o.resolver.MidAtStart[sess.ID] = snap.Up.Mid()
		}
	}

	o.control.Poll()
	o.checkKillTransition()

	if o.openTradeForSession(sess.ID) == nil {
		o.evaluateGates(ctx, sess, now)
	}

	o.updateMetricsForOpenTrade(now)
}

func (o *Orchestrator) openTradeForSession(sessionID string) *domain.Trade {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.openTrade != nil && o.openTrade.SessionID == sessionID {
		return o.openTrade
	}
	return nil
}

func (o *Orchestrator) evaluateGates(ctx context.Context, sess domain.Session, now time.Time) {
	_, zone, ok := o.clock.ElapsedAndZone(now)
	if !ok {
		return
	}

	snap := o.book.Snapshot(now)
	result := gates.Evaluate(gates.Input{
		Zone:               zone,
		Book:               snap,
		TradeAlreadyInSess: o.openTradeForSession(sess.ID) != nil,
		Now:                now,
		OscillationCount:   o.oscillationCount(),
		Risk:               o.risk,
	}, o.thresholds)

	if !result.Admitted {
		o.mu.Lock()
		o.lastSkipReason = string(result.Reason)
		o.mu.Unlock()
		o.writeLog(tradelog.EventSkip, map[string]any{
			"session_id": sess.ID,
			"reason":     string(result.Reason),
		})
		observ.IncCounter("gate_skip_total", map[string]string{"reason": string(result.Reason)})
		return
	}

	o.admit(ctx, sess, zone, result, now)
}

// roundDownToGranularity floors shares to the nearest multiple of step.
// A non-positive step disables rounding.
func roundDownToGranularity(shares, step decimal.Decimal) decimal.Decimal {
	if step.Sign() <= 0 {
		return shares
	}
	return shares.Div(step).Floor().Mul(step)
}

func (o *Orchestrator) oscillationCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.oscillationHist) < 3 {
		return 0
	}
	count := 0
	for i := 2; i < len(o.oscillationHist); i++ {
		a, b, c := o.oscillationHist[i-2], o.oscillationHist[i-1], o.oscillationHist[i]
		if (b.GreaterThan(a) && c.LessThan(b)) || (b.LessThan(a) && c.GreaterThan(b)) {
			count++
		}
	}
	return count
}

func (o *Orchestrator) admit(ctx context.Context, sess domain.Session, zone domain.Zone, result gates.Result, now time.Time) {
	notional := decimal.NewFromFloat(o.cfg.NotionalPerTrade)
	shares := roundDownToGranularity(notional.Div(result.Ask), decimal.NewFromFloat(o.cfg.ShareGranularity))
	actualNotional := shares.Mul(result.Ask)

	minNotional := decimal.NewFromFloat(o.cfg.MinNotional)
	if shares.Sign() <= 0 || actualNotional.LessThan(minNotional) {
		o.mu.Lock()
		o.lastSkipReason = reasonMinNotional
		o.mu.Unlock()
		o.writeLog(tradelog.EventSkip, map[string]any{
			"session_id": sess.ID,
			"reason":     reasonMinNotional,
		})
		observ.IncCounter("gate_skip_total", map[string]string{"reason": reasonMinNotional})
		return
	}

	trade := &domain.Trade{
		ID:                     uuid.New(),
		SessionID:              sess.ID,
		Side:                   result.Side,
		AskAtDecision:          result.Ask,
		EdgeAtDecision:         result.Edge,
		RequiredEdgeAtDecision: result.RequiredEdge,
		SpreadAtDecision:       result.Spread,
		Notional:               actualNotional,
		Shares:                 shares,
		FillStatus:             domain.FillPending,
		OpenInstant:            now,
	}

	o.risk.RecordAdmission(string(zone), now)

	o.writeLog(tradelog.EventEntry, map[string]any{
		"trade_id":           trade.ID.String(),
		"session_id":         trade.SessionID,
		"side":                string(trade.Side),
		"ask_at_decision":     trade.AskAtDecision.String(),
		"edge_at_decision":    trade.EdgeAtDecision.String(),
		"spread_at_decision":  trade.SpreadAtDecision.String(),
		"shares":              trade.Shares.String(),
		"notional":            trade.Notional.String(),
	})

	report, err := o.adapter.SubmitBuy(ctx, trade.Side, trade.AskAtDecision, trade.Shares)
	if err != nil {
		observ.Log("placement_error", map[string]any{"trade_id": trade.ID.String(), "error": err.Error()})
		trade.FillStatus = domain.FillCancelled
	} else {
		trade.FillStatus = report.Status
		trade.AvgFillPrice = report.AvgPrice
		if report.Status == domain.FillDegraded {
			o.risk.RecordDegradedFill()
		}
	}

	o.writeLog(tradelog.EventFill, map[string]any{
		"trade_id":       trade.ID.String(),
		"status":         string(trade.FillStatus),
		"avg_fill_price": trade.AvgFillPrice.String(),
	})

	o.metrics.Open(*trade)

	o.mu.Lock()
	o.openTrade = trade
	o.mu.Unlock()
}

func (o *Orchestrator) updateMetricsForOpenTrade(now time.Time) {
	snap := o.book.Snapshot(now)

	o.mu.Lock()
	if snap.Up.Present {
		o.oscillationHist = append(o.oscillationHist, snap.Up.Mid())
		if len(o.oscillationHist) > 300 { // ~5 minutes at one sample/sec
			o.oscillationHist = o.oscillationHist[len(o.oscillationHist)-300:]
		}
	}
	trade := o.openTrade
	o.mu.Unlock()
	if trade == nil {
		return
	}

	var currentMid, oppositeMid decimal.Decimal
	if trade.Side == domain.SideUp {
		if !snap.Up.Present || !snap.Down.Present {
			return
		}
		currentMid, oppositeMid = snap.Up.Mid(), snap.Down.Mid()
	} else {
		if !snap.Up.Present || !snap.Down.Present {
			return
		}
		currentMid, oppositeMid = snap.Down.Mid(), snap.Up.Mid()
	}

	o.metrics.Observe(trade.ID, currentMid, oppositeMid)
}

func (o *Orchestrator) finalizeSession(ctx context.Context, now time.Time, reason string) {
	o.mu.Lock()
	trade := o.openTrade
	o.mu.Unlock()
	if trade == nil {
		return
	}

	if snap := o.book.Snapshot(now); snap.Up.Present {
		o.resolver.FinalUpMid[trade.SessionID] = snap.Up.Mid()
	}

	if err := o.settlement.Settle(ctx, trade, now, reason); err != nil {
		observ.Log("settlement_error", map[string]any{"trade_id": trade.ID.String(), "error": err.Error()})
		return
	}
	sample := o.metrics.Finalize(trade.ID, trade.Outcome)

	o.writeLog(tradelog.EventSettled, map[string]any{
		"trade_id":      trade.ID.String(),
		"session_id":    trade.SessionID,
		"outcome":       string(trade.Outcome),
		"pnl":           trade.PnL.String(),
		"reason":        reason,
		"metric_reason": string(sample.Reason),
	})

	if o.metricsLog != nil {
		_, _ = o.metricsLog.Write(tradelog.EventMetric, map[string]any{
			"trade_id":           sample.TradeID.String(),
			"session_id":         sample.SessionID,
			"side":               string(sample.Side),
			"ask_at_decision":    sample.AskAtDecision.String(),
			"peak_favorable_pct": sample.PeakFavorablePct.String(),
			"max_adverse_pct":    sample.MaxAdversePct.String(),
			"time_in_favor_pct":  sample.TimeInFavorPct().String(),
			"entry_crossings":    sample.EntryCrossings,
			"direction_flipped":  sample.DirectionFlipped,
			"reason":             string(sample.Reason),
		})
	}

	o.mu.Lock()
	o.openTrade = nil
	o.mu.Unlock()
}

func (o *Orchestrator) shutdown(ctx context.Context) {
	o.finalizeSession(ctx, time.Now(), "shutdown")
	o.writeLog(tradelog.EventRunEnd, map[string]any{"cumulative_pnl": o.risk.Snapshot().CumulativePnL.String()})
	_ = o.log.Close()
	if o.metricsLog != nil {
		_ = o.metricsLog.Close()
	}
	_ = o.control.Close()
}
