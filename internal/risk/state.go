// Package risk implements the process-wide Risk Caps & Kill State
// singleton: counters and latches mutated exclusively by the
// Orchestrator and read by every gate that references them.
package risk

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/brindlecap/option15/internal/observ"
)

// Config is the set of runtime risk caps, sourced from the
// configuration environment variables enumerated in spec.md §6.
type Config struct {
	MaxTradesPerRun   int
	MaxConsecLosses   int // telemetry only under the locked configuration; large sentinel disables the kill effect
	PnLFloor          decimal.Decimal
	CooldownPerZone   time.Duration
	DegradedKillCount int
}

// DefaultConfig mirrors the locked configuration in spec.md §4.D/§6.
func DefaultConfig() Config {
	return Config{
		MaxTradesPerRun:   1,
		MaxConsecLosses:   1 << 30, // disabling sentinel: empirical sweeps showed this destroys edge
		PnLFloor:          decimal.NewFromInt(-50),
		CooldownPerZone:   30 * time.Second,
		DegradedKillCount: 2,
	}
}

// State is the process-singleton risk record. It is created once at
// process start and handed out as a capability pointer — never through
// a package-level global — to the gate chain and the settlement engine.
type State struct {
	mu sync.RWMutex

	cfg Config

	RunID string

	TradesThisRun     int
	ConsecutiveLosses int
	CumulativePnL     decimal.Decimal
	DegradedFillCount int
	KillEngaged       bool
	ManualKill        bool

	lastTradeByZone map[string]time.Time
}

// New constructs a State for a fresh process run.
func New(runID string, cfg Config) *State {
	return &State{
		cfg:             cfg,
		RunID:           runID,
		CumulativePnL:   decimal.Zero,
		lastTradeByZone: make(map[string]time.Time),
	}
}

// Snapshot is a read-only copy of State, safe to hand to the status API
// or the trade log without holding the live lock.
type Snapshot struct {
	RunID             string
	TradesThisRun     int
	ConsecutiveLosses int
	CumulativePnL     decimal.Decimal
	DegradedFillCount int
	KillEngaged       bool
	ManualKill        bool
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		RunID:             s.RunID,
		TradesThisRun:     s.TradesThisRun,
		ConsecutiveLosses: s.ConsecutiveLosses,
		CumulativePnL:     s.CumulativePnL,
		DegradedFillCount: s.DegradedFillCount,
		KillEngaged:       s.KillEngaged,
		ManualKill:        s.ManualKill,
	}
}

// CooldownElapsed reports whether enough time has passed since the last
// admitted trade in the given zone.
func (s *State) CooldownElapsed(zone string, now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	last, ok := s.lastTradeByZone[zone]
	if !ok {
		return true
	}
	return now.Sub(last) >= s.cfg.CooldownPerZone
}

// ExecutorAdmits aggregates the EXECUTOR gate's risk-cap checks, per
// spec.md §4.C item 9.
func (s *State) ExecutorAdmits(zone string, now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.KillEngaged || s.ManualKill {
		return false
	}
	if s.TradesThisRun >= s.cfg.MaxTradesPerRun {
		return false
	}
	if s.CumulativePnL.LessThanOrEqual(s.cfg.PnLFloor) {
		return false
	}
	last, ok := s.lastTradeByZone[zone]
	if ok && now.Sub(last) < s.cfg.CooldownPerZone {
		return false
	}
	return true
}

// RecordAdmission increments trades_this_run and stamps the per-zone
// cooldown clock. Called before placement, per spec.md §4.D.
func (s *State) RecordAdmission(zone string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TradesThisRun++
	s.lastTradeByZone[zone] = now
	observ.SetGauge("risk_trades_this_run", float64(s.TradesThisRun), nil)
}

// RecordDegradedFill increments the degraded-fill counter and, at the
// configured threshold, latches kill_engaged permanently.
func (s *State) RecordDegradedFill() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DegradedFillCount++
	observ.SetGauge("risk_degraded_fill_count", float64(s.DegradedFillCount), nil)
	if s.DegradedFillCount >= s.cfg.DegradedKillCount && !s.KillEngaged {
		s.KillEngaged = true
		observ.Log("kill_engaged", map[string]any{
			"run_id": s.RunID,
			"reason": "degraded_fill_count",
			"count":  s.DegradedFillCount,
		})
		observ.IncCounter("risk_kill_engaged_total", map[string]string{"reason": "degraded_fills"})
	}
}

// RecordSettlement updates consecutive_losses and cumulative_pnl after
// a trade settles, per spec.md §4.D and §4.F.
func (s *State) RecordSettlement(outcome string, pnl decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CumulativePnL = s.CumulativePnL.Add(pnl)
	if outcome == "WIN" {
		s.ConsecutiveLosses = 0
	} else {
		s.ConsecutiveLosses++
		// Telemetry only: MAX_CONSEC_LOSSES defaults to a sentinel that
		// disables this path. We still record it so the kill-state
		// accounting is exact if an operator later tightens the knob.
		if s.ConsecutiveLosses >= s.cfg.MaxConsecLosses && !s.KillEngaged {
			s.KillEngaged = true
			observ.Log("kill_engaged", map[string]any{
				"run_id": s.RunID,
				"reason": "consecutive_losses",
				"count":  s.ConsecutiveLosses,
			})
		}
	}
	observ.SetGauge("risk_cumulative_pnl", mustFloat(s.CumulativePnL), nil)
	observ.SetGauge("risk_consecutive_losses", float64(s.ConsecutiveLosses), nil)
}

// SetManualKill latches the kill switch from the external control
// channel. Once true it never retracts within the life of the process.
func (s *State) SetManualKill() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ManualKill {
		return
	}
	s.ManualKill = true
	observ.Log("kill_engaged", map[string]any{"run_id": s.RunID, "reason": "manual_kill"})
	observ.IncCounter("risk_kill_engaged_total", map[string]string{"reason": "manual"})
}

func mustFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
