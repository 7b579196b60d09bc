package feed

import (
	"context"
	"math"
	"math/rand"
	"time"

	"golang.org/x/time/rate"

	"github.com/brindlecap/option15/internal/book"
	"github.com/brindlecap/option15/internal/domain"
	"github.com/brindlecap/option15/internal/execution"
)

// PaperSource generates a synthetic two-sided book by random-walking
// the UP contract's mid and deriving DOWN as its complement, emitting
// one update pair per tick. It is seeded deterministically from a run
// id, matching the paper adapter's reproducibility contract.
type PaperSource struct {
	rng        *rand.Rand
	limiter    *rate.Limiter
	tickPeriod time.Duration
	volatility float64
	spread     float64
	upMid      float64
}

// NewPaperSource constructs a PaperSource seeded from runID, emitting
// at most one update pair per tickPeriod.
func NewPaperSource(runID string, tickPeriod time.Duration, startingUpMid float64) *PaperSource {
	return &PaperSource{
		rng:        rand.New(rand.NewSource(execution.SeedFromRunID(runID))),
		limiter:    rate.NewLimiter(rate.Every(tickPeriod), 1),
		tickPeriod: tickPeriod,
		volatility: 0.01,
		spread:     0.02,
		upMid:      startingUpMid,
	}
}

// Start begins the synthetic walk. Callers are expected to drain the
// channel once per tick; the limiter guarantees the generator itself
// cannot outpace the configured tick cadence.
func (p *PaperSource) Start(ctx context.Context) (<-chan book.Update, error) {
	out := make(chan book.Update, 2)
	go func() {
		defer close(out)
		ticker := time.NewTicker(p.tickPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := p.limiter.Wait(ctx); err != nil {
					return
				}
				p.step()
				now := time.Now()
				halfSpread := p.spread / 2
				out <- book.Update{
					Side:            domain.SideUp,
					Bid:             clamp01(p.upMid - halfSpread),
					Ask:             clamp01(p.upMid + halfSpread),
					ServerTimestamp: now,
				}
				downMid := 1 - p.upMid
				out <- book.Update{
					Side:            domain.SideDown,
					Bid:             clamp01(downMid - halfSpread),
					Ask:             clamp01(downMid + halfSpread),
					ServerTimestamp: now,
				}
			}
		}
	}()
	return out, nil
}

func (p *PaperSource) step() {
	move := (p.rng.Float64()*2 - 1) * p.volatility
	p.upMid = clamp01(p.upMid + move)
}

func clamp01(v float64) float64 {
	return math.Min(0.99, math.Max(0.01, v))
}
