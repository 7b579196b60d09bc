package execution

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/brindlecap/option15/internal/book"
	"github.com/brindlecap/option15/internal/domain"
	"github.com/brindlecap/option15/internal/gates"
)

// BookRetryGate backs RetryingAdapter's retry decision with a fresh read
// of the Book Snapshot Store, re-running the EDGE, HARD_PRICE and PRICE
// checks the gate chain already performs against the book as of the
// retry instant (so an ask exactly at the cap is rejected).
type BookRetryGate struct {
	Book       *book.Store
	Thresholds gates.Thresholds
}

// StillAdmissible satisfies RetryGate.
func (g *BookRetryGate) StillAdmissible(_ context.Context, side domain.Side) (decimal.Decimal, bool) {
	snap := g.Book.Snapshot(time.Now())
	q := snap.Up
	if side == domain.SideDown {
		q = snap.Down
	}
	if !q.Present || q.Ask.Sign() <= 0 {
		return decimal.Zero, false
	}
	if q.Ask.GreaterThanOrEqual(g.Thresholds.AskCap) {
		return decimal.Zero, false
	}
	required := gates.RequiredEdge(g.Thresholds, q.Ask, 0)
	if q.Mid().LessThan(required) {
		return decimal.Zero, false
	}
	return q.Ask, true
}
