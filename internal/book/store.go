// Package book implements the Book Snapshot Store: a single-writer,
// many-reader holder of the latest (bid, ask) for each outcome side of
// the currently active session.
package book

import (
	"sync"
	"time"

	"github.com/brindlecap/option15/internal/domain"
	"github.com/shopspring/decimal"
)

// DefaultStaleness is the threshold past which a quote is treated as
// missing rather than stale-but-usable.
const DefaultStaleness = 1 * time.Second

// Update is an inbound book update tagged with outcome side.
type Update struct {
	Side            domain.Side
	Bid             float64
	Ask             float64
	ServerTimestamp time.Time
}

// Store holds the latest two-sided snapshot for one session. Writes
// come from a single feed-draining goroutine; reads are atomic
// snapshots of both sides taken together under one lock, per spec.md §4.B.
type Store struct {
	mu         sync.Mutex
	staleness  time.Duration
	up, down   domain.Quote
	sessionID  string
}

// New constructs a Store with the given staleness threshold.
func New(staleness time.Duration) *Store {
	if staleness <= 0 {
		staleness = DefaultStaleness
	}
	return &Store{staleness: staleness}
}

// Reset clears both sides for a new session. Called by the Orchestrator
// on session boundary crossing; the prior session's snapshot is
// discarded with it per spec.md §3.
func (s *Store) Reset(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionID = sessionID
	s.up = domain.Quote{}
	s.down = domain.Quote{}
}

// Apply writes a single inbound update into the slot for its side.
// In-order delivery per side is assumed (spec.md §6); gaps are permitted
// and simply overwrite the previous quote.
func (s *Store) Apply(u Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := toQuoteOrZero(u)
	if u.Side == domain.SideUp {
		s.up = q
	} else {
		s.down = q
	}
}

func toQuoteOrZero(u Update) domain.Quote {
	return domain.Quote{
		Bid:               decimal.NewFromFloat(u.Bid),
		Ask:               decimal.NewFromFloat(u.Ask),
		LastUpdateInstant: u.ServerTimestamp,
		Present:           true,
	}
}

// Snapshot atomically reads both sides as of `now`. A side whose last
// update is older than the staleness threshold is reported as absent
// ("no quote"), matching the BOOK gate's stale-quote handling.
func (s *Store) Snapshot(now time.Time) domain.BookSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.BookSnapshot{
		Up:   freshOrAbsent(s.up, now, s.staleness),
		Down: freshOrAbsent(s.down, now, s.staleness),
	}
}

func freshOrAbsent(q domain.Quote, now time.Time, staleness time.Duration) domain.Quote {
	if !q.Present {
		return domain.Quote{}
	}
	if now.Sub(q.LastUpdateInstant) > staleness {
		return domain.Quote{}
	}
	return q
}
