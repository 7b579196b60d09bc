// Package session implements the Session Clock: it maps wall-clock time
// onto the venue's recurring fifteen-minute contract cadence and tags
// elapsed time with a Zone.
package session

import (
	"time"

	"github.com/brindlecap/option15/internal/domain"
)

// ZoneBounds is the configurable [lo, hi) CORE window in seconds. The
// other three zones bracket it with bounds fixed in Clock.Zone. Defaults
// are the locked configuration from spec.md: CORE [150, 225).
type ZoneBounds struct {
	CoreLoSec float64
	CoreHiSec float64
}

// DefaultZoneBounds is the locked CORE window.
func DefaultZoneBounds() ZoneBounds {
	return ZoneBounds{CoreLoSec: 150, CoreHiSec: 225}
}

// Clock tracks the currently active session and classifies elapsed
// time into a Zone. It holds no trade state; the Orchestrator owns the
// Session it returns.
type Clock struct {
	bounds  ZoneBounds
	current *domain.Session
}

// NewClock constructs a Clock with the given CORE bounds.
func NewClock(bounds ZoneBounds) *Clock {
	return &Clock{bounds: bounds}
}

// AlignedStart returns the most recent fifteen-minute boundary at or
// before t (sessions start at wall-clock :00, :15, :30, :45).
func AlignedStart(t time.Time) time.Time {
	t = t.UTC()
	flooredMinute := (t.Minute() / 15) * 15
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), flooredMinute, 0, 0, time.UTC)
}

// Advance computes the session that should be active at instant `now`.
// It returns the new session and true if a boundary was crossed (the
// caller must finalize the prior session before evaluating any gate
// for the new one, per the ordering guarantee in spec.md §5).
func (c *Clock) Advance(now time.Time) (domain.Session, bool) {
	start := AlignedStart(now)
	if c.current != nil && c.current.StartInstant.Equal(start) {
		return *c.current, false
	}
	next := domain.NewSession(start)
	crossed := c.current != nil
	c.current = &next
	return next, crossed
}

// Current returns the active session, if any has been established.
func (c *Clock) Current() (domain.Session, bool) {
	if c.current == nil {
		return domain.Session{}, false
	}
	return *c.current, true
}

// Zone classifies elapsed-seconds-since-start into a Zone using the
// Clock's configured CORE bounds. Bounds outside CORE are fixed by
// spec.md §3: EARLY [0,150), DEAD [225,300), LATE [300,900).
func (c *Clock) Zone(elapsedSeconds float64) domain.Zone {
	switch {
	case elapsedSeconds < 0:
		return domain.ZoneEarly
	case elapsedSeconds < c.bounds.CoreLoSec:
		return domain.ZoneEarly
	case elapsedSeconds < c.bounds.CoreHiSec:
		return domain.ZoneCore
	case elapsedSeconds < 300:
		return domain.ZoneDead
	default:
		return domain.ZoneLate
	}
}

// ElapsedAndZone is a convenience combining ElapsedSeconds and Zone for
// the currently active session.
func (c *Clock) ElapsedAndZone(now time.Time) (float64, domain.Zone, bool) {
	sess, ok := c.Current()
	if !ok {
		return 0, domain.ZoneEarly, false
	}
	elapsed := sess.ElapsedSeconds(now)
	return elapsed, c.Zone(elapsed), true
}
