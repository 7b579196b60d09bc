// Package statusapi implements the read-only Status/Control API: a
// chi-routed HTTP server exposing health, a status snapshot, and the
// Prometheus metrics exposition. It owns no decision state — every
// handler reads through a capability handle the Orchestrator holds.
package statusapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/brindlecap/option15/internal/observ"
	"github.com/brindlecap/option15/internal/risk"
)

// RiskReader is the read-only view of RiskState the API needs.
type RiskReader interface {
	Snapshot() risk.Snapshot
}

// TickObserver reports when the decision loop last ticked, for the
// /healthz liveness check.
type TickObserver interface {
	LastTick() time.Time
}

// RecentEvent is one entry in the /status recent-events window.
type RecentEvent struct {
	Kind   string         `json:"kind"`
	Fields map[string]any `json:"fields"`
}

// EventLog is a bounded ring of the most recent trade-log events,
// populated by the Orchestrator as it writes to the Trade Log Writer.
type EventLog struct {
	mu     sync.Mutex
	events []RecentEvent
	cap    int
}

// NewEventLog constructs a ring buffer holding at most cap events.
func NewEventLog(cap int) *EventLog {
	return &EventLog{cap: cap}
}

// Append records one event, evicting the oldest if the ring is full.
func (l *EventLog) Append(kind string, fields map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, RecentEvent{Kind: kind, Fields: fields})
	if len(l.events) > l.cap {
		l.events = l.events[len(l.events)-l.cap:]
	}
}

// Recent returns a copy of the current ring contents, oldest first.
func (l *EventLog) Recent() []RecentEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]RecentEvent, len(l.events))
	copy(out, l.events)
	return out
}

// SessionReader is the read-only view of the active session the
// /status handler reports.
type SessionReader interface {
	CurrentSessionID() string
	LastSkipReason() string
}

// Server is the Status/Control API.
type Server struct {
	router  chi.Router
	risk    RiskReader
	ticks   TickObserver
	session SessionReader
	events  *EventLog
}

// New wires the chi router. Pass nils for unavailable capabilities in
// tests; handlers degrade gracefully.
func New(riskReader RiskReader, ticks TickObserver, session SessionReader, events *EventLog) *Server {
	s := &Server{risk: riskReader, ticks: ticks, session: session, events: events}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/status", s.handleStatus)
	r.Handle("/metrics", observ.Handler())
	s.router = r
	return s
}

// ServeHTTP satisfies http.Handler, so the server can be mounted
// directly by http.ListenAndServe or wrapped by the caller.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	if s.ticks == nil || time.Since(s.ticks.LastTick()) <= 10*time.Second {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("stale"))
}

type statusResponse struct {
	Session       string             `json:"session_id"`
	LastSkipReason string            `json:"last_skip_reason"`
	Risk          risk.Snapshot      `json:"risk"`
	RecentEvents  []RecentEvent      `json:"recent_events"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{}
	if s.session != nil {
		resp.Session = s.session.CurrentSessionID()
		resp.LastSkipReason = s.session.LastSkipReason()
	}
	if s.risk != nil {
		resp.Risk = s.risk.Snapshot()
	}
	if s.events != nil {
		resp.RecentEvents = s.events.Recent()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
