package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/brindlecap/option15/internal/book"
	"github.com/brindlecap/option15/internal/domain"
	"github.com/brindlecap/option15/internal/observ"
)

// ReconnectConfig governs the live feed's backoff on disconnect.
type ReconnectConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int // -1 for infinite
}

// DefaultReconnectConfig mirrors the teacher's transport defaults,
// scaled to a quote feed that must stay connected for the life of a run.
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{InitialDelay: 200 * time.Millisecond, MaxDelay: 10 * time.Second, MaxAttempts: -1}
}

type wireUpdate struct {
	Side            string    `json:"side"`
	Bid             float64   `json:"bid"`
	Ask             float64   `json:"ask"`
	ServerTimestamp time.Time `json:"server_ts"`
}

// LiveSource streams book updates from the venue's market-data
// websocket, reconnecting with exponential backoff on disconnect.
type LiveSource struct {
	url       string
	reconnect ReconnectConfig
}

// NewLiveSource constructs a LiveSource against the given websocket URL.
func NewLiveSource(url string, reconnect ReconnectConfig) *LiveSource {
	return &LiveSource{url: url, reconnect: reconnect}
}

// Start connects and begins emitting updates, reconnecting transparently
// until ctx is cancelled or MaxAttempts is exhausted.
func (s *LiveSource) Start(ctx context.Context) (<-chan book.Update, error) {
	out := make(chan book.Update, 64)
	go s.run(ctx, out)
	return out, nil
}

func (s *LiveSource) run(ctx context.Context, out chan<- book.Update) {
	defer close(out)
	delay := s.reconnect.InitialDelay
	attempts := 0
	for {
		if ctx.Err() != nil {
			return
		}
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
		if err != nil {
			attempts++
			observ.Log("feed_reconnect_failed", map[string]any{"attempt": attempts, "error": err.Error()})
			if s.reconnect.MaxAttempts >= 0 && attempts >= s.reconnect.MaxAttempts {
				return
			}
			if !sleepOrDone(ctx, delay) {
				return
			}
			delay = nextDelay(delay, s.reconnect.MaxDelay)
			continue
		}

		attempts = 0
		delay = s.reconnect.InitialDelay
		s.drain(ctx, conn, out)
		_ = conn.Close()
	}
}

func (s *LiveSource) drain(ctx context.Context, conn *websocket.Conn, out chan<- book.Update) {
	for {
		if ctx.Err() != nil {
			return
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			observ.Log("feed_disconnected", map[string]any{"error": err.Error()})
			return
		}
		var w wireUpdate
		if err := json.Unmarshal(raw, &w); err != nil {
			observ.Log("feed_decode_error", map[string]any{"error": err.Error()})
			continue
		}
		side := domain.SideUp
		if w.Side == string(domain.SideDown) {
			side = domain.SideDown
		}
		select {
		case out <- book.Update{Side: side, Bid: w.Bid, Ask: w.Ask, ServerTimestamp: w.ServerTimestamp}:
		case <-ctx.Done():
			return
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func nextDelay(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		return max
	}
	return next
}
