package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/brindlecap/option15/internal/domain"
	"github.com/brindlecap/option15/internal/observ"
)

// tick is the venue's minimum price increment, used to evaluate the
// "price worse than ask_at_decision + 2 ticks" DEGRADED rule.
var tick = decimal.NewFromFloat(0.01)

type orderRequest struct {
	Side       string `json:"side"`
	PriceLimit string `json:"price_limit"`
	Size       string `json:"size"`
}

type orderResponse struct {
	Status     string `json:"status"`
	AvgPrice   string `json:"avg_price"`
	FilledSize string `json:"filled_size"`
}

// LiveAdapter places orders against the venue's order placement socket
// and classifies the result per spec.md §4.E's DEGRADED rule.
type LiveAdapter struct {
	conn    *websocket.Conn
	timeout time.Duration
}

// NewLiveAdapter dials the venue's order placement endpoint.
func NewLiveAdapter(ctx context.Context, url string, timeout time.Duration) (*LiveAdapter, error) {
	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial order placement endpoint: %w", err)
	}
	return &LiveAdapter{conn: conn, timeout: timeout}, nil
}

// Close releases the underlying socket.
func (a *LiveAdapter) Close() error {
	return a.conn.Close()
}

// SubmitBuy sends one order and classifies the venue's response,
// demoting an otherwise-FILLED report to DEGRADED when the fill was
// partial, the price moved more than two ticks against the order, or
// the round trip took longer than one second.
func (a *LiveAdapter) SubmitBuy(ctx context.Context, side domain.Side, priceLimit, size decimal.Decimal) (FillReport, error) {
	req := orderRequest{
		Side:       string(side),
		PriceLimit: priceLimit.String(),
		Size:       size.String(),
	}
	body, err := json.Marshal(req)
	if err != nil {
		return FillReport{}, fmt.Errorf("marshal order request: %w", err)
	}

	deadline := time.Now().Add(a.timeout)
	_ = a.conn.SetWriteDeadline(deadline)
	_ = a.conn.SetReadDeadline(deadline)

	submitted := time.Now()
	if err := a.conn.WriteMessage(websocket.TextMessage, body); err != nil {
		return FillReport{}, fmt.Errorf("submit order: %w", err)
	}

	_, raw, err := a.conn.ReadMessage()
	if err != nil {
		return FillReport{}, fmt.Errorf("read order response: %w", err)
	}
	latency := time.Since(submitted)

	var resp orderResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return FillReport{}, fmt.Errorf("decode order response: %w", err)
	}

	avgPrice, err := decimal.NewFromString(resp.AvgPrice)
	if err != nil {
		return FillReport{}, fmt.Errorf("parse avg_price: %w", err)
	}
	filled, err := decimal.NewFromString(resp.FilledSize)
	if err != nil {
		return FillReport{}, fmt.Errorf("parse filled_size: %w", err)
	}

	status := domain.FillStatus(resp.Status)
	degraded := false
	switch {
	case status == domain.FillCancelled:
		// not a fill at all; leave status as reported
	case filled.LessThan(size):
		degraded = true
	case avgPrice.GreaterThan(priceLimit.Add(tick.Mul(decimal.NewFromInt(2)))):
		degraded = true
	case latency > time.Second:
		degraded = true
	}
	if degraded && status != domain.FillCancelled {
		status = domain.FillDegraded
	}

	observ.Observe("execution_latency_ms", float64(latency.Milliseconds()), map[string]string{"side": string(side)})

	return FillReport{
		Status:     status,
		AvgPrice:   avgPrice,
		FilledSize: filled,
		LatencyMs:  latency.Milliseconds(),
	}, nil
}
