// Package feed implements the Market Data Source capability: the
// Orchestrator drains book updates from a channel without caring
// whether they came from a replay generator or a live venue socket.
package feed

import (
	"context"

	"github.com/brindlecap/option15/internal/book"
)

// Source is the capability interface core code links against.
type Source interface {
	// Start begins emitting updates onto the returned channel. The
	// channel is closed when ctx is cancelled or the source exits.
	Start(ctx context.Context) (<-chan book.Update, error)
}
