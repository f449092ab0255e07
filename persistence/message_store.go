package persistence

import (
	"context"

	"github.com/JasonDeee/Project-L.I.F.E/types"
)

// MessageStore is the append-only conversation log. Messages are never
// updated or deleted; ReadAll returns them in append order.
type MessageStore interface {
	Store

	// Append persists one message at the end of the scope's log.
	Append(ctx context.Context, scope string, msg types.ChatMessage) error

	// ReadAll returns every message of the scope in append order.
	// A scope with no history yields an empty slice, not an error.
	ReadAll(ctx context.Context, scope string) ([]types.ChatMessage, error)

	// ReadRecent returns the last n messages of the scope in append
	// order. Fewer messages than n yields all of them.
	ReadRecent(ctx context.Context, scope string, n int) ([]types.ChatMessage, error)

	// Count returns the number of messages in the scope.
	Count(ctx context.Context, scope string) (int, error)
}

// lastN is the shared ReadRecent slicing rule.
func lastN(msgs []types.ChatMessage, n int) []types.ChatMessage {
	if n <= 0 {
		return []types.ChatMessage{}
	}
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
