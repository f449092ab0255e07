package persistence

import (
	"context"

	"github.com/JasonDeee/Project-L.I.F.E/types"
)

// ActiveWindow returns the scope's messages not yet covered by a
// compression record: everything after the latest record's end, or the
// whole log when the scope has none. Compressed messages stay in the
// log but never re-enter prompt construction through this window.
func ActiveWindow(ctx context.Context, messages MessageStore, summaries SummaryStore, scope string) ([]types.ChatMessage, error) {
	msgs, err := messages.ReadAll(ctx, scope)
	if err != nil {
		return nil, err
	}
	latest, err := summaries.Latest(ctx, scope)
	if err == ErrNotFound {
		return msgs, nil
	}
	if err != nil {
		return nil, err
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].ID == latest.CoveredMessages.EndID {
			return msgs[i+1:], nil
		}
	}
	// The record's end is not in the log (log rewritten externally);
	// treat the whole log as active.
	return msgs, nil
}
