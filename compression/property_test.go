package compression

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/JasonDeee/Project-L.I.F.E/persistence"
	"github.com/JasonDeee/Project-L.I.F.E/testutil/mocks"
	"github.com/JasonDeee/Project-L.I.F.E/types"
)

// Compressed ranges and the surviving tail must partition the message
// log: every message is covered by exactly one record or still active,
// and repeated passes never re-cover a compressed message.
func TestCompressionPartitionsLog(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		keep := rapid.IntRange(1, 10).Draw(t, "keep")
		first := rapid.IntRange(keep+1, 40).Draw(t, "first_batch")
		second := rapid.IntRange(keep+1, 20).Draw(t, "second_batch")

		ctx := context.Background()
		cfg := DefaultConfig()
		cfg.KeepRecentMessages = keep

		provider := mocks.NewMockProvider().WithResponse("summary of the batch")
		tk := mocks.NewMockTokenizer(9001)
		messages := persistence.NewMemoryMessageStore()
		summaries := persistence.NewMemorySummaryStore()
		defer messages.Close()
		defer summaries.Close()
		engine := NewEngine(cfg, provider, tk, messages, summaries, nil, nil)

		all := make([]types.ChatMessage, 0, first+second)
		appendBatch := func(n int) {
			for i := 0; i < n; i++ {
				msg := types.NewUserMessage(fmt.Sprintf("message %d", len(all)))
				require.NoError(t, messages.Append(ctx, testScope, msg))
				all = append(all, msg)
			}
		}

		appendBatch(first)
		res1, err := engine.CompressHistory(ctx, testScope)
		require.NoError(t, err)
		require.True(t, res1.Success)
		require.Equal(t, first-keep, res1.Record.CoveredMessages.Count)

		appendBatch(second)
		res2, err := engine.CompressHistory(ctx, testScope)
		require.NoError(t, err)
		require.True(t, res2.Success)

		recs, err := summaries.ReadAll(ctx, testScope)
		require.NoError(t, err)
		require.Len(t, recs, 2)

		// Covered ranges are contiguous, ordered, and disjoint.
		covered := make([]string, 0, len(all))
		for _, rec := range recs {
			startIdx := indexOfMessage(t, all, rec.CoveredMessages.StartID)
			endIdx := indexOfMessage(t, all, rec.CoveredMessages.EndID)
			require.Equal(t, rec.CoveredMessages.Count, endIdx-startIdx+1)
			for i := startIdx; i <= endIdx; i++ {
				covered = append(covered, all[i].ID)
			}
		}
		seen := make(map[string]bool, len(covered))
		for _, id := range covered {
			require.False(t, seen[id], "message compressed twice: %s", id)
			seen[id] = true
		}

		// Tail plus covered equals the full log.
		window, err := persistence.ActiveWindow(ctx, messages, summaries, testScope)
		require.NoError(t, err)
		require.Len(t, window, keep)
		require.Equal(t, len(all), len(covered)+len(window))
		for _, msg := range window {
			require.False(t, seen[msg.ID], "tail message also covered: %s", msg.ID)
		}
		for i, msg := range window {
			require.Equal(t, all[len(all)-keep+i].ID, msg.ID)
		}
	})
}

// The recorded ratio comes from the real token counts and is never
// clamped into an artificial range.
func TestCompressionRatioFromRealCounts(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		keep := rapid.IntRange(1, 8).Draw(t, "keep")
		n := rapid.IntRange(keep+1, 30).Draw(t, "messages")
		count := rapid.IntRange(1, 20000).Draw(t, "token_count")

		ctx := context.Background()
		cfg := DefaultConfig()
		cfg.KeepRecentMessages = keep

		provider := mocks.NewMockProvider().WithResponse("condensed")
		tk := mocks.NewMockTokenizer(count)
		messages := persistence.NewMemoryMessageStore()
		summaries := persistence.NewMemorySummaryStore()
		defer messages.Close()
		defer summaries.Close()
		engine := NewEngine(cfg, provider, tk, messages, summaries, nil, nil)

		for i := 0; i < n; i++ {
			require.NoError(t, messages.Append(ctx, testScope, types.NewUserMessage(fmt.Sprintf("msg %d", i))))
		}

		res, err := engine.CompressHistory(ctx, testScope)
		require.NoError(t, err)
		require.True(t, res.Success)

		meta := res.Record.Metadata
		require.Greater(t, meta.CompressionRatio, 0.0)
		require.Equal(t, count, meta.OriginalEstimatedTokens)
		require.Equal(t, count, meta.SummaryEstimatedTokens)
		require.InDelta(t, float64(meta.SummaryEstimatedTokens)/float64(meta.OriginalEstimatedTokens), meta.CompressionRatio, 1e-9)
	})
}

func indexOfMessage(t *rapid.T, msgs []types.ChatMessage, id string) int {
	for i, m := range msgs {
		if m.ID == id {
			return i
		}
	}
	t.Fatalf("message %s not found in log", id)
	return -1
}
