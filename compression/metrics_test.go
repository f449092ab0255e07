package compression

import (
	"context"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JasonDeee/Project-L.I.F.E/internal/metrics"
	"github.com/JasonDeee/Project-L.I.F.E/persistence"
	"github.com/JasonDeee/Project-L.I.F.E/testutil/mocks"
	"github.com/JasonDeee/Project-L.I.F.E/types"
)

// compressionsTotal reads <namespace>_compressions_total{result=...}
// from the process-global registry.
func compressionsTotal(t *testing.T, namespace, result string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() != namespace+"_compressions_total" {
			continue
		}
		for _, m := range fam.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "result" && label.GetValue() == result {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestCompressHistoryRecordsMetrics(t *testing.T) {
	// promauto registers in the global registry, so this test owns a
	// dedicated namespace instead of sharing the fixture's nil collector.
	const namespace = "compression_pass_test"
	collector := metrics.NewCollector(namespace, nil)

	ctx := context.Background()
	provider := mocks.NewMockProvider().WithResponse("summary for metrics")
	tk := mocks.NewMockTokenizer(9001)
	messages := persistence.NewMemoryMessageStore()
	summaries := persistence.NewMemorySummaryStore()
	t.Cleanup(func() {
		_ = messages.Close()
		_ = summaries.Close()
	})
	engine := NewEngine(DefaultConfig(), provider, tk, messages, summaries, collector, nil)

	for i := 0; i < 12; i++ {
		require.NoError(t, messages.Append(ctx, testScope, types.NewUserMessage(fmt.Sprintf("turn %d", i))))
	}

	res, err := engine.CompressHistory(ctx, testScope)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.InDelta(t, 1.0, compressionsTotal(t, namespace, "success"), 1e-9)
	assert.InDelta(t, 0.0, compressionsTotal(t, namespace, "skipped"), 1e-9)

	// The tail alone is not compressible; the second pass is skipped.
	res, err = engine.CompressHistory(ctx, testScope)
	require.NoError(t, err)
	require.False(t, res.Success)
	assert.Equal(t, ReasonInsufficientMessages, res.Reason)
	assert.InDelta(t, 1.0, compressionsTotal(t, namespace, "success"), 1e-9)
	assert.InDelta(t, 1.0, compressionsTotal(t, namespace, "skipped"), 1e-9)
}
