package persistence

import (
	"context"
	"strings"

	"github.com/JasonDeee/Project-L.I.F.E/types"
)

// SummaryStore is the append-only log of compression records. Records
// are created once and never edited; order within a scope is creation
// order.
type SummaryStore interface {
	Store

	// Append persists one compression record for the scope.
	Append(ctx context.Context, scope string, rec types.CompressionRecord) error

	// ReadAll returns every record of the scope in creation order.
	ReadAll(ctx context.Context, scope string) ([]types.CompressionRecord, error)

	// Latest returns the most recent record of the scope, or
	// ErrNotFound when the scope has none.
	Latest(ctx context.Context, scope string) (types.CompressionRecord, error)

	// BuildContext folds the scope's summaries into one prompt
	// fragment, newest first. An empty scope yields "".
	BuildContext(ctx context.Context, scope string) (string, error)

	// Stats aggregates the scope's records.
	Stats(ctx context.Context, scope string) (SummaryStats, error)
}

// SummaryStats aggregates a scope's compression records.
type SummaryStats struct {
	Records          int     `json:"records"`
	OriginalMessages int     `json:"original_messages"`
	TokensSaved      int     `json:"tokens_saved"`
	AverageRatio     float64 `json:"average_ratio"`
	OldestCreatedISO string  `json:"oldest_created,omitempty"`
	LatestCreatedISO string  `json:"latest_created,omitempty"`
}

// foldSummaries joins summary texts newest-first with a single space.
// Newest first keeps the most recent ground truth at the front when a
// downstream prompt gets truncated.
func foldSummaries(records []types.CompressionRecord) string {
	if len(records) == 0 {
		return ""
	}
	parts := make([]string, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		parts = append(parts, records[i].SummaryText)
	}
	return strings.Join(parts, " ")
}

// summarizeRecords computes SummaryStats over records in creation order.
func summarizeRecords(records []types.CompressionRecord) SummaryStats {
	stats := SummaryStats{Records: len(records)}
	if len(records) == 0 {
		return stats
	}
	var ratioSum float64
	for _, rec := range records {
		stats.OriginalMessages += rec.CoveredMessages.Count
		stats.TokensSaved += rec.TokensSaved()
		ratioSum += rec.Metadata.CompressionRatio
	}
	stats.AverageRatio = ratioSum / float64(len(records))
	stats.OldestCreatedISO = records[0].CreatedAt.Format("2006-01-02T15:04:05Z07:00")
	stats.LatestCreatedISO = records[len(records)-1].CreatedAt.Format("2006-01-02T15:04:05Z07:00")
	return stats
}

// latestRecord is the shared Latest rule.
func latestRecord(records []types.CompressionRecord) (types.CompressionRecord, error) {
	if len(records) == 0 {
		return types.CompressionRecord{}, ErrNotFound
	}
	return records[len(records)-1], nil
}
