package types

import (
	"time"

	"github.com/google/uuid"
)

// TimeRange is the inclusive timestamp range covered by a compression pass.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// CoveredMessages identifies the contiguous message range a record replaces.
type CoveredMessages struct {
	Count   int    `json:"count"`
	StartID string `json:"start_id"`
	EndID   string `json:"end_id"`
}

// CompressionMetadata carries provenance and sizing data for one record.
type CompressionMetadata struct {
	Method                  string        `json:"method"`
	PromptVersion           string        `json:"prompt_version"`
	ProcessingTime          time.Duration `json:"processing_time_ms"`
	OriginalEstimatedTokens int           `json:"original_estimated_tokens"`
	SummaryEstimatedTokens  int           `json:"summary_estimated_tokens"`
	CompressionRatio        float64       `json:"compression_ratio"`
}

// CompressionRecord is the durable result of one compression pass.
// Records are created exactly once, never edited or removed; ordering
// within a scope is creation order.
type CompressionRecord struct {
	ID              string              `json:"id"`
	CreatedAt       time.Time           `json:"created_at"`
	TimeRange       TimeRange           `json:"time_range"`
	CoveredMessages CoveredMessages     `json:"original_messages"`
	SummaryText     string              `json:"summary_content"`
	Metadata        CompressionMetadata `json:"compression_metadata"`
}

// NewCompressionRecord creates a record with a fresh ID and creation
// time, covering the given contiguous message range.
func NewCompressionRecord(messages []ChatMessage, summaryText string, metadata CompressionMetadata) CompressionRecord {
	rec := CompressionRecord{
		ID:          "summary_" + uuid.NewString(),
		CreatedAt:   time.Now(),
		SummaryText: summaryText,
		Metadata:    metadata,
	}
	if len(messages) > 0 {
		first, last := messages[0], messages[len(messages)-1]
		rec.TimeRange = TimeRange{Start: first.Timestamp, End: last.Timestamp}
		rec.CoveredMessages = CoveredMessages{
			Count:   len(messages),
			StartID: first.ID,
			EndID:   last.ID,
		}
	}
	return rec
}

// TokensSaved returns the estimated token reduction of this record.
func (r CompressionRecord) TokensSaved() int {
	return r.Metadata.OriginalEstimatedTokens - r.Metadata.SummaryEstimatedTokens
}

// CompressionStats are process-lifetime counters for the compression
// engine. They are mutated only by the engine itself; callers receive
// value snapshots.
type CompressionStats struct {
	TotalCompressions       int     `json:"total_compressions"`
	TotalTokensSaved        int     `json:"total_tokens_saved"`
	AverageCompressionRatio float64 `json:"average_compression_ratio"`
	IsCompressing           bool    `json:"is_compressing"`
}
