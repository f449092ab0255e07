// Package compression implements threshold-triggered summarization of
// conversation history: when a scope's active window exceeds the token
// ceiling, everything but the newest messages is folded into a durable
// compression record.
package compression

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JasonDeee/Project-L.I.F.E/internal/metrics"
	"github.com/JasonDeee/Project-L.I.F.E/llm"
	"github.com/JasonDeee/Project-L.I.F.E/llm/tokenizer"
	"github.com/JasonDeee/Project-L.I.F.E/persistence"
	"github.com/JasonDeee/Project-L.I.F.E/prompt"
	"github.com/JasonDeee/Project-L.I.F.E/types"
)

// Decision reasons reported by ShouldCompress and CompressHistory.
const (
	ReasonTokenAnalysisFailed  = "token_analysis_failed"
	ReasonWithinLimits         = "within_limits"
	ReasonCeilingExceeded      = "token_ceiling_exceeded"
	ReasonInsufficientMessages = "insufficient_messages"
	ReasonInProgress           = "compression_in_progress"
	ReasonError                = "compression_error"
)

// compressionMethod is recorded in each record's metadata.
const compressionMethod = "wendy_summarization"

// Decision is the outcome of a compression check.
type Decision struct {
	ShouldCompress   bool    `json:"should_compress"`
	Reason           string  `json:"reason"`
	CurrentTokens    int     `json:"current_tokens,omitempty"`
	TargetTokens     int     `json:"target_tokens,omitempty"`
	EstimatedSavings int     `json:"estimated_savings,omitempty"`
	UsagePercent     float64 `json:"usage_percent,omitempty"`
}

// Result is the outcome of a compression pass. Success false with a
// nil error means the pass was skipped (lock held, nothing to do);
// a non-nil error means the pass was attempted and failed.
type Result struct {
	Success      bool                     `json:"success"`
	Reason       string                   `json:"reason,omitempty"`
	Record       *types.CompressionRecord `json:"record,omitempty"`
	KeptMessages []types.ChatMessage      `json:"-"`
}

// Engine runs compression for conversation scopes.
type Engine struct {
	cfg       Config
	provider  llm.Provider
	tokenizer tokenizer.Tokenizer
	messages  persistence.MessageStore
	summaries persistence.SummaryStore
	locks     *lockTable
	metrics   *metrics.Collector
	logger    *zap.Logger

	statsMu sync.Mutex
	stats   types.CompressionStats
}

// NewEngine creates a compression engine. collector may be nil.
func NewEngine(cfg Config, provider llm.Provider, tk tokenizer.Tokenizer, messages persistence.MessageStore, summaries persistence.SummaryStore, collector *metrics.Collector, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:       cfg,
		provider:  provider,
		tokenizer: tk,
		messages:  messages,
		summaries: summaries,
		locks:     newLockTable(),
		metrics:   collector,
		logger:    logger,
	}
}

// activeWindow is the engine's view of the uncompressed tail of a scope.
func (e *Engine) activeWindow(ctx context.Context, scope string) ([]types.ChatMessage, error) {
	return persistence.ActiveWindow(ctx, e.messages, e.summaries, scope)
}

// ShouldCompress checks whether the scope's active window exceeds the
// token ceiling. A failed token count never triggers compression.
func (e *Engine) ShouldCompress(ctx context.Context, scope string) Decision {
	window, err := e.activeWindow(ctx, scope)
	if err != nil {
		e.logger.Warn("compression check: reading history failed",
			zap.String("scope", scope), zap.Error(err))
		return Decision{Reason: ReasonTokenAnalysisFailed}
	}

	tokens, err := e.tokenizer.CountMessages(toTokenizerMessages(window))
	if err != nil {
		e.logger.Warn("compression check: token count failed",
			zap.String("scope", scope), zap.Error(err))
		return Decision{Reason: ReasonTokenAnalysisFailed}
	}

	usage := float64(tokens) / float64(e.cfg.ContextLength) * 100

	// The ceiling is a strict bound: tokens == ceiling stays put.
	if tokens > e.cfg.TokenCeiling {
		return Decision{
			ShouldCompress:   true,
			Reason:           ReasonCeilingExceeded,
			CurrentTokens:    tokens,
			TargetTokens:     e.cfg.TokenFloor,
			EstimatedSavings: tokens - e.cfg.TokenFloor,
			UsagePercent:     usage,
		}
	}
	return Decision{
		Reason:        ReasonWithinLimits,
		CurrentTokens: tokens,
		UsagePercent:  usage,
	}
}

// CompressHistory summarizes the scope's active window, keeping the
// newest KeepRecentMessages intact. At most one pass runs per scope.
func (e *Engine) CompressHistory(ctx context.Context, scope string) (*Result, error) {
	start := time.Now()
	ctx, span := otel.Tracer("life/compression").Start(ctx, "compression.pass",
		trace.WithAttributes(attribute.String("scope", scope)))
	defer span.End()

	if !e.locks.TryLock(scope) {
		e.observePass(span, "skipped", start, 0, 0)
		return &Result{Reason: ReasonInProgress}, nil
	}
	defer e.locks.Unlock(scope)

	window, err := e.activeWindow(ctx, scope)
	if err != nil {
		e.observePass(span, "error", start, 0, 0)
		return &Result{Reason: ReasonError},
			types.NewError(types.ErrPersistenceFailed, "read history").WithCause(err)
	}
	if len(window) <= e.cfg.KeepRecentMessages {
		e.observePass(span, "skipped", start, 0, 0)
		return &Result{Reason: ReasonInsufficientMessages}, nil
	}

	toCompress := window[:len(window)-e.cfg.KeepRecentMessages]
	kept := window[len(window)-e.cfg.KeepRecentMessages:]

	e.logger.Info("starting compression",
		zap.String("scope", scope),
		zap.Int("to_compress", len(toCompress)),
		zap.Int("to_keep", len(kept)))

	transcript := prompt.FormatTranscript(toCompress)
	req := &llm.ChatRequest{
		Messages: []llm.Message{
			{Role: types.RoleSystem, Content: prompt.BuildSystemPrompt("", false)},
			{Role: types.RoleUser, Content: prompt.RenderSummarization(transcript)},
		},
		Temperature: e.cfg.SummaryTemperature,
		MaxTokens:   e.cfg.SummaryMaxTokens,
	}

	resp, err := e.provider.Completion(ctx, req)
	if err != nil {
		e.observePass(span, "error", start, 0, 0)
		return &Result{Reason: ReasonError},
			types.NewError(types.ErrCompressionFailed, "summarization call failed").WithCause(err)
	}
	summary := strings.TrimSpace(resp.Content())
	if summary == "" {
		e.observePass(span, "error", start, 0, 0)
		return &Result{Reason: ReasonError},
			types.NewError(types.ErrCompressionFailed, "summarization returned empty text")
	}

	originalTokens := e.countText(transcript)
	summaryTokens := e.countText(summary)
	ratio := 0.0
	if originalTokens > 0 {
		ratio = float64(summaryTokens) / float64(originalTokens)
	}

	rec := types.NewCompressionRecord(toCompress, summary, types.CompressionMetadata{
		Method:                  compressionMethod,
		PromptVersion:           e.cfg.PromptVersion,
		ProcessingTime:          time.Since(start),
		OriginalEstimatedTokens: originalTokens,
		SummaryEstimatedTokens:  summaryTokens,
		CompressionRatio:        ratio,
	})

	if err := e.summaries.Append(ctx, scope, rec); err != nil {
		e.observePass(span, "error", start, 0, 0)
		return &Result{Reason: ReasonError},
			types.NewError(types.ErrPersistenceFailed, "persist compression record").WithCause(err)
	}

	e.recordStats(originalTokens-summaryTokens, ratio)
	e.observePass(span, "success", start, originalTokens-summaryTokens, ratio)
	span.SetAttributes(
		attribute.Int("compression.covered_messages", len(toCompress)),
		attribute.Int("compression.tokens_saved", originalTokens-summaryTokens),
	)

	e.logger.Info("compression finished",
		zap.String("scope", scope),
		zap.String("record_id", rec.ID),
		zap.Int("original_tokens", originalTokens),
		zap.Int("summary_tokens", summaryTokens),
		zap.Float64("ratio", ratio),
		zap.Duration("took", time.Since(start)))

	return &Result{
		Success:      true,
		Reason:       ReasonCeilingExceeded,
		Record:       &rec,
		KeptMessages: kept,
	}, nil
}

// countText never fails: the tokenizer chain ends in an estimator.
func (e *Engine) countText(text string) int {
	n, err := e.tokenizer.CountTokens(text)
	if err != nil {
		return len(text) * 10 / 32 // chars / 3.2
	}
	return n
}

// observePass tags the span with the pass outcome and feeds the
// Prometheus compression family when a collector is wired.
func (e *Engine) observePass(span trace.Span, outcome string, start time.Time, tokensSaved int, ratio float64) {
	span.SetAttributes(attribute.String("compression.result", outcome))
	if e.metrics != nil {
		e.metrics.RecordCompression(outcome, time.Since(start), tokensSaved, ratio)
	}
}

// recordStats folds one pass into the running averages.
func (e *Engine) recordStats(tokensSaved int, ratio float64) {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	e.stats.TotalCompressions++
	e.stats.TotalTokensSaved += tokensSaved
	n := float64(e.stats.TotalCompressions)
	e.stats.AverageCompressionRatio = (e.stats.AverageCompressionRatio*(n-1) + ratio) / n
}

// Stats returns a snapshot of the engine's lifetime counters.
func (e *Engine) Stats() types.CompressionStats {
	e.statsMu.Lock()
	stats := e.stats
	e.statsMu.Unlock()
	stats.IsCompressing = e.locks.AnyInProgress()
	return stats
}

// InProgress reports whether the scope is being compressed right now.
func (e *Engine) InProgress(scope string) bool {
	return e.locks.InProgress(scope)
}

func toTokenizerMessages(msgs []types.ChatMessage) []tokenizer.Message {
	out := make([]tokenizer.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, tokenizer.Message{Role: string(m.Role), Content: m.Content})
	}
	return out
}
