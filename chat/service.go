package chat

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JasonDeee/Project-L.I.F.E/compression"
	"github.com/JasonDeee/Project-L.I.F.E/internal/metrics"
	"github.com/JasonDeee/Project-L.I.F.E/llm"
	"github.com/JasonDeee/Project-L.I.F.E/persistence"
	"github.com/JasonDeee/Project-L.I.F.E/types"
)

// Config holds the turn service settings.
type Config struct {
	// AssistantName is recorded on every assistant message.
	AssistantName string `yaml:"assistant_name" env:"ASSISTANT_NAME"`

	// Model is passed to the provider; empty routes to the backend's
	// currently loaded model.
	Model string `yaml:"model" env:"MODEL"`

	// Temperature for conversational turns.
	Temperature float32 `yaml:"temperature" env:"TEMPERATURE"`

	// MaxTokens caps each reply; zero leaves it to the backend.
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`

	// TaskManagerEnabled toggles the task manager prompt block.
	TaskManagerEnabled bool `yaml:"task_manager_enabled" env:"TASK_MANAGER_ENABLED"`
}

// DefaultConfig returns the default turn service settings.
func DefaultConfig() Config {
	return Config{
		AssistantName: "WENDY",
		Temperature:   0.7,
	}
}

// TurnResult is the outcome of one completed user turn.
type TurnResult struct {
	Scope       string            `json:"scope"`
	UserMessage types.ChatMessage `json:"user_message"`
	Reply       types.ChatMessage `json:"reply"`
	Fallback    bool              `json:"fallback,omitempty"`
	Metadata    ChainMetadata     `json:"metadata"`
}

// CompressionStatus is the status endpoint's payload.
type CompressionStatus struct {
	Scope         string                   `json:"scope"`
	InProgress    bool                     `json:"in_progress"`
	Decision      compression.Decision     `json:"decision"`
	EngineStats   types.CompressionStats   `json:"engine_stats"`
	ScopeSummary  persistence.SummaryStats `json:"scope_summary"`
	MessagesTotal int                      `json:"messages_total"`
}

// Service drives a full user turn: persist the user message, build the
// context chain, call the model, persist the reply, and schedule a
// background compression check.
type Service struct {
	cfg       Config
	provider  llm.Provider
	builder   *ChainBuilder
	engine    *compression.Engine
	scheduler *compression.Scheduler
	messages  persistence.MessageStore
	summaries persistence.SummaryStore
	metrics   *metrics.Collector
	logger    *zap.Logger

	// now is swappable for tests that cross day boundaries.
	now func() time.Time
}

// NewService creates a turn service. metrics may be nil.
func NewService(cfg Config, provider llm.Provider, builder *ChainBuilder, engine *compression.Engine, scheduler *compression.Scheduler, messages persistence.MessageStore, summaries persistence.SummaryStore, collector *metrics.Collector, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.AssistantName == "" {
		cfg.AssistantName = "WENDY"
	}
	builder.SetTaskManagerEnabled(cfg.TaskManagerEnabled)
	return &Service{
		cfg:       cfg,
		provider:  provider,
		builder:   builder,
		engine:    engine,
		scheduler: scheduler,
		messages:  messages,
		summaries: summaries,
		metrics:   collector,
		logger:    logger,
		now:       time.Now,
	}
}

// Scope returns the scope key for the current moment.
func (s *Service) Scope() string {
	return persistence.DayScope(s.now())
}

// HandleUserTurn runs one synchronous turn and returns the reply.
func (s *Service) HandleUserTurn(ctx context.Context, userText string) (*TurnResult, error) {
	userText = strings.TrimSpace(userText)
	if userText == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "empty message")
	}

	start := s.now()
	scope := persistence.DayScope(start)

	// Chain first: it must not contain the new message twice.
	chain := s.builder.Build(ctx, scope, userText)

	userMsg := types.NewUserMessage(userText)
	if err := s.messages.Append(ctx, scope, userMsg); err != nil {
		s.recordTurn("error", start, chain.Fallback)
		return nil, types.NewError(types.ErrPersistenceFailed, "persist user message").WithCause(err)
	}

	resp, err := s.complete(ctx, chain.Messages)
	if err != nil {
		s.recordTurn("error", start, chain.Fallback)
		return nil, err
	}

	reply := types.NewAssistantMessage(strings.TrimSpace(resp.Content()), s.cfg.AssistantName)
	if err := s.messages.Append(ctx, scope, reply); err != nil {
		s.recordTurn("error", start, chain.Fallback)
		return nil, types.NewError(types.ErrPersistenceFailed, "persist assistant message").WithCause(err)
	}

	s.afterTurn(scope)
	s.recordTurn("success", start, chain.Fallback)

	return &TurnResult{
		Scope:       scope,
		UserMessage: userMsg,
		Reply:       reply,
		Fallback:    chain.Fallback,
		Metadata:    chain.Metadata,
	}, nil
}

// StreamUserTurn runs one turn with a streamed reply. The returned
// channel carries deltas; once it closes, the full reply has been
// persisted and compression scheduled.
func (s *Service) StreamUserTurn(ctx context.Context, userText string) (<-chan llm.StreamChunk, error) {
	userText = strings.TrimSpace(userText)
	if userText == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "empty message")
	}

	start := s.now()
	scope := persistence.DayScope(start)
	chain := s.builder.Build(ctx, scope, userText)

	userMsg := types.NewUserMessage(userText)
	if err := s.messages.Append(ctx, scope, userMsg); err != nil {
		return nil, types.NewError(types.ErrPersistenceFailed, "persist user message").WithCause(err)
	}

	upstream, err := s.provider.Stream(ctx, &llm.ChatRequest{
		Model:       s.cfg.Model,
		Messages:    chain.Messages,
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
	})
	if err != nil {
		s.recordTurn("error", start, chain.Fallback)
		return nil, err
	}

	out := make(chan llm.StreamChunk)
	go func() {
		defer close(out)
		var full strings.Builder
		failed := false
		for chunk := range upstream {
			if chunk.Err != nil {
				failed = true
			} else {
				full.WriteString(chunk.Delta)
			}
			select {
			case <-ctx.Done():
				return
			case out <- chunk:
			}
		}
		if failed {
			s.recordTurn("error", start, chain.Fallback)
			return
		}

		reply := types.NewAssistantMessage(strings.TrimSpace(full.String()), s.cfg.AssistantName)
		// The request context may be gone once the stream drains.
		persistCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.messages.Append(persistCtx, scope, reply); err != nil {
			s.logger.Error("persisting streamed reply failed",
				zap.String("scope", scope), zap.Error(err))
			s.recordTurn("error", start, chain.Fallback)
			return
		}
		s.afterTurn(scope)
		s.recordTurn("success", start, chain.Fallback)
	}()
	return out, nil
}

// GetCompressionStatus reports the current scope's compression state.
func (s *Service) GetCompressionStatus(ctx context.Context) (*CompressionStatus, error) {
	return s.GetCompressionStatusForScope(ctx, s.Scope())
}

// GetCompressionStatusForScope reports the given scope's compression
// state. Past days remain queryable after rollover.
func (s *Service) GetCompressionStatusForScope(ctx context.Context, scope string) (*CompressionStatus, error) {
	decision := s.engine.ShouldCompress(ctx, scope)
	if s.metrics != nil && decision.CurrentTokens > 0 {
		s.metrics.RecordContextTokens(decision.CurrentTokens)
	}

	scopeSummary, err := s.summaries.Stats(ctx, scope)
	if err != nil {
		return nil, types.NewError(types.ErrPersistenceFailed, "read summary stats").WithCause(err)
	}
	total, err := s.messages.Count(ctx, scope)
	if err != nil {
		return nil, types.NewError(types.ErrPersistenceFailed, "count messages").WithCause(err)
	}

	return &CompressionStatus{
		Scope:         scope,
		InProgress:    s.engine.InProgress(scope),
		Decision:      decision,
		EngineStats:   s.engine.Stats(),
		ScopeSummary:  scopeSummary,
		MessagesTotal: total,
	}, nil
}

// SetTaskManagerEnabled toggles the task manager prompt block at runtime.
func (s *Service) SetTaskManagerEnabled(enabled bool) {
	s.builder.SetTaskManagerEnabled(enabled)
}

// History returns the current scope's full message log, oldest first.
// Clients replay it after a reconnect.
func (s *Service) History(ctx context.Context) ([]types.ChatMessage, error) {
	msgs, err := s.messages.ReadAll(ctx, s.Scope())
	if err != nil {
		return nil, types.NewError(types.ErrPersistenceFailed, "read history").WithCause(err)
	}
	return msgs, nil
}

func (s *Service) complete(ctx context.Context, messages []llm.Message) (*llm.ChatResponse, error) {
	start := time.Now()
	resp, err := s.provider.Completion(ctx, &llm.ChatRequest{
		Model:       s.cfg.Model,
		Messages:    messages,
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
	})
	if s.metrics != nil {
		status := "success"
		var promptTokens, completionTokens int
		if err != nil {
			status = "error"
		} else {
			promptTokens = resp.Usage.PromptTokens
			completionTokens = resp.Usage.CompletionTokens
		}
		s.metrics.RecordLLMRequest(s.provider.Name(), s.cfg.Model, status, time.Since(start), promptTokens, completionTokens)
	}
	return resp, err
}

// afterTurn arms the background compression check for the scope.
func (s *Service) afterTurn(scope string) {
	if s.scheduler != nil {
		s.scheduler.Schedule(scope)
	}
}

func (s *Service) recordTurn(status string, start time.Time, fallback bool) {
	if s.metrics != nil {
		s.metrics.RecordTurn(status, time.Since(start), fallback)
	}
}
