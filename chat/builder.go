// Package chat implements the conversation service: the context chain
// builder that assembles each LLM request and the turn service that
// drives a full user turn end to end.
package chat

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/JasonDeee/Project-L.I.F.E/llm"
	"github.com/JasonDeee/Project-L.I.F.E/persistence"
	"github.com/JasonDeee/Project-L.I.F.E/prompt"
	"github.com/JasonDeee/Project-L.I.F.E/types"
)

// ChainMetadata describes the assembled context chain.
type ChainMetadata struct {
	SystemPromptLength   int  `json:"system_prompt_length"`
	SummaryContentLength int  `json:"summary_content_length"`
	RecentMessages       int  `json:"recent_messages"`
	TotalMessages        int  `json:"total_messages"`
	HasSummary           bool `json:"has_summary"`
}

// ChainResult is the outcome of building a context chain. Messages is
// always usable: when assembly hits an error the builder degrades to
// the fallback chain (core persona, recent history, new message) and
// records the error instead of failing the turn.
type ChainResult struct {
	Success  bool          `json:"success"`
	Fallback bool          `json:"fallback,omitempty"`
	Messages []llm.Message `json:"messages"`
	Metadata ChainMetadata `json:"metadata"`
	Err      error         `json:"-"`
}

// ChainBuilder assembles the prompt chain for each turn: core persona,
// optional task manager block, folded summary context, recent
// messages, then the new user message.
type ChainBuilder struct {
	messages    persistence.MessageStore
	summaries   persistence.SummaryStore
	keepRecent  int
	taskManager atomic.Bool
	logger      *zap.Logger
}

// NewChainBuilder creates a builder keeping keepRecent messages of raw
// history in each chain.
func NewChainBuilder(messages persistence.MessageStore, summaries persistence.SummaryStore, keepRecent int, logger *zap.Logger) *ChainBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if keepRecent <= 0 {
		keepRecent = 8
	}
	return &ChainBuilder{
		messages:   messages,
		summaries:  summaries,
		keepRecent: keepRecent,
		logger:     logger,
	}
}

// SetTaskManagerEnabled toggles the task manager block in system prompts.
func (b *ChainBuilder) SetTaskManagerEnabled(enabled bool) {
	b.taskManager.Store(enabled)
}

// TaskManagerEnabled reports the current toggle.
func (b *ChainBuilder) TaskManagerEnabled() bool {
	return b.taskManager.Load()
}

// Build assembles the full chain for a new user message. It never
// returns an unusable result: store failures degrade to Fallback.
func (b *ChainBuilder) Build(ctx context.Context, scope, userMessage string) *ChainResult {
	window, err := persistence.ActiveWindow(ctx, b.messages, b.summaries, scope)
	if err != nil {
		return b.fallback(ctx, scope, userMessage, err)
	}
	recent := window
	if len(recent) > b.keepRecent {
		recent = recent[len(recent)-b.keepRecent:]
	}

	summaryContent, err := b.summaries.BuildContext(ctx, scope)
	if err != nil {
		return b.fallback(ctx, scope, userMessage, err)
	}

	systemPrompt := prompt.BuildSystemPrompt(summaryContent, b.taskManager.Load())
	messages := assembleChain(systemPrompt, recent, userMessage)

	return &ChainResult{
		Success:  true,
		Messages: messages,
		Metadata: ChainMetadata{
			SystemPromptLength:   len(systemPrompt),
			SummaryContentLength: len(summaryContent),
			RecentMessages:       len(recent),
			TotalMessages:        len(messages),
			HasSummary:           len(summaryContent) > 0,
		},
	}
}

// fallback builds the degraded chain: core persona plus whatever
// recent history is still readable, plus the new message.
func (b *ChainBuilder) fallback(ctx context.Context, scope, userMessage string, cause error) *ChainResult {
	b.logger.Warn("context chain degraded to fallback",
		zap.String("scope", scope), zap.Error(cause))

	recent, err := b.messages.ReadRecent(ctx, scope, b.keepRecent)
	if err != nil {
		// Even raw history is unreadable; persona and message alone.
		recent = nil
	}

	systemPrompt := prompt.BuildSystemPrompt("", false)
	messages := assembleChain(systemPrompt, recent, userMessage)

	return &ChainResult{
		Fallback: true,
		Messages: messages,
		Err:      cause,
		Metadata: ChainMetadata{
			SystemPromptLength: len(systemPrompt),
			RecentMessages:     len(recent),
			TotalMessages:      len(messages),
		},
	}
}

// BuildSummarizationContext builds the bare two-message chain used for
// summarization calls. No summary context: a summarization request
// must not recurse into previous summaries.
func (b *ChainBuilder) BuildSummarizationContext(userMessage string) []llm.Message {
	return []llm.Message{
		{Role: types.RoleSystem, Content: prompt.BuildSystemPrompt("", false)},
		{Role: types.RoleUser, Content: userMessage},
	}
}

func assembleChain(systemPrompt string, recent []types.ChatMessage, userMessage string) []llm.Message {
	messages := make([]llm.Message, 0, len(recent)+2)
	messages = append(messages, llm.Message{Role: types.RoleSystem, Content: systemPrompt})
	for _, msg := range recent {
		role := types.RoleAssistant
		if msg.Role == types.RoleUser {
			role = types.RoleUser
		}
		messages = append(messages, llm.Message{Role: role, Content: msg.Content})
	}
	return append(messages, llm.Message{Role: types.RoleUser, Content: userMessage})
}
