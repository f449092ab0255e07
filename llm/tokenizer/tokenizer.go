package tokenizer

// Tokenizer is the unified token-counting interface.
type Tokenizer interface {
	// CountTokens returns the token count of the given text.
	CountTokens(text string) (int, error)

	// CountMessages returns the total token count of a message list,
	// including per-message overhead (role markers, separators).
	CountMessages(messages []Message) (int, error)

	// MaxTokens returns the model's maximum context length.
	MaxTokens() int

	// Name returns the tokenizer's name.
	Name() string
}

// Message is a lightweight message struct used by the tokenizer
// package to avoid a cycle with the llm package.
type Message struct {
	Role    string
	Content string
}

// ForModel returns the best tokenizer for the given model: a
// tiktoken-backed counter with estimator fallback when the model's
// encoding is known, or a bare estimator otherwise. maxTokens
// overrides the model's default context length when positive.
func ForModel(model string, maxTokens int, charsPerToken float64) Tokenizer {
	est := NewEstimator(maxTokens).WithCharsPerToken(charsPerToken)
	tk, err := NewTiktoken(model, maxTokens)
	if err != nil {
		return est
	}
	return NewFallback(tk, est)
}
