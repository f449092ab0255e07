package tokenizer

import (
	"math"
	"unicode/utf8"
)

// DefaultCharsPerToken matches the historical in-browser estimate the
// service calibrated its thresholds against.
const DefaultCharsPerToken = 3.2

// Estimator is a character-count-based token estimator. It never
// fails, which makes it the terminal fallback of a counting chain.
type Estimator struct {
	maxTokens     int
	charsPerToken float64
}

// NewEstimator creates a generic estimator with the given context length.
func NewEstimator(maxTokens int) *Estimator {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Estimator{
		maxTokens:     maxTokens,
		charsPerToken: DefaultCharsPerToken,
	}
}

// WithCharsPerToken overrides the default chars-per-token ratio.
func (e *Estimator) WithCharsPerToken(ratio float64) *Estimator {
	if ratio > 0 {
		e.charsPerToken = ratio
	}
	return e
}

func (e *Estimator) CountTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	chars := utf8.RuneCountInString(text)
	return int(math.Ceil(float64(chars) / e.charsPerToken)), nil
}

func (e *Estimator) CountMessages(messages []Message) (int, error) {
	total := 0
	for _, msg := range messages {
		tokens, err := e.CountTokens(msg.Content)
		if err != nil {
			return 0, err
		}
		// Each message has ~4 tokens of overhead (role markers, separators).
		total += tokens + 4
	}
	total += 3 // conversation-end overhead
	return total, nil
}

func (e *Estimator) MaxTokens() int {
	return e.maxTokens
}

func (e *Estimator) Name() string {
	return "estimator"
}
