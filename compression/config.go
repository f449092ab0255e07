package compression

import "time"

// Config holds the compression tunables. Defaults are calibrated for
// a 12k-context local model.
type Config struct {
	// TokenFloor is the target size after compression (~25% of context).
	TokenFloor int `yaml:"token_floor" env:"TOKEN_FLOOR"`

	// TokenCeiling triggers compression when strictly exceeded
	// (~65% of a 12k context).
	TokenCeiling int `yaml:"token_ceiling" env:"TOKEN_CEILING"`

	// KeepRecentMessages is the number of newest messages never compressed.
	KeepRecentMessages int `yaml:"keep_recent_messages" env:"KEEP_RECENT_MESSAGES"`

	// Delay is the debounce between a completed turn and the
	// background compression check.
	Delay time.Duration `yaml:"delay" env:"DELAY"`

	// Enabled toggles background compression scheduling.
	Enabled bool `yaml:"enabled" env:"ENABLED"`

	// PromptVersion is recorded in each compression record's metadata.
	PromptVersion string `yaml:"prompt_version" env:"PROMPT_VERSION"`

	// SummaryTemperature keeps summaries consistent run to run.
	SummaryTemperature float32 `yaml:"summary_temperature" env:"SUMMARY_TEMPERATURE"`

	// SummaryMaxTokens caps the summary length.
	SummaryMaxTokens int `yaml:"summary_max_tokens" env:"SUMMARY_MAX_TOKENS"`

	// ContextLength is the model's context window, used for usage reporting.
	ContextLength int `yaml:"context_length" env:"CONTEXT_LENGTH"`
}

// DefaultConfig returns the default compression configuration.
func DefaultConfig() Config {
	return Config{
		TokenFloor:         3000,
		TokenCeiling:       7800,
		KeepRecentMessages: 8,
		Delay:              2 * time.Second,
		Enabled:            true,
		PromptVersion:      "1.0",
		SummaryTemperature: 0.3,
		SummaryMaxTokens:   1000,
		ContextLength:      12288,
	}
}
