// Package tokenizer provides token counting for prompt budgeting.
//
// The tiktoken-backed implementation gives exact counts for models
// with a known encoding; the estimator gives a chars-per-token
// approximation for everything else. Fallback chains the two so
// counting degrades instead of failing.
package tokenizer
