package tokenizer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestEstimatorCountTokens(t *testing.T) {
	t.Parallel()

	est := NewEstimator(12288)

	n, err := est.CountTokens("")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// 32 chars / 3.2 chars-per-token = 10.
	n, err = est.CountTokens("abcdefghijklmnopqrstuvwxyz012345")
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	// Partial tokens round up.
	n, err = est.CountTokens("abc")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEstimatorCountMessages(t *testing.T) {
	t.Parallel()

	est := NewEstimator(0)
	total, err := est.CountMessages([]Message{
		{Role: "user", Content: "abcdefgh"}, // ceil(8/3.2)=3, +4 overhead
		{Role: "assistant", Content: ""},    // 0, +4 overhead
	})
	require.NoError(t, err)
	assert.Equal(t, 3+4+0+4+3, total)
}

func TestEstimatorMonotonic(t *testing.T) {
	t.Parallel()

	est := NewEstimator(0)
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.String().Draw(t, "a")
		b := rapid.String().Draw(t, "b")

		na, err := est.CountTokens(a)
		require.NoError(t, err)
		nab, err := est.CountTokens(a + b)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, nab, na, "appending text must not shrink the count")
	})
}

type failingTokenizer struct{}

func (failingTokenizer) CountTokens(string) (int, error)      { return 0, errors.New("boom") }
func (failingTokenizer) CountMessages([]Message) (int, error) { return 0, errors.New("boom") }
func (failingTokenizer) MaxTokens() int                       { return 12288 }
func (failingTokenizer) Name() string                         { return "failing" }

func TestFallbackUsesSecondaryOnError(t *testing.T) {
	t.Parallel()

	fb := NewFallback(failingTokenizer{}, NewEstimator(4096))

	n, err := fb.CountTokens("abcdefgh")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	total, err := fb.CountMessages([]Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	assert.Positive(t, total)

	// Identity reports the primary even while counting falls through.
	assert.Equal(t, "failing", fb.Name())
	assert.Equal(t, 12288, fb.MaxTokens())
}

func TestForModelUnknownModelGetsEstimator(t *testing.T) {
	t.Parallel()

	tk := ForModel("wendy-local-7b", 12288, 3.2)
	assert.Equal(t, "estimator", tk.Name())
	assert.Equal(t, 12288, tk.MaxTokens())
}

func TestForModelKnownModelGetsTiktoken(t *testing.T) {
	t.Parallel()

	tk := ForModel("gpt-4o", 0, 3.2)
	assert.Contains(t, tk.Name(), "tiktoken")
	assert.Equal(t, 128000, tk.MaxTokens())
}
