package types

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChatMessage(t *testing.T) {
	t.Parallel()

	msg := NewChatMessage(RoleUser, "hello")
	assert.NotEmpty(t, msg.ID)
	assert.Contains(t, msg.ID, "msg_")
	assert.Equal(t, RoleUser, msg.Role)
	assert.Equal(t, "hello", msg.Content)
	assert.WithinDuration(t, time.Now(), msg.Timestamp, time.Second)
}

func TestMessageSender(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "User", NewUserMessage("hi").Sender())
	assert.Equal(t, "WENDY", NewAssistantMessage("hey", "WENDY").Sender())
	assert.Equal(t, "Assistant", NewAssistantMessage("hey", "").Sender())
	assert.Equal(t, "System", NewSystemMessage("rules").Sender())
}

func TestMessageWithMetadata(t *testing.T) {
	t.Parallel()

	msg := NewUserMessage("hi").WithMetadata("turn", 3)
	require.NotNil(t, msg.Metadata)
	assert.Equal(t, 3, msg.Metadata["turn"])
}

func TestNewCompressionRecord(t *testing.T) {
	t.Parallel()

	msgs := []ChatMessage{
		NewUserMessage("one"),
		NewAssistantMessage("two", "WENDY"),
	}
	rec := NewCompressionRecord(msgs, "a summary", CompressionMetadata{
		Method:                  "llm",
		PromptVersion:           "1.0",
		OriginalEstimatedTokens: 100,
		SummaryEstimatedTokens:  20,
		CompressionRatio:        0.2,
	})

	assert.Contains(t, rec.ID, "summary_")
	assert.Equal(t, 2, rec.CoveredMessages.Count)
	assert.Equal(t, msgs[0].ID, rec.CoveredMessages.StartID)
	assert.Equal(t, msgs[1].ID, rec.CoveredMessages.EndID)
	assert.Equal(t, msgs[0].Timestamp, rec.TimeRange.Start)
	assert.Equal(t, msgs[1].Timestamp, rec.TimeRange.End)
	assert.Equal(t, "a summary", rec.SummaryText)
	assert.Equal(t, 80, rec.TokensSaved())
}

func TestErrorFormatting(t *testing.T) {
	t.Parallel()

	err := NewError(ErrCompressionFailed, "summarization call failed")
	assert.Equal(t, "[COMPRESSION_FAILED] summarization call failed", err.Error())

	cause := errors.New("connection refused")
	err = err.WithCause(cause)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestErrorHelpers(t *testing.T) {
	t.Parallel()

	err := NewError(ErrUpstreamTimeout, "timed out").WithRetryable(true).WithHTTPStatus(504)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, ErrUpstreamTimeout, GetErrorCode(err))
	assert.Equal(t, 504, err.HTTPStatus)

	plain := errors.New("plain")
	assert.False(t, IsRetryable(plain))
	assert.Equal(t, ErrorCode(""), GetErrorCode(plain))
}
