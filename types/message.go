package types

import (
	"time"

	"github.com/google/uuid"
)

// Role represents the role of a conversation participant.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage represents one logged conversation turn. Messages are
// immutable once appended to a MessageStore: compression never deletes
// them, it only removes them from future prompt construction.
type ChatMessage struct {
	ID            string         `json:"id"`
	Timestamp     time.Time      `json:"timestamp"`
	Role          Role           `json:"role"`
	Content       string         `json:"content"`
	AssistantName string         `json:"assistant,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// NewChatMessage creates a message with a fresh ID and timestamp.
func NewChatMessage(role Role, content string) ChatMessage {
	return ChatMessage{
		ID:        "msg_" + uuid.NewString(),
		Timestamp: time.Now(),
		Role:      role,
		Content:   content,
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) ChatMessage {
	return NewChatMessage(RoleUser, content)
}

// NewAssistantMessage creates a new assistant message attributed to the
// given assistant persona.
func NewAssistantMessage(content, assistantName string) ChatMessage {
	m := NewChatMessage(RoleAssistant, content)
	m.AssistantName = assistantName
	return m
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) ChatMessage {
	return NewChatMessage(RoleSystem, content)
}

// WithMetadata attaches a metadata key to the message.
func (m ChatMessage) WithMetadata(key string, value any) ChatMessage {
	if m.Metadata == nil {
		m.Metadata = make(map[string]any)
	}
	m.Metadata[key] = value
	return m
}

// Sender returns the display name used when rendering transcripts:
// "User" for user turns, the assistant persona name (or "Assistant")
// otherwise.
func (m ChatMessage) Sender() string {
	switch m.Role {
	case RoleUser:
		return "User"
	case RoleSystem:
		return "System"
	}
	if m.AssistantName != "" {
		return m.AssistantName
	}
	return "Assistant"
}
