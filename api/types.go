// Package api defines the wire types shared by the HTTP handlers and
// the WebSocket relay.
package api

import (
	"time"

	"github.com/JasonDeee/Project-L.I.F.E/chat"
	"github.com/JasonDeee/Project-L.I.F.E/types"
)

// TurnRequest is one user turn submitted to the chat endpoint.
type TurnRequest struct {
	// Message is the user's text. Required.
	Message string `json:"message"`
}

// TurnResponse is the completed turn.
type TurnResponse struct {
	Scope       string             `json:"scope"`
	UserMessage types.ChatMessage  `json:"user_message"`
	Reply       types.ChatMessage  `json:"reply"`
	Fallback    bool               `json:"fallback,omitempty"`
	Metadata    chat.ChainMetadata `json:"metadata"`
}

// StreamEvent is one event on a streamed turn, carried over SSE and
// WebSocket alike.
type StreamEvent struct {
	// Type: "ack", "delta", "done", or "error".
	Type string `json:"type"`
	// Scope is set on "ack".
	Scope string `json:"scope,omitempty"`
	// Delta carries reply text on "delta".
	Delta string `json:"delta,omitempty"`
	// Content is the full reply on "done".
	Content string `json:"content,omitempty"`
	// Error describes the failure on "error".
	Error string `json:"error,omitempty"`
	// Timestamp of the event.
	Timestamp time.Time `json:"timestamp"`
}

// WSClientMessage is what a WebSocket client sends.
type WSClientMessage struct {
	// Type: "handshake", "chat", "status", or "ping".
	Type string `json:"type"`
	// Message is the user text for "chat".
	Message string `json:"message,omitempty"`
	// ClientTime is the client's wall clock, sent on "handshake".
	ClientTime time.Time `json:"client_time,omitempty"`
}

// WSHistory replays the current day's message log after a handshake.
type WSHistory struct {
	Type     string              `json:"type"` // always "history"
	Scope    string              `json:"scope"`
	Messages []types.ChatMessage `json:"messages"`
}

// WSHello is the server's first frame on a new WebSocket connection.
// Clients sync their notion of the conversation day from Scope and
// ServerTime instead of their own clock.
type WSHello struct {
	Type          string    `json:"type"` // always "hello"
	Scope         string    `json:"scope"`
	ServerTime    time.Time `json:"server_time"`
	AssistantName string    `json:"assistant_name"`
}

// TaskManagerRequest toggles the task manager prompt block.
type TaskManagerRequest struct {
	Enabled bool `json:"enabled"`
}
