package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JasonDeee/Project-L.I.F.E/api"
	"github.com/JasonDeee/Project-L.I.F.E/chat"
	"github.com/JasonDeee/Project-L.I.F.E/types"
)

// ChatHandler serves the conversational turn endpoints.
type ChatHandler struct {
	service *chat.Service
	logger  *zap.Logger
}

// NewChatHandler creates the chat endpoint handler.
func NewChatHandler(service *chat.Service, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{service: service, logger: logger}
}

// HandleTurn handles POST /v1/chat: one synchronous turn.
func (h *ChatHandler) HandleTurn(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req api.TurnRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "message is required"), h.logger)
		return
	}

	start := time.Now()
	result, err := h.service.HandleUserTurn(r.Context(), req.Message)
	if err != nil {
		WriteError(w, ErrorFrom(err), h.logger)
		return
	}

	h.logger.Info("chat turn",
		zap.String("scope", result.Scope),
		zap.Bool("fallback", result.Fallback),
		zap.Int("context_messages", result.Metadata.TotalMessages),
		zap.Duration("duration", time.Since(start)),
	)

	WriteSuccess(w, api.TurnResponse{
		Scope:       result.Scope,
		UserMessage: result.UserMessage,
		Reply:       result.Reply,
		Fallback:    result.Fallback,
		Metadata:    result.Metadata,
	})
}

// HandleStream handles POST /v1/chat/stream: one turn with the reply
// streamed as SSE events.
func (h *ChatHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req api.TurnRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "message is required"), h.logger)
		return
	}

	stream, err := h.service.StreamUserTurn(r.Context(), req.Message)
	if err != nil {
		WriteError(w, ErrorFrom(err), h.logger)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, types.NewError(types.ErrInternalError, "streaming not supported"), h.logger)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	writeEvent(w, flusher, api.StreamEvent{
		Type:      "ack",
		Scope:     h.service.Scope(),
		Timestamp: time.Now(),
	})

	var full strings.Builder
	for chunk := range stream {
		if chunk.Err != nil {
			h.logger.Error("stream error", zap.Error(chunk.Err))
			writeEvent(w, flusher, api.StreamEvent{
				Type:      "error",
				Error:     chunk.Err.Message,
				Timestamp: time.Now(),
			})
			return
		}
		if chunk.Delta == "" {
			continue
		}
		full.WriteString(chunk.Delta)
		writeEvent(w, flusher, api.StreamEvent{
			Type:      "delta",
			Delta:     chunk.Delta,
			Timestamp: time.Now(),
		})
	}

	writeEvent(w, flusher, api.StreamEvent{
		Type:      "done",
		Content:   strings.TrimSpace(full.String()),
		Timestamp: time.Now(),
	})
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, event api.StreamEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	w.Write([]byte("data: "))
	w.Write(payload)
	w.Write([]byte("\n\n"))
	flusher.Flush()
}
