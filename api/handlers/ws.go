package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/JasonDeee/Project-L.I.F.E/api"
	"github.com/JasonDeee/Project-L.I.F.E/chat"
)

// WSHandler relays chat turns over a WebSocket connection. On connect
// the server sends a hello frame carrying the current scope and server
// time so the client syncs its notion of the conversation day; after
// that each "chat" frame from the client produces an ack, streamed
// deltas, and a done frame.
type WSHandler struct {
	service       *chat.Service
	assistantName string
	logger        *zap.Logger
}

// NewWSHandler creates the WebSocket relay.
func NewWSHandler(service *chat.Service, assistantName string, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if assistantName == "" {
		assistantName = "WENDY"
	}
	return &WSHandler{service: service, assistantName: assistantName, logger: logger}
}

// HandleWS handles GET /v1/ws.
func (h *WSHandler) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The desktop client runs from a file:// origin.
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "connection dropped")

	ctx := r.Context()
	session := &wsSession{conn: conn, logger: h.logger}

	if err := session.write(ctx, api.WSHello{
		Type:          "hello",
		Scope:         h.service.Scope(),
		ServerTime:    time.Now(),
		AssistantName: h.assistantName,
	}); err != nil {
		return
	}

	for {
		var msg api.WSClientMessage
		if err := session.read(ctx, &msg); err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || ctx.Err() != nil {
				conn.Close(websocket.StatusNormalClosure, "bye")
				return
			}
			h.logger.Debug("websocket read failed", zap.Error(err))
			return
		}

		switch msg.Type {
		case "ping":
			session.write(ctx, api.StreamEvent{Type: "pong", Timestamp: time.Now()})
		case "handshake":
			h.handshake(ctx, session, msg.ClientTime)
		case "chat":
			h.relayTurn(ctx, session, msg.Message)
		case "status":
			h.relayStatus(ctx, session)
		default:
			session.write(ctx, api.StreamEvent{
				Type:      "error",
				Error:     "unknown message type",
				Timestamp: time.Now(),
			})
		}
	}
}

// maxClockSkew bounds the client/server wall clock difference accepted
// during a handshake. A client a day off would load the wrong
// conversation log.
const maxClockSkew = 24 * time.Hour

// handshake validates the client's clock against the server's and
// replays the current day's message log so a reconnecting client
// restores its transcript.
func (h *WSHandler) handshake(ctx context.Context, session *wsSession, clientTime time.Time) {
	if !clientTime.IsZero() {
		skew := time.Since(clientTime)
		if skew < 0 {
			skew = -skew
		}
		if skew > maxClockSkew {
			h.logger.Warn("handshake rejected, client clock skew too large",
				zap.Duration("skew", skew))
			session.write(ctx, api.StreamEvent{
				Type:      "error",
				Error:     "client clock differs from server by more than 24h",
				Timestamp: time.Now(),
			})
			return
		}
	}

	history, err := h.service.History(ctx)
	if err != nil {
		session.write(ctx, api.StreamEvent{
			Type:      "error",
			Error:     err.Error(),
			Timestamp: time.Now(),
		})
		return
	}
	session.write(ctx, api.WSHistory{
		Type:     "history",
		Scope:    h.service.Scope(),
		Messages: history,
	})
}

func (h *WSHandler) relayStatus(ctx context.Context, session *wsSession) {
	status, err := h.service.GetCompressionStatus(ctx)
	if err != nil {
		session.write(ctx, api.StreamEvent{
			Type:      "error",
			Error:     err.Error(),
			Timestamp: time.Now(),
		})
		return
	}
	session.write(ctx, struct {
		Type string `json:"type"`
		*chat.CompressionStatus
	}{Type: "status", CompressionStatus: status})
}

func (h *WSHandler) relayTurn(ctx context.Context, session *wsSession, text string) {
	stream, err := h.service.StreamUserTurn(ctx, text)
	if err != nil {
		session.write(ctx, api.StreamEvent{
			Type:      "error",
			Error:     err.Error(),
			Timestamp: time.Now(),
		})
		return
	}

	session.write(ctx, api.StreamEvent{
		Type:      "ack",
		Scope:     h.service.Scope(),
		Timestamp: time.Now(),
	})

	var full strings.Builder
	for chunk := range stream {
		if chunk.Err != nil {
			session.write(ctx, api.StreamEvent{
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
		if err := session.write(ctx, api.StreamEvent{
			Type:      "delta",
			Delta:     chunk.Delta,
			Timestamp: time.Now(),
		}); err != nil {
			return
		}
	}

	session.write(ctx, api.StreamEvent{
		Type:      "done",
		Content:   strings.TrimSpace(full.String()),
		Timestamp: time.Now(),
	})
}

// wsSession serializes writes; the WebSocket connection does not
// support concurrent writers.
type wsSession struct {
	conn   *websocket.Conn
	logger *zap.Logger
	mu     sync.Mutex
}

func (s *wsSession) write(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		s.logger.Debug("websocket write failed", zap.Error(err))
		return err
	}
	return nil
}

func (s *wsSession) read(ctx context.Context, v any) error {
	_, data, err := s.conn.Read(ctx)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
