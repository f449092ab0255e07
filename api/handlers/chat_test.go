package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JasonDeee/Project-L.I.F.E/api"
	"github.com/JasonDeee/Project-L.I.F.E/chat"
	"github.com/JasonDeee/Project-L.I.F.E/compression"
	"github.com/JasonDeee/Project-L.I.F.E/persistence"
	"github.com/JasonDeee/Project-L.I.F.E/testutil/mocks"
	"github.com/JasonDeee/Project-L.I.F.E/types"
)

type handlerFixture struct {
	service   *chat.Service
	engine    *compression.Engine
	provider  *mocks.MockProvider
	messages  *persistence.MemoryMessageStore
	summaries *persistence.MemorySummaryStore
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	provider := mocks.NewMockProvider().WithResponse("Here to help.")
	tk := mocks.NewMockTokenizer(100)
	messages := persistence.NewMemoryMessageStore()
	summaries := persistence.NewMemorySummaryStore()

	cfg := compression.DefaultConfig()
	cfg.Delay = 10 * time.Millisecond
	engine := compression.NewEngine(cfg, provider, tk, messages, summaries, nil, nil)
	scheduler := compression.NewScheduler(engine, nil)
	t.Cleanup(scheduler.Close)

	builder := chat.NewChainBuilder(messages, summaries, cfg.KeepRecentMessages, nil)
	service := chat.NewService(chat.DefaultConfig(), provider, builder, engine, scheduler, messages, summaries, nil, nil)

	return &handlerFixture{
		service:   service,
		engine:    engine,
		provider:  provider,
		messages:  messages,
		summaries: summaries,
	}
}

func postJSON(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, r)
	return rec
}

func TestHandleTurn(t *testing.T) {
	t.Parallel()

	fx := newHandlerFixture(t)
	h := NewChatHandler(fx.service, nil)

	rec := postJSON(t, h.HandleTurn, `{"message":"good evening"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool             `json:"success"`
		Data    api.TurnResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	assert.Equal(t, "good evening", resp.Data.UserMessage.Content)
	assert.Equal(t, "Here to help.", resp.Data.Reply.Content)
	assert.Equal(t, "WENDY", resp.Data.Reply.AssistantName)
	assert.NotEmpty(t, resp.Data.Scope)
	assert.False(t, resp.Data.Fallback)
}

func TestHandleTurnRejectsEmptyMessage(t *testing.T) {
	t.Parallel()

	fx := newHandlerFixture(t)
	h := NewChatHandler(fx.service, nil)

	rec := postJSON(t, h.HandleTurn, `{"message":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, fx.provider.Calls())
}

func TestHandleTurnRejectsWrongContentType(t *testing.T) {
	t.Parallel()

	fx := newHandlerFixture(t)
	h := NewChatHandler(fx.service, nil)

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"message":"hi"}`))
	r.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	h.HandleTurn(rec, r)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleTurnMapsProviderError(t *testing.T) {
	t.Parallel()

	fx := newHandlerFixture(t)
	fx.provider.WithError(types.NewError(types.ErrUpstreamTimeout, "model timed out"))
	h := NewChatHandler(fx.service, nil)

	rec := postJSON(t, h.HandleTurn, `{"message":"hello"}`)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(types.ErrUpstreamTimeout), resp.Error.Code)
}

func decodeSSE(t *testing.T, body *bytes.Buffer) []api.StreamEvent {
	t.Helper()
	var events []api.StreamEvent
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev api.StreamEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}
	return events
}

func TestHandleStream(t *testing.T) {
	t.Parallel()

	fx := newHandlerFixture(t)
	fx.provider.WithStreamChunks("Good ", "evening", "!")
	h := NewChatHandler(fx.service, nil)

	rec := postJSON(t, h.HandleStream, `{"message":"hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := decodeSSE(t, rec.Body)
	require.NotEmpty(t, events)
	assert.Equal(t, "ack", events[0].Type)
	assert.NotEmpty(t, events[0].Scope)

	var deltas []string
	for _, ev := range events {
		if ev.Type == "delta" {
			deltas = append(deltas, ev.Delta)
		}
	}
	assert.Equal(t, []string{"Good ", "evening", "!"}, deltas)

	last := events[len(events)-1]
	assert.Equal(t, "done", last.Type)
	assert.Equal(t, "Good evening!", last.Content)
}

func TestStatusHandler(t *testing.T) {
	t.Parallel()

	fx := newHandlerFixture(t)
	h := NewStatusHandler(fx.service, fx.engine, nil)

	r := httptest.NewRequest(http.MethodGet, "/v1/compression/status", nil)
	rec := httptest.NewRecorder()
	h.HandleStatus(rec, r)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool                   `json:"success"`
		Data    chat.CompressionStatus `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	assert.False(t, resp.Data.InProgress)
	assert.False(t, resp.Data.Decision.ShouldCompress)
	assert.Equal(t, persistence.DayScope(time.Now()), resp.Data.Scope)
}

func TestStatusHandlerCompressInsufficientMessages(t *testing.T) {
	t.Parallel()

	fx := newHandlerFixture(t)
	h := NewStatusHandler(fx.service, fx.engine, nil)

	r := httptest.NewRequest(http.MethodPost, "/v1/compression/compress", nil)
	rec := httptest.NewRecorder()
	h.HandleCompress(rec, r)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data compression.Result `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Data.Success)
	assert.Equal(t, compression.ReasonInsufficientMessages, resp.Data.Reason)
}

func TestStatusHandlerCompressRunsPass(t *testing.T) {
	t.Parallel()

	fx := newHandlerFixture(t)
	ctx := context.Background()
	scope := persistence.DayScope(time.Now())
	for i := 0; i < 10; i++ {
		require.NoError(t, fx.messages.Append(ctx, scope, types.NewUserMessage("a question")))
		require.NoError(t, fx.messages.Append(ctx, scope, types.NewAssistantMessage("an answer", "WENDY")))
	}

	h := NewStatusHandler(fx.service, fx.engine, nil)
	r := httptest.NewRequest(http.MethodPost, "/v1/compression/compress", nil)
	rec := httptest.NewRecorder()
	h.HandleCompress(rec, r)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data compression.Result `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Success)
	require.NotNil(t, resp.Data.Record)
	assert.Equal(t, 12, resp.Data.Record.CoveredMessages.Count)
}

func TestTaskManagerToggle(t *testing.T) {
	t.Parallel()

	fx := newHandlerFixture(t)
	h := NewStatusHandler(fx.service, fx.engine, nil)

	rec := postJSON(t, h.HandleTaskManager, `{"enabled":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// The next turn's system prompt carries the task manager block.
	_, err := fx.service.HandleUserTurn(context.Background(), "what tasks do I have?")
	require.NoError(t, err)
	call := fx.provider.LastCall()
	require.NotNil(t, call)
	assert.Contains(t, call.Messages[0].Content, "[Task Management]")
}
