package lmstudio

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JasonDeee/Project-L.I.F.E/llm"
	"github.com/JasonDeee/Project-L.I.F.E/types"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL, Timeout: 5 * time.Second}, nil)
}

func TestCompletion(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "wendy-7b", body["model"])
		assert.Nil(t, body["stream"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "cmpl-1",
			"model": "wendy-7b",
			"created": 1757000000,
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "hello there"}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15}
		}`))
	})

	resp, err := p.Completion(context.Background(), &llm.ChatRequest{
		Model:    "wendy-7b",
		Messages: []llm.Message{{Role: types.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Content())
	assert.Equal(t, "lmstudio", resp.Provider)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
}

func TestCompletionMapsUpstreamErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		code   types.ErrorCode
		retry  bool
	}{
		{"bad request", http.StatusBadRequest, types.ErrInvalidRequest, false},
		{"rate limited", http.StatusTooManyRequests, types.ErrRateLimited, true},
		{"server error", http.StatusInternalServerError, types.ErrUpstreamError, true},
		{"timeout", http.StatusGatewayTimeout, types.ErrUpstreamTimeout, true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope"}}`))
			})

			_, err := p.Completion(context.Background(), &llm.ChatRequest{})
			require.Error(t, err)
			assert.Equal(t, tc.code, types.GetErrorCode(err))
			assert.Equal(t, tc.retry, types.IsRetryable(err))
		})
	}
}

func TestStream(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, true, body["stream"])

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(
			"data: {\"id\":\"c1\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"Hel\"}}]}\n\n" +
				"data: {\"id\":\"c1\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"lo\"},\"finish_reason\":\"stop\"}]}\n\n" +
				"data: [DONE]\n\n"))
	})

	ch, err := p.Stream(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: types.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)

	var text string
	var finish string
	for chunk := range ch {
		require.Nil(t, chunk.Err)
		text += chunk.Delta
		if chunk.FinishReason != "" {
			finish = chunk.FinishReason
		}
	}
	assert.Equal(t, "Hello", text)
	assert.Equal(t, "stop", finish)
}

func TestStreamMalformedChunkYieldsError(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: {not json}\n\n"))
	})

	ch, err := p.Stream(context.Background(), &llm.ChatRequest{})
	require.NoError(t, err)

	var sawErr bool
	for chunk := range ch {
		if chunk.Err != nil {
			sawErr = true
			assert.Equal(t, types.ErrUpstreamError, chunk.Err.Code)
		}
	}
	assert.True(t, sawErr)
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[{"id":"wendy-7b"}]}`))
	})

	status, err := p.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)
	assert.Positive(t, status.Latency)
}

func TestHealthCheckUnhealthy(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	status, err := p.HealthCheck(context.Background())
	require.Error(t, err)
	assert.False(t, status.Healthy)
}
