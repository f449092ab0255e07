// Package mocks provides test doubles for the llm.Provider contract
// and the tokenizer interface. All mocks use the builder pattern and
// support error injection.
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/JasonDeee/Project-L.I.F.E/llm"
	"github.com/JasonDeee/Project-L.I.F.E/types"
)

// MockProvider is a configurable llm.Provider test double.
type MockProvider struct {
	mu sync.RWMutex

	response     string
	streamChunks []string
	err          error
	healthy      bool

	calls          []llm.ChatRequest
	completionFunc func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)
}

var _ llm.Provider = (*MockProvider)(nil)

// NewMockProvider creates a provider that answers "Mock response".
func NewMockProvider() *MockProvider {
	return &MockProvider{response: "Mock response", healthy: true}
}

// WithResponse sets the fixed completion text.
func (m *MockProvider) WithResponse(response string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = response
	return m
}

// WithError makes every call fail with err.
func (m *MockProvider) WithError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithStreamChunks sets the deltas Stream emits.
func (m *MockProvider) WithStreamChunks(chunks ...string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamChunks = chunks
	return m
}

// WithCompletionFunc overrides Completion entirely.
func (m *MockProvider) WithCompletionFunc(fn func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completionFunc = fn
	return m
}

// WithHealthy sets the HealthCheck outcome.
func (m *MockProvider) WithHealthy(healthy bool) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthy = healthy
	return m
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, *req)

	if m.err != nil {
		return nil, m.err
	}
	if m.completionFunc != nil {
		return m.completionFunc(ctx, req)
	}
	return &llm.ChatResponse{
		ID:       "mock-response-id",
		Provider: "mock",
		Model:    req.Model,
		Choices: []llm.ChatChoice{{
			Index:        0,
			FinishReason: "stop",
			Message:      llm.Message{Role: types.RoleAssistant, Content: m.response},
		}},
		CreatedAt: time.Now(),
	}, nil
}

func (m *MockProvider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	m.mu.Lock()
	m.calls = append(m.calls, *req)
	err := m.err
	chunks := m.streamChunks
	response := m.response
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		chunks = []string{response}
	}

	ch := make(chan llm.StreamChunk, len(chunks))
	go func() {
		defer close(ch)
		for i, chunk := range chunks {
			finish := ""
			if i == len(chunks)-1 {
				finish = "stop"
			}
			select {
			case <-ctx.Done():
				return
			case ch <- llm.StreamChunk{ID: "mock-chunk-id", Delta: chunk, FinishReason: finish}:
			}
		}
	}()
	return ch, nil
}

func (m *MockProvider) HealthCheck(context.Context) (*llm.HealthStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return &llm.HealthStatus{Healthy: m.healthy, Latency: 10 * time.Millisecond}, nil
}

// Calls returns a copy of every request received so far.
func (m *MockProvider) Calls() []llm.ChatRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]llm.ChatRequest{}, m.calls...)
}

// LastCall returns the most recent request, or nil.
func (m *MockProvider) LastCall() *llm.ChatRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.calls) == 0 {
		return nil
	}
	call := m.calls[len(m.calls)-1]
	return &call
}
