package mocks

import (
	"sync"

	"github.com/JasonDeee/Project-L.I.F.E/llm/tokenizer"
)

// MockTokenizer reports a fixed token count, or a configured error.
type MockTokenizer struct {
	mu        sync.RWMutex
	count     int
	err       error
	maxTokens int
}

var _ tokenizer.Tokenizer = (*MockTokenizer)(nil)

// NewMockTokenizer creates a tokenizer that always reports count.
func NewMockTokenizer(count int) *MockTokenizer {
	return &MockTokenizer{count: count, maxTokens: 12288}
}

// WithError makes every count fail with err.
func (m *MockTokenizer) WithError(err error) *MockTokenizer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithMaxTokens sets the reported context length.
func (m *MockTokenizer) WithMaxTokens(n int) *MockTokenizer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxTokens = n
	return m
}

// SetCount changes the reported count mid-test.
func (m *MockTokenizer) SetCount(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count = n
}

func (m *MockTokenizer) CountTokens(string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.count, m.err
}

func (m *MockTokenizer) CountMessages([]tokenizer.Message) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.count, m.err
}

func (m *MockTokenizer) MaxTokens() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.maxTokens
}

func (m *MockTokenizer) Name() string { return "mock" }
