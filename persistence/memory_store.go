package persistence

import (
	"context"
	"sync"

	"github.com/JasonDeee/Project-L.I.F.E/types"
)

// MemoryMessageStore is an in-memory MessageStore for development and
// testing.
type MemoryMessageStore struct {
	mu     sync.RWMutex
	scopes map[string][]types.ChatMessage
	closed bool
}

var _ MessageStore = (*MemoryMessageStore)(nil)

// NewMemoryMessageStore creates an in-memory message store.
func NewMemoryMessageStore() *MemoryMessageStore {
	return &MemoryMessageStore{scopes: make(map[string][]types.ChatMessage)}
}

func (s *MemoryMessageStore) Append(_ context.Context, scope string, msg types.ChatMessage) error {
	if scope == "" {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.scopes[scope] = append(s.scopes[scope], msg)
	return nil
}

func (s *MemoryMessageStore) ReadAll(_ context.Context, scope string) ([]types.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	msgs := s.scopes[scope]
	out := make([]types.ChatMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *MemoryMessageStore) ReadRecent(ctx context.Context, scope string, n int) ([]types.ChatMessage, error) {
	msgs, err := s.ReadAll(ctx, scope)
	if err != nil {
		return nil, err
	}
	return lastN(msgs, n), nil
}

func (s *MemoryMessageStore) Count(_ context.Context, scope string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrStoreClosed
	}
	return len(s.scopes[scope]), nil
}

func (s *MemoryMessageStore) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

func (s *MemoryMessageStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// MemorySummaryStore is an in-memory SummaryStore for development and
// testing.
type MemorySummaryStore struct {
	mu     sync.RWMutex
	scopes map[string][]types.CompressionRecord
	closed bool
}

var _ SummaryStore = (*MemorySummaryStore)(nil)

// NewMemorySummaryStore creates an in-memory summary store.
func NewMemorySummaryStore() *MemorySummaryStore {
	return &MemorySummaryStore{scopes: make(map[string][]types.CompressionRecord)}
}

func (s *MemorySummaryStore) Append(_ context.Context, scope string, rec types.CompressionRecord) error {
	if scope == "" {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.scopes[scope] = append(s.scopes[scope], rec)
	return nil
}

func (s *MemorySummaryStore) ReadAll(_ context.Context, scope string) ([]types.CompressionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	recs := s.scopes[scope]
	out := make([]types.CompressionRecord, len(recs))
	copy(out, recs)
	return out, nil
}

func (s *MemorySummaryStore) Latest(ctx context.Context, scope string) (types.CompressionRecord, error) {
	recs, err := s.ReadAll(ctx, scope)
	if err != nil {
		return types.CompressionRecord{}, err
	}
	return latestRecord(recs)
}

func (s *MemorySummaryStore) BuildContext(ctx context.Context, scope string) (string, error) {
	recs, err := s.ReadAll(ctx, scope)
	if err != nil {
		return "", err
	}
	return foldSummaries(recs), nil
}

func (s *MemorySummaryStore) Stats(ctx context.Context, scope string) (SummaryStats, error) {
	recs, err := s.ReadAll(ctx, scope)
	if err != nil {
		return SummaryStats{}, err
	}
	return summarizeRecords(recs), nil
}

func (s *MemorySummaryStore) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

func (s *MemorySummaryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
