package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/JasonDeee/Project-L.I.F.E/types"
)

const (
	chatFileName    = "Daily_chat.json"
	summaryFileName = "Daily_summary.json"
)

// FileMessageStore is a file-based MessageStore. Each scope gets its
// own directory holding one chat log file; writes are atomic
// (temp file then rename).
type FileMessageStore struct {
	baseDir string
	mu      sync.RWMutex
	cache   map[string][]types.ChatMessage
	closed  bool
}

var _ MessageStore = (*FileMessageStore)(nil)

// NewFileMessageStore creates a file-based message store rooted at
// config.BaseDir.
func NewFileMessageStore(config StoreConfig) (*FileMessageStore, error) {
	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("create message store directory: %w", err)
	}
	return &FileMessageStore{
		baseDir: config.BaseDir,
		cache:   make(map[string][]types.ChatMessage),
	}, nil
}

func (s *FileMessageStore) scopePath(scope string) string {
	return filepath.Join(s.baseDir, scope, chatFileName)
}

// loadScope fills the cache for a scope. Caller holds the write lock.
func (s *FileMessageStore) loadScope(scope string) ([]types.ChatMessage, error) {
	if msgs, ok := s.cache[scope]; ok {
		return msgs, nil
	}
	data, err := os.ReadFile(s.scopePath(scope))
	if os.IsNotExist(err) {
		s.cache[scope] = []types.ChatMessage{}
		return s.cache[scope], nil
	}
	if err != nil {
		return nil, err
	}
	var envelope struct {
		Messages []types.ChatMessage `json:"messages"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.scopePath(scope), err)
	}
	if envelope.Messages == nil {
		envelope.Messages = []types.ChatMessage{}
	}
	s.cache[scope] = envelope.Messages
	return envelope.Messages, nil
}

func (s *FileMessageStore) saveScope(scope string, msgs []types.ChatMessage) error {
	envelope := struct {
		Messages []types.ChatMessage `json:"messages"`
	}{Messages: msgs}
	data, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(s.scopePath(scope), data)
}

func (s *FileMessageStore) Append(_ context.Context, scope string, msg types.ChatMessage) error {
	if scope == "" {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	msgs, err := s.loadScope(scope)
	if err != nil {
		return err
	}
	msgs = append(msgs, msg)
	if err := s.saveScope(scope, msgs); err != nil {
		return err
	}
	s.cache[scope] = msgs
	return nil
}

func (s *FileMessageStore) ReadAll(_ context.Context, scope string) ([]types.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	msgs, err := s.loadScope(scope)
	if err != nil {
		return nil, err
	}
	out := make([]types.ChatMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *FileMessageStore) ReadRecent(ctx context.Context, scope string, n int) ([]types.ChatMessage, error) {
	msgs, err := s.ReadAll(ctx, scope)
	if err != nil {
		return nil, err
	}
	return lastN(msgs, n), nil
}

func (s *FileMessageStore) Count(ctx context.Context, scope string) (int, error) {
	msgs, err := s.ReadAll(ctx, scope)
	if err != nil {
		return 0, err
	}
	return len(msgs), nil
}

func (s *FileMessageStore) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	_, err := os.Stat(s.baseDir)
	return err
}

func (s *FileMessageStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// FileSummaryStore is a file-based SummaryStore sharing the message
// store's directory layout: one summary log file per scope directory.
type FileSummaryStore struct {
	baseDir string
	mu      sync.RWMutex
	cache   map[string][]types.CompressionRecord
	closed  bool
}

var _ SummaryStore = (*FileSummaryStore)(nil)

// NewFileSummaryStore creates a file-based summary store rooted at
// config.BaseDir.
func NewFileSummaryStore(config StoreConfig) (*FileSummaryStore, error) {
	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("create summary store directory: %w", err)
	}
	return &FileSummaryStore{
		baseDir: config.BaseDir,
		cache:   make(map[string][]types.CompressionRecord),
	}, nil
}

func (s *FileSummaryStore) scopePath(scope string) string {
	return filepath.Join(s.baseDir, scope, summaryFileName)
}

func (s *FileSummaryStore) loadScope(scope string) ([]types.CompressionRecord, error) {
	if recs, ok := s.cache[scope]; ok {
		return recs, nil
	}
	data, err := os.ReadFile(s.scopePath(scope))
	if os.IsNotExist(err) {
		s.cache[scope] = []types.CompressionRecord{}
		return s.cache[scope], nil
	}
	if err != nil {
		return nil, err
	}
	var envelope struct {
		Summaries []types.CompressionRecord `json:"summaries"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.scopePath(scope), err)
	}
	if envelope.Summaries == nil {
		envelope.Summaries = []types.CompressionRecord{}
	}
	s.cache[scope] = envelope.Summaries
	return envelope.Summaries, nil
}

func (s *FileSummaryStore) saveScope(scope string, recs []types.CompressionRecord) error {
	envelope := struct {
		Summaries []types.CompressionRecord `json:"summaries"`
	}{Summaries: recs}
	data, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(s.scopePath(scope), data)
}

func (s *FileSummaryStore) Append(_ context.Context, scope string, rec types.CompressionRecord) error {
	if scope == "" {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	recs, err := s.loadScope(scope)
	if err != nil {
		return err
	}
	recs = append(recs, rec)
	if err := s.saveScope(scope, recs); err != nil {
		return err
	}
	s.cache[scope] = recs
	return nil
}

func (s *FileSummaryStore) ReadAll(_ context.Context, scope string) ([]types.CompressionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	recs, err := s.loadScope(scope)
	if err != nil {
		return nil, err
	}
	out := make([]types.CompressionRecord, len(recs))
	copy(out, recs)
	return out, nil
}

func (s *FileSummaryStore) Latest(ctx context.Context, scope string) (types.CompressionRecord, error) {
	recs, err := s.ReadAll(ctx, scope)
	if err != nil {
		return types.CompressionRecord{}, err
	}
	return latestRecord(recs)
}

func (s *FileSummaryStore) BuildContext(ctx context.Context, scope string) (string, error) {
	recs, err := s.ReadAll(ctx, scope)
	if err != nil {
		return "", err
	}
	return foldSummaries(recs), nil
}

func (s *FileSummaryStore) Stats(ctx context.Context, scope string) (SummaryStats, error) {
	recs, err := s.ReadAll(ctx, scope)
	if err != nil {
		return SummaryStats{}, err
	}
	return summarizeRecords(recs), nil
}

func (s *FileSummaryStore) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	_, err := os.Stat(s.baseDir)
	return err
}

func (s *FileSummaryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// atomicWrite writes data via a temp file and rename so a crash never
// leaves a half-written log.
func atomicWrite(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tempPath, path)
}
