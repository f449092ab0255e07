package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JasonDeee/Project-L.I.F.E/types"
)

// newRedisClient connects and verifies the connection.
func newRedisClient(cfg RedisStoreConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

func redisKeyPrefix(cfg RedisStoreConfig) string {
	if cfg.KeyPrefix != "" {
		return cfg.KeyPrefix
	}
	return "life:"
}

// RedisMessageStore is a Redis-backed MessageStore. Each scope is a
// list the store only ever RPUSHes to, preserving append order.
type RedisMessageStore struct {
	client    *redis.Client
	keyPrefix string
}

var _ MessageStore = (*RedisMessageStore)(nil)

// NewRedisMessageStore creates a Redis-backed message store.
func NewRedisMessageStore(config StoreConfig) (*RedisMessageStore, error) {
	client, err := newRedisClient(config.Redis)
	if err != nil {
		return nil, err
	}
	return &RedisMessageStore{
		client:    client,
		keyPrefix: redisKeyPrefix(config.Redis) + "chat:",
	}, nil
}

func (s *RedisMessageStore) scopeKey(scope string) string {
	return s.keyPrefix + scope
}

func (s *RedisMessageStore) Append(ctx context.Context, scope string, msg types.ChatMessage) error {
	if scope == "" {
		return ErrInvalidInput
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.client.RPush(ctx, s.scopeKey(scope), data).Err()
}

func (s *RedisMessageStore) ReadAll(ctx context.Context, scope string) ([]types.ChatMessage, error) {
	raw, err := s.client.LRange(ctx, s.scopeKey(scope), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	msgs := make([]types.ChatMessage, 0, len(raw))
	for _, item := range raw {
		var msg types.ChatMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("decode message in %s: %w", s.scopeKey(scope), err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (s *RedisMessageStore) ReadRecent(ctx context.Context, scope string, n int) ([]types.ChatMessage, error) {
	if n <= 0 {
		return []types.ChatMessage{}, nil
	}
	raw, err := s.client.LRange(ctx, s.scopeKey(scope), int64(-n), -1).Result()
	if err != nil {
		return nil, err
	}
	msgs := make([]types.ChatMessage, 0, len(raw))
	for _, item := range raw {
		var msg types.ChatMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("decode message in %s: %w", s.scopeKey(scope), err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (s *RedisMessageStore) Count(ctx context.Context, scope string) (int, error) {
	n, err := s.client.LLen(ctx, s.scopeKey(scope)).Result()
	return int(n), err
}

func (s *RedisMessageStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisMessageStore) Close() error {
	return s.client.Close()
}

// RedisSummaryStore is a Redis-backed SummaryStore.
type RedisSummaryStore struct {
	client    *redis.Client
	keyPrefix string
}

var _ SummaryStore = (*RedisSummaryStore)(nil)

// NewRedisSummaryStore creates a Redis-backed summary store.
func NewRedisSummaryStore(config StoreConfig) (*RedisSummaryStore, error) {
	client, err := newRedisClient(config.Redis)
	if err != nil {
		return nil, err
	}
	return &RedisSummaryStore{
		client:    client,
		keyPrefix: redisKeyPrefix(config.Redis) + "summary:",
	}, nil
}

func (s *RedisSummaryStore) scopeKey(scope string) string {
	return s.keyPrefix + scope
}

func (s *RedisSummaryStore) Append(ctx context.Context, scope string, rec types.CompressionRecord) error {
	if scope == "" {
		return ErrInvalidInput
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.RPush(ctx, s.scopeKey(scope), data).Err()
}

func (s *RedisSummaryStore) ReadAll(ctx context.Context, scope string) ([]types.CompressionRecord, error) {
	raw, err := s.client.LRange(ctx, s.scopeKey(scope), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	recs := make([]types.CompressionRecord, 0, len(raw))
	for _, item := range raw {
		var rec types.CompressionRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("decode record in %s: %w", s.scopeKey(scope), err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (s *RedisSummaryStore) Latest(ctx context.Context, scope string) (types.CompressionRecord, error) {
	raw, err := s.client.LRange(ctx, s.scopeKey(scope), -1, -1).Result()
	if err != nil {
		return types.CompressionRecord{}, err
	}
	if len(raw) == 0 {
		return types.CompressionRecord{}, ErrNotFound
	}
	var rec types.CompressionRecord
	if err := json.Unmarshal([]byte(raw[0]), &rec); err != nil {
		return types.CompressionRecord{}, fmt.Errorf("decode record in %s: %w", s.scopeKey(scope), err)
	}
	return rec, nil
}

func (s *RedisSummaryStore) BuildContext(ctx context.Context, scope string) (string, error) {
	recs, err := s.ReadAll(ctx, scope)
	if err != nil {
		return "", err
	}
	return foldSummaries(recs), nil
}

func (s *RedisSummaryStore) Stats(ctx context.Context, scope string) (SummaryStats, error) {
	recs, err := s.ReadAll(ctx, scope)
	if err != nil {
		return SummaryStats{}, err
	}
	return summarizeRecords(recs), nil
}

func (s *RedisSummaryStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisSummaryStore) Close() error {
	return s.client.Close()
}
