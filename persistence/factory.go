package persistence

import "fmt"

// NewMessageStore creates a MessageStore for the configured backend.
func NewMessageStore(config StoreConfig) (MessageStore, error) {
	switch config.Type {
	case StoreTypeMemory:
		return NewMemoryMessageStore(), nil
	case StoreTypeFile:
		return NewFileMessageStore(config)
	case StoreTypeRedis:
		return NewRedisMessageStore(config)
	case StoreTypeSQLite:
		return NewSQLiteMessageStore(config)
	default:
		return nil, fmt.Errorf("unsupported message store type: %s", config.Type)
	}
}

// NewSummaryStore creates a SummaryStore for the configured backend.
func NewSummaryStore(config StoreConfig) (SummaryStore, error) {
	switch config.Type {
	case StoreTypeMemory:
		return NewMemorySummaryStore(), nil
	case StoreTypeFile:
		return NewFileSummaryStore(config)
	case StoreTypeRedis:
		return NewRedisSummaryStore(config)
	case StoreTypeSQLite:
		return NewSQLiteSummaryStore(config)
	default:
		return nil, fmt.Errorf("unsupported summary store type: %s", config.Type)
	}
}

// MustNewMessageStore creates a MessageStore or panics on error.
// Only for use during application initialization.
func MustNewMessageStore(config StoreConfig) MessageStore {
	store, err := NewMessageStore(config)
	if err != nil {
		panic(fmt.Sprintf("failed to create message store: %v", err))
	}
	return store
}

// MustNewSummaryStore creates a SummaryStore or panics on error.
// Only for use during application initialization.
func MustNewSummaryStore(config StoreConfig) SummaryStore {
	store, err := NewSummaryStore(config)
	if err != nil {
		panic(fmt.Sprintf("failed to create summary store: %v", err))
	}
	return store
}
