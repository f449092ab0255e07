package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/JasonDeee/Project-L.I.F.E/types"
)

// messageRow is the GORM model for one logged message.
type messageRow struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"`
	MsgID         string    `gorm:"uniqueIndex;size:64"`
	Scope         string    `gorm:"index;size:16"`
	Timestamp     time.Time `gorm:"index"`
	Role          string    `gorm:"size:16"`
	Content       string
	AssistantName string `gorm:"size:64"`
	Metadata      string // JSON blob, "" when absent
}

func (messageRow) TableName() string { return "chat_messages" }

// summaryRow is the GORM model for one compression record. The record
// itself is stored as its JSON wire form; the indexed columns exist
// for querying.
type summaryRow struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	RecordID  string    `gorm:"uniqueIndex;size:64"`
	Scope     string    `gorm:"index;size:16"`
	CreatedAt time.Time `gorm:"index"`
	Payload   string
}

func (summaryRow) TableName() string { return "compression_records" }

// openSQLite opens (and migrates) the shared database file.
func openSQLite(cfg SQLiteStoreConfig) (*gorm.DB, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite store requires a path")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.AutoMigrate(&messageRow{}, &summaryRow{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return db, nil
}

func closeGorm(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func pingGorm(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// SQLiteMessageStore is a GORM/SQLite-backed MessageStore.
type SQLiteMessageStore struct {
	db *gorm.DB
}

var _ MessageStore = (*SQLiteMessageStore)(nil)

// NewSQLiteMessageStore creates a SQLite-backed message store.
func NewSQLiteMessageStore(config StoreConfig) (*SQLiteMessageStore, error) {
	db, err := openSQLite(config.SQLite)
	if err != nil {
		return nil, err
	}
	return &SQLiteMessageStore{db: db}, nil
}

func (s *SQLiteMessageStore) Append(ctx context.Context, scope string, msg types.ChatMessage) error {
	if scope == "" {
		return ErrInvalidInput
	}
	row := messageRow{
		MsgID:         msg.ID,
		Scope:         scope,
		Timestamp:     msg.Timestamp,
		Role:          string(msg.Role),
		Content:       msg.Content,
		AssistantName: msg.AssistantName,
	}
	if len(msg.Metadata) > 0 {
		data, err := json.Marshal(msg.Metadata)
		if err != nil {
			return err
		}
		row.Metadata = string(data)
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *SQLiteMessageStore) readRows(ctx context.Context, scope string, limit int) ([]types.ChatMessage, error) {
	var rows []messageRow
	q := s.db.WithContext(ctx).Where("scope = ?", scope)
	if limit > 0 {
		// Take the tail by descending ID, then restore append order.
		q = q.Order("id DESC").Limit(limit)
	} else {
		q = q.Order("id ASC")
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	if limit > 0 {
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
	}
	msgs := make([]types.ChatMessage, 0, len(rows))
	for _, row := range rows {
		msg := types.ChatMessage{
			ID:            row.MsgID,
			Timestamp:     row.Timestamp,
			Role:          types.Role(row.Role),
			Content:       row.Content,
			AssistantName: row.AssistantName,
		}
		if row.Metadata != "" {
			if err := json.Unmarshal([]byte(row.Metadata), &msg.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata of %s: %w", row.MsgID, err)
			}
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (s *SQLiteMessageStore) ReadAll(ctx context.Context, scope string) ([]types.ChatMessage, error) {
	return s.readRows(ctx, scope, 0)
}

func (s *SQLiteMessageStore) ReadRecent(ctx context.Context, scope string, n int) ([]types.ChatMessage, error) {
	if n <= 0 {
		return []types.ChatMessage{}, nil
	}
	return s.readRows(ctx, scope, n)
}

func (s *SQLiteMessageStore) Count(ctx context.Context, scope string) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&messageRow{}).Where("scope = ?", scope).Count(&count).Error
	return int(count), err
}

func (s *SQLiteMessageStore) Ping(ctx context.Context) error {
	return pingGorm(ctx, s.db)
}

func (s *SQLiteMessageStore) Close() error {
	return closeGorm(s.db)
}

// SQLiteSummaryStore is a GORM/SQLite-backed SummaryStore.
type SQLiteSummaryStore struct {
	db *gorm.DB
}

var _ SummaryStore = (*SQLiteSummaryStore)(nil)

// NewSQLiteSummaryStore creates a SQLite-backed summary store.
func NewSQLiteSummaryStore(config StoreConfig) (*SQLiteSummaryStore, error) {
	db, err := openSQLite(config.SQLite)
	if err != nil {
		return nil, err
	}
	return &SQLiteSummaryStore{db: db}, nil
}

func (s *SQLiteSummaryStore) Append(ctx context.Context, scope string, rec types.CompressionRecord) error {
	if scope == "" {
		return ErrInvalidInput
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	row := summaryRow{
		RecordID:  rec.ID,
		Scope:     scope,
		CreatedAt: rec.CreatedAt,
		Payload:   string(payload),
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *SQLiteSummaryStore) ReadAll(ctx context.Context, scope string) ([]types.CompressionRecord, error) {
	var rows []summaryRow
	err := s.db.WithContext(ctx).Where("scope = ?", scope).Order("id ASC").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	recs := make([]types.CompressionRecord, 0, len(rows))
	for _, row := range rows {
		var rec types.CompressionRecord
		if err := json.Unmarshal([]byte(row.Payload), &rec); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", row.RecordID, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (s *SQLiteSummaryStore) Latest(ctx context.Context, scope string) (types.CompressionRecord, error) {
	var row summaryRow
	err := s.db.WithContext(ctx).Where("scope = ?", scope).Order("id DESC").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.CompressionRecord{}, ErrNotFound
	}
	if err != nil {
		return types.CompressionRecord{}, err
	}
	var rec types.CompressionRecord
	if err := json.Unmarshal([]byte(row.Payload), &rec); err != nil {
		return types.CompressionRecord{}, fmt.Errorf("decode record %s: %w", row.RecordID, err)
	}
	return rec, nil
}

func (s *SQLiteSummaryStore) BuildContext(ctx context.Context, scope string) (string, error) {
	recs, err := s.ReadAll(ctx, scope)
	if err != nil {
		return "", err
	}
	return foldSummaries(recs), nil
}

func (s *SQLiteSummaryStore) Stats(ctx context.Context, scope string) (SummaryStats, error) {
	recs, err := s.ReadAll(ctx, scope)
	if err != nil {
		return SummaryStats{}, err
	}
	return summarizeRecords(recs), nil
}

func (s *SQLiteSummaryStore) Ping(ctx context.Context) error {
	return pingGorm(ctx, s.db)
}

func (s *SQLiteSummaryStore) Close() error {
	return closeGorm(s.db)
}
