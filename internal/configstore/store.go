// Package configstore persists config collaborator updates in sqlite.
package configstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Entry is one key of a config document.
type Entry struct {
	Document  string         `gorm:"column:document;primaryKey;size:64"`
	Key       string         `gorm:"column:key;primaryKey;size:191"`
	Value     datatypes.JSON `gorm:"column:value;type:TEXT"`
	UpdatedAt time.Time      `gorm:"column:updated_at"`
}

func (Entry) TableName() string { return "system_config" }

type Store struct {
	db *gorm.DB
}

// Open creates the database file if needed and migrates the schema.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open config store: %w", err)
	}
	return FromDB(db)
}

func FromDB(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db cannot be nil")
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("migrate config store: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	return &Store{db: db}, nil
}

// Mirror upserts values into document.
func (s *Store) Mirror(ctx context.Context, document string, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]Entry, 0, len(values))
	for k, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", k, err)
		}
		rows = append(rows, Entry{Document: document, Key: k, Value: datatypes.JSON(b), UpdatedAt: now})
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "document"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rows).Error
}

// Load returns every key of document with its decoded value.
func (s *Store) Load(ctx context.Context, document string) (map[string]any, error) {
	var rows []Entry
	if err := s.db.WithContext(ctx).
		Where(&Entry{Document: document}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "key"}}).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]any, len(rows))
	for _, r := range rows {
		var v any
		if err := json.Unmarshal(r.Value, &v); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", document, r.Key, err)
		}
		out[r.Key] = v
	}
	return out, nil
}

// Delete removes key from document.
func (s *Store) Delete(ctx context.Context, document, key string) error {
	return s.db.WithContext(ctx).Where(&Entry{Document: document, Key: key}).Delete(&Entry{}).Error
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
