// Package store provides the persistent key-value storage backing the
// credential ledger, generation history and prompt history. Values are
// JSON-encoded strings; callers own the schema of what they put in.
package store

import (
	"encoding/json"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/pyiy/zimage/internal/config"
)

// Well-known keys. Kept in one place so the maintenance job and the owning
// packages agree on them.
const (
	KeyCredentials   = "credentials"
	KeyTokenLedger   = "token_ledger"
	KeyHistory       = "generation_history"
	KeyPromptHistory = "prompt_history"
)

// Service is the storage interface injected into every component that
// persists state. The in-memory implementation keeps the orchestration core
// unit-testable without a database.
type Service interface {
	// Get returns the raw value for key and whether it exists.
	Get(key string) (string, bool, error)
	// Set writes the raw value for key, creating it if needed.
	Set(key, value string) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error
}

// GetJSON reads key and unmarshals its value into out. It reports whether
// the key existed.
func GetJSON(s Service, key string, out any) (bool, error) {
	raw, ok, err := s.Get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("failed to decode stored value for %q: %w", key, err)
	}
	return true, nil
}

// SetJSON marshals v and writes it under key.
func SetJSON(s Service, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode value for %q: %w", key, err)
	}
	return s.Set(key, string(raw))
}

// Entry is the single table of the store.
type Entry struct {
	Key       string `gorm:"primaryKey;type:varchar(255)"`
	Value     string `gorm:"type:text"`
	UpdatedAt int64  `gorm:"autoUpdateTime"`
}

// TableName keeps the table name stable across gorm naming strategies.
func (Entry) TableName() string { return "kv_entries" }

// DBStore is the gorm-backed Service implementation.
type DBStore struct {
	db *gorm.DB
}

// Open connects to the configured database and migrates the schema.
func Open(cfg config.DatabaseConfig) (*DBStore, error) {
	var dialector gorm.Dialector
	switch cfg.Type {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate store schema: %w", err)
	}
	return &DBStore{db: db}, nil
}

func (s *DBStore) Get(key string) (string, bool, error) {
	var entry Entry
	err := s.db.Where("key = ?", key).First(&entry).Error
	if err == gorm.ErrRecordNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read key %q: %w", key, err)
	}
	return entry.Value, true, nil
}

func (s *DBStore) Set(key, value string) error {
	entry := Entry{Key: key, Value: value}
	err := s.db.Save(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to write key %q: %w", key, err)
	}
	return nil
}

func (s *DBStore) Delete(key string) error {
	err := s.db.Where("key = ?", key).Delete(&Entry{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete key %q: %w", key, err)
	}
	return nil
}
