// Package store provides unified access to SQLite (through GORM) and
// BadgerDB, the same dual-store shape the teacher repo uses for its
// relational data and ephemeral session/queue data respectively.
package store

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	_ "github.com/glebarez/go-sqlite" // pure Go SQLite driver
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dosecore/backend/internal/config"
)

// Store is the process's single handle onto both the relational and the
// embedded KV/queue stores.
type Store struct {
	db     *gorm.DB
	badger *badger.DB

	inventoryLocks sync.Map // medication id -> *sync.Mutex
}

// New opens both stores and migrates the relational schema.
func New(cfg *config.Config) (*Store, error) {
	sqlitePath := cfg.Storage.SQLitePath
	if sqlitePath == "" {
		sqlitePath = filepath.Join(cfg.Storage.DataDir, "dosecore.db")
	}

	sqlDB, err := sql.Open("sqlite", sqlitePath+"?_journal=WAL&_synchronous=NORMAL&_busy_timeout=5000&_cache_size=-64000")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	db, err := gorm.Open(sqlite.Dialector{Conn: sqlDB}, &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	if err := db.AutoMigrate(
		&User{},
		&Device{},
		&Medication{},
		&Dose{},
		&Inventory{},
		&EventLogEntry{},
		&Symptom{},
		&Caregiver{},
		&AlertRule{},
		&APIKey{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	badgerPath := cfg.Storage.BadgerPath
	if badgerPath == "" {
		badgerPath = filepath.Join(cfg.Storage.DataDir, "badger")
	}
	badgerOpts := badger.DefaultOptions(badgerPath).
		WithLogger(nil).
		WithNumVersionsToKeep(1).
		WithCompactL0OnClose(true).
		WithValueLogFileSize(16 << 20).
		WithMemTableSize(16 << 20)

	badgerDB, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	return &Store{db: db, badger: badgerDB}, nil
}

// NewInMemory opens an in-memory SQLite store with a throwaway badger
// directory, for tests.
func NewInMemory(badgerDir string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	if err := db.AutoMigrate(
		&User{}, &Device{}, &Medication{}, &Dose{}, &Inventory{},
		&EventLogEntry{}, &Symptom{}, &Caregiver{}, &AlertRule{}, &APIKey{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	badgerDB, err := badger.Open(badger.DefaultOptions(badgerDir).WithLogger(nil).WithInMemory(badgerDir == ""))
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	return &Store{db: db, badger: badgerDB}, nil
}

// Close closes both underlying stores.
func (s *Store) Close() error {
	return s.badger.Close()
}

// DB returns the GORM handle, for packages that need transactions or
// queries beyond the CRUD helpers defined here.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Badger returns the raw BadgerDB handle.
func (s *Store) Badger() *badger.DB {
	return s.badger
}

// GenerateID returns a prefixed, human-greppable entity ID, the same
// shape the teacher's health store generates for medications and logs,
// using a UUIDv4 body instead of a raw random hex string.
func GenerateID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}
