// Package store persists the pipeline's domain state in SQLite through
// GORM: players, items and prices, inventory projections, sessions,
// map completions, and the market ledger.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store wraps the GORM connection.
type Store struct {
	db    *gorm.DB
	sqlDB *sql.DB
}

// Config holds database configuration.
type Config struct {
	Path     string          // SQLite file path, or ":memory:" for tests
	MaxConns int             // default 4
	LogLevel logger.LogLevel // logger.Silent for production
}

// Open opens the database, runs migrations, and enables WAL mode with
// a busy timeout so concurrent readers do not fail on locked writes.
// The pragmas ride in the DSN so every pooled connection gets them,
// not just the one a PRAGMA statement happens to run on.
func Open(cfg Config) (*Store, error) {
	dsn := cfg.Path +
		"?_foreign_keys=ON&_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db, err := gorm.Open(sqlite.Dialector{Conn: sqlDB}, &gorm.Config{
		Logger:      logger.Default.LogMode(cfg.LogLevel),
		PrepareStmt: true,
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("open gorm: %w", err)
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 4
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns)
	sqlDB.SetConnMaxLifetime(0)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := db.AutoMigrate(
		&Player{},
		&Item{},
		&InventorySlot{},
		&Session{},
		&MapCompletion{},
		&MapCompletionItem{},
		&Affix{},
		&MapAffix{},
		&MarketTransaction{},
		&PriceRevision{},
	); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &Store{db: db, sqlDB: sqlDB}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.sqlDB.Close()
}

// DB exposes the GORM handle for the read-only query surface.
func (s *Store) DB() *gorm.DB {
	return s.db
}
