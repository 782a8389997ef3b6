// Package sqlite implements the Catalog Store on gorm and SQLite: one
// catalog file per tenant namespace, one note inbox per desk and a global
// desk catalog.
package sqlite

import (
	"fmt"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/V4T54L/tradedesk/internal/domain"
)

const busyTimeoutMillis = 5000

// openDB opens a SQLite file in WAL mode with a single connection, so that
// writers to one file are serialized by the driver rather than failing with
// SQLITE_BUSY.
func openDB(path string) (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_foreign_keys=on", path, busyTimeoutMillis)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", path, err)
	}
	return db, nil
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// execAll runs DDL statements in order.
func execAll(db *gorm.DB, stmts ...string) error {
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// ensureColumn adds a model field's column when the table predates it. An
// existing column, including one added concurrently, is a no-op.
func ensureColumn(db *gorm.DB, model any, field string) error {
	m := db.Migrator()
	if m.HasColumn(model, field) {
		return nil
	}
	if err := m.AddColumn(model, field); err != nil && !isDuplicateColumn(err) {
		return fmt.Errorf("failed to add column %s: %w", field, err)
	}
	return nil
}

func isDuplicateColumn(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "duplicate column")
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &domain.StorageError{Op: op, Err: err}
}
