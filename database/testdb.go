package database

import (
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB opens a migrated in-memory SQLite database for tests. A single
// connection is used so every query sees the same memory database.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := Open(sqlite.Open("file::memory:"), logger.Default.LogMode(logger.Silent))
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("test database handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := Migrate(db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}
