//go:build !without_sqlite

package db

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// OpenSqlite opens (or creates) a SQLite database in WAL mode. Every caller
// gets its own database; the relational store and the vector index never
// share a file, a connection or a transaction. ":memory:" is mapped to a
// uniquely named in-memory database so two in-memory callers do not land in
// the same shared-cache database, while the connections of one handle still
// do.
func OpenSqlite(dbPath string) (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_journal_mode=WAL&_foreign_keys=on", dbPath)
	if dbPath == ":memory:" {
		dsn = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	}
	db, err := gorm.Open(
		sqlite.Open(dsn),
		&gorm.Config{},
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open sqlite database: %s", dbPath)
	}
	return db, nil
}

func CloseDB(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrapf(err, "failed to get db")
	}
	if err := sqlDB.Close(); err != nil {
		return errors.Wrapf(err, "failed to close db")
	}
	return nil
}
