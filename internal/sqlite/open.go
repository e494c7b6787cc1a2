package sqlite

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/jdholdren/podwatch/internal/migrations"
)

// Open connects to the database file at path and migrates it.
func Open(path string) (*sqlx.DB, error) {
	dbx, err := sqlx.Open("sqlite", fmt.Sprintf("%s?_txlock=immediate&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path))
	if err != nil {
		return nil, fmt.Errorf("error opening database: %s", err)
	}
	// Writes are serialized by sqlite anyway.
	dbx.SetMaxOpenConns(1)

	if err := migrations.Run(dbx); err != nil {
		dbx.Close()
		return nil, fmt.Errorf("error running migrations: %w", err)
	}

	return dbx, nil
}
