package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// busyTimeout is how long a connection waits on a locked database, in milliseconds.
const busyTimeout = 5000

// OpenSQLite opens (or creates) a SQLite database at the given path.
// Pragmas are set through the DSN so every pooled connection gets them.
func OpenSQLite(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)", path, busyTimeout)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return db, nil
}
