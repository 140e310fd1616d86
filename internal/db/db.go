package db

import (
	"database/sql"
	"fmt"
	"sync"

	// Import the sqlite3 driver. The blank import is used because we only
	// need the driver to be registered with database/sql.
	_ "github.com/mattn/go-sqlite3"

	"github.com/aniways/anipush/internal/apperr"
)

// DefaultPoolSize bounds the shared connection pool when the config does
// not say otherwise.
const DefaultPoolSize = 10

var (
	shared   *sql.DB
	sharedMu sync.Mutex
)

// Open opens a bounded SQLite connection pool at the specified path and
// ensures the connection is valid. Acquisition blocks when all
// connections are in use.
func Open(path string, poolSize int) (*sql.DB, error) {
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}
	database, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseInitError, err, "failed to open database")
	}
	database.SetMaxOpenConns(poolSize)

	// Enable foreign key support in SQLite
	if _, err := database.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		database.Close()
		return nil, apperr.Wrap(apperr.DatabaseInitError, err, "failed to enable foreign key support")
	}

	// Ping the database to verify the connection is alive.
	if err := database.Ping(); err != nil {
		database.Close()
		return nil, apperr.Wrap(apperr.DatabaseInitError, err, "failed to connect to database")
	}

	return database, nil
}

// Shared returns the process-wide pool, creating it on first use. The
// mutex guards both the fast path and construction so only one pool is
// ever built no matter how many callers race into it.
func Shared(path string, poolSize int) (*sql.DB, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if shared == nil {
		database, err := Open(path, poolSize)
		if err != nil {
			return nil, fmt.Errorf("shared pool init: %w", err)
		}
		shared = database
	}
	return shared, nil
}

// CloseShared closes the process-wide pool and releases its resources.
func CloseShared() {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if shared != nil {
		shared.Close()
		shared = nil
	}
}
