package database

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

var (
	globalMu sync.RWMutex
	globalDB *sql.DB
	testDB   *sql.DB
)

// Open opens a *sql.DB for the given driver/dsn and stores it as the
// process-wide singleton returned by GetDB. Safe to call once at process
// startup in cmd/controlplane and cmd/dataplane.
func Open(driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	globalMu.Lock()
	globalDB = db
	globalMu.Unlock()
	return db, nil
}

// GetDB returns the process-wide database singleton. Tests may override it
// with SetTestDB.
func GetDB() (*sql.DB, error) {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if testDB != nil {
		return testDB, nil
	}
	if globalDB == nil {
		return nil, fmt.Errorf("database not opened; call database.Open first")
	}
	return globalDB, nil
}

// SetTestDB overrides the singleton for the lifetime of a test process.
// Passing nil clears the override.
func SetTestDB(db *sql.DB) {
	globalMu.Lock()
	defer globalMu.Unlock()
	testDB = db
}
