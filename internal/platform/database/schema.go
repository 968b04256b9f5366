package database

import (
	"database/sql"
	"fmt"
)

// schemaStatements creates the tables the control and data planes read
// and write. Full DDL migration tooling is out of scope; this is the
// minimal, portable-across-drivers bootstrap they need to run against a
// fresh database, the same role the test suite gives a bare CREATE
// TABLE set run against SQLite via TEST_DB_DRIVER.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS tenants (
		env_id TEXT PRIMARY KEY,
		next_deploy_seq INTEGER NOT NULL DEFAULT 0,
		next_var_seq INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS deploys (
		deploy_id TEXT NOT NULL,
		env_id TEXT NOT NULL,
		deploy_seq INTEGER NOT NULL,
		tag TEXT,
		description TEXT,
		created_at TIMESTAMP NOT NULL,
		PRIMARY KEY (env_id, deploy_seq)
	)`,
	`CREATE TABLE IF NOT EXISTS codes (
		env_id TEXT NOT NULL,
		deploy_seq INTEGER NOT NULL,
		fs_path TEXT NOT NULL,
		content TEXT NOT NULL,
		size INTEGER NOT NULL,
		ord INTEGER NOT NULL,
		PRIMARY KEY (env_id, deploy_seq, fs_path)
	)`,
	`CREATE TABLE IF NOT EXISTS http_routes (
		env_id TEXT NOT NULL,
		deploy_seq INTEGER NOT NULL,
		http_path TEXT NOT NULL,
		method TEXT NOT NULL,
		entry_file TEXT NOT NULL,
		export_name TEXT NOT NULL,
		signature_json TEXT NOT NULL,
		PRIMARY KEY (env_id, deploy_seq, http_path)
	)`,
	`CREATE TABLE IF NOT EXISTS plugins (
		name TEXT PRIMARY KEY,
		owning_env_id TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS variables (
		scope TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		deleted INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (scope, owner_id, key)
	)`,
}

// InitSchema creates every table this repository reads or writes, if
// not already present. Safe to call on every process start.
func InitSchema(db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}
