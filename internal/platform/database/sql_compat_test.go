package database

import (
	"os"
	"testing"
)

func withDriver(t *testing.T, driver string, fn func()) {
	t.Helper()
	prev := os.Getenv("TEST_DB_DRIVER")
	os.Setenv("TEST_DB_DRIVER", driver)
	defer os.Setenv("TEST_DB_DRIVER", prev)
	fn()
}

func TestConvertPlaceholders_Postgres(t *testing.T) {
	withDriver(t, "postgres", func() {
		got := ConvertPlaceholders("SELECT * FROM codes WHERE env_id = ? AND deploy_seq = ?")
		want := "SELECT * FROM codes WHERE env_id = $1 AND deploy_seq = $2"
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})
}

func TestConvertPlaceholders_MySQLFromDollarN(t *testing.T) {
	withDriver(t, "mysql", func() {
		got := ConvertPlaceholders("SELECT * FROM codes WHERE env_id = $1 AND deploy_seq = $2")
		want := "SELECT * FROM codes WHERE env_id = ? AND deploy_seq = ?"
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})
}

func TestConvertPlaceholders_SQLitePassthrough(t *testing.T) {
	withDriver(t, "sqlite3", func() {
		got := ConvertPlaceholders("SELECT * FROM codes WHERE env_id = ?")
		want := "SELECT * FROM codes WHERE env_id = ?"
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})
}

func TestConvertReturning_MySQLStripsClause(t *testing.T) {
	withDriver(t, "mysql", func() {
		query, needsLastInsertID := ConvertReturning("INSERT INTO deploys (env_id) VALUES (?) RETURNING deploy_seq")
		if query != "INSERT INTO deploys (env_id) VALUES (?)" {
			t.Errorf("unexpected query: %q", query)
		}
		if !needsLastInsertID {
			t.Error("expected needsLastInsertID = true")
		}
	})
}

func TestConvertReturning_PostgresKeepsClause(t *testing.T) {
	withDriver(t, "postgres", func() {
		query, needsLastInsertID := ConvertReturning("INSERT INTO deploys (env_id) VALUES ($1) RETURNING deploy_seq")
		if query != "INSERT INTO deploys (env_id) VALUES ($1) RETURNING deploy_seq" {
			t.Errorf("unexpected query: %q", query)
		}
		if needsLastInsertID {
			t.Error("expected needsLastInsertID = false")
		}
	})
}

func TestQuoteIdentifier(t *testing.T) {
	withDriver(t, "mysql", func() {
		if got := QuoteIdentifier("deploys"); got != "`deploys`" {
			t.Errorf("got %q", got)
		}
	})
	withDriver(t, "postgres", func() {
		if got := QuoteIdentifier("deploys"); got != "deploys" {
			t.Errorf("got %q", got)
		}
	})
}

func TestRemapArgsForMySQL_RepeatedPlaceholder(t *testing.T) {
	withDriver(t, "sqlite3", func() {
		args := RemapArgsForMySQL("INSERT INTO t (a,b,c) VALUES ($1,$2,$1)", []interface{}{"x", "y"})
		if len(args) != 3 || args[0] != "x" || args[1] != "y" || args[2] != "x" {
			t.Errorf("got %v", args)
		}
	})
	withDriver(t, "postgres", func() {
		args := RemapArgsForMySQL("INSERT INTO t (a,b,c) VALUES ($1,$2,$1)", []interface{}{"x", "y"})
		if len(args) != 2 {
			t.Errorf("postgres args should pass through unchanged, got %v", args)
		}
	})
}
