package database

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func TestMigrateNewDB(t *testing.T) {
	db := openTestDB(t)

	version, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if version != latestVersion() {
		t.Errorf("expected version %d, got %d", latestVersion(), version)
	}

	for _, table := range []string{"accounts", "trend_items", "brand_profile", "ideas", "platform_content", "schedule", "posts", "run_reports", "metrics_snapshots"} {
		var count int
		if err := db.conn.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count); err != nil {
			t.Fatalf("query %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("expected table %s", table)
		}
	}
}

func TestMigrateResumesFromStoredVersion(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "partial.db")

	// A database that stopped after the first migration.
	raw, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	if err := apply(raw, migrations[0]); err != nil {
		t.Fatalf("apply first migration: %v", err)
	}
	raw.Close()

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	version, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if version != latestVersion() {
		t.Errorf("expected version %d, got %d", latestVersion(), version)
	}

	var count int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name='idx_schedule_status_time'").Scan(&count); err != nil {
		t.Fatalf("query: %v", err)
	}
	if count != 1 {
		t.Error("expected later migrations to run")
	}
}

func TestMigrateIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "idem.db")

	db1, err := Open(dbPath)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if _, err := db1.UpsertAccount("u1", "x", "enc:v1:abc", ""); err != nil {
		t.Fatalf("UpsertAccount: %v", err)
	}
	db1.Close()

	db2, err := Open(dbPath)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer db2.Close()

	accounts, err := db2.ListAccounts("u1")
	if err != nil {
		t.Fatalf("ListAccounts: %v", err)
	}
	if len(accounts) != 1 {
		t.Errorf("expected data to survive reopen, got %d accounts", len(accounts))
	}
}

func TestMigrateRejectsNewerSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "future.db")
	raw, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	if _, err := raw.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("stamp version: %v", err)
	}
	raw.Close()

	if _, err := Open(dbPath); !errors.Is(err, ErrSchemaTooNew) {
		t.Fatalf("expected ErrSchemaTooNew, got %v", err)
	}
}

func TestGetSchemaVersionEmptyDB(t *testing.T) {
	conn, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "empty.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()

	version, err := getSchemaVersion(conn)
	if err != nil {
		t.Fatalf("getSchemaVersion: %v", err)
	}
	if version != 0 {
		t.Errorf("expected version 0 on new db, got %d", version)
	}
}

func TestAnalyticsMigrationReplays(t *testing.T) {
	db := openTestDB(t)
	tx, err := db.conn.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()
	if err := migrations[len(migrations)-1].Up(tx); err != nil {
		t.Fatalf("replaying analytics migration: %v", err)
	}
	var n int
	if err := tx.QueryRow("SELECT COUNT(*) FROM pragma_table_info('posts') WHERE name = 'metrics_json'").Scan(&n); err != nil {
		t.Fatalf("table_info: %v", err)
	}
	if n != 1 {
		t.Errorf("expected one metrics_json column, got %d", n)
	}
}
