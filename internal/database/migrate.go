package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
)

// ErrSchemaTooNew is returned when the database was written by a newer build.
var ErrSchemaTooNew = errors.New("database schema is newer than this build")

func getSchemaVersion(conn *sql.DB) (int, error) {
	var version int
	if err := conn.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

// SchemaVersion reports the applied migration version.
func (db *DB) SchemaVersion() (int, error) {
	return getSchemaVersion(db.conn)
}

// migrate applies every migration above the stored user_version, in order.
// A database stamped with a version this build does not know is left alone.
func migrate(conn *sql.DB) error {
	current, err := getSchemaVersion(conn)
	if err != nil {
		return err
	}
	latest := latestVersion()
	if current > latest {
		return fmt.Errorf("%w: version %d, supported %d", ErrSchemaTooNew, current, latest)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := apply(conn, m); err != nil {
			return err
		}
	}
	return nil
}

func apply(conn *sql.DB, m Migration) error {
	log.Printf("Applying schema migration %d: %s", m.Version, m.Description)

	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.Version, err)
	}
	if err := m.Up(tx); err != nil {
		tx.Rollback()
		return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.Version, err)
	}

	// modernc/sqlite does not apply user_version inside a transaction. The DDL
	// is idempotent, so a crash before this line replays the migration.
	if _, err := conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
		return fmt.Errorf("setting version %d: %w", m.Version, err)
	}
	return nil
}
