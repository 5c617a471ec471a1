package database

import (
	"database/sql"
	"fmt"
)

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS accounts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    platform TEXT NOT NULL,
    sealed_token TEXT NOT NULL,
    scopes TEXT,
    created_at TEXT DEFAULT (datetime('now')),
    updated_at TEXT DEFAULT (datetime('now')),
    UNIQUE (user_id, platform)
);

CREATE TABLE IF NOT EXISTS trend_items (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source TEXT NOT NULL,
    topic TEXT NOT NULL,
    url TEXT UNIQUE NOT NULL,
    author TEXT,
    text TEXT NOT NULL,
    like_count INTEGER DEFAULT 0,
    comment_count INTEGER DEFAULT 0,
    reshare_count INTEGER DEFAULT 0,
    score REAL DEFAULT 0,
    captured_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS brand_profile (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    persona TEXT NOT NULL,
    brand_rules TEXT NOT NULL,
    default_hashtags TEXT,
    updated_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS ideas (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id INTEGER,
    trend_id INTEGER,
    title TEXT NOT NULL,
    summary TEXT,
    hook TEXT,
    caption TEXT NOT NULL,
    hashtags TEXT,
    persona TEXT,
    brand_rules TEXT,
    ai_type TEXT DEFAULT 'text',
    status TEXT NOT NULL DEFAULT 'draft' CHECK(status IN ('draft', 'approved', 'scheduled')),
    platform_targets TEXT,
    created_at TEXT DEFAULT (datetime('now')),
    updated_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS platform_content (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    idea_id INTEGER NOT NULL REFERENCES ideas(id) ON DELETE CASCADE,
    platform TEXT NOT NULL,
    caption TEXT,
    hashtags TEXT,
    character_limit INTEGER DEFAULT 0,
    media_type TEXT,
    tone TEXT,
    compliance_status TEXT NOT NULL DEFAULT 'unknown',
    compliance_issues TEXT,
    UNIQUE (idea_id, platform)
);

CREATE TABLE IF NOT EXISTS posts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    idea_id INTEGER NOT NULL REFERENCES ideas(id) ON DELETE CASCADE,
    platform TEXT NOT NULL,
    external_id TEXT UNIQUE NOT NULL,
    permalink TEXT,
    posted_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS schedule (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    idea_id INTEGER NOT NULL REFERENCES ideas(id) ON DELETE CASCADE,
    platform TEXT NOT NULL,
    slot TEXT,
    scheduled_for TEXT,
    timezone TEXT DEFAULT 'UTC',
    status TEXT NOT NULL DEFAULT 'suggested' CHECK(status IN ('suggested', 'scheduled', 'published', 'failed')),
    post_id INTEGER REFERENCES posts(id),
    error TEXT
);

CREATE TABLE IF NOT EXISTS run_reports (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    generated_at TEXT DEFAULT (datetime('now')),
    persona TEXT,
    platforms TEXT,
    trend_count INTEGER DEFAULT 0,
    idea_count INTEGER DEFAULT 0,
    content_count INTEGER DEFAULT 0,
    passed_count INTEGER DEFAULT 0,
    failed_count INTEGER DEFAULT 0,
    scheduled_count INTEGER DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_trend_items_captured ON trend_items(captured_at);
CREATE INDEX IF NOT EXISTS idx_ideas_status ON ideas(status);
CREATE INDEX IF NOT EXISTS idx_platform_content_idea ON platform_content(idea_id);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "schedule lookup index",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_schedule_status_time ON schedule(status, scheduled_for);
CREATE INDEX IF NOT EXISTS idx_accounts_user ON accounts(user_id);
`)
			return err
		},
	},
	{
		Version:     3,
		Description: "post analytics",
		Up: func(tx *sql.Tx) error {
			if err := addColumn(tx, "posts", "metrics_json", "TEXT"); err != nil {
				return err
			}
			if err := addColumn(tx, "posts", "metrics_at", "TEXT"); err != nil {
				return err
			}
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS metrics_snapshots (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    post_id INTEGER NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
    platform TEXT NOT NULL,
    external_id TEXT NOT NULL,
    snapshot_at TEXT NOT NULL DEFAULT (datetime('now')),
    metrics_json TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_metrics_snapshots_post ON metrics_snapshots(post_id, snapshot_at);
`)
			return err
		},
	},
}

// addColumn adds a column unless it already exists, so a replayed migration
// does not fail on ALTER TABLE.
func addColumn(tx *sql.Tx, table, column, decl string) error {
	rows, err := tx.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid          int
			name, typ    string
			notNull, pk  int
			defaultValue sql.NullString
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultValue, &pk); err != nil {
			return err
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()
	_, err = tx.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, decl))
	return err
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
