package database

import (
	"database/sql"
	"encoding/json"
)

// GetLastRun returns the most recent run report, or nil if none exist.
func (db *DB) GetLastRun() (*RunReport, error) {
	var r RunReport
	var persona, platforms sql.NullString
	err := db.conn.QueryRow(
		`SELECT id, generated_at, persona, platforms, trend_count, idea_count, content_count,
			passed_count, failed_count, scheduled_count
		FROM run_reports ORDER BY id DESC LIMIT 1`,
	).Scan(&r.ID, &r.GeneratedAt, &persona, &platforms, &r.TrendCount, &r.IdeaCount, &r.ContentCount,
		&r.PassedCount, &r.FailedCount, &r.ScheduledCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.Persona = persona.String
	if platforms.Valid {
		if err := json.Unmarshal([]byte(platforms.String), &r.Platforms); err != nil {
			r.Platforms = nil
		}
	}
	return &r, nil
}

// GetStats returns aggregate database statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM accounts", &s.Accounts},
		{"SELECT COUNT(*) FROM trend_items", &s.Trends},
		{"SELECT COUNT(*) FROM ideas", &s.Ideas},
		{"SELECT COUNT(*) FROM ideas WHERE status = 'draft'", &s.DraftIdeas},
		{"SELECT COUNT(*) FROM ideas WHERE status = 'approved'", &s.ApprovedIdeas},
		{"SELECT COUNT(*) FROM ideas WHERE status = 'scheduled'", &s.ScheduledIdeas},
		{"SELECT COUNT(*) FROM schedule WHERE status = 'scheduled'", &s.ScheduledPosts},
		{"SELECT COUNT(*) FROM posts", &s.Posts},
		{"SELECT COUNT(*) FROM metrics_snapshots", &s.Snapshots},
		{"SELECT COUNT(*) FROM run_reports", &s.Runs},
	}

	for _, q := range queries {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	return s, nil
}
