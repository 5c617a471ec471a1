package database

import (
	"database/sql"
	"time"

	"github.com/TobiSchelling/SocialAgent/internal/content"
)

const scheduleColumns = `id, idea_id, platform, COALESCE(slot, ''), COALESCE(scheduled_for, ''), COALESCE(timezone, 'UTC'), status, post_id, error`

// InsertSchedule creates a scheduled entry for an idea at a concrete time.
func (db *DB) InsertSchedule(ideaID int64, platform content.Platform, slot string, at time.Time, timezone string) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO schedule (idea_id, platform, slot, scheduled_for, timezone, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ideaID, string(platform), slot, FormatTime(at), timezone, string(ScheduleScheduled),
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// ListSchedule returns schedule entries ordered by time, suggestions last. An
// empty status matches all.
func (db *DB) ListSchedule(status ScheduleStatus) ([]ScheduleEntry, error) {
	query := "SELECT " + scheduleColumns + " FROM schedule"
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY scheduled_for IS NULL, scheduled_for, id"
	return db.querySchedule(query, args...)
}

// GetSuggestions returns the suggested slots stored for an idea.
func (db *DB) GetSuggestions(ideaID int64) ([]ScheduleEntry, error) {
	return db.querySchedule(
		"SELECT "+scheduleColumns+" FROM schedule WHERE idea_id = ? AND status = ? ORDER BY id",
		ideaID, string(ScheduleSuggested),
	)
}

// DueSchedule returns scheduled entries of approved or scheduled ideas whose
// time is at or before now.
func (db *DB) DueSchedule(now time.Time) ([]ScheduleEntry, error) {
	return db.querySchedule(
		`SELECT s.id, s.idea_id, s.platform, COALESCE(s.slot, ''), COALESCE(s.scheduled_for, ''),
			COALESCE(s.timezone, 'UTC'), s.status, s.post_id, s.error
		FROM schedule s JOIN ideas i ON i.id = s.idea_id
		WHERE s.status = ? AND s.scheduled_for <= ? AND i.status IN ('approved', 'scheduled')
		ORDER BY s.scheduled_for, s.id`,
		string(ScheduleScheduled), FormatTime(now),
	)
}

// MarkPublished links a schedule entry to its post.
func (db *DB) MarkPublished(entryID, postID int64) error {
	_, err := db.conn.Exec(
		"UPDATE schedule SET status = ?, post_id = ?, error = NULL WHERE id = ?",
		string(SchedulePublished), postID, entryID,
	)
	return err
}

// MarkFailed records a publish failure on a schedule entry.
func (db *DB) MarkFailed(entryID int64, reason string) error {
	_, err := db.conn.Exec(
		"UPDATE schedule SET status = ?, error = ? WHERE id = ?",
		string(ScheduleFailed), reason, entryID,
	)
	return err
}

func (db *DB) querySchedule(query string, args ...any) ([]ScheduleEntry, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []ScheduleEntry{}
	for rows.Next() {
		var e ScheduleEntry
		var platform, status string
		var postID sql.NullInt64
		var errText sql.NullString
		if err := rows.Scan(&e.ID, &e.IdeaID, &platform, &e.Slot, &e.ScheduledFor, &e.Timezone, &status, &postID, &errText); err != nil {
			return nil, err
		}
		e.Platform = content.Platform(platform)
		e.Status = ScheduleStatus(status)
		if postID.Valid {
			e.PostID = &postID.Int64
		}
		if errText.Valid {
			e.Error = &errText.String
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// InsertPost records a published post.
func (db *DB) InsertPost(ideaID int64, platform content.Platform, externalID, permalink string) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO posts (idea_id, platform, external_id, permalink) VALUES (?, ?, ?, ?)`,
		ideaID, string(platform), externalID, permalink,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}
