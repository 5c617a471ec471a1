package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/TobiSchelling/SocialAgent/internal/content"
)

const postColumns = `id, idea_id, platform, external_id, COALESCE(permalink, ''), posted_at, COALESCE(metrics_json, ''), COALESCE(metrics_at, '')`

func scanPost(s interface{ Scan(...any) error }) (*Post, error) {
	var (
		p        Post
		platform string
		metrics  string
	)
	if err := s.Scan(&p.ID, &p.IdeaID, &platform, &p.ExternalID, &p.Permalink, &p.PostedAt, &metrics, &p.MetricsAt); err != nil {
		return nil, err
	}
	p.Platform = content.Platform(platform)
	if metrics != "" {
		p.Metrics = json.RawMessage(metrics)
	}
	return &p, nil
}

// ListPosts returns published posts, newest first.
func (db *DB) ListPosts(limit int) ([]Post, error) {
	if limit <= 0 {
		limit = 100
	}
	return db.queryPosts(`SELECT `+postColumns+` FROM posts ORDER BY id DESC LIMIT ?`, limit)
}

// AllPosts returns every published post, oldest first.
func (db *DB) AllPosts() ([]Post, error) {
	return db.queryPosts(`SELECT ` + postColumns + ` FROM posts ORDER BY id`)
}

func (db *DB) queryPosts(query string, args ...any) ([]Post, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *p)
	}
	return posts, rows.Err()
}

// GetPost returns a single post by ID.
func (db *DB) GetPost(id int64) (*Post, error) {
	p, err := scanPost(db.conn.QueryRow(`SELECT `+postColumns+` FROM posts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// SaveSnapshot records a metrics reading for a post and makes it the post's
// latest metrics.
func (db *DB) SaveSnapshot(postID int64, at time.Time, metrics json.RawMessage) (int64, error) {
	if !json.Valid(metrics) {
		return 0, fmt.Errorf("snapshot for post %d: invalid metrics JSON", postID)
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stamp := FormatTime(at)
	result, err := tx.Exec(
		`UPDATE posts SET metrics_json = ?, metrics_at = ? WHERE id = ?`,
		string(metrics), stamp, postID,
	)
	if err != nil {
		return 0, err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return 0, ErrNotFound
	}

	result, err = tx.Exec(
		`INSERT INTO metrics_snapshots (post_id, platform, external_id, snapshot_at, metrics_json)
		 SELECT id, platform, external_id, ?, ? FROM posts WHERE id = ?`,
		stamp, string(metrics), postID,
	)
	if err != nil {
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	return id, tx.Commit()
}

// ListSnapshots returns a post's metrics history, oldest first.
func (db *DB) ListSnapshots(postID int64) ([]MetricsSnapshot, error) {
	rows, err := db.conn.Query(
		`SELECT id, post_id, platform, external_id, snapshot_at, metrics_json
		 FROM metrics_snapshots WHERE post_id = ? ORDER BY snapshot_at, id`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MetricsSnapshot
	for rows.Next() {
		var (
			s        MetricsSnapshot
			platform string
			metrics  string
		)
		if err := rows.Scan(&s.ID, &s.PostID, &platform, &s.ExternalID, &s.SnapshotAt, &metrics); err != nil {
			return nil, err
		}
		s.Platform = content.Platform(platform)
		s.Metrics = json.RawMessage(metrics)
		out = append(out, s)
	}
	return out, rows.Err()
}
