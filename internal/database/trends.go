package database

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/TobiSchelling/SocialAgent/internal/content"
)

// TrendURL returns the record's URL, or a search URL derived from the source
// platform and topic when the record has none.
func TrendURL(r content.TrendRecord) string {
	if r.URL != "" {
		return r.URL
	}
	host := map[content.Platform]string{
		content.PlatformX:         "x.com",
		content.PlatformInstagram: "instagram.com",
		content.PlatformLinkedIn:  "linkedin.com",
	}[r.Source]
	if host == "" {
		host = string(r.Source) + ".com"
	}
	return fmt.Sprintf("https://%s/search?q=%s&t=%s", host, url.QueryEscape(r.Topic), url.QueryEscape(strings.ToLower(r.Text)))
}

// UpsertTrend stores a trend keyed by URL, refreshing engagement and score on
// conflict. It returns the row ID.
func (db *DB) UpsertTrend(r content.TrendRecord) (int64, error) {
	captured := r.CapturedAt
	if captured.IsZero() {
		captured = time.Now()
	}
	link := TrendURL(r)
	_, err := db.conn.Exec(
		`INSERT INTO trend_items (source, topic, url, author, text, like_count, comment_count, reshare_count, score, captured_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			like_count = excluded.like_count,
			comment_count = excluded.comment_count,
			reshare_count = excluded.reshare_count,
			score = excluded.score,
			captured_at = excluded.captured_at`,
		string(r.Source), r.Topic, link, r.Author, r.Text,
		r.Engagement.Likes, r.Engagement.Comments, r.Engagement.Shares, r.Score, FormatTime(captured),
	)
	if err != nil {
		return 0, err
	}
	var id int64
	err = db.conn.QueryRow("SELECT id FROM trend_items WHERE url = ?", link).Scan(&id)
	return id, err
}

// ListTrends returns stored trends, best score first.
func (db *DB) ListTrends(limit, offset int) ([]content.TrendRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	return db.queryTrends(
		`SELECT id, source, topic, url, COALESCE(author, ''), text, like_count, comment_count, reshare_count, score, captured_at
		FROM trend_items ORDER BY score DESC, id ASC LIMIT ? OFFSET ?`, limit, offset,
	)
}

// RecentTrends returns trends captured at or after since, newest first.
func (db *DB) RecentTrends(since time.Time, limit int) ([]content.TrendRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	return db.queryTrends(
		`SELECT id, source, topic, url, COALESCE(author, ''), text, like_count, comment_count, reshare_count, score, captured_at
		FROM trend_items WHERE captured_at >= ? ORDER BY captured_at DESC, id ASC LIMIT ?`, FormatTime(since), limit,
	)
}

func (db *DB) queryTrends(query string, args ...any) ([]content.TrendRecord, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []content.TrendRecord{}
	for rows.Next() {
		var r content.TrendRecord
		var source, captured string
		if err := rows.Scan(&r.ID, &source, &r.Topic, &r.URL, &r.Author, &r.Text,
			&r.Engagement.Likes, &r.Engagement.Comments, &r.Engagement.Shares, &r.Score, &captured); err != nil {
			return nil, err
		}
		r.Source = content.Platform(source)
		if t, err := ParseTime(captured); err == nil {
			r.CapturedAt = t
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
