package database

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/TobiSchelling/SocialAgent/internal/content"
)

// RunRecord is everything one pipeline run produced.
type RunRecord struct {
	Persona    string
	BrandRules string
	Platforms  []content.Platform
	TrendCount int
	Ideas      []content.Idea
	Content    *content.Repurposed
	Suggested  []content.ScheduledPost
	Passed     int
	Failed     int
}

// SaveRun persists a run in one transaction: a run report, the ideas, their
// platform renderings and the suggested schedule. It returns the report ID and
// a map from in-run idea IDs to stored idea IDs.
func (db *DB) SaveRun(run RunRecord) (int64, map[int64]int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, nil, err
	}
	defer tx.Rollback()

	platformsJSON, _ := json.Marshal(run.Platforms)
	contentCount := 0
	if run.Content != nil {
		contentCount = run.Content.Len()
	}
	res, err := tx.Exec(
		`INSERT INTO run_reports (persona, platforms, trend_count, idea_count, content_count, passed_count, failed_count, scheduled_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.Persona, string(platformsJSON), run.TrendCount, len(run.Ideas), contentCount, run.Passed, run.Failed, len(run.Suggested),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("inserting run report: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, nil, err
	}

	ids := make(map[int64]int64, len(run.Ideas))
	for _, idea := range run.Ideas {
		tagsJSON, _ := json.Marshal(idea.Hashtags)
		res, err := tx.Exec(
			`INSERT INTO ideas (run_id, trend_id, title, summary, hook, caption, hashtags, persona, brand_rules, ai_type, status, platform_targets)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, idea.TrendID, idea.Title, idea.Summary, idea.Hook, idea.Caption, string(tagsJSON),
			run.Persona, run.BrandRules, idea.AIType, string(idea.Status), string(platformsJSON),
		)
		if err != nil {
			return 0, nil, fmt.Errorf("inserting idea %d: %w", idea.ID, err)
		}
		stored, err := res.LastInsertId()
		if err != nil {
			return 0, nil, err
		}
		ids[idea.ID] = stored
	}

	if run.Content != nil {
		for _, p := range run.Content.Platforms() {
			for _, pc := range run.Content.Items(p) {
				if err := insertContent(tx, ids[pc.IdeaID], pc); err != nil {
					return 0, nil, fmt.Errorf("inserting %s content for idea %d: %w", p, pc.IdeaID, err)
				}
			}
		}
	}

	for _, sp := range run.Suggested {
		if _, err := tx.Exec(
			`INSERT INTO schedule (idea_id, platform, slot, status) VALUES (?, ?, ?, ?)`,
			ids[sp.IdeaID], string(sp.Platform), sp.SuggestedTime, string(ScheduleSuggested),
		); err != nil {
			return 0, nil, fmt.Errorf("inserting suggestion for idea %d: %w", sp.IdeaID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, nil, err
	}
	return runID, ids, nil
}

func insertContent(tx *sql.Tx, ideaID int64, pc content.PlatformContent) error {
	var tagsJSON *string
	if pc.Hashtags != nil {
		data, _ := json.Marshal(pc.Hashtags)
		s := string(data)
		tagsJSON = &s
	}
	_, err := tx.Exec(
		`INSERT INTO platform_content (idea_id, platform, caption, hashtags, character_limit, media_type, tone, compliance_status, compliance_issues)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ideaID, string(pc.Platform), pc.Caption, tagsJSON, pc.CharacterLimit,
		pc.MediaType, pc.Tone, string(pc.ComplianceStatus), pc.ComplianceIssues,
	)
	return err
}

const ideaColumns = `id, COALESCE(run_id, 0), COALESCE(trend_id, 0), title, COALESCE(summary, ''), COALESCE(hook, ''),
	caption, hashtags, COALESCE(persona, ''), COALESCE(brand_rules, ''), ai_type, status, platform_targets, created_at, updated_at`

// ListIdeas returns stored ideas, newest first. An empty status matches all.
func (db *DB) ListIdeas(status content.IdeaStatus, limit, offset int) ([]StoredIdea, error) {
	if limit <= 0 {
		limit = 100
	}
	query := "SELECT " + ideaColumns + " FROM ideas"
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ideas := []StoredIdea{}
	for rows.Next() {
		idea, err := scanIdea(rows)
		if err != nil {
			return nil, err
		}
		ideas = append(ideas, *idea)
	}
	return ideas, rows.Err()
}

// GetIdea returns a stored idea, or ErrNotFound.
func (db *DB) GetIdea(id int64) (*StoredIdea, error) {
	row := db.conn.QueryRow("SELECT "+ideaColumns+" FROM ideas WHERE id = ?", id)
	idea, err := scanIdea(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return idea, err
}

// SetIdeaStatus updates an idea's status.
func (db *DB) SetIdeaStatus(id int64, status content.IdeaStatus) error {
	result, err := db.conn.Exec(
		"UPDATE ideas SET status = ?, updated_at = datetime('now') WHERE id = ?", string(status), id,
	)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetIdeaContent returns the platform renderings of an idea in insertion order.
func (db *DB) GetIdeaContent(ideaID int64) ([]StoredContent, error) {
	rows, err := db.conn.Query(
		`SELECT id, idea_id, platform, COALESCE(caption, ''), hashtags, character_limit,
			COALESCE(media_type, ''), COALESCE(tone, ''), compliance_status, COALESCE(compliance_issues, '')
		FROM platform_content WHERE idea_id = ? ORDER BY id`, ideaID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredContent
	for rows.Next() {
		var sc StoredContent
		var platform, status string
		var tagsJSON *string
		if err := rows.Scan(&sc.ID, &sc.IdeaID, &platform, &sc.Caption, &tagsJSON, &sc.CharacterLimit,
			&sc.MediaType, &sc.Tone, &status, &sc.ComplianceIssues); err != nil {
			return nil, err
		}
		sc.Platform = content.Platform(platform)
		sc.ComplianceStatus = content.ComplianceStatus(status)
		if tagsJSON != nil {
			if err := json.Unmarshal([]byte(*tagsJSON), &sc.Hashtags); err != nil {
				sc.Hashtags = nil
			}
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// GetContent returns the rendering of an idea for one platform, or ErrNotFound.
func (db *DB) GetContent(ideaID int64, platform content.Platform) (*StoredContent, error) {
	items, err := db.GetIdeaContent(ideaID)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].Platform == platform {
			return &items[i], nil
		}
	}
	return nil, ErrNotFound
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIdea(s scanner) (*StoredIdea, error) {
	var idea StoredIdea
	var status string
	var tagsJSON, targetsJSON *string
	if err := s.Scan(&idea.ID, &idea.RunID, &idea.TrendID, &idea.Title, &idea.Summary, &idea.Hook,
		&idea.Caption, &tagsJSON, &idea.Persona, &idea.BrandRules, &idea.AIType, &status, &targetsJSON,
		&idea.CreatedAt, &idea.UpdatedAt); err != nil {
		return nil, err
	}
	idea.Status = content.IdeaStatus(status)
	if tagsJSON != nil {
		if err := json.Unmarshal([]byte(*tagsJSON), &idea.Hashtags); err != nil {
			idea.Hashtags = nil
		}
	}
	if targetsJSON != nil {
		if err := json.Unmarshal([]byte(*targetsJSON), &idea.PlatformTargets); err != nil {
			idea.PlatformTargets = nil
		}
	}
	return &idea, nil
}
