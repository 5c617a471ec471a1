package database

import (
	"database/sql"
	"strings"
)

// GetBrandProfile returns the stored brand profile, or ErrNotFound.
func (db *DB) GetBrandProfile() (*BrandProfile, error) {
	var p BrandProfile
	var tags string
	err := db.conn.QueryRow(
		"SELECT persona, brand_rules, COALESCE(default_hashtags, ''), updated_at FROM brand_profile WHERE id = 1",
	).Scan(&p.Persona, &p.BrandRules, &tags, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.DefaultHashtags = strings.Fields(tags)
	return &p, nil
}

// UpsertBrandProfile creates or replaces the single brand profile row.
func (db *DB) UpsertBrandProfile(p BrandProfile) error {
	_, err := db.conn.Exec(
		`INSERT INTO brand_profile (id, persona, brand_rules, default_hashtags)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			persona = excluded.persona,
			brand_rules = excluded.brand_rules,
			default_hashtags = excluded.default_hashtags,
			updated_at = datetime('now')`,
		p.Persona, p.BrandRules, strings.Join(p.DefaultHashtags, " "),
	)
	return err
}
