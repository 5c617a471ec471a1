package database

import (
	"database/sql"

	"github.com/TobiSchelling/SocialAgent/internal/content"
)

// UpsertAccount stores the sealed token for a user's platform account and
// returns the account ID.
func (db *DB) UpsertAccount(userID string, platform content.Platform, sealedToken, scopes string) (int64, error) {
	_, err := db.conn.Exec(
		`INSERT INTO accounts (user_id, platform, sealed_token, scopes)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, platform) DO UPDATE SET
			sealed_token = excluded.sealed_token,
			scopes = excluded.scopes,
			updated_at = datetime('now')`,
		userID, string(platform), sealedToken, scopes,
	)
	if err != nil {
		return 0, err
	}
	var id int64
	err = db.conn.QueryRow(
		"SELECT id FROM accounts WHERE user_id = ? AND platform = ?", userID, string(platform),
	).Scan(&id)
	return id, err
}

// GetAccount returns the account for a user and platform, or ErrNotFound.
func (db *DB) GetAccount(userID string, platform content.Platform) (*Account, error) {
	row := db.conn.QueryRow(
		`SELECT id, user_id, platform, sealed_token, COALESCE(scopes, ''), created_at, updated_at
		FROM accounts WHERE user_id = ? AND platform = ?`, userID, string(platform),
	)
	return scanAccount(row)
}

// GetAccountByID returns an account by ID, or ErrNotFound.
func (db *DB) GetAccountByID(id int64) (*Account, error) {
	row := db.conn.QueryRow(
		`SELECT id, user_id, platform, sealed_token, COALESCE(scopes, ''), created_at, updated_at
		FROM accounts WHERE id = ?`, id,
	)
	return scanAccount(row)
}

// ListAccounts returns all accounts of a user ordered by platform.
func (db *DB) ListAccounts(userID string) ([]Account, error) {
	rows, err := db.conn.Query(
		`SELECT id, user_id, platform, sealed_token, COALESCE(scopes, ''), created_at, updated_at
		FROM accounts WHERE user_id = ? ORDER BY platform`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		var a Account
		var platform string
		if err := rows.Scan(&a.ID, &a.UserID, &platform, &a.SealedToken, &a.Scopes, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		a.Platform = content.Platform(platform)
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// DeleteAccount removes a user's account. It returns ErrNotFound when no row
// matched.
func (db *DB) DeleteAccount(userID string, id int64) error {
	result, err := db.conn.Exec("DELETE FROM accounts WHERE id = ? AND user_id = ?", id, userID)
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

func scanAccount(row *sql.Row) (*Account, error) {
	var a Account
	var platform string
	err := row.Scan(&a.ID, &a.UserID, &platform, &a.SealedToken, &a.Scopes, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Platform = content.Platform(platform)
	return &a, nil
}
