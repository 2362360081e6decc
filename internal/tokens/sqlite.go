package tokens

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLiteStore is a Store backed by the tokens table, giving token records
// keyed durability across process restarts. The schema is managed by
// shared.RunMigrations.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a token store over an open database connection.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Put(ctx context.Context, record Record) error {
	query := `
		INSERT INTO tokens (user_id, access_token, refresh_token, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		record.UserID, record.AccessToken, record.RefreshToken,
		record.ExpiresAt.UTC(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to store token record: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, userID string) (*Record, error) {
	query := `SELECT user_id, access_token, refresh_token, expires_at FROM tokens WHERE user_id = ?`

	var record Record
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&record.UserID, &record.AccessToken, &record.RefreshToken, &record.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token record: %w", err)
	}

	return &record, nil
}
