package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/authrelay/internal/models"
	"github.com/desertthunder/authrelay/internal/shared"
)

// TokenRepository implements [models.TokenStore] over SQLite.
type TokenRepository struct {
	db *sql.DB
}

// NewTokenRepository creates a new [TokenRepository] with the given database connection
func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Upsert creates or overwrites the token record keyed by its Spotify user id.
//
// The insert path assigns a generated id and creation timestamp; the conflict
// path only touches the refresh token, display name, and update timestamp.
func (r *TokenRepository) Upsert(record *models.TokenRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	if record.ID == "" {
		record.ID = shared.GenerateID()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	query := `
		INSERT INTO tokens (id, user_id, refresh_token, display_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			refresh_token = excluded.refresh_token,
			display_name = excluded.display_name,
			updated_at = excluded.updated_at
	`

	_, err := r.db.Exec(query, record.ID, record.UserID, record.RefreshToken, record.DisplayName, record.CreatedAt, record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert token record: %w", err)
	}

	return nil
}

// Get retrieves the token record for a Spotify user id.
//
// Returns [shared.ErrTokenNotFound] when no record exists.
func (r *TokenRepository) Get(userID string) (*models.TokenRecord, error) {
	query := `
		SELECT id, user_id, refresh_token, display_name, created_at, updated_at
		FROM tokens
		WHERE user_id = ?
	`

	var (
		record      models.TokenRecord
		displayName sql.NullString
	)

	err := r.db.QueryRow(query, userID).Scan(
		&record.ID, &record.UserID, &record.RefreshToken, &displayName, &record.CreatedAt, &record.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", shared.ErrTokenNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query token record: %w", err)
	}

	if displayName.Valid {
		record.DisplayName = displayName.String
	}

	return &record, nil
}

// List retrieves all token records, most recently updated first.
func (r *TokenRepository) List() ([]*models.TokenRecord, error) {
	query := `
		SELECT id, user_id, refresh_token, display_name, created_at, updated_at
		FROM tokens
		ORDER BY updated_at DESC
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query token records: %w", err)
	}
	defer rows.Close()

	var records []*models.TokenRecord
	for rows.Next() {
		var (
			record      models.TokenRecord
			displayName sql.NullString
		)

		err := rows.Scan(&record.ID, &record.UserID, &record.RefreshToken, &displayName, &record.CreatedAt, &record.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan token record: %w", err)
		}

		if displayName.Valid {
			record.DisplayName = displayName.String
		}

		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}
