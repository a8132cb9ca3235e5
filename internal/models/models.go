// package models defines the data model for the authorization relay
package models

import (
	"fmt"
	"time"
)

// TokenRecord is the refresh token the relay keeps for a Spotify user after a
// successful code exchange. Records are upserted by user id and never deleted
// by the relay; there is no revocation flow.
type TokenRecord struct {
	ID           string
	UserID       string // Spotify user id, unique key
	RefreshToken string
	DisplayName  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate checks that the record can be persisted.
func (t *TokenRecord) Validate() error {
	if t.UserID == "" {
		return fmt.Errorf("token record requires a user id")
	}
	if t.RefreshToken == "" {
		return fmt.Errorf("token record requires a refresh token")
	}
	return nil
}

// TokenStore defines the persistence operations the relay needs for token
// records. Implementations provide their own upsert-by-key atomicity; the
// relay adds no locking around them.
type TokenStore interface {
	Upsert(record *TokenRecord) error        // Upsert creates or overwrites the record for its user id
	Get(userID string) (*TokenRecord, error) // Get retrieves the record for a user id
	List() ([]*TokenRecord, error)           // List returns all records ordered by update time
}
