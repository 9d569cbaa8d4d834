// Package prefs persists per-client UI preferences such as the theme.
package prefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sourpat/payresolve/internal/db"
)

// Store provides key-value access to the preferences table.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Get returns the value stored for clientID and key.
func (s *Store) Get(ctx context.Context, clientID, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM preferences WHERE client_id = ? AND key = ?`,
		clientID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading preference %s: %w", key, err)
	}
	return value, true, nil
}

// Set upserts the value for clientID and key.
func (s *Store) Set(ctx context.Context, clientID, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO preferences (client_id, key, value, updated_at)
		VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT(client_id, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		clientID, key, value,
	)
	if err != nil {
		return fmt.Errorf("writing preference %s: %w", key, err)
	}
	return nil
}

// Delete removes a stored value. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, clientID, key string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM preferences WHERE client_id = ? AND key = ?`, clientID, key,
	); err != nil {
		return fmt.Errorf("deleting preference %s: %w", key, err)
	}
	return nil
}

// ForClient returns a view of the store scoped to one client. It satisfies
// theme.Store.
func (s *Store) ForClient(clientID string) *ClientStore {
	return &ClientStore{store: s, clientID: clientID}
}

// ClientStore is a Store bound to a single client id.
type ClientStore struct {
	store    *Store
	clientID string
}

func (c *ClientStore) Get(ctx context.Context, key string) (string, bool, error) {
	return c.store.Get(ctx, c.clientID, key)
}

func (c *ClientStore) Set(ctx context.Context, key, value string) error {
	return c.store.Set(ctx, c.clientID, key, value)
}
