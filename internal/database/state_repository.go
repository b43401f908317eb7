package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// StateRepository stores JSON documents under string keys
type StateRepository struct {
	db *sqlx.DB
}

// NewStateRepository creates a new repository instance
func NewStateRepository(db *sqlx.DB) *StateRepository {
	return &StateRepository{db: db}
}

// Load returns the value stored under key, or nil when the key was never saved
func (r *StateRepository) Load(ctx context.Context, key string) ([]byte, error) {
	var value string
	query := r.db.Rebind("SELECT value FROM kv_state WHERE key = ?")
	err := r.db.GetContext(ctx, &value, query, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load state %q: %w", key, err)
	}
	return []byte(value), nil
}

// Save writes value under key, replacing any previous value
func (r *StateRepository) Save(ctx context.Context, key string, value []byte) error {
	query := r.db.Rebind(`
		INSERT INTO kv_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`)
	if _, err := r.db.ExecContext(ctx, query, key, string(value), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save state %q: %w", key, err)
	}
	return nil
}

// Delete removes key; deleting a missing key is not an error
func (r *StateRepository) Delete(ctx context.Context, key string) error {
	query := r.db.Rebind("DELETE FROM kv_state WHERE key = ?")
	if _, err := r.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete state %q: %w", key, err)
	}
	return nil
}

// Keys lists every stored key in sorted order
func (r *StateRepository) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	if err := r.db.SelectContext(ctx, &keys, "SELECT key FROM kv_state ORDER BY key"); err != nil {
		return nil, fmt.Errorf("failed to list state keys: %w", err)
	}
	return keys, nil
}
