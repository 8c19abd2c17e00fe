package preference

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on the preferences table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new Store backed by the given connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM preferences WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("reading preference: %w", err)
	}
	return value, nil
}

// Set implements Store.
func (s *PostgresStore) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO preferences (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`

	if _, err := s.pool.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("writing preference: %w", err)
	}
	return nil
}

// Delete implements Store.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM preferences WHERE key = $1`, key); err != nil {
		return fmt.Errorf("deleting preference: %w", err)
	}
	return nil
}
