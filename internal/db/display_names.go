package db

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DisplayNameRepository stores resolved display names. Users without a
// name are never stored.
type DisplayNameRepository struct {
	pool *pgxpool.Pool
}

// Get retrieves the display name for username.
func (r *DisplayNameRepository) Get(ctx context.Context, username string) (string, error) {
	query := `SELECT display_name FROM display_names WHERE username = $1`
	var name string
	err := r.pool.QueryRow(ctx, query, username).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying display name: %w", err)
	}
	return name, nil
}

// UpsertBatch inserts or updates display names keyed by username.
func (r *DisplayNameRepository) UpsertBatch(ctx context.Context, names map[string]string) error {
	if len(names) == 0 {
		return nil
	}

	query := `
		INSERT INTO display_names (username, display_name, updated_at)
		SELECT username, display_name, NOW()
		FROM unnest($1::text[], $2::text[]) AS d(username, display_name)
		ON CONFLICT (username) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			updated_at = EXCLUDED.updated_at
	`

	usernames := slices.Sorted(maps.Keys(names))
	displayNames := make([]string, len(usernames))
	for i, u := range usernames {
		displayNames[i] = names[u]
	}

	if _, err := r.pool.Exec(ctx, query, usernames, displayNames); err != nil {
		return fmt.Errorf("batch upserting display names: %w", err)
	}
	return nil
}

// All retrieves every stored display name keyed by username.
func (r *DisplayNameRepository) All(ctx context.Context) (map[string]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT username, display_name FROM display_names`)
	if err != nil {
		return nil, fmt.Errorf("querying display names: %w", err)
	}
	defer rows.Close()

	names := make(map[string]string)
	for rows.Next() {
		var username, name string
		if err := rows.Scan(&username, &name); err != nil {
			return nil, fmt.Errorf("scanning display name: %w", err)
		}
		names[username] = name
	}
	return names, rows.Err()
}
