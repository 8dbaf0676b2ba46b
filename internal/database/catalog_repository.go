package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/leadstream/leadstream/internal/models"
)

// PostgresCatalogRepository stores the source catalog in PostgreSQL.
type PostgresCatalogRepository struct {
	db *sql.DB
}

// NewPostgresCatalogRepository creates a catalog repository over db.
func NewPostgresCatalogRepository(db *sql.DB) *PostgresCatalogRepository {
	return &PostgresCatalogRepository{db: db}
}

// Seed upserts the registry catalog. Titles follow the registry; an
// operator-set status survives reseeding.
func (r *PostgresCatalogRepository) Seed(ctx context.Context, entries []models.ConnectorSource) error {
	query := `
		INSERT INTO connector_sources (key, title)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET
			title = EXCLUDED.title,
			updated_at = NOW()
	`

	for _, entry := range entries {
		if _, err := r.db.ExecContext(ctx, query, entry.Key, entry.Title); err != nil {
			return fmt.Errorf("failed to seed catalog source %s: %w", entry.Key, err)
		}
	}
	return nil
}

// List returns the catalog ordered by creation.
func (r *PostgresCatalogRepository) List(ctx context.Context) ([]models.ConnectorSource, error) {
	query := `
		SELECT key, title, status, created_at, updated_at
		FROM connector_sources
		ORDER BY created_at ASC, key ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}
	defer rows.Close()

	sources := []models.ConnectorSource{}
	for rows.Next() {
		var s models.ConnectorSource
		if err := rows.Scan(&s.Key, &s.Title, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan catalog source: %w", err)
		}
		sources = append(sources, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return sources, nil
}

// Get retrieves one catalog entry by key. Returns nil when absent.
func (r *PostgresCatalogRepository) Get(ctx context.Context, key string) (*models.ConnectorSource, error) {
	query := `
		SELECT key, title, status, created_at, updated_at
		FROM connector_sources
		WHERE key = $1
	`

	var s models.ConnectorSource
	err := r.db.QueryRowContext(ctx, query, key).Scan(&s.Key, &s.Title, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog source: %w", err)
	}
	return &s, nil
}

// SetStatus records an operator health override for a catalog source.
func (r *PostgresCatalogRepository) SetStatus(ctx context.Context, key string, status models.SourceStatus) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE connector_sources
		SET status = $2, updated_at = NOW()
		WHERE key = $1
	`, key, status)
	if err != nil {
		return fmt.Errorf("failed to update catalog status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("catalog source %s: %w", key, ErrNotFound)
	}
	return nil
}
