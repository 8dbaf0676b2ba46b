package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/leadstream/leadstream/internal/models"
)

// PostgresConnectorRepository stores unified connectors and their configured
// sources in PostgreSQL.
type PostgresConnectorRepository struct {
	db *sql.DB
}

// NewPostgresConnectorRepository creates a connector repository over db.
func NewPostgresConnectorRepository(db *sql.DB) *PostgresConnectorRepository {
	return &PostgresConnectorRepository{db: db}
}

// Create inserts a connector and its child sources in one transaction.
// IDs and timestamps are assigned here; the passed struct is updated in
// place.
func (r *PostgresConnectorRepository) Create(ctx context.Context, connector *models.UnifiedConnector) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	connector.ID = uuid.NewString()
	connector.CreatedAt = now
	connector.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO unified_connectors (id, title, project_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, connector.ID, connector.Title, connector.ProjectID, connector.IsActive, connector.CreatedAt, connector.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert connector: %w", err)
	}

	for i := range connector.Sources {
		src := &connector.Sources[i]
		src.ID = uuid.NewString()
		src.ConnectorID = connector.ID
		src.Status = models.SyncStatusProcessing
		src.CreatedAt = now
		src.UpdatedAt = now

		paramsJSON, err := json.Marshal(src.Params)
		if err != nil {
			return fmt.Errorf("failed to marshal source params: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO unified_connector_sources
				(id, connector_id, source_key, params, position, status, stats, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, '{}', $7, $8)
		`, src.ID, src.ConnectorID, src.SourceKey, paramsJSON, i, src.Status, src.CreatedAt, src.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert connector source %s: %w", src.SourceKey, err)
		}
	}

	return tx.Commit()
}

// GetByID retrieves a connector with its sources in stored order. Returns
// nil when absent.
func (r *PostgresConnectorRepository) GetByID(ctx context.Context, id string) (*models.UnifiedConnector, error) {
	var c models.UnifiedConnector
	err := r.db.QueryRowContext(ctx, `
		SELECT id, title, project_id, is_active, created_at, updated_at
		FROM unified_connectors
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Title, &c.ProjectID, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query connector: %w", err)
	}

	sources, err := r.ListSources(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Sources = sources

	return &c, nil
}

// ListByProject retrieves connectors for a project, newest first, without
// child sources.
func (r *PostgresConnectorRepository) ListByProject(ctx context.Context, projectID string) ([]models.UnifiedConnector, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, project_id, is_active, created_at, updated_at
		FROM unified_connectors
		WHERE project_id = $1
		ORDER BY created_at DESC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query connectors: %w", err)
	}
	defer rows.Close()

	connectors := []models.UnifiedConnector{}
	for rows.Next() {
		var c models.UnifiedConnector
		if err := rows.Scan(&c.ID, &c.Title, &c.ProjectID, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan connector: %w", err)
		}
		connectors = append(connectors, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return connectors, nil
}

// Delete removes a connector; child sources and their lead associations
// cascade.
func (r *PostgresConnectorRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM unified_connectors WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete connector: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("connector %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListSources retrieves the configured sources of a connector in stored
// order.
func (r *PostgresConnectorRepository) ListSources(ctx context.Context, connectorID string) ([]models.UnifiedConnectorSource, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, connector_id, source_key, params, status, stats, last_calculated_at, created_at, updated_at
		FROM unified_connector_sources
		WHERE connector_id = $1
		ORDER BY position ASC, created_at ASC
	`, connectorID)
	if err != nil {
		return nil, fmt.Errorf("failed to query connector sources: %w", err)
	}
	defer rows.Close()

	sources := []models.UnifiedConnectorSource{}
	for rows.Next() {
		src, err := scanConnectorSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, *src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return sources, nil
}

// GetSource retrieves one configured source by ID. Returns nil when absent.
func (r *PostgresConnectorRepository) GetSource(ctx context.Context, sourceID string) (*models.UnifiedConnectorSource, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, connector_id, source_key, params, status, stats, last_calculated_at, created_at, updated_at
		FROM unified_connector_sources
		WHERE id = $1
	`, sourceID)

	src, err := scanConnectorSource(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return src, nil
}

// UpdateSourceStatus transitions a source's sync state.
func (r *PostgresConnectorRepository) UpdateSourceStatus(ctx context.Context, sourceID string, status models.SyncStatus) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE unified_connector_sources
		SET status = $2, updated_at = NOW()
		WHERE id = $1
	`, sourceID, status)
	if err != nil {
		return fmt.Errorf("failed to update source status: %w", err)
	}
	return nil
}

// CompleteSource marks a source sync successful, recording stats and the
// calculation timestamp together with the status transition.
func (r *PostgresConnectorRepository) CompleteSource(ctx context.Context, sourceID string, stats models.SourceStats, calculatedAt time.Time) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal source stats: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE unified_connector_sources
		SET status = $2, stats = $3, last_calculated_at = $4, updated_at = NOW()
		WHERE id = $1
	`, sourceID, models.SyncStatusSuccess, statsJSON, calculatedAt)
	if err != nil {
		return fmt.Errorf("failed to complete source: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConnectorSource(scanner rowScanner) (*models.UnifiedConnectorSource, error) {
	var src models.UnifiedConnectorSource
	var paramsJSON, statsJSON []byte
	var lastCalculatedAt sql.NullTime

	err := scanner.Scan(
		&src.ID,
		&src.ConnectorID,
		&src.SourceKey,
		&paramsJSON,
		&src.Status,
		&statsJSON,
		&lastCalculatedAt,
		&src.CreatedAt,
		&src.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan connector source: %w", err)
	}

	if len(paramsJSON) > 0 {
		if err := json.Unmarshal(paramsJSON, &src.Params); err != nil {
			return nil, fmt.Errorf("failed to unmarshal source params: %w", err)
		}
	}
	if len(statsJSON) > 0 {
		if err := json.Unmarshal(statsJSON, &src.Stats); err != nil {
			return nil, fmt.Errorf("failed to unmarshal source stats: %w", err)
		}
	}
	if lastCalculatedAt.Valid {
		src.LastCalculatedAt = &lastCalculatedAt.Time
	}

	return &src, nil
}
