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

// PostgresLeadRepository stores globally deduplicated connector leads and
// their per-source associations in PostgreSQL.
type PostgresLeadRepository struct {
	db *sql.DB
}

// NewPostgresLeadRepository creates a lead repository over db.
func NewPostgresLeadRepository(db *sql.DB) *PostgresLeadRepository {
	return &PostgresLeadRepository{db: db}
}

// GetOrCreate inserts the lead unless a lead with the same URL already
// exists, returning the stored row either way. The insert relies on the
// unique URL constraint; concurrent callers race through ON CONFLICT and
// one wins, the rest fall through to the select.
func (r *PostgresLeadRepository) GetOrCreate(ctx context.Context, lead models.ConnectorLead) (*models.ConnectorLead, bool, error) {
	rawJSON, err := json.Marshal(lead.Raw)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal lead raw payload: %w", err)
	}

	lead.ID = uuid.NewString()
	lead.CreatedAt = time.Now().UTC()

	var insertedID string
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO connector_leads (id, url, title, source, author, published_on, website, raw, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (url) DO NOTHING
		RETURNING id
	`, lead.ID, lead.URL, lead.Title, lead.Source, lead.Author, lead.PublishedOn, lead.Website, rawJSON, lead.Status, lead.CreatedAt).Scan(&insertedID)

	if err == nil {
		return &lead, true, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, fmt.Errorf("failed to insert lead: %w", err)
	}

	// Conflict: another row owns this URL, fetch it.
	stored, err := r.GetByURL(ctx, lead.URL)
	if err != nil {
		return nil, false, err
	}
	if stored == nil {
		return nil, false, fmt.Errorf("lead for url %s vanished after conflict", lead.URL)
	}
	return stored, false, nil
}

// GetByURL retrieves a lead by exact URL. Returns nil when absent.
func (r *PostgresLeadRepository) GetByURL(ctx context.Context, url string) (*models.ConnectorLead, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, url, title, source, author, published_on, website, raw, status, created_at
		FROM connector_leads
		WHERE url = $1
	`, url)

	lead, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return lead, nil
}

// UpdateStatus backfills the classification verdict on a lead. Writing the
// same status again is a no-op.
func (r *PostgresLeadRepository) UpdateStatus(ctx context.Context, leadID string, status models.LeadStatus) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE connector_leads
		SET status = $2
		WHERE id = $1
	`, leadID, status)
	if err != nil {
		return fmt.Errorf("failed to update lead status: %w", err)
	}
	return nil
}

// LinkSource associates a lead with a connector source. Existing pairs are
// untouched, preserving their operator flags.
func (r *PostgresLeadRepository) LinkSource(ctx context.Context, sourceID, leadID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO unified_connector_source_leads (source_id, lead_id)
		VALUES ($1, $2)
		ON CONFLICT (source_id, lead_id) DO NOTHING
	`, sourceID, leadID)
	if err != nil {
		return false, fmt.Errorf("failed to link lead to source: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// LinkedURLs returns the set of lead URLs already associated with a source.
func (r *PostgresLeadRepository) LinkedURLs(ctx context.Context, sourceID string) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT cl.url
		FROM unified_connector_source_leads scl
		JOIN connector_leads cl ON cl.id = scl.lead_id
		WHERE scl.source_id = $1
	`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query linked urls: %w", err)
	}
	defer rows.Close()

	urls := make(map[string]bool)
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("failed to scan linked url: %w", err)
		}
		urls[url] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return urls, nil
}

// SourceLeadFilter narrows ListSourceLeads by association flags.
type SourceLeadFilter struct {
	Blocked      *bool
	AlreadyAdded *bool
}

// ListSourceLeads retrieves the leads discovered by a source with their
// association flags, newest association first.
func (r *PostgresLeadRepository) ListSourceLeads(ctx context.Context, sourceID string, filter SourceLeadFilter) ([]models.SourceLead, error) {
	query := `
		SELECT scl.source_id, scl.lead_id, scl.already_added, scl.blocked, scl.created_at,
		       cl.id, cl.url, cl.title, cl.source, cl.author, cl.published_on, cl.website, cl.raw, cl.status, cl.created_at
		FROM unified_connector_source_leads scl
		JOIN connector_leads cl ON cl.id = scl.lead_id
		WHERE scl.source_id = $1
	`
	args := []interface{}{sourceID}

	if filter.Blocked != nil {
		args = append(args, *filter.Blocked)
		query += fmt.Sprintf(" AND scl.blocked = $%d", len(args))
	}
	if filter.AlreadyAdded != nil {
		args = append(args, *filter.AlreadyAdded)
		query += fmt.Sprintf(" AND scl.already_added = $%d", len(args))
	}
	query += " ORDER BY scl.created_at DESC, cl.url ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query source leads: %w", err)
	}
	defer rows.Close()

	results := []models.SourceLead{}
	for rows.Next() {
		var sl models.SourceLead
		var lead models.ConnectorLead
		var rawJSON []byte
		var publishedOn sql.NullTime

		err := rows.Scan(
			&sl.SourceID,
			&sl.LeadID,
			&sl.AlreadyAdded,
			&sl.Blocked,
			&sl.CreatedAt,
			&lead.ID,
			&lead.URL,
			&lead.Title,
			&lead.Source,
			&lead.Author,
			&publishedOn,
			&lead.Website,
			&rawJSON,
			&lead.Status,
			&lead.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source lead: %w", err)
		}

		if publishedOn.Valid {
			lead.PublishedOn = &publishedOn.Time
		}
		if len(rawJSON) > 0 {
			if err := json.Unmarshal(rawJSON, &lead.Raw); err != nil {
				return nil, fmt.Errorf("failed to unmarshal lead raw payload: %w", err)
			}
		}

		sl.Lead = &lead
		results = append(results, sl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return results, nil
}

// SetBlocked toggles the blocked flag on a source-lead association.
func (r *PostgresLeadRepository) SetBlocked(ctx context.Context, sourceID, leadID string, blocked bool) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE unified_connector_source_leads
		SET blocked = $3
		WHERE source_id = $1 AND lead_id = $2
	`, sourceID, leadID, blocked)
	if err != nil {
		return fmt.Errorf("failed to update blocked flag: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("source lead association: %w", ErrNotFound)
	}
	return nil
}

// Promote creates a downstream lead document from a connector lead and
// marks the association already_added, in one transaction.
func (r *PostgresLeadRepository) Promote(ctx context.Context, sourceID, leadID, projectID string) (*models.Lead, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var title, url string
	err = tx.QueryRowContext(ctx, `
		SELECT cl.title, cl.url
		FROM unified_connector_source_leads scl
		JOIN connector_leads cl ON cl.id = scl.lead_id
		WHERE scl.source_id = $1 AND scl.lead_id = $2
	`, sourceID, leadID).Scan(&title, &url)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("source lead association: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query connector lead: %w", err)
	}

	lead := models.Lead{
		ID:              uuid.NewString(),
		ProjectID:       projectID,
		Title:           title,
		URL:             url,
		ConnectorLeadID: leadID,
		CreatedAt:       time.Now().UTC(),
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO leads (id, project_id, title, url, connector_lead_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, lead.ID, lead.ProjectID, lead.Title, lead.URL, lead.ConnectorLeadID, lead.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert lead: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE unified_connector_source_leads
		SET already_added = TRUE
		WHERE source_id = $1 AND lead_id = $2
	`, sourceID, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark association added: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit promotion: %w", err)
	}
	return &lead, nil
}

// LinkedPublishedDates returns the publication timestamps of non-blocked
// leads linked to a source, for stats recomputation. Leads without a
// publication date come back as nil entries.
func (r *PostgresLeadRepository) LinkedPublishedDates(ctx context.Context, sourceID string) ([]*time.Time, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT cl.published_on
		FROM unified_connector_source_leads scl
		JOIN connector_leads cl ON cl.id = scl.lead_id
		WHERE scl.source_id = $1 AND scl.blocked = FALSE
	`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query published dates: %w", err)
	}
	defer rows.Close()

	dates := []*time.Time{}
	for rows.Next() {
		var published sql.NullTime
		if err := rows.Scan(&published); err != nil {
			return nil, fmt.Errorf("failed to scan published date: %w", err)
		}
		if published.Valid {
			t := published.Time
			dates = append(dates, &t)
		} else {
			dates = append(dates, nil)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return dates, nil
}

func scanLead(scanner rowScanner) (*models.ConnectorLead, error) {
	var lead models.ConnectorLead
	var rawJSON []byte
	var publishedOn sql.NullTime

	err := scanner.Scan(
		&lead.ID,
		&lead.URL,
		&lead.Title,
		&lead.Source,
		&lead.Author,
		&publishedOn,
		&lead.Website,
		&rawJSON,
		&lead.Status,
		&lead.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan lead: %w", err)
	}

	if publishedOn.Valid {
		lead.PublishedOn = &publishedOn.Time
	}
	if len(rawJSON) > 0 {
		if err := json.Unmarshal(rawJSON, &lead.Raw); err != nil {
			return nil, fmt.Errorf("failed to unmarshal lead raw payload: %w", err)
		}
	}

	return &lead, nil
}
