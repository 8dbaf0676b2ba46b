package models

import "time"

// UnifiedConnector is a named, project-scoped bundle of configured sources.
// It exclusively owns its UnifiedConnectorSource children (cascade delete).
type UnifiedConnector struct {
	ID        string                   `json:"id"`
	Title     string                   `json:"title"`
	ProjectID string                   `json:"project_id"`
	IsActive  bool                     `json:"is_active"`
	Sources   []UnifiedConnectorSource `json:"sources,omitempty"`
	CreatedAt time.Time                `json:"created_at"`
	UpdatedAt time.Time                `json:"updated_at"`
}

// SyncStatus is the processing state of one unified connector source.
// A source is "processing" only while a sync is actively running; the
// terminal states are "success" and "failure" until the next trigger.
type SyncStatus string

const (
	SyncStatusProcessing SyncStatus = "processing"
	SyncStatusSuccess    SyncStatus = "success"
	SyncStatusFailure    SyncStatus = "failure"
)

// SourceParams holds adapter-specific parameters (feed URL, field
// mappings, filter criteria). The shape is opaque to everything except
// the adapter the source key resolves to.
type SourceParams map[string]any

// String returns the string value for key, or "" if absent or not a string.
func (p SourceParams) String(key string) string {
	if v, ok := p[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// StringOr returns the string value for key, falling back to def.
func (p SourceParams) StringOr(key, def string) string {
	if s := p.String(key); s != "" {
		return s
	}
	return def
}

// UnifiedConnectorSource is one configured instance of a catalog source
// within a unified connector.
type UnifiedConnectorSource struct {
	ID               string       `json:"id"`
	ConnectorID      string       `json:"connector_id"`
	SourceKey        string       `json:"source_key"`
	Params           SourceParams `json:"params"`
	LastCalculatedAt *time.Time   `json:"last_calculated_at,omitempty"`
	Stats            SourceStats  `json:"stats"`
	Status           SyncStatus   `json:"status"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// SourceStats aggregates discovered-lead counts for one source, bucketed
// by publication year-month.
type SourceStats struct {
	PublishedDates map[string]int `json:"published_dates"`
	TotalLeads     int            `json:"total_leads"`
}

// StatsBucket formats a timestamp into the year-month bucket key.
func StatsBucket(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// Add counts one lead into the stats, bucketing by publication date when
// one is known.
func (s *SourceStats) Add(publishedOn *time.Time) {
	s.TotalLeads++
	if publishedOn == nil {
		return
	}
	if s.PublishedDates == nil {
		s.PublishedDates = make(map[string]int)
	}
	s.PublishedDates[StatsBucket(*publishedOn)]++
}
