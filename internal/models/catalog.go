package models

import "time"

// SourceStatus reflects the operational health of a catalog source.
type SourceStatus string

const (
	SourceStatusWorking SourceStatus = "working"
	SourceStatusBroken  SourceStatus = "broken"
)

// ConnectorSource is a catalog entry describing one feed-format adapter.
// Entries are seeded at startup from the source registry and are never
// deleted while referenced by a unified connector source.
type ConnectorSource struct {
	Key       string       `json:"key"`
	Title     string       `json:"title"`
	Status    SourceStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// IsWorking returns true if the source is marked operational.
func (s *ConnectorSource) IsWorking() bool {
	return s.Status == SourceStatusWorking
}
