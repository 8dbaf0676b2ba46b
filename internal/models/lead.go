package models

import "time"

// LeadStatus is the classification verdict from the lookup service for a
// connector lead. The zero value means the lead has not been classified yet.
type LeadStatus string

const (
	LeadStatusNone    LeadStatus = ""
	LeadStatusSuccess LeadStatus = "success"
	LeadStatusFailure LeadStatus = "failure"
)

// ConnectorLead is a raw fetched item, deduplicated globally by URL across
// all unified connectors. The payload is immutable after creation; only
// Status is backfilled once classification arrives.
type ConnectorLead struct {
	ID          string         `json:"id"`
	URL         string         `json:"url"`
	Title       string         `json:"title"`
	Source      string         `json:"source,omitempty"`
	Author      string         `json:"author,omitempty"`
	PublishedOn *time.Time     `json:"published_on,omitempty"`
	Website     string         `json:"website,omitempty"`
	Raw         map[string]any `json:"raw,omitempty"`
	Status      LeadStatus     `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
}

// SourceLead links a unified connector source to a connector lead it
// discovered. Uniqueness is per (source, lead) pair; the lead itself is
// shared and outlives any single connector.
type SourceLead struct {
	SourceID     string    `json:"source_id"`
	LeadID       string    `json:"lead_id"`
	AlreadyAdded bool      `json:"already_added"`
	Blocked      bool      `json:"blocked"`
	CreatedAt    time.Time `json:"created_at"`

	// Lead is populated on listing reads.
	Lead *ConnectorLead `json:"lead,omitempty"`
}

// Lead is the downstream platform document created when an operator
// promotes a connector lead.
type Lead struct {
	ID              string    `json:"id"`
	ProjectID       string    `json:"project_id"`
	Title           string    `json:"title"`
	URL             string    `json:"url"`
	ConnectorLeadID string    `json:"connector_lead_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
