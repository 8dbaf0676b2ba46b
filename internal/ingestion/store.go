package ingestion

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leadstream/leadstream/internal/models"
)

// ConnectorStore is the connector persistence the pipeline needs.
type ConnectorStore interface {
	// GetByID retrieves a connector with its sources in stored order, or
	// nil when absent.
	GetByID(ctx context.Context, id string) (*models.UnifiedConnector, error)

	// UpdateSourceStatus transitions a source's sync state.
	UpdateSourceStatus(ctx context.Context, sourceID string, status models.SyncStatus) error

	// CompleteSource marks a source sync successful with recomputed stats.
	CompleteSource(ctx context.Context, sourceID string, stats models.SourceStats, calculatedAt time.Time) error
}

// LeadStore is the lead persistence the pipeline needs.
type LeadStore interface {
	// GetOrCreate stores the lead unless its URL already exists, returning
	// the stored row either way.
	GetOrCreate(ctx context.Context, lead models.ConnectorLead) (*models.ConnectorLead, bool, error)

	// UpdateStatus backfills the classification verdict on a lead.
	UpdateStatus(ctx context.Context, leadID string, status models.LeadStatus) error

	// LinkSource associates a lead with a source, leaving existing pairs
	// untouched.
	LinkSource(ctx context.Context, sourceID, leadID string) (bool, error)

	// LinkedURLs returns the lead URLs already associated with a source.
	LinkedURLs(ctx context.Context, sourceID string) (map[string]bool, error)

	// LinkedPublishedDates returns publication timestamps of non-blocked
	// leads linked to a source, nil entries for undated leads.
	LinkedPublishedDates(ctx context.Context, sourceID string) ([]*time.Time, error)
}

// MemoryConnectorStore implements an in-memory connector store for
// testing/development.
type MemoryConnectorStore struct {
	mu         sync.Mutex
	connectors map[string]models.UnifiedConnector

	// StatusHistory records every status transition per source ID.
	StatusHistory map[string][]models.SyncStatus
	// Stats records the last completed stats per source ID.
	Stats map[string]models.SourceStats
	// CalculatedAt records the last completion timestamp per source ID.
	CalculatedAt map[string]time.Time
}

// NewMemoryConnectorStore creates an empty in-memory connector store.
func NewMemoryConnectorStore() *MemoryConnectorStore {
	return &MemoryConnectorStore{
		connectors:    make(map[string]models.UnifiedConnector),
		StatusHistory: make(map[string][]models.SyncStatus),
		Stats:         make(map[string]models.SourceStats),
		CalculatedAt:  make(map[string]time.Time),
	}
}

// Put stores a connector.
func (s *MemoryConnectorStore) Put(connector models.UnifiedConnector) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectors[connector.ID] = connector
}

// GetByID retrieves a connector by ID.
func (s *MemoryConnectorStore) GetByID(ctx context.Context, id string) (*models.UnifiedConnector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	connector, ok := s.connectors[id]
	if !ok {
		return nil, nil
	}
	return &connector, nil
}

// UpdateSourceStatus records a status transition.
func (s *MemoryConnectorStore) UpdateSourceStatus(ctx context.Context, sourceID string, status models.SyncStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StatusHistory[sourceID] = append(s.StatusHistory[sourceID], status)
	return nil
}

// CompleteSource records a successful completion.
func (s *MemoryConnectorStore) CompleteSource(ctx context.Context, sourceID string, stats models.SourceStats, calculatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StatusHistory[sourceID] = append(s.StatusHistory[sourceID], models.SyncStatusSuccess)
	s.Stats[sourceID] = stats
	s.CalculatedAt[sourceID] = calculatedAt
	return nil
}

// LastStatus returns the most recent status transition for a source.
func (s *MemoryConnectorStore) LastStatus(sourceID string) models.SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.StatusHistory[sourceID]
	if len(history) == 0 {
		return ""
	}
	return history[len(history)-1]
}

type memorySourceLink struct {
	alreadyAdded bool
	blocked      bool
}

// MemoryLeadStore implements an in-memory lead store for testing/development.
// Dedup semantics match the database: one lead per exact URL, associations
// keyed by (source, lead).
type MemoryLeadStore struct {
	mu         sync.Mutex
	leadsByURL map[string]models.ConnectorLead
	leadsByID  map[string]string // lead ID -> URL
	links      map[string]map[string]memorySourceLink
}

// NewMemoryLeadStore creates an empty in-memory lead store.
func NewMemoryLeadStore() *MemoryLeadStore {
	return &MemoryLeadStore{
		leadsByURL: make(map[string]models.ConnectorLead),
		leadsByID:  make(map[string]string),
		links:      make(map[string]map[string]memorySourceLink),
	}
}

// GetOrCreate stores the lead unless its URL already exists.
func (s *MemoryLeadStore) GetOrCreate(ctx context.Context, lead models.ConnectorLead) (*models.ConnectorLead, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.leadsByURL[lead.URL]; ok {
		return &existing, false, nil
	}

	lead.ID = uuid.NewString()
	lead.CreatedAt = time.Now().UTC()
	s.leadsByURL[lead.URL] = lead
	s.leadsByID[lead.ID] = lead.URL
	return &lead, true, nil
}

// UpdateStatus backfills the classification verdict on a lead.
func (s *MemoryLeadStore) UpdateStatus(ctx context.Context, leadID string, status models.LeadStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	url, ok := s.leadsByID[leadID]
	if !ok {
		return nil
	}
	lead := s.leadsByURL[url]
	lead.Status = status
	s.leadsByURL[url] = lead
	return nil
}

// LinkSource associates a lead with a source.
func (s *MemoryLeadStore) LinkSource(ctx context.Context, sourceID, leadID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.links[sourceID] == nil {
		s.links[sourceID] = make(map[string]memorySourceLink)
	}
	if _, exists := s.links[sourceID][leadID]; exists {
		return false, nil
	}
	s.links[sourceID][leadID] = memorySourceLink{}
	return true, nil
}

// LinkedURLs returns the lead URLs already associated with a source.
func (s *MemoryLeadStore) LinkedURLs(ctx context.Context, sourceID string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	urls := make(map[string]bool)
	for leadID := range s.links[sourceID] {
		if url, ok := s.leadsByID[leadID]; ok {
			urls[url] = true
		}
	}
	return urls, nil
}

// LinkedPublishedDates returns publication dates of non-blocked linked leads.
func (s *MemoryLeadStore) LinkedPublishedDates(ctx context.Context, sourceID string) ([]*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dates := []*time.Time{}
	for leadID, link := range s.links[sourceID] {
		if link.blocked {
			continue
		}
		url, ok := s.leadsByID[leadID]
		if !ok {
			continue
		}
		dates = append(dates, s.leadsByURL[url].PublishedOn)
	}
	return dates, nil
}

// SetBlocked toggles the blocked flag on an association.
func (s *MemoryLeadStore) SetBlocked(ctx context.Context, sourceID, leadID string, blocked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if links, ok := s.links[sourceID]; ok {
		if link, ok := links[leadID]; ok {
			link.blocked = blocked
			links[leadID] = link
		}
	}
	return nil
}

// LeadByURL returns the stored lead for a URL, or nil.
func (s *MemoryLeadStore) LeadByURL(url string) *models.ConnectorLead {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lead, ok := s.leadsByURL[url]; ok {
		return &lead
	}
	return nil
}

// LinkCount returns the number of leads linked to a source.
func (s *MemoryLeadStore) LinkCount(sourceID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.links[sourceID])
}

// LeadCount returns the number of distinct stored leads.
func (s *MemoryLeadStore) LeadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.leadsByURL)
}
