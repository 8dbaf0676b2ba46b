// Package ingestion runs unified connector syncs: fetch leads from the
// configured source adapters, deduplicate them globally by URL, resolve
// classifications through the lookup service, and maintain per-source
// associations and stats.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/leadstream/leadstream/internal/lookup"
	"github.com/leadstream/leadstream/internal/models"
	"github.com/leadstream/leadstream/internal/sources"
)

// URLResolver resolves classifications for a batch of URLs.
type URLResolver interface {
	Resolve(ctx context.Context, sourceKey string, urls []string) ([]lookup.ClassifiedURL, error)
}

// Metrics receives pipeline observations. The HTTP collector implements it;
// tests use the nop default.
type Metrics interface {
	RecordSourceSync(sourceKey, status string)
	RecordLeadsFetched(sourceKey string, count int)
	SetQueueDepth(depth int)
}

type nopMetrics struct{}

func (nopMetrics) RecordSourceSync(string, string) {}
func (nopMetrics) RecordLeadsFetched(string, int)  {}
func (nopMetrics) SetQueueDepth(int)               {}

// Processor syncs one connector source at a time. Every run ends in a
// terminal status; errors are absorbed into FAILURE and logged, never
// propagated, so one broken source cannot take down its siblings.
type Processor struct {
	registry   *sources.Registry
	connectors ConnectorStore
	leads      LeadStore
	resolver   URLResolver
	logger     *slog.Logger
	metrics    Metrics
}

// NewProcessor creates a source processor.
func NewProcessor(
	registry *sources.Registry,
	connectors ConnectorStore,
	leads LeadStore,
	resolver URLResolver,
	logger *slog.Logger,
	metrics Metrics,
) *Processor {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Processor{
		registry:   registry,
		connectors: connectors,
		leads:      leads,
		resolver:   resolver,
		logger:     logger,
		metrics:    metrics,
	}
}

// Process runs one sync for the given source and returns its terminal
// status.
func (p *Processor) Process(ctx context.Context, source models.UnifiedConnectorSource) models.SyncStatus {
	log := p.logger.With("source_id", source.ID, "source_key", source.SourceKey)

	if err := p.connectors.UpdateSourceStatus(ctx, source.ID, models.SyncStatusProcessing); err != nil {
		log.Error("failed to mark source processing", "error", err)
		p.metrics.RecordSourceSync(source.SourceKey, string(models.SyncStatusFailure))
		return models.SyncStatusFailure
	}

	err := p.run(ctx, source, log)
	if err != nil {
		log.Error("source sync failed", "error", err)
		if statusErr := p.connectors.UpdateSourceStatus(ctx, source.ID, models.SyncStatusFailure); statusErr != nil {
			log.Error("failed to mark source failed", "error", statusErr)
		}
		p.metrics.RecordSourceSync(source.SourceKey, string(models.SyncStatusFailure))
		return models.SyncStatusFailure
	}

	log.Info("source sync completed")
	p.metrics.RecordSourceSync(source.SourceKey, string(models.SyncStatusSuccess))
	return models.SyncStatusSuccess
}

// run executes the sync steps. The recover boundary turns panics from
// adapters or stores into ordinary failures.
func (p *Processor) run(ctx context.Context, source models.UnifiedConnectorSource, log *slog.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("source sync panicked: %v", r)
		}
	}()

	adapter, err := p.registry.Resolve(source.SourceKey)
	if err != nil {
		return err
	}

	fetched, total, err := adapter.Fetch(ctx, source.Params, 0, 0)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	p.metrics.RecordLeadsFetched(source.SourceKey, len(fetched))
	log.Info("fetched leads", "count", len(fetched), "total", total)

	linked, err := p.leads.LinkedURLs(ctx, source.ID)
	if err != nil {
		return fmt.Errorf("read linked urls: %w", err)
	}

	// Store every fetched lead in adapter order; collect the URLs not yet
	// associated with this source for classification.
	leadsByURL := make(map[string]*models.ConnectorLead, len(fetched))
	var unlinked []string
	for _, item := range fetched {
		if _, seen := leadsByURL[item.URL]; seen {
			continue
		}

		stored, _, err := p.leads.GetOrCreate(ctx, models.ConnectorLead{
			URL:         item.URL,
			Title:       item.Title,
			Source:      item.Source,
			Author:      item.Author,
			PublishedOn: item.PublishedOn,
			Website:     item.Website,
			Raw:         item.Raw,
		})
		if err != nil {
			return fmt.Errorf("store lead %s: %w", item.URL, err)
		}

		leadsByURL[stored.URL] = stored
		if !linked[stored.URL] {
			unlinked = append(unlinked, stored.URL)
		}
	}

	classified, err := p.resolver.Resolve(ctx, source.SourceKey, unlinked)
	if err != nil {
		return fmt.Errorf("resolve classifications: %w", err)
	}

	// Only classified URLs get associated and backfilled. Unresolved URLs
	// stay unlinked and are collected again on the next trigger.
	for _, c := range classified {
		stored, ok := leadsByURL[c.URL]
		if !ok {
			log.Warn("classification for unknown url", "url", c.URL)
			continue
		}

		status, ok := leadStatusFrom(c.Status)
		if !ok {
			log.Warn("classification with unknown status", "url", c.URL, "status", c.Status)
			continue
		}

		if _, err := p.leads.LinkSource(ctx, source.ID, stored.ID); err != nil {
			return fmt.Errorf("link lead %s: %w", c.URL, err)
		}
		if err := p.leads.UpdateStatus(ctx, stored.ID, status); err != nil {
			return fmt.Errorf("update lead status %s: %w", c.URL, err)
		}
	}

	dates, err := p.leads.LinkedPublishedDates(ctx, source.ID)
	if err != nil {
		return fmt.Errorf("read published dates: %w", err)
	}

	var stats models.SourceStats
	for _, d := range dates {
		stats.Add(d)
	}

	if err := p.connectors.CompleteSource(ctx, source.ID, stats, time.Now().UTC()); err != nil {
		return fmt.Errorf("complete source: %w", err)
	}
	return nil
}

func leadStatusFrom(raw string) (models.LeadStatus, bool) {
	switch raw {
	case lookup.StatusSuccess:
		return models.LeadStatusSuccess, true
	case lookup.StatusFailure:
		return models.LeadStatusFailure, true
	default:
		return models.LeadStatusNone, false
	}
}
