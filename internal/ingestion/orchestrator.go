package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leadstream/leadstream/internal/models"
)

// Orchestrator drives full connector syncs. Sources within one connector
// run sequentially in stored order, each isolated by the processor; there
// is no aggregate verdict, the per-source statuses are the observable
// outcome.
type Orchestrator struct {
	connectors ConnectorStore
	processor  *Processor
	logger     *slog.Logger
}

// NewOrchestrator creates an orchestrator over the given processor.
func NewOrchestrator(connectors ConnectorStore, processor *Processor, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		connectors: connectors,
		processor:  processor,
		logger:     logger,
	}
}

// Sync processes every source of the connector. The returned error covers
// only the connector lookup itself; individual source failures are
// recorded as per-source status and never abort the remaining sources.
func (o *Orchestrator) Sync(ctx context.Context, connectorID string) error {
	connector, err := o.connectors.GetByID(ctx, connectorID)
	if err != nil {
		return fmt.Errorf("load connector: %w", err)
	}
	if connector == nil {
		return fmt.Errorf("connector %s not found", connectorID)
	}

	log := o.logger.With("connector_id", connector.ID, "title", connector.Title)

	if !connector.IsActive {
		log.Info("skipping sync for inactive connector")
		return nil
	}

	log.Info("starting connector sync", "sources", len(connector.Sources))

	counts := map[models.SyncStatus]int{}
	for _, source := range connector.Sources {
		status := o.processor.Process(ctx, source)
		counts[status]++
	}

	log.Info("connector sync finished",
		"succeeded", counts[models.SyncStatusSuccess],
		"failed", counts[models.SyncStatusFailure],
	)
	return nil
}
