package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leadstream/leadstream/internal/lookup"
	"github.com/leadstream/leadstream/internal/models"
)

func TestQueue_EnqueueRejectsWhenFull(t *testing.T) {
	connectors := NewMemoryConnectorStore()
	processor := NewProcessor(testRegistry(), connectors, NewMemoryLeadStore(), &fakeResolver{}, testLogger(), nil)
	orchestrator := NewOrchestrator(connectors, processor, testLogger())

	// Capacity one, no workers started: the second enqueue must bounce.
	queue := NewQueue(orchestrator, 1, 1, testLogger(), nil)

	if err := queue.Enqueue("conn-1"); err != nil {
		t.Fatalf("first enqueue failed: %v", err)
	}
	if err := queue.Enqueue("conn-2"); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestQueue_WorkersDrainJobs(t *testing.T) {
	adapter := &fakeAdapter{key: "rss-feed", leads: nil}
	resolver := &fakeResolver{classified: []lookup.ClassifiedURL{}}

	connectors := NewMemoryConnectorStore()
	leads := NewMemoryLeadStore()
	processor := NewProcessor(testRegistry(adapter), connectors, leads, resolver, testLogger(), nil)
	orchestrator := NewOrchestrator(connectors, processor, testLogger())

	connectors.Put(models.UnifiedConnector{
		ID:       "conn-1",
		IsActive: true,
		Sources: []models.UnifiedConnectorSource{
			{ID: "src-1", ConnectorID: "conn-1", SourceKey: "rss-feed"},
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := NewQueue(orchestrator, 4, 2, testLogger(), nil)
	queue.Start(ctx)

	if err := queue.Enqueue("conn-1"); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for connectors.LastStatus("src-1") != models.SyncStatusSuccess {
		select {
		case <-deadline:
			t.Fatalf("sync did not complete, last status %q", connectors.LastStatus("src-1"))
		case <-time.After(10 * time.Millisecond):
		}
	}

	queue.Stop()
}
