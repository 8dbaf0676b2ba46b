package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrQueueFull indicates the trigger queue is at capacity and the sync
// request was rejected.
var ErrQueueFull = errors.New("sync queue is full")

// Queue is the bounded in-process trigger queue. HTTP trigger handlers
// enqueue connector IDs and return immediately; worker goroutines drain
// the queue and run full syncs. Multiple connectors may sync concurrently,
// sources within one connector never do.
type Queue struct {
	jobs         chan string
	workers      int
	orchestrator *Orchestrator
	logger       *slog.Logger
	metrics      Metrics
	wg           sync.WaitGroup
}

// NewQueue creates a trigger queue with the given capacity and worker
// count.
func NewQueue(orchestrator *Orchestrator, size, workers int, logger *slog.Logger, metrics Metrics) *Queue {
	if size <= 0 {
		size = 1
	}
	if workers <= 0 {
		workers = 1
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Queue{
		jobs:         make(chan string, size),
		workers:      workers,
		orchestrator: orchestrator,
		logger:       logger,
		metrics:      metrics,
	}
}

// Start launches the worker goroutines. Workers exit when the context is
// cancelled or the queue is stopped.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case connectorID, ok := <-q.jobs:
					if !ok {
						return
					}
					q.metrics.SetQueueDepth(len(q.jobs))
					if err := q.orchestrator.Sync(ctx, connectorID); err != nil {
						q.logger.Error("queued sync failed", "connector_id", connectorID, "error", err)
					}
				}
			}
		}()
	}
}

// Enqueue submits a connector sync without blocking. Returns ErrQueueFull
// when the queue is at capacity.
func (q *Queue) Enqueue(connectorID string) error {
	select {
	case q.jobs <- connectorID:
		q.metrics.SetQueueDepth(len(q.jobs))
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for in-flight syncs to finish.
func (q *Queue) Stop() {
	close(q.jobs)
	q.wg.Wait()
}
