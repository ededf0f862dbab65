package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"promptdeck/internal/models"
	"promptdeck/internal/queue"
	"promptdeck/internal/utils"
)

// OutputInserter is the slice of the output repository the worker needs.
type OutputInserter interface {
	Insert(ctx context.Context, out *models.Output) error
	InsertBatch(ctx context.Context, outputs []*models.Output) error
}

// OutputQueueWorker drains the output queue into Postgres in batches. The
// runner enqueues one output per completed or failed provider call; the
// worker owns retries and the dead letter queue. The guard's aggregation
// read and this eventual write are deliberately not one transaction: a
// crash between them risks slight under-counting, never double-billing.
type OutputQueueWorker struct {
	queue       queue.Queue
	dlq         queue.DeadLetterQueue
	repo        OutputInserter
	config      *queue.Config
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewOutputQueueWorker creates a new output queue worker
func NewOutputQueueWorker(q queue.Queue, dlq queue.DeadLetterQueue, repo OutputInserter, config *queue.Config) *OutputQueueWorker {
	if config == nil {
		config = queue.DefaultConfig("outputs")
	}

	return &OutputQueueWorker{
		queue:       q,
		dlq:         dlq,
		repo:        repo,
		config:      config,
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// Start starts the worker goroutine
func (w *OutputQueueWorker) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop gracefully stops the worker
func (w *OutputQueueWorker) Stop() error {
	close(w.stopChan)
	<-w.stoppedChan
	return nil
}

// Enqueue adds an output to the queue
func (w *OutputQueueWorker) Enqueue(ctx context.Context, out *models.Output) error {
	return w.queue.Enqueue(ctx, out)
}

// run is the main worker loop
func (w *OutputQueueWorker) run(ctx context.Context) {
	defer close(w.stoppedChan)

	logger := utils.NewLogger("output-worker")

	for {
		select {
		case <-w.stopChan:
			logger.Info("Output worker stopping")
			return
		case <-ctx.Done():
			logger.Info("Output worker context cancelled")
			return
		default:
			w.processBatch(ctx, logger)
		}
	}
}

// processBatch drains and persists one batch of outputs
func (w *OutputQueueWorker) processBatch(ctx context.Context, logger *utils.Logger) {
	items, err := w.queue.DequeueWithTimeout(ctx, w.config.BatchSize, w.config.BatchTimeout)
	if err != nil {
		logger.Error("Failed to dequeue outputs", "error", err)
		time.Sleep(1 * time.Second) // Back off on error
		return
	}

	if len(items) == 0 {
		return
	}

	logger.Debug("Processing output batch", "count", len(items))

	outputs := make([]*models.Output, 0, len(items))
	for _, item := range items {
		var out models.Output
		if err := w.unmarshalItem(item, &out); err != nil {
			logger.Error("Failed to unmarshal output", "error", err)
			continue
		}
		outputs = append(outputs, &out)
	}

	if len(outputs) == 0 {
		return
	}

	if err := w.repo.InsertBatch(ctx, outputs); err != nil {
		logger.Error("Failed to insert batch, falling back to individual inserts", "error", err)
		for _, out := range outputs {
			if err := w.processItem(ctx, out, logger); err != nil {
				logger.Error("Failed to process output", "error", err)
			}
		}
	}
}

// processItem persists a single output with retries; exhausted retries land
// in the dead letter queue.
func (w *OutputQueueWorker) processItem(ctx context.Context, out *models.Output, logger *utils.Logger) error {
	var lastErr error
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := w.config.RetryBackoff * time.Duration(1<<uint(attempt-1))
			logger.Debug("Retrying output insert", "attempt", attempt, "backoff", backoff)
			time.Sleep(backoff)
		}

		if err := w.repo.Insert(ctx, out); err != nil {
			lastErr = err
			logger.Error("Failed to insert output", "attempt", attempt, "error", err)
			if !utils.IsRecoverableError(err) {
				break
			}
			continue
		}

		logger.Debug("Output inserted", "output_id", out.ID)
		return nil
	}

	if w.dlq != nil {
		if err := w.dlq.Add(ctx, out, lastErr); err != nil {
			logger.Error("Failed to add to dead letter queue", "error", err)
		} else {
			logger.Warn("Output moved to DLQ", "output_id", out.ID, "error", lastErr)
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// unmarshalItem converts a queue item back into an Output. Memory queues
// hand back the original pointer; Redis queues hand back JSON bytes.
func (w *OutputQueueWorker) unmarshalItem(item interface{}, out *models.Output) error {
	switch v := item.(type) {
	case *models.Output:
		*out = *v
		return nil
	case models.Output:
		*out = v
		return nil
	case []byte:
		return json.Unmarshal(v, out)
	case json.RawMessage:
		return json.Unmarshal(v, out)
	default:
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to marshal item: %w", err)
		}
		return json.Unmarshal(data, out)
	}
}

// GetQueueLength returns the current queue length
func (w *OutputQueueWorker) GetQueueLength(ctx context.Context) (int, error) {
	return w.queue.Length(ctx)
}

// GetDeadLetterItems returns items from the dead letter queue
func (w *OutputQueueWorker) GetDeadLetterItems(ctx context.Context, maxItems int) ([]queue.DeadLetterItem, error) {
	if w.dlq == nil {
		return nil, fmt.Errorf("dead letter queue not configured")
	}
	return w.dlq.List(ctx, maxItems)
}
