package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue is the channel-backed queue used when no Redis address is
// configured. Outputs and notification events buffered here are lost on
// restart; single-node deployments accept that trade.
type MemoryQueue struct {
	buf    chan interface{}
	mu     sync.RWMutex
	closed bool
	config *Config
}

// NewMemoryQueue creates an in-memory queue. The channel holds ten batches
// so a slow output worker does not immediately backpressure run handlers.
func NewMemoryQueue(config *Config) *MemoryQueue {
	if config == nil {
		config = DefaultConfig("memory")
	}

	return &MemoryQueue{
		buf:    make(chan interface{}, config.BatchSize*10),
		config: config,
	}
}

// Enqueue adds one item, blocking only when the buffer is full.
func (q *MemoryQueue) Enqueue(ctx context.Context, item interface{}) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.buf <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue blocks for the first item, then drains up to maxItems without
// blocking so the worker gets the largest batch currently available.
func (q *MemoryQueue) Dequeue(ctx context.Context, maxItems int) ([]interface{}, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	var items []interface{}
	select {
	case item := <-q.buf:
		items = append(items, item)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return q.drain(items, maxItems), nil
}

// DequeueWithTimeout is Dequeue with a bounded wait for the first item.
// An empty slice after the timeout is a normal idle tick, not an error.
func (q *MemoryQueue) DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]interface{}, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	var items []interface{}
	select {
	case item := <-q.buf:
		items = append(items, item)
	case <-time.After(timeout):
		return items, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return q.drain(items, maxItems), nil
}

// drain appends buffered items up to maxItems without blocking.
func (q *MemoryQueue) drain(items []interface{}, maxItems int) []interface{} {
	for len(items) < maxItems {
		select {
		case item := <-q.buf:
			items = append(items, item)
		default:
			return items
		}
	}
	return items
}

// Length returns the number of buffered items.
func (q *MemoryQueue) Length(ctx context.Context) (int, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return 0, ErrQueueClosed
	}

	return len(q.buf), nil
}

// Close shuts down the queue. Buffered items still drain to readers.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	q.closed = true
	close(q.buf)
	return nil
}

// MemoryDeadLetterQueue holds outputs that exhausted the worker's retries
// when running without Redis. Slice-backed, inspection and requeue only.
type MemoryDeadLetterQueue struct {
	entries []DeadLetterItem
	mu      sync.RWMutex
	closed  bool
}

// NewMemoryDeadLetterQueue creates an in-memory dead letter queue
func NewMemoryDeadLetterQueue() *MemoryDeadLetterQueue {
	return &MemoryDeadLetterQueue{
		entries: make([]DeadLetterItem, 0),
	}
}

// Add parks a failed item together with the error that exhausted it.
func (q *MemoryDeadLetterQueue) Add(ctx context.Context, item interface{}, err error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.entries = append(q.entries, DeadLetterItem{
		ID:        deadLetterID(),
		Item:      item,
		Error:     err.Error(),
		Timestamp: time.Now(),
	})
	return nil
}

// List returns up to maxItems parked entries, oldest first.
func (q *MemoryDeadLetterQueue) List(ctx context.Context, maxItems int) ([]DeadLetterItem, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	if maxItems <= 0 || maxItems > len(q.entries) {
		maxItems = len(q.entries)
	}

	out := make([]DeadLetterItem, maxItems)
	copy(out, q.entries[:maxItems])
	return out, nil
}

// Remove drops one entry by id, typically after a manual requeue.
func (q *MemoryDeadLetterQueue) Remove(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	for i, entry := range q.entries {
		if entry.ID == id {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return nil
		}
	}

	return ErrItemNotFound
}

// Close shuts down the dead letter queue and discards its entries.
func (q *MemoryDeadLetterQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.entries = nil
	return nil
}

// deadLetterID keys dead-letter entries by arrival time, so both backends
// list roughly oldest first.
func deadLetterID() string {
	return time.Now().Format("20060102150405.000000")
}
