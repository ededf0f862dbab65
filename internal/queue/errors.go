package queue

import "errors"

// Sentinel errors shared by both backends. The output and notify workers
// treat ErrQueueClosed as a shutdown signal rather than a failure.
var (
	ErrQueueClosed = errors.New("queue is closed")

	// ErrItemNotFound is returned by dead-letter Remove for an unknown id.
	ErrItemNotFound = errors.New("item not found")

	// ErrMaxRetriesExceeded is stamped on dead-letter items whose batch
	// exhausted the output worker's retry budget.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)
