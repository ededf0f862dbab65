package logging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"promptdeck/internal/utils"
)

// DecisionRecord is the archived form of a guard decision. The Postgres
// audit trail only keeps blocked and soft-warning events; the archive keeps
// every decision for offline analysis.
type DecisionRecord struct {
	Timestamp     time.Time `json:"timestamp"`
	WorkspaceID   string    `json:"workspace_id"`
	TaskID        string    `json:"task_id,omitempty"`
	Allowed       bool      `json:"allowed"`
	Status        int       `json:"status"`
	Code          string    `json:"code"`
	Message       string    `json:"message,omitempty"`
	Warnings      []string  `json:"warnings,omitempty"`
	Plan          string    `json:"plan"`
	EffectivePlan string    `json:"effective_plan"`
	RequestsUsed  int64     `json:"requests_used"`
	TokensUsed    int64     `json:"tokens_used"`
	CostUSDUsed   float64   `json:"cost_usd_used"`
}

// Sink receives decision records from the runner.
type Sink interface {
	Enqueue(rec *DecisionRecord) error
	Shutdown(ctx context.Context) error
}

// NoopSink discards records. Used when no archive bucket is configured.
type NoopSink struct{}

func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (s *NoopSink) Enqueue(rec *DecisionRecord) error {
	return nil
}

func (s *NoopSink) Shutdown(ctx context.Context) error {
	return nil
}

// BatchWriter persists a batch of decision records somewhere durable.
type BatchWriter interface {
	WriteBatch(ctx context.Context, records []*DecisionRecord) (string, error)
}

// S3SinkConfig holds buffering and flush settings for the archive sink.
type S3SinkConfig struct {
	BufferSize    int
	FlushSize     int
	FlushInterval time.Duration
}

// DefaultS3SinkConfig returns sensible defaults for the archive sink.
func DefaultS3SinkConfig() S3SinkConfig {
	return S3SinkConfig{
		BufferSize:    1000,
		FlushSize:     100,
		FlushInterval: 1 * time.Minute,
	}
}

// S3Sink buffers decision records in memory and flushes them in batches to
// a BatchWriter. Records are dropped when the buffer is full; archiving is
// observability, never on the run path's critical section.
type S3Sink struct {
	config S3SinkConfig
	writer BatchWriter
	logger *utils.Logger

	recordCh chan *DecisionRecord
	doneCh   chan struct{}
	wg       sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewS3Sink creates the sink and starts its flusher goroutine.
func NewS3Sink(config S3SinkConfig, writer BatchWriter) *S3Sink {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultS3SinkConfig().BufferSize
	}
	if config.FlushSize <= 0 {
		config.FlushSize = DefaultS3SinkConfig().FlushSize
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = DefaultS3SinkConfig().FlushInterval
	}

	sink := &S3Sink{
		config:   config,
		writer:   writer,
		logger:   utils.NewLogger("decision-sink"),
		recordCh: make(chan *DecisionRecord, config.BufferSize),
		doneCh:   make(chan struct{}),
	}

	sink.wg.Add(1)
	go sink.run()

	return sink
}

// Enqueue queues a record for archiving. If the buffer is full the record
// is dropped.
func (s *S3Sink) Enqueue(rec *DecisionRecord) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("sink is shut down")
	}
	s.mu.Unlock()

	select {
	case s.recordCh <- rec:
		return nil
	default:
		s.logger.Warn("Decision archive buffer full, dropping record", "workspace_id", rec.WorkspaceID)
		return nil
	}
}

// Shutdown flushes pending records and stops the flusher.
func (s *S3Sink) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.doneCh)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run accumulates records and flushes on batch size, interval, or shutdown.
func (s *S3Sink) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.FlushInterval)
	defer ticker.Stop()

	batch := make([]*DecisionRecord, 0, s.config.FlushSize)

	for {
		select {
		case rec := <-s.recordCh:
			batch = append(batch, rec)
			if len(batch) >= s.config.FlushSize {
				s.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.flush(batch)
				batch = batch[:0]
			}
		case <-s.doneCh:
			// Drain whatever is still queued, then flush once.
			for {
				select {
				case rec := <-s.recordCh:
					batch = append(batch, rec)
				default:
					if len(batch) > 0 {
						s.flush(batch)
					}
					return
				}
			}
		}
	}
}

func (s *S3Sink) flush(batch []*DecisionRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	records := make([]*DecisionRecord, len(batch))
	copy(records, batch)

	key, err := s.writer.WriteBatch(ctx, records)
	if err != nil {
		s.logger.Error("Failed to flush decision batch", "count", len(records), "error", err)
		return
	}

	s.logger.Debug("Flushed decision batch", "count", len(records), "key", key)
}
