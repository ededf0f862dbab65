package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"promptdeck/internal/guard"
	"promptdeck/internal/queue"
	"promptdeck/internal/utils"
)

// WebhookNotifier enqueues soft-warning events for asynchronous webhook
// delivery. Enqueue failures are logged and swallowed.
type WebhookNotifier struct {
	queue  queue.Queue
	logger *utils.Logger
}

func NewWebhookNotifier(q queue.Queue) *WebhookNotifier {
	return &WebhookNotifier{
		queue:  q,
		logger: utils.NewLogger("notify"),
	}
}

func (n *WebhookNotifier) NotifySoftWarning(ctx context.Context, workspaceID uuid.UUID, warnings []guard.Warning) {
	event := &Event{
		Type:        eventTypeSoftWarning,
		WorkspaceID: workspaceID,
		Warnings:    warnings,
		Timestamp:   time.Now().UTC(),
	}

	if err := n.queue.Enqueue(ctx, event); err != nil {
		n.logger.Error("Failed to enqueue notification", "workspace_id", workspaceID, "error", err)
	}
}

// WebhookWorker drains the notification queue and POSTs events to the
// configured webhook URL. One shot per event, no retries.
type WebhookWorker struct {
	queue       queue.Queue
	url         string
	client      *http.Client
	config      *queue.Config
	logger      *utils.Logger
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewWebhookWorker creates a new webhook delivery worker
func NewWebhookWorker(q queue.Queue, url string, config *queue.Config) *WebhookWorker {
	if config == nil {
		config = queue.DefaultConfig("notifications")
	}

	return &WebhookWorker{
		queue:       q,
		url:         url,
		client:      &http.Client{Timeout: 10 * time.Second},
		config:      config,
		logger:      utils.NewLogger("notify-worker"),
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// Start starts the worker goroutine
func (w *WebhookWorker) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop gracefully stops the worker
func (w *WebhookWorker) Stop() error {
	close(w.stopChan)
	<-w.stoppedChan
	return nil
}

func (w *WebhookWorker) run(ctx context.Context) {
	defer close(w.stoppedChan)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Notify worker stopping")
			return
		case <-ctx.Done():
			w.logger.Info("Notify worker context cancelled")
			return
		default:
			w.processBatch(ctx)
		}
	}
}

func (w *WebhookWorker) processBatch(ctx context.Context) {
	items, err := w.queue.DequeueWithTimeout(ctx, w.config.BatchSize, w.config.BatchTimeout)
	if err != nil {
		w.logger.Error("Failed to dequeue notifications", "error", err)
		time.Sleep(1 * time.Second) // Back off on error
		return
	}

	for _, item := range items {
		event, err := w.unmarshalItem(item)
		if err != nil {
			w.logger.Error("Failed to unmarshal notification", "error", err)
			continue
		}

		if err := w.deliver(ctx, event); err != nil {
			w.logger.Warn("Webhook delivery failed", "workspace_id", event.WorkspaceID, "error", err)
		}
	}
}

func (w *WebhookWorker) deliver(ctx context.Context, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	w.logger.Debug("Delivered notification", "workspace_id", event.WorkspaceID, "type", event.Type)
	return nil
}

// unmarshalItem converts a queue item back into an Event. Memory queues
// hand back the original pointer; Redis queues hand back JSON bytes.
func (w *WebhookWorker) unmarshalItem(item interface{}) (*Event, error) {
	switch v := item.(type) {
	case *Event:
		return v, nil
	case Event:
		return &v, nil
	case []byte:
		var event Event
		if err := json.Unmarshal(v, &event); err != nil {
			return nil, err
		}
		return &event, nil
	case json.RawMessage:
		var event Event
		if err := json.Unmarshal(v, &event); err != nil {
			return nil, err
		}
		return &event, nil
	default:
		data, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal item: %w", err)
		}
		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, err
		}
		return &event, nil
	}
}
