package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis key layout: "queue:<name>" is a list ("outputs", "notifications"),
// "dlq:<name>" is a hash keyed by dead-letter id. Items are stored as JSON
// and returned to workers as json.RawMessage.

// RedisQueue is the Redis-list queue backing the output and notification
// pipelines in multi-node deployments. Items survive restarts.
type RedisQueue struct {
	client *redis.Client
	config *Config
	qKey   string
}

// NewRedisQueue creates a Redis-backed queue and verifies the connection.
func NewRedisQueue(config *Config) (*RedisQueue, error) {
	client, err := dialRedis(config)
	if err != nil {
		return nil, err
	}

	return &RedisQueue{
		client: client,
		config: config,
		qKey:   fmt.Sprintf("queue:%s", config.QueueName),
	}, nil
}

// Enqueue marshals the item and appends it to the list.
func (q *RedisQueue) Enqueue(ctx context.Context, item interface{}) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	if err := q.client.RPush(ctx, q.qKey, data).Err(); err != nil {
		return fmt.Errorf("failed to push to Redis: %w", err)
	}

	return nil
}

// Dequeue blocks for the first item, then drains up to maxItems without
// blocking. Items come back as json.RawMessage for the worker to decode.
func (q *RedisQueue) Dequeue(ctx context.Context, maxItems int) ([]interface{}, error) {
	result, err := q.client.BLPop(ctx, 0, q.qKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to pop from Redis: %w", err)
	}

	// BLPop returns [key, value]
	items := []interface{}{json.RawMessage(result[1])}
	return q.drain(ctx, items, maxItems), nil
}

// DequeueWithTimeout is Dequeue with a bounded wait; an empty slice after
// the timeout is a normal idle tick.
func (q *RedisQueue) DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]interface{}, error) {
	result, err := q.client.BLPop(ctx, timeout, q.qKey).Result()
	if err == redis.Nil {
		return []interface{}{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pop from Redis: %w", err)
	}

	items := []interface{}{json.RawMessage(result[1])}
	return q.drain(ctx, items, maxItems), nil
}

// drain pops buffered items up to maxItems without blocking. A pop error
// mid-drain returns the partial batch; the rest stays queued.
func (q *RedisQueue) drain(ctx context.Context, items []interface{}, maxItems int) []interface{} {
	for len(items) < maxItems {
		result, err := q.client.LPop(ctx, q.qKey).Result()
		if err != nil {
			return items
		}
		items = append(items, json.RawMessage(result))
	}
	return items
}

// Length returns the list length.
func (q *RedisQueue) Length(ctx context.Context) (int, error) {
	length, err := q.client.LLen(ctx, q.qKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue length: %w", err)
	}
	return int(length), nil
}

// Close releases the Redis connection. Queued items stay in Redis.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// RedisDeadLetterQueue parks items that exhausted the output worker's
// retries in a Redis hash, so they survive restarts for later requeue.
type RedisDeadLetterQueue struct {
	client *redis.Client
	dlKey  string
}

// NewRedisDeadLetterQueue creates a Redis-backed dead letter queue.
func NewRedisDeadLetterQueue(config *Config) (*RedisDeadLetterQueue, error) {
	client, err := dialRedis(config)
	if err != nil {
		return nil, err
	}

	return &RedisDeadLetterQueue{
		client: client,
		dlKey:  fmt.Sprintf("dlq:%s", config.QueueName),
	}, nil
}

// Add parks a failed item together with the error that exhausted it.
func (q *RedisDeadLetterQueue) Add(ctx context.Context, item interface{}, err error) error {
	entry := DeadLetterItem{
		ID:        deadLetterID(),
		Item:      item,
		Error:     err.Error(),
		Timestamp: time.Now(),
	}

	data, marshalErr := json.Marshal(entry)
	if marshalErr != nil {
		return fmt.Errorf("failed to marshal dead letter item: %w", marshalErr)
	}

	if err := q.client.HSet(ctx, q.dlKey, entry.ID, data).Err(); err != nil {
		return fmt.Errorf("failed to add to dead letter queue: %w", err)
	}

	return nil
}

// List returns up to maxItems parked entries. Hash order is arbitrary;
// malformed entries are skipped rather than failing the listing.
func (q *RedisDeadLetterQueue) List(ctx context.Context, maxItems int) ([]DeadLetterItem, error) {
	results, err := q.client.HGetAll(ctx, q.dlKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letter items: %w", err)
	}

	entries := make([]DeadLetterItem, 0, len(results))
	for _, data := range results {
		var entry DeadLetterItem
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)

		if maxItems > 0 && len(entries) >= maxItems {
			break
		}
	}

	return entries, nil
}

// Remove drops one entry by id, typically after a manual requeue.
func (q *RedisDeadLetterQueue) Remove(ctx context.Context, id string) error {
	if err := q.client.HDel(ctx, q.dlKey, id).Err(); err != nil {
		return fmt.Errorf("failed to remove from dead letter queue: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (q *RedisDeadLetterQueue) Close() error {
	return q.client.Close()
}

// dialRedis opens a client from queue config and pings it, so a bad
// address fails at wiring time instead of on the first enqueue.
func dialRedis(config *Config) (*redis.Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}
