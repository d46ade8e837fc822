// Package queue provides the Redis-backed work queue connecting the ingress
// gateway to the delivery worker pool. Producers LPUSH onto a single list and
// workers BRPOP from it, giving strict FIFO ordering across the deployment.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultKey is the Redis list all message traffic flows through.
	DefaultKey = "message_queue"

	// DefaultPopTimeout bounds each blocking pop so workers can observe
	// shutdown between polls.
	DefaultPopTimeout = 5 * time.Second
)

// ErrEmpty is returned by BlockingPop when the timeout elapses with no work
// available. It is a normal idle condition, not a failure.
var ErrEmpty = errors.New("queue: no work available")

// Config holds the Redis connection settings for the work queue.
type Config struct {
	Addr       string        `mapstructure:"addr" yaml:"addr"`
	Password   string        `mapstructure:"password" yaml:"password,omitempty"`
	DB         int           `mapstructure:"db" yaml:"db"`
	Key        string        `mapstructure:"key" yaml:"key"`
	PopTimeout time.Duration `mapstructure:"pop_timeout" yaml:"pop_timeout"`
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.Key == "" {
		c.Key = DefaultKey
	}
	if c.PopTimeout <= 0 {
		c.PopTimeout = DefaultPopTimeout
	}
}

// RedisQueue is the production queue implementation.
type RedisQueue struct {
	client     *redis.Client
	key        string
	popTimeout time.Duration
}

// Queue is the work queue interface consumed by the gateway and the worker
// pool. RedisQueue is the production implementation; tests substitute an
// in-process miniredis instance behind the same type.
type Queue interface {
	Push(ctx context.Context, item *WorkItem) error
	BlockingPop(ctx context.Context) (*WorkItem, error)
	Length(ctx context.Context) (int64, error)
	Healthcheck(ctx context.Context) error
	Close() error
}

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, cfg *Config) (*RedisQueue, error) {
	cfg.ApplyDefaults()

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return &RedisQueue{
		client:     client,
		key:        cfg.Key,
		popTimeout: cfg.PopTimeout,
	}, nil
}

// Push appends a work item to the head of the list. Combined with BRPOP on
// the tail this yields first-in first-out ordering.
func (q *RedisQueue) Push(ctx context.Context, item *WorkItem) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to encode work item: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue work item: %w", err)
	}
	return nil
}

// BlockingPop waits up to the configured timeout for the next work item.
// It returns ErrEmpty when the queue stays empty for the whole window.
func (q *RedisQueue) BlockingPop(ctx context.Context) (*WorkItem, error) {
	res, err := q.client.BRPop(ctx, q.popTimeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("failed to pop work item: %w", err)
	}
	// BRPOP returns [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply of length %d", len(res))
	}

	var item WorkItem
	if err := json.Unmarshal([]byte(res[1]), &item); err != nil {
		return nil, fmt.Errorf("failed to decode work item: %w", err)
	}
	return &item, nil
}

// Length reports the current queue depth.
func (q *RedisQueue) Length(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue length: %w", err)
	}
	return n, nil
}

// Healthcheck pings the Redis server.
func (q *RedisQueue) Healthcheck(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

var _ Queue = (*RedisQueue)(nil)
