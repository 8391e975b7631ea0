package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quillback/quill/pkg/log"
	"github.com/quillback/quill/pkg/types"
)

// ErrEmpty is returned by Dequeue when no job arrives before the wait
// timeout elapses.
var ErrEmpty = errors.New("queue empty")

// Queue carries ingestion jobs from the API to the worker pool
type Queue interface {
	Enqueue(ctx context.Context, job *types.IngestJob) error
	// Dequeue blocks up to wait for the next job
	Dequeue(ctx context.Context, wait time.Duration) (*types.IngestJob, error)
	Depth(ctx context.Context) (int64, error)
	Close() error
}

const defaultKey = "quill:ingest"

// RedisQueue implements Queue on a Redis list. Enqueue pushes to the left,
// workers block-pop from the right, so jobs drain in FIFO order.
type RedisQueue struct {
	client *redis.Client
	key    string
}

var _ Queue = (*RedisQueue)(nil)

// NewRedisQueue connects to Redis and verifies the connection
func NewRedisQueue(ctx context.Context, redisURL string) (*RedisQueue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	log.WithComponent("queue").Info().Msg("redis connection established")
	return &RedisQueue{client: client, key: defaultKey}, nil
}

// NewRedisQueueWithClient wraps an existing client, used by tests
func NewRedisQueueWithClient(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client, key: defaultKey}
}

func (q *RedisQueue) Enqueue(ctx context.Context, job *types.IngestJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context, wait time.Duration) (*types.IngestJob, error) {
	res, err := q.client.BRPop(ctx, wait, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("failed to dequeue job: %w", err)
	}
	// BRPop returns [key, value]
	var job types.IngestJob
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

func (q *RedisQueue) Depth(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
