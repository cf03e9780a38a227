package taskqueue

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"
)

// RedisQueue implements the Queue interface using Redis.
//
// It uses a single Redis list with key:
//
//	<prefix>tasks
//
// Values are gob-encoded Task structs. Delivery is immediate; NotBefore is
// enforced by the worker on receipt.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue constructs a Redis-backed Queue.
// prefix is optional but recommended (e.g. "resposta:").
func NewRedisQueue(client *redis.Client, prefix string) *RedisQueue {
	if prefix == "" {
		prefix = "resposta:"
	}
	return &RedisQueue{
		client: client,
		key:    prefix + "tasks",
	}
}

// Ensure RedisQueue implements Queue.
var _ Queue = (*RedisQueue)(nil)

// Enqueue pushes a task onto the Redis list (LPUSH).
func (q *RedisQueue) Enqueue(ctx context.Context, t Task) error {
	data, err := EncodeTask(t)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, data).Err()
}

// Dequeue blocks on BRPOP until a task is available or ctx is cancelled.
func (q *RedisQueue) Dequeue(ctx context.Context) (*Task, error) {
	// BRPop returns [key, value]
	res, err := q.client.BRPop(ctx, 0, q.key).Result()
	if err != nil {
		// If ctx is cancelled, BRPop returns an error wrapping ctx.Err().
		return nil, err
	}
	if len(res) != 2 {
		// Unexpected shape; log and let the worker loop retry.
		log.Printf("RedisQueue: BRPop returned unexpected result: %#v", res)
		return nil, nil
	}

	return DecodeTask([]byte(res[1]))
}

// Len returns the approximate number of tasks queued (LLEN).
func (q *RedisQueue) Len() int {
	n, err := q.client.LLen(context.Background(), q.key).Result()
	if err != nil {
		log.Printf("RedisQueue: Len failed: %v", err)
		return 0
	}
	return int(n)
}
