package triage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultRedisQueueKey = "triage:cycles"

// RedisQueue is a queueClient backed by a Redis list, used when triage
// workers run in a separate process from the API.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue creates a Redis-backed queue on the given list key.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if client == nil {
		panic("triage: redis client cannot be nil")
	}
	if key == "" {
		key = defaultRedisQueueKey
	}
	return &RedisQueue{client: client, key: key}
}

// Send pushes a payload onto the queue.
func (q *RedisQueue) Send(ctx context.Context, body string) error {
	return q.client.RPush(ctx, q.key, body).Err()
}

// Receive blocks up to waitSeconds for the next message. BLPOP removes the
// message atomically, so Delete is a no-op.
func (q *RedisQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error) {
	if maxMessages <= 0 {
		maxMessages = 1
	}
	wait := time.Duration(waitSeconds) * time.Second

	res, err := q.client.BLPop(ctx, wait, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// BLPOP returns [key, value].
	if len(res) < 2 {
		return nil, nil
	}

	messages := []queueMessage{{ID: uuid.NewString(), Body: res[1]}}
	for len(messages) < maxMessages {
		body, err := q.client.LPop(ctx, q.key).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			break
		}
		messages = append(messages, queueMessage{ID: uuid.NewString(), Body: body})
	}
	return messages, nil
}

// Delete is a no-op: BLPOP already removed the message.
func (q *RedisQueue) Delete(_ context.Context, _ string) error {
	return nil
}
