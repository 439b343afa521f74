package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/crm-service/internal/domain"
)

// CascadeQueue holds cascade steps that failed and must be retried.
// Dequeue returns (nil, nil) when no job arrived within timeout.
type CascadeQueue interface {
	Enqueue(ctx context.Context, job domain.CascadeJob) error
	Dequeue(ctx context.Context, timeout time.Duration) (*domain.CascadeJob, error)
}

type redisCascadeQueue struct {
	client *redis.Client
	key    string
}

// NewRedisCascadeQueue stores jobs in a Redis list (LPUSH / BRPOP).
func NewRedisCascadeQueue(client *redis.Client, key string) CascadeQueue {
	return &redisCascadeQueue{client: client, key: key}
}

func (q *redisCascadeQueue) Enqueue(ctx context.Context, job domain.CascadeJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode cascade job: %w", err)
	}
	return q.client.LPush(ctx, q.key, payload).Err()
}

func (q *redisCascadeQueue) Dequeue(ctx context.Context, timeout time.Duration) (*domain.CascadeJob, error) {
	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// BRPOP replies [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply of length %d", len(res))
	}
	var job domain.CascadeJob
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("decode cascade job: %w", err)
	}
	return &job, nil
}
