// Package redis implements the recompute queue and live counters on Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marcelojr/votemap/internal/domain"
)

// RecomputeQueue uses a Redis list to hand aggregate-rebuild jobs from the
// cast path to the worker.
type RecomputeQueue struct {
	client *redis.Client
	key    string
}

func NewRecomputeQueue(client *redis.Client, key string) *RecomputeQueue {
	return &RecomputeQueue{
		client: client,
		key:    key,
	}
}

func (q *RecomputeQueue) Enqueue(ctx context.Context, job domain.RecomputeJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("redis queue: marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("redis queue: enqueue job: %w", err)
	}
	return nil
}

func (q *RecomputeQueue) Consume(ctx context.Context, handler func(context.Context, domain.RecomputeJob) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// BRPOP blocks with a short timeout so the context stays honored.
		res, err := q.client.BRPop(ctx, 5*time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return fmt.Errorf("redis queue: consume: %w", err)
		}

		if len(res) != 2 {
			continue
		}

		var job domain.RecomputeJob
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			return fmt.Errorf("redis queue: invalid payload: %w", err)
		}

		// The handler owns retry decisions; an error here stops the loop.
		if err := handler(ctx, job); err != nil {
			return err
		}
	}
}

var _ domain.RecomputeQueue = (*RecomputeQueue)(nil)
