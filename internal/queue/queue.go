package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gofrolist/calorie-track-ai-bot/internal/models"
)

// Queue keys. Producers LPUSH, workers BRPOP, so each list behaves as
// a FIFO work queue with at-least-once handoff and no dedup.
const (
	EstimateJobsKey = "estimate:jobs"
	InlineJobsKey   = "inline:jobs"
)

// DequeueWait bounds the blocking pop so consumers can observe
// shutdown between polls. A timeout is an idle poll, not an error.
const DequeueWait = 10 * time.Second

type Queue interface {
	EnqueueEstimate(ctx context.Context, job *models.EstimateJob) error
	DequeueEstimate(ctx context.Context) (*models.EstimateJob, error)

	EnqueueInline(ctx context.Context, job *models.InlineJob) error
	DequeueInline(ctx context.Context) (*models.InlineJob, error)
}

type RedisQueue struct {
	rdb *redis.Client
}

func NewRedisQueue(rdb *redis.Client) *RedisQueue {
	return &RedisQueue{rdb: rdb}
}

func (q *RedisQueue) EnqueueEstimate(ctx context.Context, job *models.EstimateJob) error {
	return q.push(ctx, EstimateJobsKey, job)
}

// DequeueEstimate returns (nil, nil) on an idle-poll timeout.
func (q *RedisQueue) DequeueEstimate(ctx context.Context) (*models.EstimateJob, error) {
	raw, ok, err := q.pop(ctx, EstimateJobsKey)
	if err != nil || !ok {
		return nil, err
	}
	var job models.EstimateJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("decode estimate job: %w", err)
	}
	return &job, nil
}

func (q *RedisQueue) EnqueueInline(ctx context.Context, job *models.InlineJob) error {
	return q.push(ctx, InlineJobsKey, job)
}

// DequeueInline returns (nil, nil) on an idle-poll timeout.
func (q *RedisQueue) DequeueInline(ctx context.Context) (*models.InlineJob, error) {
	raw, ok, err := q.pop(ctx, InlineJobsKey)
	if err != nil || !ok {
		return nil, err
	}
	var job models.InlineJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("decode inline job: %w", err)
	}
	return &job, nil
}

func (q *RedisQueue) push(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return q.rdb.LPush(ctx, key, b).Err()
}

func (q *RedisQueue) pop(ctx context.Context, key string) ([]byte, bool, error) {
	res, err := q.rdb.BRPop(ctx, DequeueWait, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	// BRPOP returns [key, value].
	if len(res) < 2 {
		return nil, false, nil
	}
	return []byte(res[1]), true, nil
}
