package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// RedisStore is a Redis implementation of Store[S].
//
// Each thread uses two keys:
//   - <prefix><thread>:steps  sorted set of step numbers (score = step)
//   - <prefix><thread>:data   hash of step number -> checkpoint JSON
//
// Both keys are written in one MULTI/EXEC transaction and share the
// optional TTL, which is refreshed on every save.
type RedisStore[S any] struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// RedisOption configures a RedisStore.
type RedisOption func(*redisOptions)

type redisOptions struct {
	prefix string
	ttl    time.Duration
}

// WithKeyPrefix sets the key prefix for thread keys.
func WithKeyPrefix(prefix string) RedisOption {
	return func(o *redisOptions) {
		o.prefix = prefix
	}
}

// WithThreadTTL expires idle threads after d. Zero keeps them forever.
func WithThreadTTL(d time.Duration) RedisOption {
	return func(o *redisOptions) {
		o.ttl = d
	}
}

// NewRedisStore connects to addr and returns a store.
func NewRedisStore[S any](addr, password string, db int, opts ...RedisOption) *RedisStore[S] {
	client := backend.NewClient(&backend.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisStoreFromClient[S](client, opts...)
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient[S any](client *backend.Client, opts ...RedisOption) *RedisStore[S] {
	o := redisOptions{prefix: "shopagent:thread:"}
	for _, opt := range opts {
		opt(&o)
	}
	return &RedisStore[S]{client: client, prefix: o.prefix, ttl: o.ttl}
}

func (r *RedisStore[S]) stepsKey(threadID string) string {
	return r.prefix + threadID + ":steps"
}

func (r *RedisStore[S]) dataKey(threadID string) string {
	return r.prefix + threadID + ":data"
}

// Save implements Store.
func (r *RedisStore[S]) Save(ctx context.Context, cp Checkpoint[S]) error {
	if cp.ThreadID == "" {
		return fmt.Errorf("thread id cannot be empty")
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	data, err := marshalCheckpoint(cp)
	if err != nil {
		return err
	}

	step := strconv.Itoa(cp.Step)
	pipe := r.client.TxPipeline()
	pipe.ZAdd(ctx, r.stepsKey(cp.ThreadID), backend.Z{Score: float64(cp.Step), Member: step})
	pipe.HSet(ctx, r.dataKey(cp.ThreadID), step, data)
	if r.ttl > 0 {
		pipe.Expire(ctx, r.stepsKey(cp.ThreadID), r.ttl)
		pipe.Expire(ctx, r.dataKey(cp.ThreadID), r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load implements Store.
func (r *RedisStore[S]) Load(ctx context.Context, threadID string) (Checkpoint[S], error) {
	steps, err := r.client.ZRevRange(ctx, r.stepsKey(threadID), 0, 0).Result()
	if err != nil {
		return Checkpoint[S]{}, fmt.Errorf("failed to read steps from redis: %w", err)
	}
	if len(steps) == 0 {
		return Checkpoint[S]{}, ErrNotFound
	}

	val, err := r.client.HGet(ctx, r.dataKey(threadID), steps[0]).Result()
	if errors.Is(err, backend.Nil) {
		return Checkpoint[S]{}, ErrNotFound
	}
	if err != nil {
		return Checkpoint[S]{}, fmt.Errorf("failed to get from redis: %w", err)
	}
	return decodeCheckpoint[S]([]byte(val))
}

// History implements Store.
func (r *RedisStore[S]) History(ctx context.Context, threadID string) ([]Checkpoint[S], error) {
	all, err := r.client.HGetAll(ctx, r.dataKey(threadID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}
	if len(all) == 0 {
		return nil, ErrNotFound
	}
	out := make([]Checkpoint[S], 0, len(all))
	for _, val := range all {
		cp, err := decodeCheckpoint[S]([]byte(val))
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	sortByStep(out)
	return out, nil
}

// Delete implements Store.
func (r *RedisStore[S]) Delete(ctx context.Context, threadID string) error {
	if err := r.client.Del(ctx, r.stepsKey(threadID), r.dataKey(threadID)).Err(); err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}
	return nil
}

// Ping verifies the server is reachable.
func (r *RedisStore[S]) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the redis client.
func (r *RedisStore[S]) Close() error {
	return r.client.Close()
}
