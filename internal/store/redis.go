package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache caches in-flight run status so repeated polls of a
// still-running simulation don't hit Postgres. Entries expire on their
// own; a completed run is expected to have already been written
// through to the durable Store by the time its cache entry lapses.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache dials addr and returns a cache with the given entry TTL.
func NewRedisCache(ctx context.Context, addr string, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis at %s: %w", addr, err)
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

func (c *RedisCache) Close() error { return c.client.Close() }

func runKey(runID string) string { return "htbsim:run:" + runID }

// Put caches run under its ID with the cache's configured TTL.
func (c *RedisCache) Put(ctx context.Context, run RunSummary) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshaling run %s: %w", run.RunID, err)
	}
	if err := c.client.Set(ctx, runKey(run.RunID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("caching run %s: %w", run.RunID, err)
	}
	return nil
}

// Get returns a cached run, if present and unexpired.
func (c *RedisCache) Get(ctx context.Context, runID string) (RunSummary, bool, error) {
	data, err := c.client.Get(ctx, runKey(runID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return RunSummary{}, false, nil
	}
	if err != nil {
		return RunSummary{}, false, fmt.Errorf("fetching cached run %s: %w", runID, err)
	}

	var run RunSummary
	if err := json.Unmarshal(data, &run); err != nil {
		return RunSummary{}, false, fmt.Errorf("unmarshaling cached run %s: %w", runID, err)
	}
	return run, true, nil
}

// SetStatus patches just the status field of a cached run, if present.
func (c *RedisCache) SetStatus(ctx context.Context, runID string, status RunStatus) error {
	run, ok, err := c.Get(ctx, runID)
	if err != nil || !ok {
		return err
	}
	run.Status = status
	return c.Put(ctx, run)
}
