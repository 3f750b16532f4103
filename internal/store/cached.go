package store

import "context"

// Cached layers a RedisCache in front of a durable Store: reads try the
// cache first and fall back to the store on a miss, repopulating the
// cache; writes go to both.
type Cached struct {
	Store Store
	Cache *RedisCache
}

// NewCached wraps store with an optional cache. If cache is nil,
// Cached behaves exactly like store.
func NewCached(store Store, cache *RedisCache) *Cached {
	return &Cached{Store: store, Cache: cache}
}

func (c *Cached) SaveRun(ctx context.Context, run RunSummary) error {
	if err := c.Store.SaveRun(ctx, run); err != nil {
		return err
	}
	if c.Cache != nil {
		return c.Cache.Put(ctx, run)
	}
	return nil
}

func (c *Cached) GetRun(ctx context.Context, runID string) (RunSummary, bool, error) {
	if c.Cache != nil {
		if run, ok, err := c.Cache.Get(ctx, runID); err == nil && ok {
			return run, true, nil
		}
	}

	run, ok, err := c.Store.GetRun(ctx, runID)
	if err != nil || !ok {
		return run, ok, err
	}
	if c.Cache != nil {
		_ = c.Cache.Put(ctx, run)
	}
	return run, true, nil
}

func (c *Cached) SetStatus(ctx context.Context, runID string, status RunStatus) error {
	if err := c.Store.SetStatus(ctx, runID, status); err != nil {
		return err
	}
	if c.Cache != nil {
		return c.Cache.SetStatus(ctx, runID, status)
	}
	return nil
}

var _ Store = (*Cached)(nil)
