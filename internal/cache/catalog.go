package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"household-inventory-api/internal/model"
	"household-inventory-api/internal/repository"

	"go.uber.org/zap"
)

// CachedFoodCatalog is a read-through cache in front of a FoodCatalog.
// Misses (NotFound) are never cached.
type CachedFoodCatalog struct {
	next   repository.FoodCatalog
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedFoodCatalog wraps next with cache.
func NewCachedFoodCatalog(next repository.FoodCatalog, cache Cache, ttl time.Duration, logger *zap.Logger) *CachedFoodCatalog {
	return &CachedFoodCatalog{next: next, cache: cache, ttl: ttl, logger: logger}
}

func foodKey(id string) string       { return "food:" + id }
func foodNameKey(name string) string { return "food-name:" + strings.ToLower(name) }

func (c *CachedFoodCatalog) load(ctx context.Context, key string) (*model.Food, bool) {
	raw, err := c.cache.Get(ctx, key)
	if err != nil {
		if err != ErrCacheMiss {
			c.logger.Warn("food cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	var f model.Food
	if err := json.Unmarshal(raw, &f); err != nil {
		c.logger.Warn("food cache entry corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &f, true
}

func (c *CachedFoodCatalog) store(ctx context.Context, key string, f *model.Food) {
	raw, err := json.Marshal(f)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, raw, c.ttl); err != nil {
		c.logger.Warn("food cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// GetFood returns a food by ID.
func (c *CachedFoodCatalog) GetFood(ctx context.Context, id string) (*model.Food, error) {
	if f, ok := c.load(ctx, foodKey(id)); ok {
		return f, nil
	}
	f, err := c.next.GetFood(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, foodKey(id), f)
	return f, nil
}

// GetFoods serves hits from cache and batch-loads the rest.
func (c *CachedFoodCatalog) GetFoods(ctx context.Context, ids []string) (map[string]model.Food, error) {
	out := make(map[string]model.Food, len(ids))
	var missing []string
	for _, id := range ids {
		if _, done := out[id]; done {
			continue
		}
		if f, ok := c.load(ctx, foodKey(id)); ok {
			out[id] = *f
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}

	loaded, err := c.next.GetFoods(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, f := range loaded {
		f := f
		out[id] = f
		c.store(ctx, foodKey(id), &f)
	}
	return out, nil
}

// FindFoodByName resolves a name, caching the result by lower-cased name.
func (c *CachedFoodCatalog) FindFoodByName(ctx context.Context, name string) (*model.Food, error) {
	if f, ok := c.load(ctx, foodNameKey(name)); ok {
		return f, nil
	}
	f, err := c.next.FindFoodByName(ctx, name)
	if err != nil {
		return nil, err
	}
	c.store(ctx, foodNameKey(name), f)
	return f, nil
}

var _ repository.FoodCatalog = (*CachedFoodCatalog)(nil)
