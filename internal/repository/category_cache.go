package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"shop-catalog/internal/model"
)

const (
	forestCacheKey        = "category:forest"
	subtreeCacheKeyPrefix = "category:subtree:"
)

// CategoryCache 缓存组装好的森林与子树，任何已提交的变更都会使其整体失效。
type CategoryCache interface {
	GetForest(ctx context.Context) (model.Forest, bool, error)
	SetForest(ctx context.Context, forest model.Forest) error
	GetSubtree(ctx context.Context, code string) (*model.CategoryTree, bool, error)
	SetSubtree(ctx context.Context, code string, tree *model.CategoryTree) error
	Invalidate(ctx context.Context) error
}

type redisCategoryCache struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewCategoryCache 创建一个基于 Redis 的 CategoryCache 实例。
func NewCategoryCache(redisClient *redis.Client, ttl time.Duration) CategoryCache {
	return &redisCategoryCache{redisClient: redisClient, ttl: ttl}
}

func (c *redisCategoryCache) GetForest(ctx context.Context) (model.Forest, bool, error) {
	var forest model.Forest
	ok, err := c.get(ctx, forestCacheKey, &forest)
	if err != nil || !ok {
		return nil, ok, err
	}
	return forest, true, nil
}

func (c *redisCategoryCache) SetForest(ctx context.Context, forest model.Forest) error {
	return c.set(ctx, forestCacheKey, forest)
}

func (c *redisCategoryCache) GetSubtree(ctx context.Context, code string) (*model.CategoryTree, bool, error) {
	var tree model.CategoryTree
	ok, err := c.get(ctx, subtreeCacheKeyPrefix+code, &tree)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &tree, true, nil
}

func (c *redisCategoryCache) SetSubtree(ctx context.Context, code string, tree *model.CategoryTree) error {
	return c.set(ctx, subtreeCacheKeyPrefix+code, tree)
}

// Invalidate 删除所有分类缓存键。
func (c *redisCategoryCache) Invalidate(ctx context.Context) error {
	keys, err := c.redisClient.Keys(ctx, subtreeCacheKeyPrefix+"*").Result()
	if err != nil {
		return fmt.Errorf("failed to scan category cache keys: %w", err)
	}
	keys = append(keys, forestCacheKey)
	if err := c.redisClient.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete category cache keys: %w", err)
	}
	return nil
}

func (c *redisCategoryCache) get(ctx context.Context, key string, dest interface{}) (bool, error) {
	jsonData, err := c.redisClient.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(jsonData), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}

func (c *redisCategoryCache) set(ctx context.Context, key string, value interface{}) error {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := c.redisClient.Set(ctx, key, jsonData, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// NopCategoryCache 在未配置 Redis 时使用，所有读取都视为未命中。
type NopCategoryCache struct{}

func (NopCategoryCache) GetForest(context.Context) (model.Forest, bool, error) { return nil, false, nil }
func (NopCategoryCache) SetForest(context.Context, model.Forest) error         { return nil }
func (NopCategoryCache) GetSubtree(context.Context, string) (*model.CategoryTree, bool, error) {
	return nil, false, nil
}
func (NopCategoryCache) SetSubtree(context.Context, string, *model.CategoryTree) error { return nil }
func (NopCategoryCache) Invalidate(context.Context) error                              { return nil }
