package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// GetOrLoadJSON 读穿缓存的 JSON 版本；load 返回的错误（含 NotFound）不缓存
func GetOrLoadJSON[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, load func(context.Context) (*T, error)) (*T, error) {
	if c == nil {
		return load(ctx)
	}
	var fresh *T
	b, err := c.GetOrLoad(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		fresh = v
		return json.Marshal(v)
	})
	if err != nil {
		return nil, err
	}
	if fresh != nil {
		return fresh, nil
	}
	out := new(T)
	if err := json.Unmarshal(b, out); err != nil {
		// 内容损坏：删掉，下次回源
		_ = c.Invalidate(ctx, key)
		return nil, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return out, nil
}

func BookKey(id uint) string { return fmt.Sprintf("book:%d", id) }
