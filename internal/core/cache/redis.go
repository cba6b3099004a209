package cache

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Cache 读穿缓存；nil *Cache 表示未启用，所有方法直接回源
type Cache struct {
	RDB    *redis.Client
	Prefix string
	sf     singleflight.Group
}

func New(addr, pass string, db int) *Cache {
	return &Cache{
		RDB:    redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db}),
		Prefix: "library:",
	}
}

var lookups = promauto.NewCounterVec(
	prometheus.CounterOpts{Name: "library_cache_lookups_total", Help: "Read-through cache lookups by result"},
	[]string{"result"},
)

func (c *Cache) key(k string) string { return c.Prefix + k }

// gen 每次 Invalidate 自增；回源期间 gen 变化说明读到的可能是提交前的旧值
func (c *Cache) genKey(k string) string { return c.Prefix + "gen:" + k }

func (c *Cache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.RDB.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.RDB.Close()
}

func (c *Cache) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(context.Context) ([]byte, error)) ([]byte, error) {
	if c == nil {
		return load(ctx)
	}
	// 先读缓存；Redis 故障时直接回源
	b, err := c.RDB.Get(ctx, c.key(key)).Bytes()
	switch {
	case err == nil:
		lookups.WithLabelValues("hit").Inc()
		return b, nil
	case errors.Is(err, redis.Nil):
		lookups.WithLabelValues("miss").Inc()
	default:
		lookups.WithLabelValues("error").Inc()
	}
	// single flight 合并回源；回源前记下 gen，回写时 gen 未变才 SET
	v, err, _ := c.sf.Do(key, func() (any, error) {
		gen, gerr := c.RDB.Get(ctx, c.genKey(key)).Int64()
		b, e := load(ctx)
		if e != nil {
			return nil, e
		}
		if gerr == nil || errors.Is(gerr, redis.Nil) {
			if err := c.setIfGen(ctx, key, gen, b, ttl); errors.Is(err, errStale) || errors.Is(err, redis.TxFailedErr) {
				lookups.WithLabelValues("stale").Inc()
			}
		}
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

var errStale = errors.New("cache: value changed during load")

// setIfGen WATCH gen key，期间被 Invalidate 过则放弃写入
func (c *Cache) setIfGen(ctx context.Context, key string, gen int64, b []byte, ttl time.Duration) error {
	gk := c.genKey(key)
	return c.RDB.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, gk).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return errStale
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, c.key(key), b, ttl)
			return nil
		})
		return err
	}, gk)
}

// Invalidate 写操作提交后删除相关 key，并推进 gen 让进行中的回源作废
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	if c == nil || len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	_, err := c.RDB.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, k := range keys {
			p.Incr(ctx, c.genKey(k))
		}
		p.Del(ctx, full...)
		return nil
	})
	return err
}

// MarkUsed SETNX 记录 refresh token 的 jti，实现 auth.Revoker
func (c *Cache) MarkUsed(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	return c.RDB.SetNX(ctx, c.key("rt:used:"+jti), 1, ttl).Result()
}
