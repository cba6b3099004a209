package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-api/internal/core/auth"
)

func newRedisCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestGetOrLoadJSONHitsAfterLoad(t *testing.T) {
	c, mr := newRedisCache(t)
	ctx := context.Background()
	calls := 0
	load := func(context.Context) (*item, error) {
		calls++
		return &item{ID: 1, Title: "Dune"}, nil
	}

	got, err := GetOrLoadJSON(ctx, c, BookKey(1), time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, "Dune", got.Title)
	require.True(t, mr.Exists("library:book:1"))
	assert.JSONEq(t, `{"id":1,"title":"Dune"}`, mustGet(t, mr, "library:book:1"))
	assert.Equal(t, time.Minute, mr.TTL("library:book:1"))

	// 第二次命中：走 JSON 解码，不回源
	got, err = GetOrLoadJSON(ctx, c, BookKey(1), time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, &item{ID: 1, Title: "Dune"}, got)
	assert.Equal(t, 1, calls)
}

func TestGetOrLoadJSONDecodesWhatIsStored(t *testing.T) {
	c, mr := newRedisCache(t)
	require.NoError(t, mr.Set("library:book:2", `{"id":2,"title":"Laskar Pelangi"}`))

	got, err := GetOrLoadJSON(context.Background(), c, BookKey(2), time.Minute, func(context.Context) (*item, error) {
		t.Fatal("loader must not run on a hit")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, &item{ID: 2, Title: "Laskar Pelangi"}, got)
}

func TestCorruptEntryIsDropped(t *testing.T) {
	c, mr := newRedisCache(t)
	require.NoError(t, mr.Set("library:book:3", "{not json"))

	_, err := GetOrLoadJSON(context.Background(), c, BookKey(3), time.Minute, func(context.Context) (*item, error) {
		return &item{ID: 3}, nil
	})
	require.Error(t, err)
	assert.False(t, mr.Exists("library:book:3"))
}

func TestInvalidateDeletesPrefixedKeysAndReloads(t *testing.T) {
	c, mr := newRedisCache(t)
	ctx := context.Background()
	title := "v1"
	calls := 0
	load := func(context.Context) (*item, error) {
		calls++
		return &item{ID: 4, Title: title}, nil
	}

	_, err := GetOrLoadJSON(ctx, c, BookKey(4), time.Minute, load)
	require.NoError(t, err)
	_, err = GetOrLoadJSON(ctx, c, BookKey(5), time.Minute, load)
	require.NoError(t, err)
	require.True(t, mr.Exists("library:book:4"))

	require.NoError(t, c.Invalidate(ctx, BookKey(4)))
	assert.False(t, mr.Exists("library:book:4"))
	assert.True(t, mr.Exists("library:book:5"))

	title = "v2"
	got, err := GetOrLoadJSON(ctx, c, BookKey(4), time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Title)
	assert.Equal(t, 3, calls)
	assert.JSONEq(t, `{"id":4,"title":"v2"}`, mustGet(t, mr, "library:book:4"))
}

// 回源期间发生写入并失效：旧值不得写回缓存
func TestInvalidateDuringLoadSkipsStaleWrite(t *testing.T) {
	c, mr := newRedisCache(t)
	ctx := context.Background()
	calls := 0

	got, err := GetOrLoadJSON(ctx, c, BookKey(6), time.Minute, func(ctx context.Context) (*item, error) {
		calls++
		// 读到旧值之后，写事务提交并失效
		stale := &item{ID: 6, Title: "available=1"}
		require.NoError(t, c.Invalidate(ctx, BookKey(6)))
		return stale, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "available=1", got.Title)
	assert.False(t, mr.Exists("library:book:6"))

	got, err = GetOrLoadJSON(ctx, c, BookKey(6), time.Minute, func(context.Context) (*item, error) {
		calls++
		return &item{ID: 6, Title: "available=0"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "available=0", got.Title)
	assert.Equal(t, 2, calls)
	assert.JSONEq(t, `{"id":6,"title":"available=0"}`, mustGet(t, mr, "library:book:6"))
}

func TestMarkUsedDetectsReuse(t *testing.T) {
	c, mr := newRedisCache(t)
	ctx := context.Background()

	first, err := c.MarkUsed(ctx, "jti-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)
	assert.True(t, mr.Exists("library:rt:used:jti-1"))
	assert.Equal(t, time.Hour, mr.TTL("library:rt:used:jti-1"))

	again, err := c.MarkUsed(ctx, "jti-1", time.Hour)
	require.NoError(t, err)
	assert.False(t, again)

	other, err := c.MarkUsed(ctx, "jti-2", time.Hour)
	require.NoError(t, err)
	assert.True(t, other)

	// 过期后同一 jti 可再次登记
	mr.FastForward(2 * time.Hour)
	first, err = c.MarkUsed(ctx, "jti-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)
	assert.NoError(t, c.Ping(ctx))
}

func TestTokensRejectRefreshReuseThroughRedis(t *testing.T) {
	c, _ := newRedisCache(t)
	ctx := context.Background()
	tokens := auth.NewTokens("access-secret", "refresh-secret", "library-test", time.Minute, time.Hour)
	tokens.Revoker = c

	p, err := tokens.IssuePair(1, "a@library.com", "ADMIN")
	require.NoError(t, err)

	claims, err := tokens.Consume(ctx, p.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, uint(1), claims.ID)

	_, err = tokens.Consume(ctx, p.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrRefreshReuse)
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := mr.Get(key)
	require.NoError(t, err)
	return v
}
