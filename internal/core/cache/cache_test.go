package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

func TestNilCachePassesThrough(t *testing.T) {
	var c *Cache
	ctx := context.Background()
	calls := 0
	load := func(context.Context) (*item, error) {
		calls++
		return &item{ID: 1, Title: "Dune"}, nil
	}

	for i := 0; i < 2; i++ {
		got, err := GetOrLoadJSON(ctx, c, BookKey(1), time.Minute, load)
		require.NoError(t, err)
		assert.Equal(t, "Dune", got.Title)
	}
	assert.Equal(t, 2, calls)

	assert.NoError(t, c.Invalidate(ctx, BookKey(1)))
	assert.NoError(t, c.Ping(ctx))
	assert.NoError(t, c.Close())
}

func TestNilCacheReturnsLoadError(t *testing.T) {
	boom := errors.New("boom")
	_, err := GetOrLoadJSON(context.Background(), nil, "k", time.Minute, func(context.Context) (*item, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestBookKey(t *testing.T) {
	assert.Equal(t, "book:42", BookKey(42))
}

func TestUnreachableRedisFallsBackToLoad(t *testing.T) {
	c := New("127.0.0.1:1", "", 0)
	t.Cleanup(func() { _ = c.Close() })
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	calls := 0
	for i := 0; i < 2; i++ {
		got, err := GetOrLoadJSON(ctx, c, BookKey(7), time.Minute, func(context.Context) (*item, error) {
			calls++
			return &item{ID: 7, Title: "Ronggeng Dukuh Paruk"}, nil
		})
		require.NoError(t, err)
		assert.Equal(t, uint(7), got.ID)
	}
	assert.Equal(t, 2, calls)
	assert.Error(t, c.Ping(ctx))

	_, err := c.MarkUsed(ctx, "jti", time.Minute)
	assert.Error(t, err)
}
