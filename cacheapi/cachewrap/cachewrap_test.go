package cachewrap

import (
	"context"
	"testing"
	"time"

	explru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/davconnector/cacheapi"
)

func TestExpirableLru(t *testing.T) {
	ctx := context.Background()
	c := WrapExpirableLruCache(explru.NewLRU[string, int](10, nil, time.Hour))
	_, err := c.Get(ctx, "a")
	assert.ErrorIs(t, err, cacheapi.ErrCacheKeyNotExist)
	assert.NoError(t, c.Set(ctx, "a", 1))
	v, err := c.Get(ctx, "a")
	assert.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.NoError(t, c.Del(ctx, "a"))
	_, err = c.Get(ctx, "a")
	assert.ErrorIs(t, err, cacheapi.ErrCacheKeyNotExist)
}

func TestRistretto(t *testing.T) {
	ctx := context.Background()
	c, err := NewRistrettoCache[string, string](100)
	require.NoError(t, err)
	assert.NoError(t, c.Set(ctx, "webdav-http://h/a/b.xml", "webdav-http://h/a/"))
	v, err := c.Get(ctx, "webdav-http://h/a/b.xml")
	assert.NoError(t, err)
	assert.Equal(t, "webdav-http://h/a/", v)
}
