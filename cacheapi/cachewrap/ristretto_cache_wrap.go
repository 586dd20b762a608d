package cachewrap

import (
	"context"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/xxxsen/davconnector/cacheapi"
)

type LimitRistrettoKey interface {
	uint64 | string | byte | int | int32 | uint32 | int64
}

type ristrettoCacheWrap[K LimitRistrettoKey, V any] struct {
	c *ristretto.Cache[K, V]
}

func (r *ristrettoCacheWrap[K, V]) Get(ctx context.Context, k K) (V, error) {
	v, ok := r.c.Get(k)
	if !ok {
		return v, cacheapi.ErrCacheKeyNotExist
	}
	return v, nil
}

// Set waits for the write buffer so a Get right after Set observes the value.
func (r *ristrettoCacheWrap[K, V]) Set(ctx context.Context, k K, v V) error {
	_ = r.c.Set(k, v, 1)
	r.c.Wait()
	return nil
}

func (r *ristrettoCacheWrap[K, V]) Del(ctx context.Context, k K) error {
	r.c.Del(k)
	return nil
}

func WrapRistrettoCache[K LimitRistrettoKey, V any](c *ristretto.Cache[K, V]) cacheapi.ICache[K, V] {
	return &ristrettoCacheWrap[K, V]{c: c}
}

// NewRistrettoCache builds a cost-per-item cache holding up to size entries.
func NewRistrettoCache[K LimitRistrettoKey, V any](size int64) (cacheapi.ICache[K, V], error) {
	c, err := ristretto.NewCache(&ristretto.Config[K, V]{
		NumCounters: size * 10,
		MaxCost:     size,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return WrapRistrettoCache(c), nil
}
