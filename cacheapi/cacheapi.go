package cacheapi

import (
	"context"
	"errors"
)

var (
	ErrCacheKeyNotExist = errors.New("cache key not exist")
)

type ICacheGetter[K comparable, V any] interface {
	Get(ctx context.Context, k K) (V, error)
}

type ICacheSetter[K comparable, V any] interface {
	Set(ctx context.Context, k K, v V) error
}

type ICacheDeleter[K comparable] interface {
	Del(ctx context.Context, k K) error
}

type ICacheLoader[K comparable, V any] interface {
	ICacheGetter[K, V]
	ICacheSetter[K, V]
}

type ICache[K comparable, V any] interface {
	ICacheLoader[K, V]
	ICacheDeleter[K]
}

type LoadCacheCallbackFunc[K comparable, V any] func(ctx context.Context, k K) (V, error)

// Load returns the cached value of k, calling cb and caching its result on a miss.
// A failed cb is not cached.
func Load[K comparable, V any](ctx context.Context, c ICacheLoader[K, V], k K, cb LoadCacheCallbackFunc[K, V]) (V, error) {
	v, err := c.Get(ctx, k)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, ErrCacheKeyNotExist) {
		return v, err
	}
	v, err = cb(ctx, k)
	if err != nil {
		return v, err
	}
	_ = c.Set(ctx, k, v)
	return v, nil
}
