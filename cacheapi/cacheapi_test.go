package cacheapi

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type simpleCache[K comparable, V any] struct {
	m map[K]V
}

func (s *simpleCache[K, V]) Get(ctx context.Context, k K) (V, error) {
	v, ok := s.m[k]
	if !ok {
		return v, ErrCacheKeyNotExist
	}
	return v, nil
}

func (s *simpleCache[K, V]) Set(ctx context.Context, k K, v V) error {
	s.m[k] = v
	return nil
}

func newSimpleCache[K comparable, V any]() ICacheLoader[K, V] {
	return &simpleCache[K, V]{m: map[K]V{}}
}

func TestLoad(t *testing.T) {
	c := newSimpleCache[string, string]()
	ctx := context.Background()
	calls := 0
	cb := func(ctx context.Context, k string) (string, error) {
		calls++
		return k + "/", nil
	}
	v, err := Load(ctx, c, "http://h/a", cb)
	assert.NoError(t, err)
	assert.Equal(t, "http://h/a/", v)
	v, err = Load(ctx, c, "http://h/a", cb)
	assert.NoError(t, err)
	assert.Equal(t, "http://h/a/", v)
	assert.Equal(t, 1, calls)
}

func TestLoadFailNotCached(t *testing.T) {
	c := newSimpleCache[string, string]()
	ctx := context.Background()
	_, err := Load(ctx, c, "k", func(ctx context.Context, k string) (string, error) {
		return "", errors.New("boom")
	})
	assert.Error(t, err)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheKeyNotExist)
}
