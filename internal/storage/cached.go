package storage

import (
	"context"
	"errors"

	"debtr/internal/cache"
)

// CachedStore serves repeated reads from an in-process cache and writes
// through to the wrapped store.
type CachedStore struct {
	inner KV
	cache cache.Cache[string]
}

// batchCachedStore is returned when the wrapped store can batch writes.
type batchCachedStore struct {
	*CachedStore
	batch Batch
}

// NewCachedStore wraps inner. The result implements Batch exactly when inner
// does.
func NewCachedStore(inner KV, c cache.Cache[string]) KV {
	cs := &CachedStore{inner: inner, cache: c}
	if b, ok := inner.(Batch); ok {
		return &batchCachedStore{CachedStore: cs, batch: b}
	}
	return cs
}

func (s *CachedStore) Get(ctx context.Context, key string) (string, error) {
	if v, ok := s.cache.Get(key); ok {
		return v, nil
	}
	v, err := s.inner.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.cache.Delete(key)
		}
		return "", err
	}
	s.cache.Set(key, v)
	return v, nil
}

func (s *CachedStore) Set(ctx context.Context, key, value string) error {
	if err := s.inner.Set(ctx, key, value); err != nil {
		// The stored value is unknown now.
		s.cache.Delete(key)
		return err
	}
	s.cache.Set(key, value)
	return nil
}

func (s *batchCachedStore) SetMany(ctx context.Context, entries []Entry) error {
	if err := s.batch.SetMany(ctx, entries); err != nil {
		for _, e := range entries {
			s.cache.Delete(e.Key)
		}
		return err
	}
	for _, e := range entries {
		s.cache.Set(e.Key, e.Value)
	}
	return nil
}
