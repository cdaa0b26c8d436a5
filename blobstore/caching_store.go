package blobstore

import (
	"bytes"
	"context"
	"io"

	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/anngo/internal/cache"
)

// CachingStore wraps a Store with an in-memory payload cache. Repeated loads
// of the same dump hit memory instead of the backend; concurrent misses for
// the same name are coalesced into one backend read.
type CachingStore struct {
	inner Store
	cache *cache.LRU
	group singleflight.Group
}

// NewCachingStore creates a caching wrapper around inner.
func NewCachingStore(inner Store, c *cache.LRU) *CachingStore {
	return &CachingStore{
		inner: inner,
		cache: c,
	}
}

// Open returns the cached payload when present, otherwise reads the blob
// through the inner store and caches it.
func (s *CachingStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if data, ok := s.cache.Get(name); ok {
		return io.NopCloser(bytes.NewReader(data)), nil
	}

	v, err, _ := s.group.Do(name, func() (any, error) {
		data, err := ReadAll(ctx, s.inner, name)
		if err != nil {
			return nil, err
		}
		s.cache.Set(name, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}

	return io.NopCloser(bytes.NewReader(v.([]byte))), nil
}

// Create passes through to the inner store and invalidates the stale cache
// entry once the write is published.
func (s *CachingStore) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	w, err := s.inner.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	return &invalidatingWriter{w: w, cache: s.cache, name: name}, nil
}

// Delete removes the blob and its cache entry.
func (s *CachingStore) Delete(ctx context.Context, name string) error {
	s.cache.Invalidate(name)
	return s.inner.Delete(ctx, name)
}

// List passes through to the inner store.
func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

type invalidatingWriter struct {
	w     io.WriteCloser
	cache *cache.LRU
	name  string
}

func (w *invalidatingWriter) Write(p []byte) (int, error) {
	return w.w.Write(p)
}

func (w *invalidatingWriter) Close() error {
	err := w.w.Close()
	if err == nil {
		w.cache.Invalidate(w.name)
	}
	return err
}
