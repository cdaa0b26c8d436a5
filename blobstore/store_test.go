package blobstore

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/anngo/internal/cache"
)

// storeContract exercises the behavior every Store implementation shares.
func storeContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("open missing blob", func(t *testing.T) {
		_, err := s.Open(ctx, "missing")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("write then read", func(t *testing.T) {
		require.NoError(t, WriteAll(ctx, s, "dumps/a.bin", []byte("payload-a")))

		got, err := ReadAll(ctx, s, "dumps/a.bin")
		require.NoError(t, err)
		assert.Equal(t, []byte("payload-a"), got)
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, WriteAll(ctx, s, "dumps/b.bin", []byte("v1")))
		require.NoError(t, WriteAll(ctx, s, "dumps/b.bin", []byte("v2")))

		got, err := ReadAll(ctx, s, "dumps/b.bin")
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), got)
	})

	t.Run("list by prefix", func(t *testing.T) {
		require.NoError(t, WriteAll(ctx, s, "other/c.bin", []byte("c")))

		names, err := s.List(ctx, "dumps/")
		require.NoError(t, err)
		assert.Equal(t, []string{"dumps/a.bin", "dumps/b.bin"}, names)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, "dumps/a.bin"))
		_, err := s.Open(ctx, "dumps/a.bin")
		require.ErrorIs(t, err, ErrNotFound)

		// Deleting a missing blob is not an error.
		require.NoError(t, s.Delete(ctx, "dumps/a.bin"))
	})
}

func TestLocalStore(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	storeContract(t, s)
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestMemoryStoreConcurrent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = WriteAll(ctx, s, "shared", []byte("data"))
				_, _ = ReadAll(ctx, s, "shared")
			}
		}()
	}
	wg.Wait()
}

// countingStore counts Open calls to observe cache behavior.
type countingStore struct {
	Store
	opens atomic.Int64
}

func (c *countingStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	c.opens.Add(1)
	return c.Store.Open(ctx, name)
}

func TestCachingStore(t *testing.T) {
	ctx := context.Background()

	t.Run("contract", func(t *testing.T) {
		storeContract(t, NewCachingStore(NewMemoryStore(), cache.NewLRU(1<<20, nil)))
	})

	t.Run("second open hits cache", func(t *testing.T) {
		inner := &countingStore{Store: NewMemoryStore()}
		s := NewCachingStore(inner, cache.NewLRU(1<<20, nil))

		require.NoError(t, WriteAll(ctx, s, "x", []byte("data")))

		for i := 0; i < 3; i++ {
			got, err := ReadAll(ctx, s, "x")
			require.NoError(t, err)
			assert.Equal(t, []byte("data"), got)
		}
		assert.Equal(t, int64(1), inner.opens.Load())
	})

	t.Run("write invalidates", func(t *testing.T) {
		inner := &countingStore{Store: NewMemoryStore()}
		s := NewCachingStore(inner, cache.NewLRU(1<<20, nil))

		require.NoError(t, WriteAll(ctx, s, "x", []byte("v1")))
		_, err := ReadAll(ctx, s, "x")
		require.NoError(t, err)

		require.NoError(t, WriteAll(ctx, s, "x", []byte("v2")))

		got, err := ReadAll(ctx, s, "x")
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), got)
	})

	t.Run("miss errors are not cached", func(t *testing.T) {
		s := NewCachingStore(NewMemoryStore(), cache.NewLRU(1<<20, nil))

		_, err := ReadAll(ctx, s, "missing")
		require.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, WriteAll(ctx, s, "missing", []byte("now present")))
		got, err := ReadAll(ctx, s, "missing")
		require.NoError(t, err)
		assert.Equal(t, []byte("now present"), got)
	})
}
