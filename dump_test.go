package anngo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/anngo/blobstore"
	"github.com/hupe1980/anngo/persistence"
	"github.com/hupe1980/anngo/resource"
	"github.com/hupe1980/anngo/testutil"
)

func TestDumpLoadFile(t *testing.T) {
	ctx := context.Background()
	const dim = 16

	t.Run("round trip", func(t *testing.T) {
		for _, ct := range []persistence.CompressionType{
			persistence.CompressionNone,
			persistence.CompressionLZ4,
			persistence.CompressionZSTD,
		} {
			t.Run(ct.String(), func(t *testing.T) {
				rng := testutil.NewRNG(1)
				vectors := rng.UniformVectors(200, dim)

				idx := newTestIndex(t, "hnsw", hnswConfig(dim), WithCompression(ct))
				buildVectors(t, idx, vectors)

				path := filepath.Join(t.TempDir(), "dump.bin")
				require.NoError(t, idx.Dump(ctx, path))

				loaded, err := Load(ctx, path, "hnsw", hnswConfig(dim))
				require.NoError(t, err)
				defer loaded.Close()

				require.Equal(t, 200, loaded.Count())

				// The loaded graph answers identically to the original.
				for i := 0; i < 10; i++ {
					query := vectors[i*17]
					want, err := idx.KnnSearch(ctx, query, 5, nil)
					require.NoError(t, err)
					got, err := loaded.KnnSearch(ctx, query, 5, nil)
					require.NoError(t, err)
					assert.Equal(t, want, got)
				}
			})
		}
	})

	t.Run("mmap load", func(t *testing.T) {
		rng := testutil.NewRNG(2)
		vectors := rng.UniformVectors(100, dim)

		idx := newTestIndex(t, "hnsw", hnswConfig(dim))
		buildVectors(t, idx, vectors)

		path := filepath.Join(t.TempDir(), "dump.bin")
		require.NoError(t, idx.Dump(ctx, path))

		loaded, err := LoadMmap(ctx, path, "hnsw", hnswConfig(dim))
		require.NoError(t, err)
		defer loaded.Close()

		results, err := loaded.KnnSearch(ctx, vectors[3], 1, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(3), results[0].ID)
	})

	t.Run("append after load", func(t *testing.T) {
		idx := newTestIndex(t, "flat", flatConfig(4))
		failed, err := idx.Build(ctx, 2, 4, []int64{1, 2}, []float32{1, 0, 0, 0, 0, 1, 0, 0})
		require.NoError(t, err)
		require.Empty(t, failed)

		path := filepath.Join(t.TempDir(), "dump.bin")
		require.NoError(t, idx.Dump(ctx, path))

		loaded, err := Load(ctx, path, "flat", flatConfig(4))
		require.NoError(t, err)
		defer loaded.Close()

		failed, err = loaded.Build(ctx, 1, 4, []int64{3}, []float32{0, 0, 1, 0})
		require.NoError(t, err)
		require.Empty(t, failed)
		assert.Equal(t, 3, loaded.Count())

		// Labels from before the dump still collide.
		failed, err = loaded.Build(ctx, 1, 4, []int64{1}, []float32{0, 0, 0, 1})
		require.NoError(t, err)
		assert.Equal(t, []int64{1}, failed)
	})

	t.Run("empty index cannot be dumped", func(t *testing.T) {
		idx := newTestIndex(t, "hnsw", hnswConfig(dim))

		err := idx.Dump(ctx, filepath.Join(t.TempDir(), "dump.bin"))
		require.ErrorIs(t, err, ErrIndexEmpty)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(ctx, filepath.Join(t.TempDir(), "nope.bin"), "hnsw", hnswConfig(dim))
		require.ErrorIs(t, err, ErrLoadFailed)
	})

	t.Run("corrupt file", func(t *testing.T) {
		idx := newTestIndex(t, "hnsw", hnswConfig(dim))
		buildVectors(t, idx, testutil.NewRNG(3).UniformVectors(50, dim))

		path := filepath.Join(t.TempDir(), "dump.bin")
		require.NoError(t, idx.Dump(ctx, path))

		data, err := os.ReadFile(path)
		require.NoError(t, err)

		t.Run("flipped payload byte", func(t *testing.T) {
			bad := append([]byte(nil), data...)
			bad[len(bad)/2] ^= 0xFF
			badPath := filepath.Join(t.TempDir(), "bad.bin")
			require.NoError(t, os.WriteFile(badPath, bad, 0o600))

			_, err := Load(ctx, badPath, "hnsw", hnswConfig(dim))
			require.ErrorIs(t, err, ErrLoadFailed)
		})

		t.Run("truncated", func(t *testing.T) {
			badPath := filepath.Join(t.TempDir(), "bad.bin")
			require.NoError(t, os.WriteFile(badPath, data[:len(data)/2], 0o600))

			_, err := Load(ctx, badPath, "hnsw", hnswConfig(dim))
			require.ErrorIs(t, err, ErrLoadFailed)
		})

		t.Run("index type mismatch", func(t *testing.T) {
			_, err := Load(ctx, path, "flat", flatConfig(dim))
			require.ErrorIs(t, err, ErrLoadFailed)
		})

		t.Run("dimension mismatch", func(t *testing.T) {
			_, err := Load(ctx, path, "hnsw", hnswConfig(dim*2))
			require.ErrorIs(t, err, ErrLoadFailed)
		})
	})
}

func TestDumpLoadBlobStore(t *testing.T) {
	ctx := context.Background()
	const dim = 16

	t.Run("round trip", func(t *testing.T) {
		rng := testutil.NewRNG(4)
		vectors := rng.UniformVectors(150, dim)

		idx := newTestIndex(t, "hnsw", hnswConfig(dim))
		buildVectors(t, idx, vectors)

		store := blobstore.NewMemoryStore()
		require.NoError(t, idx.DumpTo(ctx, store, "dumps/0001.bin"))

		names, err := store.List(ctx, "dumps/")
		require.NoError(t, err)
		assert.Equal(t, []string{"dumps/0001.bin"}, names)

		loaded, err := LoadFrom(ctx, store, "dumps/0001.bin", "hnsw", hnswConfig(dim))
		require.NoError(t, err)
		defer loaded.Close()

		results, err := loaded.KnnSearch(ctx, vectors[10], 1, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(10), results[0].ID)
	})

	t.Run("missing blob", func(t *testing.T) {
		_, err := LoadFrom(ctx, blobstore.NewMemoryStore(), "nope", "hnsw", hnswConfig(dim))
		require.ErrorIs(t, err, ErrLoadFailed)
	})

	t.Run("failed dump leaves no blob", func(t *testing.T) {
		idx := newTestIndex(t, "hnsw", hnswConfig(dim))

		store := blobstore.NewMemoryStore()
		err := idx.DumpTo(ctx, store, "dumps/0001.bin")
		require.ErrorIs(t, err, ErrIndexEmpty)

		names, err := store.List(ctx, "")
		require.NoError(t, err)
		assert.Empty(t, names)
	})

	t.Run("with resource controller", func(t *testing.T) {
		rc := resource.NewController(resource.Config{
			MaxConcurrentIO:    1,
			IOLimitBytesPerSec: 64 * 1024 * 1024,
		})

		rng := testutil.NewRNG(5)
		vectors := rng.UniformVectors(100, dim)

		idx := newTestIndex(t, "hnsw", hnswConfig(dim), WithResourceController(rc))
		buildVectors(t, idx, vectors)

		store := blobstore.NewMemoryStore()
		require.NoError(t, idx.DumpTo(ctx, store, "dump.bin"))

		loaded, err := LoadFrom(ctx, store, "dump.bin", "hnsw", hnswConfig(dim), WithResourceController(rc))
		require.NoError(t, err)
		defer loaded.Close()
		assert.Equal(t, 100, loaded.Count())
	})
}
