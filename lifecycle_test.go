package anngo

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/anngo/testutil"
)

func TestClose(t *testing.T) {
	ctx := context.Background()

	t.Run("operations after close", func(t *testing.T) {
		idx := newTestIndex(t, "hnsw", hnswConfig(4))
		buildVectors(t, idx, testutil.NewRNG(1).UniformVectors(10, 4))

		require.NoError(t, idx.Close())

		_, err := idx.Build(ctx, 1, 4, []int64{99}, []float32{1, 0, 0, 0})
		require.ErrorIs(t, err, ErrClosed)

		_, err = idx.KnnSearch(ctx, []float32{1, 0, 0, 0}, 1, nil)
		require.ErrorIs(t, err, ErrClosed)

		err = idx.Dump(ctx, t.TempDir()+"/dump.bin")
		require.ErrorIs(t, err, ErrClosed)
	})

	t.Run("idempotent", func(t *testing.T) {
		idx := newTestIndex(t, "hnsw", hnswConfig(4))
		require.NoError(t, idx.Close())
		require.NoError(t, idx.Close())
	})

	t.Run("nil receiver", func(t *testing.T) {
		var idx *Index
		require.NoError(t, idx.Close())
	})

	t.Run("handles are independent", func(t *testing.T) {
		a := newTestIndex(t, "hnsw", hnswConfig(4))
		b := newTestIndex(t, "hnsw", hnswConfig(4))

		buildVectors(t, a, testutil.NewRNG(2).UniformVectors(5, 4))
		buildVectors(t, b, testutil.NewRNG(3).UniformVectors(7, 4))

		require.NoError(t, a.Close())

		// b is unaffected by closing a.
		assert.Equal(t, 7, b.Count())
		_, err := b.KnnSearch(ctx, []float32{1, 0, 0, 0}, 1, nil)
		require.NoError(t, err)
	})
}

func TestConcurrentSearch(t *testing.T) {
	ctx := context.Background()

	idx := newTestIndex(t, "hnsw", hnswConfig(16))
	rng := testutil.NewRNG(7)
	vectors := rng.UniformVectors(500, 16)
	buildVectors(t, idx, vectors)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				results, err := idx.KnnSearch(ctx, vectors[(g*50+i)%len(vectors)], 5, nil)
				if err != nil {
					errs[g] = err
					return
				}
				if len(results) != 5 {
					return
				}
			}
		}(g)
	}
	wg.Wait()

	for g, err := range errs {
		assert.NoError(t, err, "goroutine %d", g)
	}
}

func TestConcurrentBuildAndSearch(t *testing.T) {
	ctx := context.Background()

	idx := newTestIndex(t, "hnsw", hnswConfig(8))
	rng := testutil.NewRNG(8)

	// Seed so searches have something to find.
	seed := rng.UniformVectors(50, 8)
	failed, err := idx.Build(ctx, 50, 8, testutil.SequentialIDs(50), testutil.Flatten(seed))
	require.NoError(t, err)
	require.Empty(t, failed)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for batch := 0; batch < 5; batch++ {
			vectors := rng.UniformVectors(20, 8)
			ids := make([]int64, 20)
			for i := range ids {
				ids[i] = int64(1000 + batch*20 + i)
			}
			if _, err := idx.Build(ctx, 20, 8, ids, testutil.Flatten(vectors)); err != nil {
				return
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		query := seed[0]
		for i := 0; i < 100; i++ {
			if _, err := idx.KnnSearch(ctx, query, 3, nil); err != nil {
				return
			}
		}
	}()

	wg.Wait()
	assert.Equal(t, 150, idx.Count())
}
