package engine

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/anngo/persistence"
	"github.com/hupe1980/anngo/testutil"
)

func snapshotEngine(t *testing.T) (*Engine, [][]float32) {
	t.Helper()

	e := newTestEngine(t, hnswConfig())
	rng := testutil.NewRNG(20)
	vectors := rng.UniformVectors(200, testDim)
	buildBatch(t, e, vectors)

	return e, vectors
}

func TestSnapshotRoundTrip(t *testing.T) {
	for _, tt := range []struct {
		name        string
		compression persistence.CompressionType
	}{
		{name: "none", compression: persistence.CompressionNone},
		{name: "lz4", compression: persistence.CompressionLZ4},
		{name: "zstd", compression: persistence.CompressionZSTD},
	} {
		t.Run(tt.name, func(t *testing.T) {
			e, vectors := snapshotEngine(t)

			var buf bytes.Buffer
			require.NoError(t, e.WriteSnapshot(&buf, tt.compression))

			loaded, err := LoadSnapshot(bytes.NewReader(buf.Bytes()), IndexTypeHNSW, hnswConfig())
			require.NoError(t, err)
			defer loaded.Close()

			assert.Equal(t, e.Count(), loaded.Count())
			assert.Equal(t, e.Dimension(), loaded.Dimension())

			// Identical graph: exact stored vectors find their own label.
			res, err := loaded.KnnSearch(context.Background(), vectors[17], 1, nil)
			require.NoError(t, err)
			require.Len(t, res, 1)
			assert.Equal(t, int64(17), res[0].ID)
		})
	}
}

func TestSnapshotAppendsAfterLoad(t *testing.T) {
	e, _ := snapshotEngine(t)

	var buf bytes.Buffer
	require.NoError(t, e.WriteSnapshot(&buf, persistence.CompressionZSTD))

	loaded, err := LoadSnapshot(&buf, IndexTypeHNSW, hnswConfig())
	require.NoError(t, err)
	defer loaded.Close()

	rng := testutil.NewRNG(21)
	ids := []int64{1000, 1001}
	failed, err := loaded.Build(context.Background(), 2, testDim, ids, testutil.Flatten(rng.UniformVectors(2, testDim)))
	require.NoError(t, err)
	assert.Empty(t, failed)
	assert.Equal(t, 202, loaded.Count())
}

func TestWriteSnapshotEmpty(t *testing.T) {
	e := newTestEngine(t, hnswConfig())

	var buf bytes.Buffer
	err := e.WriteSnapshot(&buf, persistence.CompressionNone)
	require.ErrorIs(t, err, Errf(StatusIndexEmpty, ""))
}

func TestLoadSnapshotRejects(t *testing.T) {
	e, _ := snapshotEngine(t)

	var buf bytes.Buffer
	require.NoError(t, e.WriteSnapshot(&buf, persistence.CompressionNone))
	data := buf.Bytes()

	t.Run("bad magic", func(t *testing.T) {
		corrupt := bytes.Clone(data)
		corrupt[0] ^= 0xFF
		_, err := LoadSnapshot(bytes.NewReader(corrupt), IndexTypeHNSW, hnswConfig())
		require.ErrorIs(t, err, Errf(StatusInvalidBinary, ""))
	})

	t.Run("flipped payload byte", func(t *testing.T) {
		corrupt := bytes.Clone(data)
		corrupt[len(corrupt)/2] ^= 0xFF
		_, err := LoadSnapshot(bytes.NewReader(corrupt), IndexTypeHNSW, hnswConfig())
		require.ErrorIs(t, err, Errf(StatusInvalidBinary, ""))

		var mismatch *persistence.ChecksumMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.NotEqual(t, mismatch.Expected, mismatch.Actual)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := LoadSnapshot(bytes.NewReader(data[:len(data)/3]), IndexTypeHNSW, hnswConfig())
		require.ErrorIs(t, err, Errf(StatusInvalidBinary, ""))
	})

	t.Run("index type mismatch", func(t *testing.T) {
		_, err := LoadSnapshot(bytes.NewReader(data), IndexTypeFlat, []byte(`{"dtype": "float32", "metric_type": "l2", "dim": 16}`))
		require.ErrorIs(t, err, Errf(StatusInvalidBinary, ""))
	})

	t.Run("metric mismatch", func(t *testing.T) {
		_, err := LoadSnapshot(bytes.NewReader(data), IndexTypeHNSW, cosineConfig())
		require.ErrorIs(t, err, Errf(StatusInvalidBinary, ""))
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := LoadSnapshot(bytes.NewReader(data), IndexTypeHNSW, []byte(`{
			"dtype": "float32",
			"metric_type": "l2",
			"dim": 32,
			"hnsw": {"max_degree": 16, "ef_construction": 200}
		}`))
		require.ErrorIs(t, err, Errf(StatusInvalidBinary, ""))
	})

	t.Run("invalid config", func(t *testing.T) {
		_, err := LoadSnapshot(bytes.NewReader(data), IndexTypeHNSW, []byte(`{`))

		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
	})
}

func TestFlatSnapshotRoundTrip(t *testing.T) {
	flatConfig := []byte(`{"dtype": "float32", "metric_type": "ip", "dim": 16}`)

	e, err := New(IndexTypeFlat, flatConfig)
	require.NoError(t, err)
	defer e.Close()

	rng := testutil.NewRNG(22)
	vectors := rng.UnitVectors(50, testDim)
	failed, err := e.Build(context.Background(), 50, testDim, testutil.SequentialIDs(50), testutil.Flatten(vectors))
	require.NoError(t, err)
	require.Empty(t, failed)

	var buf bytes.Buffer
	require.NoError(t, e.WriteSnapshot(&buf, persistence.CompressionLZ4))

	loaded, err := LoadSnapshot(&buf, IndexTypeFlat, flatConfig)
	require.NoError(t, err)
	defer loaded.Close()

	assert.Equal(t, 50, loaded.Count())
	assert.Equal(t, "flat", loaded.Stats().Kind)
}
