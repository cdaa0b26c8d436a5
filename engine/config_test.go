package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	t.Run("valid hnsw", func(t *testing.T) {
		cfg, err := ParseConfig(IndexTypeHNSW, []byte(`{
			"dtype": "float32",
			"metric_type": "l2",
			"dim": 128,
			"hnsw": {"max_degree": 16, "ef_construction": 200}
		}`), nil)
		require.NoError(t, err)
		assert.Equal(t, 128, cfg.Dim)
		assert.Equal(t, 16, cfg.HNSW.MaxDegree)
		assert.Equal(t, 200, cfg.HNSW.EFConstruction)
	})

	t.Run("valid flat without knobs", func(t *testing.T) {
		cfg, err := ParseConfig(IndexTypeFlat, []byte(`{
			"dtype": "float32",
			"metric_type": "cosine",
			"dim": 8
		}`), nil)
		require.NoError(t, err)
		assert.Equal(t, MetricCosine, cfg.MetricType)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		_, err := ParseConfig(IndexTypeHNSW, []byte(`{not json`), nil)

		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
	})

	for _, tt := range []struct {
		name   string
		config string
	}{
		{name: "unsupported dtype", config: `{"dtype": "float64", "metric_type": "l2", "dim": 8, "hnsw": {"max_degree": 16, "ef_construction": 200}}`},
		{name: "unknown metric", config: `{"dtype": "float32", "metric_type": "hamming", "dim": 8, "hnsw": {"max_degree": 16, "ef_construction": 200}}`},
		{name: "zero dim", config: `{"dtype": "float32", "metric_type": "l2", "dim": 0, "hnsw": {"max_degree": 16, "ef_construction": 200}}`},
		{name: "negative dim", config: `{"dtype": "float32", "metric_type": "l2", "dim": -5, "hnsw": {"max_degree": 16, "ef_construction": 200}}`},
		{name: "missing hnsw params", config: `{"dtype": "float32", "metric_type": "l2", "dim": 8}`},
		{name: "zero max_degree", config: `{"dtype": "float32", "metric_type": "l2", "dim": 8, "hnsw": {"max_degree": 0, "ef_construction": 200}}`},
		{name: "zero ef_construction", config: `{"dtype": "float32", "metric_type": "l2", "dim": 8, "hnsw": {"max_degree": 16, "ef_construction": 0}}`},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig(IndexTypeHNSW, []byte(tt.config), nil)

			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestDistanceTypeMapping(t *testing.T) {
	for _, metric := range []string{MetricL2, MetricIP, MetricCosine} {
		cfg := &Config{MetricType: metric}
		_, ok := cfg.DistanceType()
		assert.True(t, ok, metric)
	}

	cfg := &Config{MetricType: "other"}
	_, ok := cfg.DistanceType()
	assert.False(t, ok)
}

func TestParseSearchParams(t *testing.T) {
	t.Run("empty blob yields defaults", func(t *testing.T) {
		params, err := ParseSearchParams(nil, nil)
		require.NoError(t, err)
		assert.Equal(t, DefaultEFSearch, params.EF(10))
	})

	t.Run("explicit ef_search", func(t *testing.T) {
		params, err := ParseSearchParams([]byte(`{"hnsw": {"ef_search": 37}}`), nil)
		require.NoError(t, err)
		assert.Equal(t, 37, params.EF(10))
	})

	t.Run("ef raised to k", func(t *testing.T) {
		params, err := ParseSearchParams([]byte(`{"hnsw": {"ef_search": 5}}`), nil)
		require.NoError(t, err)
		assert.Equal(t, 50, params.EF(50))
	})

	t.Run("malformed JSON", func(t *testing.T) {
		_, err := ParseSearchParams([]byte(`{`), nil)

		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
	})

	t.Run("negative ef_search", func(t *testing.T) {
		_, err := ParseSearchParams([]byte(`{"hnsw": {"ef_search": -1}}`), nil)

		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
	})
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, StatusIndexEmpty, StatusOf(Errf(StatusIndexEmpty, "empty")))
	assert.Equal(t, StatusReadError, StatusOf(WrapErr(StatusReadError, assert.AnError, "read")))
	assert.Equal(t, StatusUnknownError, StatusOf(assert.AnError))
	assert.Equal(t, StatusUnknownError, StatusOf(nil))
}
