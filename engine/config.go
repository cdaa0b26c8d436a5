package engine

import (
	"fmt"

	"github.com/hupe1980/anngo/codec"
	"github.com/hupe1980/anngo/index"
)

// Index type names accepted by New.
const (
	IndexTypeHNSW    = "hnsw"
	IndexTypeFlat    = "flat"
	IndexTypeDiskANN = "diskann"
)

// Metric names accepted in construction configs.
const (
	MetricL2     = "l2"
	MetricIP     = "ip"
	MetricCosine = "cosine"
)

// DTypeFloat32 is the only element type the engine stores.
const DTypeFloat32 = "float32"

// ConfigError indicates a malformed or invalid JSON parameter blob. It is
// distinct from Error so callers can tell bad configuration apart from bad
// arguments.
//
// The decode error (if any) can be accessed via errors.Unwrap.
type ConfigError struct {
	Reason string
	cause  error
}

func (e *ConfigError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("invalid config: %s: %v", e.Reason, e.cause)
	}
	return fmt.Sprintf("invalid config: %s", e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.cause }

func configErr(reason string, args ...any) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(reason, args...)}
}

// HNSWParams are the construction knobs for the "hnsw" index type.
type HNSWParams struct {
	MaxDegree      int `json:"max_degree"`
	EFConstruction int `json:"ef_construction"`
}

// DiskANNParams are the construction knobs for the "diskann" index type. They
// are parsed for schema validation even though construction of that type is
// not supported.
type DiskANNParams struct {
	MaxDegree      int     `json:"max_degree"`
	EFConstruction int     `json:"ef_construction"`
	PQDims         int     `json:"pq_dims"`
	PQSampleRate   float64 `json:"pq_sample_rate"`
}

// Config is the construction-time configuration. The JSON schema is owned by
// the engine; callers pass the blob through opaquely.
type Config struct {
	DType      string         `json:"dtype"`
	MetricType string         `json:"metric_type"`
	Dim        int            `json:"dim"`
	HNSW       *HNSWParams    `json:"hnsw,omitempty"`
	DiskANN    *DiskANNParams `json:"diskann,omitempty"`
}

// DistanceType maps the configured metric name onto a distance type.
func (c *Config) DistanceType() (index.DistanceType, bool) {
	switch c.MetricType {
	case MetricL2:
		return index.DistanceTypeSquaredL2, true
	case MetricIP:
		return index.DistanceTypeDotProduct, true
	case MetricCosine:
		return index.DistanceTypeCosine, true
	default:
		return 0, false
	}
}

// ParseConfig decodes and validates a construction config for the given index
// type.
func ParseConfig(indexType string, data []byte, c codec.Codec) (*Config, error) {
	if c == nil {
		c = codec.Default
	}

	var cfg Config
	if err := c.Unmarshal(data, &cfg); err != nil {
		return nil, &ConfigError{Reason: "malformed JSON", cause: err}
	}

	if cfg.DType != DTypeFloat32 {
		return nil, configErr("unsupported dtype %q (only %q)", cfg.DType, DTypeFloat32)
	}
	if _, ok := cfg.DistanceType(); !ok {
		return nil, configErr("unsupported metric_type %q", cfg.MetricType)
	}
	if cfg.Dim <= 0 {
		return nil, configErr("dim must be positive, got %d", cfg.Dim)
	}

	switch indexType {
	case IndexTypeHNSW:
		if cfg.HNSW == nil {
			return nil, configErr("missing %q parameter object", IndexTypeHNSW)
		}
		if cfg.HNSW.MaxDegree <= 0 {
			return nil, configErr("hnsw.max_degree must be positive, got %d", cfg.HNSW.MaxDegree)
		}
		if cfg.HNSW.EFConstruction <= 0 {
			return nil, configErr("hnsw.ef_construction must be positive, got %d", cfg.HNSW.EFConstruction)
		}
	case IndexTypeFlat:
		// Exact scan has no algorithm knobs.
	case IndexTypeDiskANN:
		if cfg.DiskANN == nil {
			return nil, configErr("missing %q parameter object", IndexTypeDiskANN)
		}
	}

	return &cfg, nil
}

// DefaultEFSearch is the exploration factor used when search params omit
// hnsw.ef_search.
const DefaultEFSearch = 100

// HNSWSearchParams are the query-time knobs for the "hnsw" index type.
type HNSWSearchParams struct {
	EFSearch int `json:"ef_search"`
}

// SearchParams is the query-time configuration.
type SearchParams struct {
	HNSW *HNSWSearchParams `json:"hnsw,omitempty"`
}

// EF returns the effective exploration factor for a query requesting k
// results. Values below k are raised to k.
func (p *SearchParams) EF(k int) int {
	ef := DefaultEFSearch
	if p != nil && p.HNSW != nil && p.HNSW.EFSearch > 0 {
		ef = p.HNSW.EFSearch
	}
	if ef < k {
		ef = k
	}
	return ef
}

// ParseSearchParams decodes query-time parameters. An empty blob yields
// defaults; malformed JSON is a ConfigError even for index types that ignore
// the parameters.
func ParseSearchParams(data []byte, c codec.Codec) (*SearchParams, error) {
	if c == nil {
		c = codec.Default
	}

	var params SearchParams
	if len(data) == 0 {
		return &params, nil
	}
	if err := c.Unmarshal(data, &params); err != nil {
		return nil, &ConfigError{Reason: "malformed search params JSON", cause: err}
	}
	if params.HNSW != nil && params.HNSW.EFSearch < 0 {
		return nil, configErr("hnsw.ef_search must not be negative, got %d", params.HNSW.EFSearch)
	}
	return &params, nil
}
