// Package engine implements the index engine behind the public handle API:
// configuration schema, status codes, per-item build validation, and index
// orchestration.
//
// The engine reports domain failures as *Error values carrying a Status;
// malformed parameter blobs are reported as *ConfigError. The package is not
// concerned with locking: callers serialize builds against searches.
package engine

import (
	"context"
	"sync"

	"github.com/hupe1980/anngo/codec"
	"github.com/hupe1980/anngo/index"
	"github.com/hupe1980/anngo/index/flat"
	"github.com/hupe1980/anngo/index/hnsw"
	"github.com/hupe1980/anngo/labels"
)

// Result is a single nearest-neighbor hit, identified by the caller-facing
// label.
type Result struct {
	ID       int64
	Distance float32
}

// Options configures an Engine.
type Options struct {
	// Codec decodes configuration and parameter blobs. Defaults to
	// codec.Default.
	Codec codec.Codec

	// Limits bounds accepted input shapes. Zero fields take defaults.
	Limits Limits

	// RandomSeed pins the RNG of randomized index structures, making graph
	// construction deterministic. Nil seeds from the clock.
	RandomSeed *int64

	// NumWorkers sizes the batch preflight pool. <= 0 means GOMAXPROCS.
	NumWorkers int
}

// Engine owns one index instance plus its label mapping.
type Engine struct {
	indexType string
	cfg       *Config
	idx       index.Index
	labels    *labels.Map
	limits    Limits
	codec     codec.Codec
	pool      *WorkerPool
}

// New constructs an engine for the given index type from a JSON config blob.
func New(indexType string, config []byte, optFns ...func(o *Options)) (*Engine, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}
	opts.Limits = opts.Limits.withDefaults()

	cfg, err := ParseConfig(indexType, config, opts.Codec)
	if err != nil {
		return nil, err
	}
	if cfg.Dim > opts.Limits.MaxDimension {
		return nil, Errf(StatusInvalidArgument, "dim %d exceeds limit %d", cfg.Dim, opts.Limits.MaxDimension)
	}

	idx, err := newIndex(indexType, cfg, &opts)
	if err != nil {
		return nil, err
	}

	return &Engine{
		indexType: indexType,
		cfg:       cfg,
		idx:       idx,
		labels:    labels.New(),
		limits:    opts.Limits,
		codec:     opts.Codec,
		pool:      NewWorkerPool(opts.NumWorkers),
	}, nil
}

// newIndex dispatches construction on the index type name.
func newIndex(indexType string, cfg *Config, opts *Options) (index.Index, error) {
	dt, _ := cfg.DistanceType()

	switch indexType {
	case IndexTypeHNSW:
		return hnsw.New(func(o *hnsw.Options) {
			o.Dimension = cfg.Dim
			o.M = cfg.HNSW.MaxDegree
			o.EFConstruction = cfg.HNSW.EFConstruction
			o.DistanceType = dt
			o.RandomSeed = opts.RandomSeed
		})
	case IndexTypeFlat:
		return flat.New(func(o *flat.Options) {
			o.Dimension = cfg.Dim
			o.DistanceType = dt
		})
	case IndexTypeDiskANN:
		return nil, Errf(StatusUnsupportedIndex, "index type %q is recognized but not supported", indexType)
	default:
		return nil, Errf(StatusUnsupportedIndex, "unknown index type %q", indexType)
	}
}

// IndexType returns the name the engine was constructed with.
func (e *Engine) IndexType() string { return e.indexType }

// Config returns the parsed construction config.
func (e *Engine) Config() *Config { return e.cfg }

// Dimension returns the configured vector dimensionality.
func (e *Engine) Dimension() int { return e.cfg.Dim }

// Count returns the number of indexed vectors.
func (e *Engine) Count() int { return e.idx.Len() }

// Limits returns the effective validation limits.
func (e *Engine) Limits() Limits { return e.limits }

// Stats returns a snapshot of the underlying index shape.
func (e *Engine) Stats() index.Stats { return e.idx.Stats() }

// Close releases the engine's background resources. The index data itself is
// garbage-collected; only the preflight pool needs explicit shutdown.
func (e *Engine) Close() {
	e.pool.Close()
}

// Build inserts a batch of labeled vectors.
//
// Items that fail per-item validation (duplicate label, non-finite component,
// zero-norm vector under cosine) are skipped and their labels returned; they
// are data, not an error. Only batch-wide failures return an error.
func (e *Engine) Build(ctx context.Context, num, dim int, ids []int64, vectors []float32) ([]int64, error) {
	if dim != e.cfg.Dim {
		return nil, Errf(StatusDimensionNotEqual, "batch dim %d, index dim %d", dim, e.cfg.Dim)
	}
	if num > e.limits.MaxBatchSize {
		return nil, Errf(StatusInvalidArgument, "batch size %d exceeds limit %d", num, e.limits.MaxBatchSize)
	}
	if e.idx.Len()+num > e.limits.MaxVectors {
		return nil, Errf(StatusInvalidArgument, "batch would exceed vector limit %d", e.limits.MaxVectors)
	}
	if num == 0 {
		return nil, nil
	}

	rejects, err := e.preflight(ctx, num, dim, vectors)
	if err != nil {
		return nil, err
	}

	// Duplicate detection is order-dependent and runs sequentially: the first
	// occurrence of a label wins, later ones are rejected.
	seen := make(map[int64]struct{}, num)
	for i := 0; i < num; i++ {
		if rejects[i] != rejectNone {
			continue
		}
		label := ids[i]
		if _, dup := seen[label]; dup {
			rejects[i] = rejectDuplicateInBatch
			continue
		}
		if e.labels.Has(label) {
			rejects[i] = rejectDuplicateInIndex
			continue
		}
		seen[label] = struct{}{}
	}

	var failed []int64
	for i := 0; i < num; i++ {
		if rejects[i] != rejectNone {
			failed = append(failed, ids[i])
			continue
		}

		vec := vectors[i*dim : (i+1)*dim]
		node, err := e.idx.Insert(vec)
		if err != nil {
			return nil, WrapErr(StatusInternalError, err, "insert of id %d failed", ids[i])
		}
		if err := e.labels.Put(node, ids[i]); err != nil {
			return nil, WrapErr(StatusInternalError, err, "label mapping for id %d failed", ids[i])
		}
	}

	return failed, nil
}

// preflight runs the concurrent per-item checks on the worker pool.
func (e *Engine) preflight(ctx context.Context, num, dim int, vectors []float32) ([]itemReject, error) {
	rejects := make([]itemReject, num)
	normalize := e.cfg.MetricType == MetricCosine

	chunk := (num + e.pool.numWorkers - 1) / e.pool.numWorkers
	if chunk < 256 {
		chunk = 256
	}

	var wg sync.WaitGroup
	for start := 0; start < num; start += chunk {
		end := start + chunk
		if end > num {
			end = num
		}

		wg.Add(1)
		task := func() {
			defer wg.Done()
			for i := start; i < end; i++ {
				rejects[i] = validateItem(vectors[i*dim:(i+1)*dim], normalize)
			}
		}
		if err := e.pool.Submit(ctx, task); err != nil {
			wg.Done()
			wg.Wait()
			return nil, WrapErr(StatusInternalError, err, "batch preflight aborted")
		}
	}
	wg.Wait()

	return rejects, nil
}

// KnnSearch returns up to k nearest neighbors of query, closest first.
func (e *Engine) KnnSearch(ctx context.Context, query []float32, k int, params []byte) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sp, err := ParseSearchParams(params, e.codec)
	if err != nil {
		return nil, err
	}

	if k <= 0 {
		return nil, Errf(StatusInvalidArgument, "k must be positive, got %d", k)
	}
	if k > e.limits.MaxK {
		return nil, Errf(StatusInvalidArgument, "k %d exceeds limit %d", k, e.limits.MaxK)
	}
	if len(query) != e.cfg.Dim {
		return nil, Errf(StatusDimensionNotEqual, "query dim %d, index dim %d", len(query), e.cfg.Dim)
	}
	if validateItem(query, false) != rejectNone {
		return nil, Errf(StatusInvalidArgument, "query contains non-finite component")
	}
	if e.idx.Len() == 0 {
		return nil, Errf(StatusIndexEmpty, "index holds no vectors")
	}

	hits, err := e.idx.KNNSearch(query, k, index.SearchOptions{EF: sp.EF(k)})
	if err != nil {
		return nil, WrapErr(StatusInternalError, err, "index search failed")
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		label, ok := e.labels.LabelFor(h.Node)
		if !ok {
			return nil, Errf(StatusInternalError, "node %d has no label", h.Node)
		}
		results = append(results, Result{ID: label, Distance: h.Distance})
	}
	return results, nil
}
