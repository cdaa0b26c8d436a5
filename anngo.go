package anngo

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/anngo/engine"
)

// SearchResult is a single nearest neighbor, identified by the label it was
// inserted under. Results are ordered by ascending distance.
type SearchResult struct {
	ID       int64
	Distance float32
}

// Index is the public handle around one ANN index instance.
//
// Searches take the read lock and run concurrently; Build and Dump take the
// write lock and serialize against everything else.
type Index struct {
	mu     sync.RWMutex
	closed atomic.Bool
	eng    *engine.Engine
	opts   options
}

// Construct creates an empty index of the given type from a JSON config
// blob.
//
// Supported index types are "hnsw" and "flat". The config must carry dtype,
// metric_type, dim, and the per-type parameter object, e.g.:
//
//	{
//	    "dtype": "float32",
//	    "metric_type": "l2",
//	    "dim": 128,
//	    "hnsw": {"max_degree": 16, "ef_construction": 200}
//	}
func Construct(indexType string, config []byte, optFns ...Option) (*Index, error) {
	o := applyOptions(optFns)

	eng, err := engine.New(indexType, config, o.engineOptions())
	o.logger.LogConstruct(context.Background(), indexType, dimensionOf(eng), err)
	if err != nil {
		return nil, translateError(ErrEngineFailure, err)
	}

	return &Index{eng: eng, opts: o}, nil
}

func dimensionOf(eng *engine.Engine) int {
	if eng == nil {
		return 0
	}
	return eng.Dimension()
}

// Build inserts a batch of num vectors with their labels. vectors holds the
// batch in row-major order, so it must contain num*dim values; ids must
// contain num labels.
//
// Items that fail per-item validation are skipped and their labels returned:
// duplicate labels (within the batch or against the index), vectors with
// non-finite components, and zero-norm vectors under the cosine metric.
// Rejected items are data, not an error. Batch-wide problems, a dimension
// mismatch or an exceeded limit, fail the whole call.
func (ix *Index) Build(ctx context.Context, num, dim int, ids []int64, vectors []float32) ([]int64, error) {
	if ix.closed.Load() {
		return nil, ErrClosed
	}
	if num < 0 || dim <= 0 {
		return nil, fmt.Errorf("%w: num %d, dim %d", ErrInvalidArgument, num, dim)
	}
	if dim != ix.eng.Dimension() {
		return nil, &ErrDimensionMismatch{Expected: ix.eng.Dimension(), Actual: dim}
	}
	if len(ids) != num {
		return nil, fmt.Errorf("%w: got %d ids for %d items", ErrInvalidArgument, len(ids), num)
	}
	if len(vectors) != num*dim {
		return nil, fmt.Errorf("%w: got %d vector values, want %d", ErrInvalidArgument, len(vectors), num*dim)
	}

	start := time.Now()

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.closed.Load() {
		return nil, ErrClosed
	}

	// Reserve memory for the batch copy the index keeps.
	rc := ix.opts.resourceController
	reserve := int64(num) * int64(dim) * 4
	if err := rc.AcquireMemory(ctx, reserve); err != nil {
		return nil, err
	}
	defer rc.ReleaseMemory(reserve)

	failed, err := ix.eng.Build(ctx, num, dim, ids, vectors)

	ix.opts.metricsCollector.RecordBuild(num, len(failed), time.Since(start))
	ix.opts.logger.LogBuild(ctx, num, len(failed), err)

	return failed, translateError(ErrBuildFailed, err)
}

// KnnSearch returns up to k nearest neighbors of query, closest first. Fewer
// than k results are returned when the index holds fewer vectors.
//
// params is an optional JSON blob with per-search knobs, e.g.
// {"hnsw": {"ef_search": 200}}. Nil params use defaults.
func (ix *Index) KnnSearch(ctx context.Context, query []float32, k int, params []byte) ([]SearchResult, error) {
	if ix.closed.Load() {
		return nil, ErrClosed
	}
	if len(query) != ix.eng.Dimension() {
		return nil, &ErrDimensionMismatch{Expected: ix.eng.Dimension(), Actual: len(query)}
	}

	start := time.Now()

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.closed.Load() {
		return nil, ErrClosed
	}

	hits, err := ix.eng.KnnSearch(ctx, query, k, params)

	ix.opts.metricsCollector.RecordSearch(k, time.Since(start), err)
	ix.opts.logger.LogSearch(ctx, k, len(hits), err)

	if err != nil {
		return nil, translateError(ErrSearchFailed, err)
	}

	results := make([]SearchResult, len(hits))
	for i, h := range hits {
		results[i] = SearchResult{ID: h.ID, Distance: h.Distance}
	}
	return results, nil
}

// IndexType returns the type name the index was constructed with.
func (ix *Index) IndexType() string {
	return ix.eng.IndexType()
}

// Dimension returns the configured vector dimensionality.
func (ix *Index) Dimension() int {
	return ix.eng.Dimension()
}

// Count returns the number of indexed vectors.
func (ix *Index) Count() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.eng.Count()
}
