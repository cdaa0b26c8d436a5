// Package flat implements an exact brute-force index. Every query scans all
// vectors, which makes it the accuracy baseline for small collections and for
// validating approximate indexes.
package flat

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/anngo/index"
	"github.com/hupe1980/anngo/internal/math32"
	"github.com/hupe1980/anngo/internal/queue"
)

// parallelThreshold is the vector count below which a query scans
// sequentially. Partitioning tiny collections costs more than it saves.
const parallelThreshold = 4096

// Compile-time check
var _ index.Index = (*Flat)(nil)

// Options represents the options for configuring Flat.
type Options struct {
	Dimension    int
	DistanceType index.DistanceType

	// NumWorkers caps the scan parallelism. <= 0 means GOMAXPROCS.
	NumWorkers int
}

// DefaultOptions contains the default options for Flat.
var DefaultOptions = Options{
	DistanceType: index.DistanceTypeSquaredL2,
}

// Flat stores vectors in a contiguous arena and answers queries exactly.
type Flat struct {
	opts         Options
	distanceFunc index.DistanceFunc
	normalize    bool

	vectors []float32
	count   int
}

// New creates a new Flat instance.
func New(optFns ...func(o *Options)) (*Flat, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Dimension <= 0 {
		return nil, &index.ErrInvalidDimension{Dimension: opts.Dimension}
	}
	if !opts.DistanceType.Valid() {
		return nil, fmt.Errorf("flat: unknown distance type %d", opts.DistanceType)
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = runtime.GOMAXPROCS(0)
	}

	return &Flat{
		opts:         opts,
		distanceFunc: index.NewDistanceFunc(opts.DistanceType),
		normalize:    opts.DistanceType == index.DistanceTypeCosine,
	}, nil
}

// Dimension returns the configured vector dimensionality.
func (f *Flat) Dimension() int { return f.opts.Dimension }

// Len returns the number of indexed vectors.
func (f *Flat) Len() int { return f.count }

// DistanceType returns the distance function the index was built with.
func (f *Flat) DistanceType() index.DistanceType { return f.opts.DistanceType }

// Stats returns a snapshot of the index shape.
func (f *Flat) Stats() index.Stats {
	return index.Stats{
		Kind:      "flat",
		Count:     f.count,
		Dimension: f.opts.Dimension,
	}
}

func (f *Flat) vectorAt(id uint32) []float32 {
	dim := f.opts.Dimension
	return f.vectors[int(id)*dim : (int(id)+1)*dim]
}

// Insert adds a vector and returns its node id. Not safe for concurrent use.
func (f *Flat) Insert(v []float32) (uint32, error) {
	if len(v) != f.opts.Dimension {
		return 0, &index.ErrDimensionMismatch{Expected: f.opts.Dimension, Actual: len(v)}
	}

	id := uint32(f.count)
	f.vectors = append(f.vectors, v...)

	if f.normalize {
		if !math32.NormalizeInPlace(f.vectorAt(id)) {
			f.vectors = f.vectors[:int(id)*f.opts.Dimension]
			return 0, fmt.Errorf("flat: cannot normalize zero vector")
		}
	}

	f.count++
	return id, nil
}

// KNNSearch returns the exact k nearest neighbors of q, closest first. Large
// collections are scanned in parallel partitions whose local top-k heaps are
// merged at the end. Safe for concurrent use once inserts are quiescent.
func (f *Flat) KNNSearch(q []float32, k int, _ index.SearchOptions) ([]index.SearchResult, error) {
	if k <= 0 {
		return nil, index.ErrInvalidK
	}
	if len(q) != f.opts.Dimension {
		return nil, &index.ErrDimensionMismatch{Expected: f.opts.Dimension, Actual: len(q)}
	}
	if f.count == 0 {
		return nil, nil
	}

	if f.normalize {
		qc := make([]float32, len(q))
		copy(qc, q)
		if !math32.NormalizeInPlace(qc) {
			return nil, fmt.Errorf("flat: cannot normalize zero query vector")
		}
		q = qc
	}

	workers := f.opts.NumWorkers
	if f.count < parallelThreshold || workers == 1 {
		top := queue.NewMax(k + 1)
		f.scanRange(q, 0, f.count, k, top)
		return drain(top, k), nil
	}

	if workers > f.count {
		workers = f.count
	}

	heaps := make([]*queue.PriorityQueue, workers)
	chunk := (f.count + workers - 1) / workers

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := min(start+chunk, f.count)
		top := queue.NewMax(k + 1)
		heaps[w] = top

		g.Go(func() error {
			f.scanRange(q, start, end, k, top)
			return nil
		})
	}
	_ = g.Wait()

	merged := queue.NewMax(k + 1)
	for _, h := range heaps {
		for h.Len() > 0 {
			item, _ := h.Pop()
			merged.Push(item)
			if merged.Len() > k {
				_, _ = merged.Pop()
			}
		}
	}
	return drain(merged, k), nil
}

// scanRange scores nodes [start, end) against q, keeping the best k in top.
func (f *Flat) scanRange(q []float32, start, end, k int, top *queue.PriorityQueue) {
	dim := f.opts.Dimension
	for i := start; i < end; i++ {
		d := f.distanceFunc(q, f.vectors[i*dim:(i+1)*dim])
		top.Push(queue.Item{Node: uint32(i), Distance: d})
		if top.Len() > k {
			_, _ = top.Pop()
		}
	}
}

// drain empties a max-heap into ascending order.
func drain(top *queue.PriorityQueue, k int) []index.SearchResult {
	n := min(top.Len(), k)
	res := make([]index.SearchResult, n)
	for i := n - 1; i >= 0; i-- {
		item, _ := top.Pop()
		res[i] = index.SearchResult{Node: item.Node, Distance: item.Distance}
	}
	return res
}
