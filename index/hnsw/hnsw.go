// Package hnsw implements the Hierarchical Navigable Small World graph for
// approximate nearest neighbor search.
//
// The graph is built for a single writer: Insert must not run concurrently
// with anything else, while KNNSearch is safe from any number of goroutines
// once inserts are quiescent. The engine layer owns that serialization.
package hnsw

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/hupe1980/anngo/index"
	"github.com/hupe1980/anngo/internal/math32"
	"github.com/hupe1980/anngo/internal/queue"
	"github.com/hupe1980/anngo/internal/visited"
)

const (
	// layerNormalizationBase is the numerator of the level multiplier
	// 1/ln(M).
	layerNormalizationBase = 1.0

	// mmax0Multiplier is the degree cap multiplier at layer 0.
	mmax0Multiplier = 2

	// maxGraphLevels bounds the layer count accepted when deserializing a
	// graph. Level sampling is geometric in 1/M, so real graphs stay far
	// below this.
	maxGraphLevels = 64

	// minimumM is the smallest usable M.
	minimumM = 2

	// DefaultM is the default number of bidirectional links per node.
	DefaultM = 16

	// DefaultEFConstruction is the default candidate list size during build.
	DefaultEFConstruction = 200
)

// Compile-time check
var _ index.Index = (*HNSW)(nil)

// Options represents the options for configuring HNSW.
type Options struct {
	Dimension      int
	M              int
	EFConstruction int
	DistanceType   index.DistanceType
	Heuristic      bool

	// RandomSeed pins layer selection, making graph construction
	// deterministic. Nil seeds from the clock.
	RandomSeed *int64
}

// DefaultOptions contains the default options for HNSW.
var DefaultOptions = Options{
	M:              DefaultM,
	EFConstruction: DefaultEFConstruction,
	DistanceType:   index.DistanceTypeSquaredL2,
	Heuristic:      true,
}

// node is one graph vertex. neighbors[l] holds the connections at layer l,
// for 0 <= l <= level.
type node struct {
	level     int32
	neighbors [][]uint32
}

// HNSW represents the Hierarchical Navigable Small World graph.
type HNSW struct {
	opts         Options
	distanceFunc index.DistanceFunc
	normalize    bool

	// vectors is a contiguous arena, one dimension-sized row per node.
	vectors []float32
	nodes   []node

	entryPoint uint32
	maxLevel   int

	maxConnsPerLayer int
	maxConnsLayer0   int
	layerMultiplier  float64

	rng *rand.Rand

	searchPool sync.Pool
}

// searchState bundles the per-traversal scratch structures so concurrent
// searches do not allocate.
type searchState struct {
	candidates *queue.PriorityQueue // min-heap: next candidate to expand
	results    *queue.PriorityQueue // max-heap: worst of the current top ef
	visited    *visited.Set
}

// New creates a new HNSW instance.
func New(optFns ...func(o *Options)) (*HNSW, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Dimension <= 0 {
		return nil, &index.ErrInvalidDimension{Dimension: opts.Dimension}
	}
	if !opts.DistanceType.Valid() {
		return nil, fmt.Errorf("hnsw: unknown distance type %d", opts.DistanceType)
	}
	if opts.M < minimumM {
		opts.M = minimumM
	}
	if opts.EFConstruction < opts.M {
		opts.EFConstruction = DefaultEFConstruction
	}

	var rng *rand.Rand
	if opts.RandomSeed != nil {
		rng = rand.New(rand.NewSource(*opts.RandomSeed))
	} else {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	h := &HNSW{
		opts:             opts,
		distanceFunc:     index.NewDistanceFunc(opts.DistanceType),
		normalize:        opts.DistanceType == index.DistanceTypeCosine,
		maxConnsPerLayer: opts.M,
		maxConnsLayer0:   mmax0Multiplier * opts.M,
		layerMultiplier:  layerNormalizationBase / math.Log(float64(opts.M)),
		maxLevel:         -1,
		rng:              rng,
	}
	h.searchPool.New = func() any {
		return &searchState{
			candidates: queue.NewMin(opts.EFConstruction),
			results:    queue.NewMax(opts.EFConstruction),
			visited:    visited.New(1024),
		}
	}

	return h, nil
}

// Dimension returns the configured vector dimensionality.
func (h *HNSW) Dimension() int { return h.opts.Dimension }

// Len returns the number of indexed vectors.
func (h *HNSW) Len() int { return len(h.nodes) }

// DistanceType returns the distance function the index was built with.
func (h *HNSW) DistanceType() index.DistanceType { return h.opts.DistanceType }

// Stats returns a snapshot of the index shape.
func (h *HNSW) Stats() index.Stats {
	return index.Stats{
		Kind:      "hnsw",
		Count:     len(h.nodes),
		Dimension: h.opts.Dimension,
		MaxLevel:  h.maxLevel,
	}
}

// vectorAt returns the stored vector of a node, without copying.
func (h *HNSW) vectorAt(id uint32) []float32 {
	dim := h.opts.Dimension
	return h.vectors[int(id)*dim : (int(id)+1)*dim]
}

func (h *HNSW) distToNode(q []float32, id uint32) float32 {
	return h.distanceFunc(q, h.vectorAt(id))
}

// Insert adds a vector and returns its node id. Not safe for concurrent use.
func (h *HNSW) Insert(v []float32) (uint32, error) {
	if len(v) != h.opts.Dimension {
		return 0, &index.ErrDimensionMismatch{Expected: h.opts.Dimension, Actual: len(v)}
	}

	id := uint32(len(h.nodes))
	h.vectors = append(h.vectors, v...)
	vec := h.vectorAt(id)

	if h.normalize {
		if !math32.NormalizeInPlace(vec) {
			h.vectors = h.vectors[:int(id)*h.opts.Dimension]
			return 0, fmt.Errorf("hnsw: cannot normalize zero vector")
		}
	}

	level := int(math.Floor(-math.Log(h.rng.Float64()) * h.layerMultiplier))
	h.nodes = append(h.nodes, node{
		level:     int32(level),
		neighbors: make([][]uint32, level+1),
	})

	// First node becomes the entry point.
	if id == 0 {
		h.entryPoint = 0
		h.maxLevel = level
		return id, nil
	}

	currID := h.entryPoint
	currDist := h.distToNode(vec, currID)

	// Greedy descent through the layers above the new node's level.
	for l := h.maxLevel; l > level; l-- {
		currID, currDist = h.greedyStep(vec, currID, currDist, l)
	}

	state := h.searchPool.Get().(*searchState)
	defer h.searchPool.Put(state)

	for l := min(level, h.maxLevel); l >= 0; l-- {
		h.searchLayer(state, vec, currID, currDist, l, h.opts.EFConstruction)

		maxConns := h.maxConnsPerLayer
		if l == 0 {
			maxConns = h.maxConnsLayer0
		}

		neighbors := h.selectNeighbors(state.results, maxConns)
		h.nodes[id].neighbors[l] = neighbors

		// The closest selected neighbor seeds the descent into the next layer.
		if len(neighbors) > 0 {
			currID = neighbors[0]
			currDist = h.distToNode(vec, currID)
		}

		for _, n := range neighbors {
			h.addConnection(n, id, l)
		}
	}

	if level > h.maxLevel {
		h.maxLevel = level
		h.entryPoint = id
	}

	return id, nil
}

// greedyStep walks to the closest neighbor at the given layer until no
// neighbor improves on the current distance.
func (h *HNSW) greedyStep(q []float32, currID uint32, currDist float32, layer int) (uint32, float32) {
	for {
		improved := false
		for _, next := range h.nodes[currID].neighbors[layer] {
			if d := h.distToNode(q, next); d < currDist {
				currID = next
				currDist = d
				improved = true
			}
		}
		if !improved {
			return currID, currDist
		}
	}
}

// searchLayer fills state.results (a max-heap) with up to ef candidates at
// the given layer, starting from the entry point.
func (h *HNSW) searchLayer(state *searchState, q []float32, epID uint32, epDist float32, layer, ef int) {
	state.candidates.Reset()
	state.results.Reset()
	state.visited.Reset()
	state.visited.EnsureCapacity(len(h.nodes))

	state.visited.Visit(epID)
	state.candidates.Push(queue.Item{Node: epID, Distance: epDist})
	state.results.Push(queue.Item{Node: epID, Distance: epDist})

	for state.candidates.Len() > 0 {
		curr, _ := state.candidates.Pop()

		if worst, ok := state.results.Top(); ok && state.results.Len() >= ef && curr.Distance > worst.Distance {
			break
		}

		for _, next := range h.nodes[curr.Node].neighbors[layer] {
			if state.visited.Visited(next) {
				continue
			}
			state.visited.Visit(next)

			nextDist := h.distToNode(q, next)
			if worst, ok := state.results.Top(); ok && state.results.Len() >= ef && nextDist > worst.Distance {
				continue
			}

			state.candidates.Push(queue.Item{Node: next, Distance: nextDist})
			state.results.Push(queue.Item{Node: next, Distance: nextDist})
			if state.results.Len() > ef {
				_, _ = state.results.Pop()
			}
		}
	}
}

// selectNeighbors drains the result heap and picks up to m neighbors,
// nearest first. With the heuristic enabled a candidate is kept only when it
// is closer to the query than to every neighbor already selected, which
// spreads edges instead of clustering them on one side.
func (h *HNSW) selectNeighbors(results *queue.PriorityQueue, m int) []uint32 {
	sorted := make([]queue.Item, results.Len())
	for i := len(sorted) - 1; i >= 0; i-- {
		sorted[i], _ = results.Pop()
	}

	if !h.opts.Heuristic || len(sorted) <= m {
		n := min(m, len(sorted))
		out := make([]uint32, 0, n)
		for _, item := range sorted[:n] {
			out = append(out, item.Node)
		}
		return out
	}

	out := make([]uint32, 0, m)
	skipped := make([]uint32, 0, len(sorted))
	for _, cand := range sorted {
		if len(out) >= m {
			break
		}
		candVec := h.vectorAt(cand.Node)

		keep := true
		for _, sel := range out {
			if h.distanceFunc(candVec, h.vectorAt(sel)) < cand.Distance {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, cand.Node)
		} else {
			skipped = append(skipped, cand.Node)
		}
	}

	// Backfill with skipped candidates when the heuristic was too aggressive.
	for _, cand := range skipped {
		if len(out) >= m {
			break
		}
		out = append(out, cand)
	}

	return out
}

// addConnection links target into source's neighbor list at the given layer,
// pruning to the layer's degree cap when full.
func (h *HNSW) addConnection(source, target uint32, layer int) {
	conns := h.nodes[source].neighbors[layer]
	for _, c := range conns {
		if c == target {
			return
		}
	}

	maxConns := h.maxConnsPerLayer
	if layer == 0 {
		maxConns = h.maxConnsLayer0
	}

	if len(conns) < maxConns {
		h.nodes[source].neighbors[layer] = append(conns, target)
		return
	}

	// Re-select the best maxConns among existing neighbors plus the new one.
	srcVec := h.vectorAt(source)
	candidates := queue.NewMax(len(conns) + 1)
	for _, c := range conns {
		candidates.Push(queue.Item{Node: c, Distance: h.distanceFunc(srcVec, h.vectorAt(c))})
	}
	candidates.Push(queue.Item{Node: target, Distance: h.distanceFunc(srcVec, h.vectorAt(target))})

	h.nodes[source].neighbors[layer] = h.selectNeighbors(candidates, maxConns)
}

// KNNSearch returns up to k nearest neighbors of q, closest first. Safe for
// concurrent use once inserts are quiescent.
func (h *HNSW) KNNSearch(q []float32, k int, opts index.SearchOptions) ([]index.SearchResult, error) {
	if k <= 0 {
		return nil, index.ErrInvalidK
	}
	if len(q) != h.opts.Dimension {
		return nil, &index.ErrDimensionMismatch{Expected: h.opts.Dimension, Actual: len(q)}
	}
	if len(h.nodes) == 0 {
		return nil, nil
	}

	if h.normalize {
		qc := make([]float32, len(q))
		copy(qc, q)
		if !math32.NormalizeInPlace(qc) {
			return nil, fmt.Errorf("hnsw: cannot normalize zero query vector")
		}
		q = qc
	}

	ef := opts.EF
	if ef < k {
		ef = k
	}

	currID := h.entryPoint
	currDist := h.distToNode(q, currID)
	for l := h.maxLevel; l > 0; l-- {
		currID, currDist = h.greedyStep(q, currID, currDist, l)
	}

	state := h.searchPool.Get().(*searchState)
	defer h.searchPool.Put(state)

	h.searchLayer(state, q, currID, currDist, 0, ef)

	for state.results.Len() > k {
		_, _ = state.results.Pop()
	}

	res := make([]index.SearchResult, state.results.Len())
	for i := state.results.Len() - 1; i >= 0; i-- {
		item, _ := state.results.Pop()
		res[i] = index.SearchResult{Node: item.Node, Distance: item.Distance}
	}
	return res, nil
}
