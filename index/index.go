// Package index provides the contracts shared by vector index implementations.
package index

import (
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/anngo/internal/math32"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrInvalidDimension indicates an invalid configured dimension.
type ErrInvalidDimension struct {
	Dimension int
}

func (e *ErrInvalidDimension) Error() string {
	return fmt.Sprintf("invalid dimension: %d", e.Dimension)
}

// DistanceFunc calculates the distance between two equal-length vectors.
type DistanceFunc func(a, b []float32) float32

// DistanceType identifies the distance function used by an index.
type DistanceType uint8

const (
	// DistanceTypeSquaredL2 is the squared Euclidean distance.
	DistanceTypeSquaredL2 DistanceType = iota

	// DistanceTypeDotProduct is the inner-product distance 1 - <a, b>.
	DistanceTypeDotProduct

	// DistanceTypeCosine is the cosine distance 1 - cos(a, b). Indexes using
	// it store unit-normalized vectors so it reduces to the dot-product form.
	DistanceTypeCosine
)

// String returns a string representation of the DistanceType.
func (dt DistanceType) String() string {
	switch dt {
	case DistanceTypeSquaredL2:
		return "SquaredL2"
	case DistanceTypeDotProduct:
		return "DotProduct"
	case DistanceTypeCosine:
		return "Cosine"
	default:
		return "Unknown"
	}
}

// Valid reports whether dt is a known distance type.
func (dt DistanceType) Valid() bool {
	switch dt {
	case DistanceTypeSquaredL2, DistanceTypeDotProduct, DistanceTypeCosine:
		return true
	default:
		return false
	}
}

// NewDistanceFunc returns the distance function for the given type, or nil
// for an unknown type.
//
// Cosine assumes stored vectors and queries are unit-normalized; callers own
// the normalization (see Options.NormalizeVectors on the implementations).
func NewDistanceFunc(distanceType DistanceType) DistanceFunc {
	switch distanceType {
	case DistanceTypeSquaredL2:
		return math32.SquaredL2
	case DistanceTypeDotProduct, DistanceTypeCosine:
		return func(a, b []float32) float32 {
			return 1 - math32.Dot(a, b)
		}
	default:
		return nil
	}
}

// SearchResult is a single nearest-neighbor hit, identified by the dense
// node id the index assigned at insert time.
type SearchResult struct {
	Node     uint32
	Distance float32
}

// SearchOptions carries per-query knobs.
type SearchOptions struct {
	// EF is the exploration factor for graph-based indexes. Implementations
	// treat values below k as k. Exact indexes ignore it.
	EF int
}

// Stats describes the shape of an index.
type Stats struct {
	Kind      string
	Count     int
	Dimension int
	MaxLevel  int
}

// Index is a vector index over float32 vectors.
//
// Implementations assign dense, contiguous node ids starting at 0. Mapping
// between caller-facing labels and node ids is owned by the layer above.
type Index interface {
	// Insert adds a vector and returns its node id.
	Insert(v []float32) (uint32, error)

	// KNNSearch returns up to k nearest neighbors of q, closest first.
	KNNSearch(q []float32, k int, opts SearchOptions) ([]SearchResult, error)

	// Dimension returns the configured vector dimensionality.
	Dimension() int

	// Len returns the number of indexed vectors.
	Len() int

	// DistanceType returns the distance function the index was built with.
	DistanceType() DistanceType

	// WriteTo serializes the index, header included, to w.
	WriteTo(w io.Writer) (int64, error)

	// Stats returns a snapshot of the index shape.
	Stats() Stats
}
