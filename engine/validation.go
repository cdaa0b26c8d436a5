package engine

import (
	"github.com/hupe1980/anngo/internal/math32"
)

// Limits bounds the shapes the engine accepts. They prevent crashes from
// malformed input and resource exhaustion via oversized requests.
type Limits struct {
	MaxDimension int // Max vector dimension (default: 65536)
	MaxVectors   int // Max total vectors (default: 100M)
	MaxK         int // Max search results (default: 10000)
	MaxBatchSize int // Max items per build batch (default: 100000)
}

// DefaultLimits returns safe production defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxDimension: 65536,
		MaxVectors:   100_000_000,
		MaxK:         10000,
		MaxBatchSize: 100_000,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxDimension <= 0 {
		l.MaxDimension = d.MaxDimension
	}
	if l.MaxVectors <= 0 {
		l.MaxVectors = d.MaxVectors
	}
	if l.MaxK <= 0 {
		l.MaxK = d.MaxK
	}
	if l.MaxBatchSize <= 0 {
		l.MaxBatchSize = d.MaxBatchSize
	}
	return l
}

// itemReject is a per-item preflight failure. Items rejected here become
// FailedIds rather than failing the whole batch.
type itemReject uint8

const (
	rejectNone itemReject = iota
	rejectDuplicateInBatch
	rejectDuplicateInIndex
	rejectNonFinite
	rejectZeroNorm
)

func (r itemReject) String() string {
	switch r {
	case rejectDuplicateInBatch:
		return "duplicate id in batch"
	case rejectDuplicateInIndex:
		return "duplicate id in index"
	case rejectNonFinite:
		return "non-finite component"
	case rejectZeroNorm:
		return "zero-norm vector"
	default:
		return "ok"
	}
}

// validateItem runs the per-item checks that may be evaluated concurrently:
// component finiteness and, for cosine, a non-zero norm. Duplicate detection
// is sequential and lives in Build.
func validateItem(vec []float32, normalize bool) itemReject {
	if !math32.IsFinite(vec) {
		return rejectNonFinite
	}
	if normalize && math32.Norm(vec) == 0 {
		return rejectZeroNorm
	}
	return rejectNone
}
