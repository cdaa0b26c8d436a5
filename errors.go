package anngo

import (
	"errors"
	"fmt"

	"github.com/hupe1980/anngo/engine"
)

var (
	// ErrClosed is returned by operations on a closed index.
	ErrClosed = errors.New("index is closed")

	// ErrInvalidConfig indicates a malformed or unsupported construction
	// config blob or search-params blob.
	ErrInvalidConfig = errors.New("invalid index config")

	// ErrInvalidArgument indicates an out-of-range or malformed request
	// argument (k, dimensions, batch shape).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrIndexEmpty indicates an operation that requires indexed vectors was
	// called on an empty index.
	ErrIndexEmpty = errors.New("index is empty")

	// ErrBuildFailed indicates a batch-wide build failure.
	ErrBuildFailed = errors.New("build failed")

	// ErrSearchFailed indicates a search failure inside the engine.
	ErrSearchFailed = errors.New("search failed")

	// ErrDumpFailed indicates a dump could not be written.
	ErrDumpFailed = errors.New("dump failed")

	// ErrLoadFailed indicates a dump could not be loaded: missing file,
	// damaged or truncated contents, or a config mismatch.
	ErrLoadFailed = errors.New("dump load failed")

	// ErrEngineFailure indicates an internal engine failure.
	ErrEngineFailure = errors.New("engine failure")
)

// ErrDimensionMismatch indicates a batch or query dimensionality that does
// not match the configured index dimension. It matches ErrInvalidArgument
// under errors.Is.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return ErrInvalidArgument }

// translateError maps engine-level failures onto the package sentinels so
// callers can branch with errors.Is. op is the sentinel of the failing
// operation (ErrBuildFailed, ErrSearchFailed, ...) and tags errors that have
// no more specific category. The underlying *engine.Error stays in the
// chain; errors.As recovers the precise status when needed.
func translateError(op, err error) error {
	if err == nil {
		return nil
	}

	var ce *engine.ConfigError
	if errors.As(err, &ce) {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	var ee *engine.Error
	if !errors.As(err, &ee) {
		// Context cancellation and other non-engine errors pass through.
		return err
	}

	switch ee.Status {
	case engine.StatusUnsupportedIndex:
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	case engine.StatusInvalidArgument, engine.StatusDimensionNotEqual, engine.StatusUnsupportedIndexOperation:
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	case engine.StatusIndexEmpty:
		return fmt.Errorf("%w: %w", ErrIndexEmpty, err)
	case engine.StatusReadError, engine.StatusMissingFile, engine.StatusInvalidBinary:
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	default:
		if op != nil && op != ErrEngineFailure {
			return fmt.Errorf("%w: %w: %w", op, ErrEngineFailure, err)
		}
		return fmt.Errorf("%w: %w", ErrEngineFailure, err)
	}
}
