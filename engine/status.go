package engine

import "fmt"

// Status is the engine-level failure category. The numeric values are part of
// the persisted and public contract; never renumber them.
type Status uint8

const (
	StatusUnknownError              Status = 1
	StatusInternalError             Status = 2
	StatusInvalidArgument           Status = 3
	StatusBuildTwice                Status = 4
	StatusIndexNotEmpty             Status = 5
	StatusUnsupportedIndex          Status = 6
	StatusUnsupportedIndexOperation Status = 7
	StatusDimensionNotEqual         Status = 8
	StatusIndexEmpty                Status = 9
	StatusNoEnoughMemory            Status = 10
	StatusReadError                 Status = 11
	StatusMissingFile               Status = 12
	StatusInvalidBinary             Status = 13
)

// String returns a string representation of the Status.
func (s Status) String() string {
	switch s {
	case StatusUnknownError:
		return "UnknownError"
	case StatusInternalError:
		return "InternalError"
	case StatusInvalidArgument:
		return "InvalidArgument"
	case StatusBuildTwice:
		return "BuildTwice"
	case StatusIndexNotEmpty:
		return "IndexNotEmpty"
	case StatusUnsupportedIndex:
		return "UnsupportedIndex"
	case StatusUnsupportedIndexOperation:
		return "UnsupportedIndexOperation"
	case StatusDimensionNotEqual:
		return "DimensionNotEqual"
	case StatusIndexEmpty:
		return "IndexEmpty"
	case StatusNoEnoughMemory:
		return "NoEnoughMemory"
	case StatusReadError:
		return "ReadError"
	case StatusMissingFile:
		return "MissingFile"
	case StatusInvalidBinary:
		return "InvalidBinary"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// Error is the only error type the engine emits for domain failures. It pairs
// a Status with a human-readable message and optionally wraps a cause.
type Error struct {
	Status  Status
	Message string
	cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is makes two engine errors comparable by status via errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Status == e.Status
}

// Errf creates an engine Error with a formatted message.
func Errf(status Status, format string, args ...any) *Error {
	return &Error{Status: status, Message: fmt.Sprintf(format, args...)}
}

// WrapErr creates an engine Error that wraps cause.
func WrapErr(status Status, cause error, format string, args ...any) *Error {
	return &Error{Status: status, Message: fmt.Sprintf(format, args...), cause: cause}
}

// StatusOf extracts the Status from err, or StatusUnknownError if err carries
// no engine status.
func StatusOf(err error) Status {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Status
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return StatusUnknownError
}
