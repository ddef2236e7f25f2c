package report

import (
	"errors"
	"fmt"
)

var (
	// ErrIO is matched by every *IOError.
	ErrIO = errors.New("report I/O failure")

	// ErrSerialization is matched by every *SerializationError.
	ErrSerialization = errors.New("report serialization failure")

	// ErrUnsupportedFormatVersion is returned when decoding a document whose
	// format_version is missing or newer than FormatVersion.
	ErrUnsupportedFormatVersion = errors.New("unsupported report format version")

	// ErrUnknownFormat is returned for an output format name that is not supported.
	ErrUnknownFormat = errors.New("unknown report format")
)

// IOError reports a destination that could not be opened, written or committed.
type IOError struct {
	// Op is the failed operation, e.g. "create temp file" or "rename".
	Op string

	// Path is the destination path; empty for stream destinations.
	Path string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("write report: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("write report %s: %s: %v", e.Path, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *IOError) Unwrap() error { return e.Err }

// Is reports whether target is ErrIO.
func (e *IOError) Is(target error) bool { return target == ErrIO }

// SerializationError reports a report that cannot be encoded, typically
// because it violates its own invariants.
type SerializationError struct {
	Err error
}

// Error implements the error interface.
func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialize report: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *SerializationError) Unwrap() error { return e.Err }

// Is reports whether target is ErrSerialization.
func (e *SerializationError) Is(target error) bool { return target == ErrSerialization }
