package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for the two input error classes.
// Use errors.Is against these and errors.As against the typed errors below
// when the offending field or record index is needed.
var (
	// ErrInvalidConfiguration is matched by every *InvalidConfigurationError.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrInvalidRecord is matched by every *InvalidRecordError.
	ErrInvalidRecord = errors.New("invalid record")
)

// InvalidConfigurationError reports a bad report generation parameter, such as
// a bin count below one or an unknown bin strategy.
type InvalidConfigurationError struct {
	// Field names the offending parameter (e.g. "bin_count").
	Field string

	// Value is the rejected value formatted for display.
	Value string

	// Reason describes the violated constraint.
	Reason string
}

// Error implements the error interface.
func (e *InvalidConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s=%s: %s", e.Field, e.Value, e.Reason)
}

// Is reports whether target is ErrInvalidConfiguration.
func (e *InvalidConfigurationError) Is(target error) bool {
	return target == ErrInvalidConfiguration
}

// InvalidRecordError reports an evaluation record that violates its field
// constraints. Index is the 0-based position of the record in the input
// collection, or -1 when the position is unknown.
type InvalidRecordError struct {
	Index  int
	Field  string
	Value  string
	Reason string
}

// Error implements the error interface.
func (e *InvalidRecordError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid record: %s=%s: %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("invalid record #%d: %s=%s: %s", e.Index, e.Field, e.Value, e.Reason)
}

// Is reports whether target is ErrInvalidRecord.
func (e *InvalidRecordError) Is(target error) bool {
	return target == ErrInvalidRecord
}

// WithIndex returns a copy of the error pointing at the given record index.
func (e *InvalidRecordError) WithIndex(index int) *InvalidRecordError {
	c := *e
	c.Index = index
	return &c
}
