package model

import (
	"strings"
)

// BinStrategy selects how the [0,1] confidence range is split into bins.
type BinStrategy string

const (
	// EqualWidth splits [0,1] into bins of identical width.
	EqualWidth BinStrategy = "EQUAL_WIDTH"

	// EqualCount places (as close as possible) the same number of records
	// in every bin, ordering records by ascending confidence.
	EqualCount BinStrategy = "EQUAL_COUNT"
)

// BinStrategies lists every supported strategy in display order.
func BinStrategies() []BinStrategy {
	return []BinStrategy{EqualWidth, EqualCount}
}

// String returns the canonical name of the strategy.
func (s BinStrategy) String() string {
	return string(s)
}

// Valid reports whether s is a supported strategy.
func (s BinStrategy) Valid() bool {
	return s == EqualWidth || s == EqualCount
}

// ParseBinStrategy parses a strategy name.
// Matching is case-insensitive and accepts "-" in place of "_", so
// "equal-width" and "EQUAL_WIDTH" are the same strategy.
func ParseBinStrategy(s string) (BinStrategy, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	strategy := BinStrategy(normalized)
	if !strategy.Valid() {
		return "", &InvalidConfigurationError{
			Field:  "bin_strategy",
			Value:  s,
			Reason: "must be one of EQUAL_WIDTH, EQUAL_COUNT",
		}
	}
	return strategy, nil
}

// MarshalText implements encoding.TextMarshaler.
func (s BinStrategy) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, &InvalidConfigurationError{
			Field:  "bin_strategy",
			Value:  string(s),
			Reason: "unknown strategy",
		}
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *BinStrategy) UnmarshalText(text []byte) error {
	parsed, err := ParseBinStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
