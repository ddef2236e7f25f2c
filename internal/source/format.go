package source

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnknownFormat is returned for an input format that cannot be read.
var ErrUnknownFormat = errors.New("unknown input format")

// Format names an input encoding.
type Format string

const (
	// FormatJSONLines is one JSON object per line.
	FormatJSONLines Format = "jsonl"

	// FormatCSV is comma-separated values with a header row.
	FormatCSV Format = "csv"

	// FormatYAML is a YAML sequence of records.
	FormatYAML Format = "yaml"
)

// Formats lists every supported input format.
func Formats() []Format {
	return []Format{FormatJSONLines, FormatCSV, FormatYAML}
}

// ParseFormat parses an input format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "jsonl", "ndjson", "json":
		return FormatJSONLines, nil
	case "csv":
		return FormatCSV, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q (expected jsonl, csv or yaml)", ErrUnknownFormat, s)
	}
}

// DetectFormat infers the input format from the file extension.
func DetectFormat(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", fmt.Errorf("%w: %s has no extension", ErrUnknownFormat, path)
	}
	return ParseFormat(ext)
}
