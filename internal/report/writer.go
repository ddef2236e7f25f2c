package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/calibreport/internal/model"
)

// Writer defines the interface for report output.
// Implementations render a report in one format to an io.Writer.
type Writer interface {
	// Write outputs the report to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.Report) (int, error)
}

// Format names an output format.
type Format string

const (
	// FormatJSON is the canonical versioned JSON encoding.
	FormatJSON Format = "json"

	// FormatMarkdown is GitHub-flavoured Markdown.
	FormatMarkdown Format = "markdown"

	// FormatText is plain text for terminals.
	FormatText Format = "text"
)

// Formats lists every supported output format.
func Formats() []Format {
	return []Format{FormatJSON, FormatMarkdown, FormatText}
}

// ParseFormat parses a format name, accepting "md" and "txt" as aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "text", "txt":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: %q (expected json, markdown or text)", ErrUnknownFormat, s)
	}
}

// Extension returns the conventional file extension, including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatMarkdown:
		return ".md"
	case FormatText:
		return ".txt"
	default:
		return ".json"
	}
}

// NewWriter returns the Writer for format writing to output.
func NewWriter(format Format, output io.Writer) (Writer, error) {
	switch format {
	case FormatJSON:
		return NewJSONWriter(output), nil
	case FormatMarkdown:
		return NewMarkdownWriter(output), nil
	case FormatText:
		return NewSimpleWriter(output), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// MultiWriter writes to multiple Writers in order.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.Report) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// formatProbability formats a value in [0,1] with four decimals.
// strconv-based formatting keeps the output independent of the locale.
func formatProbability(o model.OptionalFloat) string {
	if !o.Valid {
		return "-"
	}
	return formatFixed(o.Value)
}
