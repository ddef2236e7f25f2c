package report

import (
	"io"

	"github.com/nao1215/calibreport/internal/model"
)

// JSONWriter outputs reports in the canonical versioned JSON encoding.
// Its output is what WriteFile persists and what Decode reads back.
type JSONWriter struct {
	baseWriter
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer) *JSONWriter {
	return &JSONWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the canonical encoding of report.
// A report violating its invariants yields a *SerializationError and nothing
// is written; a failing destination yields an *IOError.
func (w *JSONWriter) Write(report *model.Report) (int, error) {
	data, err := Encode(report)
	if err != nil {
		return 0, err
	}
	n, err := w.output.Write(data)
	if err != nil {
		return n, &IOError{Op: "write", Err: err}
	}
	return n, nil
}
