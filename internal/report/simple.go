package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/calibreport/internal/model"
)

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether bins without samples are listed.
	showEmpty bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to list empty bins.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
// Empty bins are listed by default.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		showEmpty:  true,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.Report) (int, error) {
	if err := report.Validate(); err != nil {
		return 0, &SerializationError{Err: err}
	}

	var sb strings.Builder
	w.writeHeader(&sb, report)
	w.writeBins(&sb, report)
	w.writeFooter(&sb)

	n, err := io.WriteString(w.output, sb.String())
	if err != nil {
		return n, &IOError{Op: "write", Err: err}
	}
	return n, nil
}

// writeHeader writes the summary scalars and generation parameters.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.Report) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                        CALIBRATION REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	gw := report.GeneratedWith()
	sb.WriteString(fmt.Sprintf("Records:          %d\n", report.RecordCount()))
	sb.WriteString(fmt.Sprintf("Overall accuracy: %s\n", formatProbability(report.OverallAccuracy())))
	sb.WriteString(fmt.Sprintf("ECE:              %s\n", formatFixed(report.ExpectedCalibrationError())))
	sb.WriteString(fmt.Sprintf("Grade:            %s\n", report.Grade()))
	sb.WriteString(fmt.Sprintf("Bins:             %d (%s)\n", gw.BinCount, gw.BinStrategy))
	sb.WriteString("\n")
}

// writeBins writes one line per bin.
func (w *SimpleWriter) writeBins(sb *strings.Builder, report *model.Report) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("BINS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("  %-4s  %-17s  %8s  %10s  %10s  %8s\n",
		"#", "Range", "Samples", "Confidence", "Accuracy", "Gap"))

	written := 0
	for i, b := range report.Bins() {
		if b.SampleCount == 0 && !w.showEmpty {
			continue
		}
		sb.WriteString(fmt.Sprintf("  %-4d  %-17s  %8d  %10s  %10s  %8s\n",
			i,
			formatRange(b, i == report.NumBins()-1, report.GeneratedWith().BinStrategy),
			b.SampleCount,
			formatProbability(b.MeanConfidence),
			formatProbability(b.MeanAccuracy),
			formatProbability(b.Gap()),
		))
		written++
	}
	if written == 0 {
		sb.WriteString("  No populated bins\n")
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by calibreport\n")
}

// formatFixed formats v with four decimals using strconv.
func formatFixed(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// formatRange renders a bin interval with the bracket style of its strategy:
// equal-width bins are [lower, upper) except the last, equal-count bins are
// (lower, upper] except the first.
func formatRange(b model.BinStat, last bool, strategy model.BinStrategy) string {
	open, closing := "[", ")"
	if strategy == model.EqualCount {
		open, closing = "(", "]"
		if b.LowerBound == 0 {
			open = "["
		}
	} else if last {
		closing = "]"
	}
	return open + formatFixed(b.LowerBound) + ", " + formatFixed(b.UpperBound) + closing
}
