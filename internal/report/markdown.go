package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/calibreport/internal/model"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing in pull requests.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.Report) (int, error) {
	if err := report.Validate(); err != nil {
		return 0, &SerializationError{Err: err}
	}

	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeAlert(md, report)
	w.writeBins(md, report)
	w.writeDistribution(md, report)
	w.writeFooter(md)

	n := len(md.String())
	if err := md.Build(); err != nil {
		return 0, &IOError{Op: "write", Err: err}
	}
	return n, nil
}

// writeHeader writes the summary table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.Report) {
	gw := report.GeneratedWith()

	md.H1("Calibration Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Records", strconv.Itoa(report.RecordCount())},
			{"Overall Accuracy", formatProbability(report.OverallAccuracy())},
			{"Expected Calibration Error", formatFixed(report.ExpectedCalibrationError())},
			{"Bin Count", strconv.Itoa(gw.BinCount)},
			{"Bin Strategy", "`" + gw.BinStrategy.String() + "`"},
		},
	})
	md.PlainText("")
}

// writeAlert writes an alert whose level follows the report's grade.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.Report) {
	grade := report.Grade()
	info := model.GetGradeInfo(grade)
	ece := formatFixed(report.ExpectedCalibrationError())

	switch grade {
	case model.GradeSevere:
		md.Cautionf("%s ECE %s. %s", info.Summary, ece, info.Recommendation)
	case model.GradeModerate:
		md.Warningf("%s ECE %s. %s", info.Summary, ece, info.Recommendation)
	case model.GradeSlight:
		md.Importantf("%s ECE %s. %s", info.Summary, ece, info.Recommendation)
	case model.GradeWell:
		md.Tip(fmt.Sprintf("%s ECE %s.", info.Summary, ece))
	default:
		md.Note(info.Summary)
	}
	md.PlainText("")
}

// writeBins writes the per-bin reliability table.
func (w *MarkdownWriter) writeBins(md *markdown.Markdown, report *model.Report) {
	md.H2("Bins")
	md.PlainText("")

	strategy := report.GeneratedWith().BinStrategy
	rows := make([][]string, 0, report.NumBins())
	for i, b := range report.Bins() {
		rows = append(rows, []string{
			strconv.Itoa(i),
			formatRange(b, i == report.NumBins()-1, strategy),
			strconv.Itoa(b.SampleCount),
			formatProbability(b.MeanConfidence),
			formatProbability(b.MeanAccuracy),
			formatProbability(b.Gap()),
		})
	}

	md.Table(markdown.TableSet{
		Header: []string{"#", "Range", "Samples", "Mean Confidence", "Mean Accuracy", "Gap"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeDistribution writes a mermaid pie chart of samples per populated bin.
func (w *MarkdownWriter) writeDistribution(md *markdown.Markdown, report *model.Report) {
	if report.RecordCount() == 0 {
		return
	}

	md.H2("Sample Distribution")

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Samples per Bin"),
		piechart.WithShowData(true),
	)
	for i, b := range report.Bins() {
		if b.SampleCount > 0 {
			chart.LabelAndIntValue(fmt.Sprintf("bin %d", i), uint64(b.SampleCount))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("*Report generated by calibreport*")
}
