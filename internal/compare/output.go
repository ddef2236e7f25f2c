package compare

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/calibreport/internal/model"
	"github.com/nao1215/markdown"
)

// WriteJSON writes c as indented JSON.
func WriteJSON(w io.Writer, c *Comparison) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(c)
}

// WriteMarkdown writes c as a Markdown document.
func WriteMarkdown(w io.Writer, c *Comparison) error {
	md := markdown.NewMarkdown(w)

	md.H1("Calibration Comparison")
	md.PlainText("")
	md.PlainTextf("**Status:** %s", formatDirection(c.Direction))
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Base", "Target", "Change"},
		Rows: [][]string{
			{"Records", strconv.Itoa(c.Base.RecordCount), strconv.Itoa(c.Target.RecordCount), formatIntDelta(c.RecordCountDelta)},
			{"Overall Accuracy", formatValue(c.Base.OverallAccuracy), formatValue(c.Target.OverallAccuracy), formatFloatDelta(c.AccuracyDelta)},
			{"ECE", formatFixed(c.Base.ExpectedCalibrationError), formatFixed(c.Target.ExpectedCalibrationError), formatFloatDelta(model.Some(c.ECEDelta))},
		},
	})
	md.PlainText("")

	md.H2("Bins")
	md.PlainText("")
	rows := make([][]string, 0, len(c.Bins))
	for _, b := range c.Bins {
		rows = append(rows, []string{
			binLabel(b),
			strconv.Itoa(b.BaseSampleCount),
			strconv.Itoa(b.TargetSampleCount),
			formatFloatDelta(b.MeanConfidenceDelta),
			formatFloatDelta(b.MeanAccuracyDelta),
			formatFloatDelta(b.GapDelta),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"#", "Base Samples", "Target Samples", "Confidence Change", "Accuracy Change", "Gap Change"},
		Rows:   rows,
	})

	return md.Build()
}

// WriteText writes c in a human-readable layout for terminals.
func WriteText(w io.Writer, c *Comparison) error {
	var sb strings.Builder

	sb.WriteString("Calibration Comparison\n")
	sb.WriteString(strings.Repeat("=", 60))
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Status: %s\n", formatDirection(c.Direction))
	fmt.Fprintf(&sb, "Binning: %d %s bins\n\n", c.GeneratedWith.BinCount, c.GeneratedWith.BinStrategy)

	fmt.Fprintf(&sb, "  %-18s  %-10s  %-10s  %-10s\n", "Metric", "Base", "Target", "Change")
	sb.WriteString("  " + strings.Repeat("-", 54) + "\n")
	fmt.Fprintf(&sb, "  %-18s  %-10d  %-10d  %-10s\n", "Records",
		c.Base.RecordCount, c.Target.RecordCount, formatIntDelta(c.RecordCountDelta))
	fmt.Fprintf(&sb, "  %-18s  %-10s  %-10s  %-10s\n", "Overall accuracy",
		formatValue(c.Base.OverallAccuracy), formatValue(c.Target.OverallAccuracy), formatFloatDelta(c.AccuracyDelta))
	fmt.Fprintf(&sb, "  %-18s  %-10s  %-10s  %-10s\n", "ECE",
		formatFixed(c.Base.ExpectedCalibrationError), formatFixed(c.Target.ExpectedCalibrationError),
		formatFloatDelta(model.Some(c.ECEDelta)))

	sb.WriteString("\nBins:\n")
	fmt.Fprintf(&sb, "  %-5s  %-8s  %-8s  %-10s  %-10s  %-10s\n", "#", "Base", "Target", "Conf", "Acc", "Gap")
	for _, b := range c.Bins {
		fmt.Fprintf(&sb, "  %-5s  %-8d  %-8d  %-10s  %-10s  %-10s\n",
			binLabel(b), b.BaseSampleCount, b.TargetSampleCount,
			formatFloatDelta(b.MeanConfidenceDelta),
			formatFloatDelta(b.MeanAccuracyDelta),
			formatFloatDelta(b.GapDelta))
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// formatDirection formats the direction for display.
func formatDirection(d Direction) string {
	switch d {
	case Improved:
		return "IMPROVED (calibration error decreased)"
	case Worsened:
		return "WORSENED (calibration error increased)"
	default:
		return "UNCHANGED"
	}
}

// binLabel marks bins whose edges moved with an asterisk.
func binLabel(b BinDelta) string {
	label := strconv.Itoa(b.Index)
	if b.BoundsChanged {
		label += "*"
	}
	return label
}

// formatIntDelta formats a numeric delta with sign for display.
func formatIntDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}

func formatFloatDelta(o model.OptionalFloat) string {
	if !o.Valid {
		return "-"
	}
	s := formatFixed(o.Value)
	if o.Value > 0 {
		s = "+" + s
	}
	return s
}

func formatValue(o model.OptionalFloat) string {
	if !o.Valid {
		return "-"
	}
	return formatFixed(o.Value)
}

func formatFixed(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
