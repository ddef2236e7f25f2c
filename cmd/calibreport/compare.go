package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/calibreport/internal/compare"
	"github.com/nao1215/calibreport/internal/database"
	"github.com/nao1215/calibreport/internal/model"
	"github.com/nao1215/calibreport/internal/report"
	"github.com/spf13/cobra"
)

// ErrCalibrationWorsened is returned by compare --fail-on-worse.
var ErrCalibrationWorsened = errors.New("calibration worsened")

// NewCompareCmd creates the compare command.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [base.json target.json | name]",
		Short: "Compare two calibration reports",
		Long: `Compare shows how calibration changed between two reports.

With two arguments, both are report files written by 'calibreport build'.
With one argument, it names a report history in the archive: the latest
report is compared with the one before it, or with --with-id.

Both reports must use the same bin count and strategy.

Examples:
  # Compare two report files
  calibreport compare baseline.json candidate.json

  # Compare the two most recent archived reports named "nightly"
  calibreport compare nightly

  # List the archive history for "nightly"
  calibreport compare --list nightly

  # Compare the latest "nightly" report with archived report 5, as Markdown
  calibreport compare --with-id 5 --markdown nightly

  # List every name in the archive
  calibreport compare --list-names

  # Exit with an error in CI when calibration got worse
  calibreport compare --fail-on-worse baseline.json candidate.json`,
		Args: cobra.MaximumNArgs(2),
		RunE: runCompareCmd,
	}

	cmd.Flags().BoolP("list", "l", false,
		"List the archive history for the given name")
	cmd.Flags().BoolP("list-names", "L", false,
		"List every report name in the archive")
	cmd.Flags().Int64P("with-id", "i", 0,
		"Compare the latest report with this archived report ID")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")
	cmd.Flags().BoolP("json", "j", false,
		"Output the comparison as JSON")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output the comparison as Markdown")
	cmd.Flags().Float64("tolerance", compare.DefaultTolerance,
		"ECE change treated as unchanged")
	cmd.Flags().Bool("fail-on-worse", false,
		"Return an error when the target is worse calibrated than the base")

	return cmd
}

// compareOptions holds the parsed compare flags.
type compareOptions struct {
	list        bool
	listNames   bool
	withID      int64
	dbDir       string
	json        bool
	markdown    bool
	tolerance   float64
	failOnWorse bool
}

func parseCompareFlags(cmd *cobra.Command) (compareOptions, error) {
	var opts compareOptions
	var err error
	flags := cmd.Flags()

	if opts.list, err = flags.GetBool("list"); err != nil {
		return opts, err
	}
	if opts.listNames, err = flags.GetBool("list-names"); err != nil {
		return opts, err
	}
	if opts.withID, err = flags.GetInt64("with-id"); err != nil {
		return opts, err
	}
	if opts.dbDir, err = flags.GetString("db-dir"); err != nil {
		return opts, err
	}
	if opts.json, err = flags.GetBool("json"); err != nil {
		return opts, err
	}
	if opts.markdown, err = flags.GetBool("markdown"); err != nil {
		return opts, err
	}
	if opts.tolerance, err = flags.GetFloat64("tolerance"); err != nil {
		return opts, err
	}
	if opts.failOnWorse, err = flags.GetBool("fail-on-worse"); err != nil {
		return opts, err
	}

	if opts.json && opts.markdown {
		return opts, errors.New("--json and --markdown cannot be used together")
	}
	if opts.tolerance < 0 {
		return opts, errors.New("--tolerance must not be negative")
	}
	return opts, nil
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	opts, err := parseCompareFlags(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	// Validate arguments before opening the database.
	if len(args) == 2 {
		if opts.list || opts.listNames || opts.withID != 0 {
			return errors.New("archive flags cannot be used when comparing two files")
		}
		base, err := report.ReadFile(args[0])
		if err != nil {
			return err
		}
		target, err := report.ReadFile(args[1])
		if err != nil {
			return err
		}
		return writeComparison(out, base, target, opts)
	}
	if !opts.listNames && len(args) == 0 {
		return errors.New("a report name or two report files are required (use --list-names to see archived names)")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	dbDir := cfg.DBDir
	if opts.dbDir != "" {
		dbDir = opts.dbDir
	}

	db, err := database.Open(dbDir, database.Options{EnableWAL: true})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()

	switch {
	case opts.listNames:
		return listNames(ctx, out, db)
	case opts.list:
		return listHistory(ctx, out, db, args[0])
	default:
		return compareHistory(ctx, out, db, args[0], opts)
	}
}

// listNames prints every report name in the archive.
func listNames(ctx context.Context, out io.Writer, db *database.ReportDB) error {
	names, err := db.ListNames(ctx)
	if err != nil {
		return err
	}

	if len(names) == 0 {
		fmt.Fprintln(out, "No archived reports found.")
		fmt.Fprintln(out, "\nUse 'calibreport build --save' to archive a report.")
		return nil
	}

	fmt.Fprintf(out, "Archived reports (%d):\n\n", len(names))
	for _, name := range names {
		fmt.Fprintf(out, "  • %s\n", name)
	}
	fmt.Fprintln(out, "\nUse 'calibreport compare --list <name>' to see the history of a report.")

	return nil
}

// listHistory prints the archived reports saved under name, newest first.
func listHistory(ctx context.Context, out io.Writer, db *database.ReportDB, name string) error {
	history, err := db.GetHistory(ctx, name)
	if err != nil {
		return err
	}

	if len(history) == 0 {
		fmt.Fprintf(out, "No history found for %s\n", name)
		return nil
	}

	fmt.Fprintf(out, "History for %s (%d reports):\n\n", name, len(history))
	fmt.Fprintf(out, "  %-6s  %-20s  %8s  %-8s  %-8s  %s\n", "ID", "Date", "Records", "Accuracy", "ECE", "Bins")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 72))

	for _, meta := range history {
		fmt.Fprintf(out, "  %-6d  %-20s  %8d  %-8s  %-8.4f  %d %s\n",
			meta.ID,
			meta.Timestamp.Local().Format("2006-01-02 15:04:05"),
			meta.RecordCount,
			formatAccuracy(meta.OverallAccuracy),
			meta.ExpectedCalibrationError,
			meta.GeneratedWith.BinCount,
			meta.GeneratedWith.BinStrategy,
		)
	}

	return nil
}

func formatAccuracy(o model.OptionalFloat) string {
	if v, ok := o.Get(); ok {
		return fmt.Sprintf("%.4f", v)
	}
	return "-"
}

// compareHistory compares the latest report under name with its predecessor
// or with the report selected by --with-id.
func compareHistory(ctx context.Context, out io.Writer, db *database.ReportDB, name string, opts compareOptions) error {
	latest, err := db.GetLatestReport(ctx, name)
	if err != nil {
		return err
	}
	if latest == nil {
		return fmt.Errorf("no archived reports named %q", name)
	}

	var base *database.StoredReport
	if opts.withID != 0 {
		base, err = db.GetReportByID(ctx, opts.withID)
		if err != nil {
			return err
		}
		if base == nil {
			return fmt.Errorf("no archived report with ID %d", opts.withID)
		}
	} else {
		history, err := db.GetHistory(ctx, name)
		if err != nil {
			return err
		}
		if len(history) < 2 {
			return fmt.Errorf("%q has only one archived report; nothing to compare", name)
		}
		base, err = db.GetReportByID(ctx, history[1].ID)
		if err != nil {
			return err
		}
	}

	return writeComparison(out, base.Report, latest.Report, opts)
}

// writeComparison diffs base and target and renders the result.
func writeComparison(out io.Writer, base, target *model.Report, opts compareOptions) error {
	c, err := compare.Diff(base, target, compare.WithTolerance(opts.tolerance))
	if err != nil {
		return err
	}

	switch {
	case opts.json:
		err = compare.WriteJSON(out, c)
	case opts.markdown:
		err = compare.WriteMarkdown(out, c)
	default:
		err = compare.WriteText(out, c)
	}
	if err != nil {
		return err
	}

	if opts.failOnWorse && c.Direction == compare.Worsened {
		return fmt.Errorf("%w: ECE %+.4f", ErrCalibrationWorsened, c.ECEDelta)
	}
	return nil
}
