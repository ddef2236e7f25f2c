package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/nao1215/calibreport/internal/database"
	"github.com/nao1215/calibreport/internal/model"
	"github.com/nao1215/calibreport/internal/report"
	"github.com/spf13/cobra"
)

// NewShowCmd creates the show command.
func NewShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [report.json]",
		Short: "Render a saved calibration report",
		Long: `Show reads a report written by 'calibreport build' (or an archived report)
and renders it in another format. The file is fully validated on the way in.

Examples:
  # Print a report file as text
  calibreport show report.json

  # Render archived report 3 as Markdown
  calibreport show --id 3 -f markdown

  # Read from standard input
  cat report.json | calibreport show -`,
		Args: cobra.MaximumNArgs(1),
		RunE: runShowCmd,
	}

	cmd.Flags().StringP("format", "f", string(report.FormatText),
		"Output format: json, markdown or text")
	cmd.Flags().Int64P("id", "i", 0,
		"Show the archived report with this ID instead of a file")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")
	cmd.Flags().Bool("hide-empty", false,
		"Omit empty bins from text output")

	return cmd
}

// runShowCmd executes the show command.
func runShowCmd(cmd *cobra.Command, args []string) error {
	formatName, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(formatName)
	if err != nil {
		return err
	}
	id, err := cmd.Flags().GetInt64("id")
	if err != nil {
		return err
	}
	hideEmpty, err := cmd.Flags().GetBool("hide-empty")
	if err != nil {
		return err
	}

	var r *model.Report
	switch {
	case id != 0 && len(args) > 0:
		return errors.New("--id cannot be combined with a report file")
	case id != 0:
		r, err = loadArchived(cmd, id)
	case len(args) == 0:
		return errors.New("a report file or --id is required")
	case args[0] == "-":
		r, err = report.Decode(cmd.InOrStdin())
	default:
		r, err = report.ReadFile(args[0])
	}
	if err != nil {
		return err
	}

	var w report.Writer
	if format == report.FormatText {
		w = report.NewSimpleWriter(cmd.OutOrStdout(), report.WithShowEmpty(!hideEmpty))
	} else if w, err = report.NewWriter(format, cmd.OutOrStdout()); err != nil {
		return err
	}

	_, err = w.Write(r)
	return err
}

// loadArchived reads report id from the archive.
func loadArchived(cmd *cobra.Command, id int64) (*model.Report, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if dbDir == "" {
		dbDir = cfg.DBDir
	}

	db, err := database.Open(dbDir, database.Options{EnableWAL: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	stored, err := db.GetReportByID(cmd.Context(), id)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("no archived report with ID %d: %w", id, os.ErrNotExist)
	}
	return stored.Report, nil
}
