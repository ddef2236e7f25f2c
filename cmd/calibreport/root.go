package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/nao1215/calibreport/internal/config"
	applog "github.com/nao1215/calibreport/internal/log"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for calibreport.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calibreport",
		Short: "Build calibration reports for probabilistic predictions",
		Long: `calibreport summarizes how well predicted confidences match observed outcomes.

Records (confidence, outcome and an optional group) are read from JSON Lines,
CSV or YAML files, grouped into confidence bins, and written as a versioned
JSON report, a Markdown document or plain text. Reports can be archived and
compared over time.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Emit logs as JSON instead of text")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .calibreport in current or home directory)")

	cmd.AddCommand(NewBuildCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewShowCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getVerboseFlag retrieves the inherited verbose flag.
// It is false when the command runs without the root command.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return false
	}
	return verbose
}

// getLogJSONFlag retrieves the inherited log-json flag.
func getLogJSONFlag(cmd *cobra.Command) bool {
	jsonLogs, err := cmd.Flags().GetBool("log-json")
	if err != nil {
		return false
	}
	return jsonLogs
}

// setupLogger creates the CLI logger writing to w.
func setupLogger(w io.Writer, verbose, jsonLogs bool) *slog.Logger {
	if jsonLogs {
		return applog.NewJSONLogger(w, verbose)
	}
	return applog.NewLogger(w, verbose)
}

// loadConfig loads defaults, the configuration file and the environment.
// A config path given with --config must exist; otherwise a missing file is
// not an error.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var explicit string
	if f := cmd.Flags().Lookup("config"); f != nil {
		explicit = f.Value.String()
	}

	path := config.FindConfigFile(explicit)
	if path == "" && explicit != "" {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, explicit)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	return cfg, nil
}
