package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/nao1215/calibreport/internal/config"
	"github.com/nao1215/calibreport/internal/database"
	"github.com/nao1215/calibreport/internal/metrics"
	"github.com/nao1215/calibreport/internal/pipeline"
	"github.com/nao1215/calibreport/internal/source"
	"github.com/spf13/cobra"
)

// NewBuildCmd creates the build command.
func NewBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [input...]",
		Short: "Build calibration reports from prediction records",
		Long: `Build reads prediction records and writes one calibration report per input.

Each record has a confidence in [0,1], a boolean outcome and an optional
group. The input format is inferred from the file extension (.jsonl, .csv,
.yaml) unless --input-format is given. Use "-" to read from standard input.

Examples:
  # Print a JSON report with 10 equal-width bins
  calibreport build scores.jsonl

  # 15 equal-count bins, Markdown, written to a file
  calibreport build --bins 15 --strategy equal-count -f markdown -o report.md scores.csv

  # Several inputs at once, one report per input, plus per-group reports
  # (inputs must have distinct file names)
  calibreport build --output-dir reports --by-group a.jsonl b.jsonl

  # Archive the report for later comparison and export Prometheus metrics
  calibreport build --save --name nightly --metrics-file /var/lib/node_exporter/calibreport.prom scores.jsonl`,
		Args: cobra.ArbitraryArgs,
		RunE: runBuildCmd,
	}

	cmd.Flags().StringP("input-format", "I", "",
		"Input format: jsonl, csv or yaml (default: inferred from extension)")
	cmd.Flags().IntP("bins", "b", config.DefaultBinCount,
		"Number of confidence bins")
	cmd.Flags().StringP("strategy", "s", config.DefaultBinStrategy.String(),
		"Binning strategy: EQUAL_WIDTH or EQUAL_COUNT")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Number of goroutines aggregating each report")
	cmd.Flags().StringP("format", "f", string(config.DefaultFormat),
		"Output format: json, markdown or text")
	cmd.Flags().StringP("output", "o", "",
		"Write the report to this file (single input only)")
	cmd.Flags().StringP("output-dir", "d", "",
		"Write one report per input into this directory")
	cmd.Flags().BoolP("by-group", "g", false,
		"Also build one report per record group (JSON needs --output or --output-dir)")
	cmd.Flags().Bool("save", false,
		"Archive the report in the history database")
	cmd.Flags().StringP("name", "n", "",
		"Archive and metrics name (default: input file name without extension)")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")
	cmd.Flags().String("metrics-file", "",
		"Write Prometheus metrics in textfile format to this path")
	cmd.Flags().IntP("batch-size", "B", config.DefaultBatchSize,
		"Number of inputs processed concurrently")

	return cmd
}

// runBuildCmd executes the build command.
func runBuildCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose, getLogJSONFlag(cmd))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runBuild(ctx, cfg, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), logger)
}

// buildConfig layers command-line flags over the loaded configuration.
// Only flags set explicitly override the file and the environment.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("bins") {
		if cfg.BinCount, err = flags.GetInt("bins"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("strategy") {
		if cfg.BinStrategy, err = flags.GetString("strategy"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("workers") {
		if cfg.Workers, err = flags.GetInt("workers"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("format") {
		if cfg.Format, err = flags.GetString("format"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("db-dir") {
		if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("metrics-file") {
		if cfg.MetricsFile, err = flags.GetString("metrics-file"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("batch-size") {
		if cfg.BatchSize, err = flags.GetInt("batch-size"); err != nil {
			return nil, err
		}
	}

	if cfg.InputFormat, err = flags.GetString("input-format"); err != nil {
		return nil, err
	}
	if cfg.OutputFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.OutputDir, err = flags.GetString("output-dir"); err != nil {
		return nil, err
	}
	if cfg.ByGroup, err = flags.GetBool("by-group"); err != nil {
		return nil, err
	}
	if cfg.Save, err = flags.GetBool("save"); err != nil {
		return nil, err
	}
	if cfg.Name, err = flags.GetString("name"); err != nil {
		return nil, err
	}

	cfg.Inputs = args

	return cfg, nil
}

// runBuild builds a report for every input in cfg.
// Failing inputs are reported on errOut and do not stop the others.
func runBuild(ctx context.Context, cfg *config.Config, stdin io.Reader, stdout, errOut io.Writer, logger *slog.Logger) error {
	strategy, err := cfg.Strategy()
	if err != nil {
		return err
	}
	format, err := cfg.OutputFormat()
	if err != nil {
		return err
	}

	var inputFormat source.Format
	if cfg.InputFormat != "" {
		if inputFormat, err = source.ParseFormat(cfg.InputFormat); err != nil {
			return err
		}
	}

	var db *database.ReportDB
	if cfg.Save {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Debug("database opened", "path", db.Path())
	}

	var recorder *metrics.Recorder
	if cfg.MetricsFile != "" {
		recorder = metrics.NewRecorder()
	}

	if cfg.OutputDir != "" {
		if err := pipeline.CheckOutputNames(cfg.Inputs); err != nil {
			return err
		}
	}

	var stdoutMu sync.Mutex
	claims := pipeline.NewOutputClaims()
	factory := func() *pipeline.Pipeline {
		p := pipeline.New(pipeline.WithLogger(logger))
		p.AddStep(pipeline.NewLoadStep(
			pipeline.WithInputFormat(inputFormat),
			pipeline.WithStdin(stdin),
			pipeline.WithLoadLogger(logger),
		))
		p.AddStep(pipeline.NewBuildStep(cfg.BinCount, strategy,
			pipeline.WithBuildWorkers(cfg.Workers),
			pipeline.WithGroups(cfg.ByGroup),
			pipeline.WithBuildLogger(logger),
		))
		p.AddStep(pipeline.NewWriteStep(format,
			pipeline.WithOutputFile(cfg.OutputFile),
			pipeline.WithOutputDir(cfg.OutputDir),
			pipeline.WithStdout(stdout, &stdoutMu),
			pipeline.WithOutputClaims(claims),
			pipeline.WithWriteLogger(logger),
		))
		if db != nil {
			p.AddStep(pipeline.NewArchiveStep(db, logger))
		}
		if recorder != nil {
			p.AddStep(pipeline.NewMetricsStep(recorder))
		}
		return p
	}

	namer := pipeline.DefaultName
	if cfg.Name != "" {
		namer = func(string) string { return cfg.Name }
	}

	bp := pipeline.NewBatchProcessor(factory,
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithNamer(namer),
		pipeline.WithBatchLogger(logger),
	)

	runs, err := bp.ProcessBatch(ctx, cfg.Inputs)
	if err != nil {
		return err
	}

	failed := 0
	for _, run := range runs {
		if !run.Failed() {
			if run.Saved != nil {
				logger.Info("saved", "name", run.Name, "id", run.Saved.ID)
			}
			continue
		}
		failed++
		fmt.Fprintf(errOut, "%s: %v\n", run.Input, run.Err)
		if recorder != nil {
			recorder.RecordFailure()
		}
	}

	if recorder != nil {
		if err := recorder.WriteTextfile(cfg.MetricsFile); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d inputs failed", failed, len(runs))
	}
	return nil
}
