package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/nao1215/calibreport/internal/model"
	"github.com/nao1215/calibreport/internal/report"
)

// Default configuration values.
// The builder itself has no defaults; these only apply to the CLI.
const (
	// DefaultBinCount of 10 is the conventional reliability diagram resolution.
	DefaultBinCount = 10

	// DefaultBinStrategy splits [0,1] into equal-width bins.
	DefaultBinStrategy = model.EqualWidth

	// DefaultWorkers aggregates sequentially.
	DefaultWorkers = 1

	// DefaultFormat writes the canonical JSON encoding.
	DefaultFormat = report.FormatJSON

	// DefaultBatchSize is the number of input files processed concurrently.
	DefaultBatchSize = 4

	// AppName is the application name used for XDG directory paths.
	AppName = "calibreport"
)

// Config holds all configuration options for calibreport.
// It is populated from defaults, the config file, the environment and CLI
// flags, in that order, and passed explicitly to the components that need it.
//
// Fields tagged with koanf can be set from the config file and environment.
type Config struct {
	// BinCount is the number of reliability bins.
	BinCount int `koanf:"bin_count"`

	// BinStrategy names the binning strategy (EQUAL_WIDTH or EQUAL_COUNT).
	// It is kept as text and parsed by Strategy so that case variants from
	// the environment are accepted.
	BinStrategy string `koanf:"bin_strategy"`

	// Workers is the number of goroutines aggregating a single build.
	Workers int `koanf:"workers"`

	// Format is the output format name (json, markdown or text).
	Format string `koanf:"format"`

	// DBDir is the directory of the report archive.
	// Defaults to the XDG data directory (~/.local/share/calibreport on Linux).
	DBDir string `koanf:"db_dir"`

	// MetricsFile is an optional Prometheus textfile to write after builds.
	MetricsFile string `koanf:"metrics_file"`

	// BatchSize is the number of input files processed concurrently.
	BatchSize int `koanf:"batch_size"`

	// Verbose enables detailed log output using slog.LevelDebug.
	Verbose bool `koanf:"-"`

	// Inputs are the record files to build reports from.
	Inputs []string `koanf:"-"`

	// InputFormat forces the input format instead of inferring it from the
	// file extension.
	InputFormat string `koanf:"-"`

	// OutputFile is the report destination for a single input.
	// When empty the report is written to stdout.
	OutputFile string `koanf:"-"`

	// OutputDir receives one report per input, named after the input.
	// Mutually exclusive with OutputFile.
	OutputDir string `koanf:"-"`

	// ByGroup builds one report per group key in addition to the overall report.
	ByGroup bool `koanf:"-"`

	// Save archives every built report in the database under Name.
	Save bool `koanf:"-"`

	// Name is the archive history name. When empty, the input file name
	// without extension is used.
	Name string `koanf:"-"`

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .calibreport in the current directory
	// and then in the user's home directory.
	ConfigFilePath string `koanf:"-"`
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		BinCount:    DefaultBinCount,
		BinStrategy: DefaultBinStrategy.String(),
		Workers:     DefaultWorkers,
		Format:      string(DefaultFormat),
		DBDir:       XDGDataDir(),
		BatchSize:   DefaultBatchSize,
	}
}

// Strategy parses BinStrategy.
func (c *Config) Strategy() (model.BinStrategy, error) {
	return model.ParseBinStrategy(c.BinStrategy)
}

// OutputFormat parses Format.
func (c *Config) OutputFormat() (report.Format, error) {
	return report.ParseFormat(c.Format)
}

// XDGDataDir returns the XDG data directory for calibreport.
// On Linux: ~/.local/share/calibreport
// On macOS: ~/Library/Application Support/calibreport
// On Windows: %LOCALAPPDATA%\calibreport
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for calibreport.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found as one of the package's sentinel errors.
func (c *Config) Validate() error {
	if len(c.Inputs) == 0 {
		return ErrNoInput
	}
	if c.BinCount < 1 {
		return ErrInvalidBinCount
	}
	if _, err := c.Strategy(); err != nil {
		return ErrInvalidBinStrategy
	}
	if c.Workers < 1 {
		return ErrInvalidWorkers
	}
	if c.BatchSize < 1 {
		return ErrInvalidBatchSize
	}
	format, err := c.OutputFormat()
	if err != nil {
		return ErrInvalidFormat
	}
	if c.OutputFile != "" && c.OutputDir != "" {
		return ErrConflictingOutputs
	}
	if c.OutputFile != "" && len(c.Inputs) > 1 {
		return ErrOutputFileWithMultipleInputs
	}
	if c.ByGroup && format == report.FormatJSON && c.OutputFile == "" && c.OutputDir == "" {
		return ErrGroupedJSONNeedsFile
	}
	if c.Save && c.DBDir == "" {
		return ErrNoDBDir
	}
	return nil
}
