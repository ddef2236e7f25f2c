package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoInput is returned when no record file is specified.
	ErrNoInput = errors.New("no input specified: provide at least one record file")

	// ErrInvalidBinCount is returned when the bin count is below one.
	ErrInvalidBinCount = errors.New("invalid bin count: must be at least 1")

	// ErrInvalidBinStrategy is returned for an unknown bin strategy name.
	ErrInvalidBinStrategy = errors.New("invalid bin strategy: must be EQUAL_WIDTH or EQUAL_COUNT")

	// ErrInvalidWorkers is returned when the worker count is below one.
	ErrInvalidWorkers = errors.New("invalid workers: must be at least 1")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidFormat is returned for an unknown output format.
	ErrInvalidFormat = errors.New("invalid format: must be json, markdown or text")

	// ErrConflictingOutputs is returned when both --output and --output-dir are set.
	ErrConflictingOutputs = errors.New("conflicting outputs: --output and --output-dir cannot be used together")

	// ErrOutputFileWithMultipleInputs is returned when a single output file is
	// requested for several inputs.
	ErrOutputFileWithMultipleInputs = errors.New("--output accepts a single input; use --output-dir for several")

	// ErrGroupedJSONNeedsFile is returned when per-group JSON reports would be
	// written to standard output after the main report.
	ErrGroupedJSONNeedsFile = errors.New("--by-group with JSON output needs --output or --output-dir")

	// ErrNoDBDir is returned when archiving is requested without a database directory.
	ErrNoDBDir = errors.New("no database directory configured")
)
