package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nao1215/calibreport/internal/builder"
	"github.com/nao1215/calibreport/internal/database"
	"github.com/nao1215/calibreport/internal/metrics"
	"github.com/nao1215/calibreport/internal/model"
	"github.com/nao1215/calibreport/internal/report"
	"github.com/nao1215/calibreport/internal/source"
)

// LoadStep reads evaluation records from the run's input.
type LoadStep struct {
	// format is the input format; empty means inferred from the extension.
	format source.Format

	// stdin is read when the input is StdinInput.
	stdin io.Reader

	logger *slog.Logger
}

// LoadStepOption configures a LoadStep.
type LoadStepOption func(*LoadStep)

// WithInputFormat forces the input format instead of inferring it.
func WithInputFormat(format source.Format) LoadStepOption {
	return func(s *LoadStep) {
		s.format = format
	}
}

// WithStdin sets the reader used for StdinInput.
func WithStdin(r io.Reader) LoadStepOption {
	return func(s *LoadStep) {
		s.stdin = r
	}
}

// WithLoadLogger sets a custom logger for the load step.
func WithLoadLogger(logger *slog.Logger) LoadStepOption {
	return func(s *LoadStep) {
		s.logger = logger
	}
}

// NewLoadStep creates a new load step.
func NewLoadStep(opts ...LoadStepOption) *LoadStep {
	s := &LoadStep{
		stdin:  strings.NewReader(""),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *LoadStep) Name() string {
	return "load"
}

// Do reads the records into run.Records.
// Standard input defaults to JSON Lines when no format is set.
func (s *LoadStep) Do(ctx context.Context, run *Run) error {
	var (
		records []model.EvaluationRecord
		err     error
	)

	if run.Input == StdinInput {
		format := s.format
		if format == "" {
			format = source.FormatJSONLines
		}
		records, err = source.Read(s.stdin, format)
		if err != nil {
			err = fmt.Errorf("stdin: %w", err)
		}
	} else {
		records, err = source.ReadFile(run.Input, s.format)
	}
	if err != nil {
		return err
	}

	run.Records = records
	s.logger.DebugContext(ctx, "records loaded", "count", len(records))

	return nil
}

// BuildStep builds the calibration report from the loaded records.
type BuildStep struct {
	binCount int
	strategy model.BinStrategy
	workers  int
	byGroup  bool
	logger   *slog.Logger
}

// BuildStepOption configures a BuildStep.
type BuildStepOption func(*BuildStep)

// WithBuildWorkers sets the number of aggregation workers.
func WithBuildWorkers(n int) BuildStepOption {
	return func(s *BuildStep) {
		s.workers = n
	}
}

// WithGroups also builds one report per group key.
func WithGroups(enabled bool) BuildStepOption {
	return func(s *BuildStep) {
		s.byGroup = enabled
	}
}

// WithBuildLogger sets a custom logger for the build step.
func WithBuildLogger(logger *slog.Logger) BuildStepOption {
	return func(s *BuildStep) {
		s.logger = logger
	}
}

// NewBuildStep creates a build step for the given binning.
func NewBuildStep(binCount int, strategy model.BinStrategy, opts ...BuildStepOption) *BuildStep {
	s := &BuildStep{
		binCount: binCount,
		strategy: strategy,
		workers:  1,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *BuildStep) Name() string {
	return "build"
}

// Do builds run.Report and, when grouping is enabled, run.Groups.
// An input with no records is valid and yields an empty report.
func (s *BuildStep) Do(ctx context.Context, run *Run) error {
	start := time.Now()

	rep, err := builder.Build(run.Records, s.binCount, s.strategy, builder.WithWorkers(s.workers))
	if err != nil {
		return err
	}
	run.Report = rep

	if s.byGroup {
		groups, err := builder.BuildGroups(run.Records, s.binCount, s.strategy, builder.WithWorkers(s.workers))
		if err != nil {
			return err
		}
		run.Groups = groups
	}

	run.BuildDuration = time.Since(start)
	s.logger.InfoContext(ctx, "report built",
		"records", rep.RecordCount(),
		"ece", rep.ExpectedCalibrationError(),
		"groups", len(run.Groups),
		"elapsed", run.BuildDuration,
	)

	return nil
}

// WriteStep writes the built report to a file, a directory or a stream.
type WriteStep struct {
	format report.Format

	// outputFile is an explicit destination path.
	outputFile string

	// outputDir receives <input stem><ext> when outputFile is empty.
	outputDir string

	// stdout is used when neither outputFile nor outputDir is set.
	stdout io.Writer

	// mu serialises writes to stdout across concurrent runs.
	mu *sync.Mutex

	// claims records every file written, possibly shared across a batch.
	claims *OutputClaims

	logger *slog.Logger
}

// WriteStepOption configures a WriteStep.
type WriteStepOption func(*WriteStep)

// WithOutputFile writes the report to path.
func WithOutputFile(path string) WriteStepOption {
	return func(s *WriteStep) {
		s.outputFile = path
	}
}

// WithOutputDir writes the report into dir, named after the input file.
func WithOutputDir(dir string) WriteStepOption {
	return func(s *WriteStep) {
		s.outputDir = dir
	}
}

// WithStdout sets the stream used when no file destination is configured.
// mu may be shared between steps writing to the same stream.
func WithStdout(w io.Writer, mu *sync.Mutex) WriteStepOption {
	return func(s *WriteStep) {
		s.stdout = w
		if mu != nil {
			s.mu = mu
		}
	}
}

// WithOutputClaims shares claims between the write steps of one batch, so a
// run fails instead of replacing a file another run wrote.
func WithOutputClaims(claims *OutputClaims) WriteStepOption {
	return func(s *WriteStep) {
		if claims != nil {
			s.claims = claims
		}
	}
}

// WithWriteLogger sets a custom logger for the write step.
func WithWriteLogger(logger *slog.Logger) WriteStepOption {
	return func(s *WriteStep) {
		s.logger = logger
	}
}

// NewWriteStep creates a write step for format.
func NewWriteStep(format report.Format, opts ...WriteStepOption) *WriteStep {
	s := &WriteStep{
		format: format,
		stdout: io.Discard,
		mu:     &sync.Mutex{},
		claims: NewOutputClaims(),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *WriteStep) Name() string {
	return "write"
}

// Do writes run.Report, followed by each group report.
// Files are committed atomically; group reports go next to the main file
// (see GroupPath). Every path is claimed before the first write, so a
// collision fails the run without touching any file.
func (s *WriteStep) Do(ctx context.Context, run *Run) error {
	if run.Report == nil {
		return ErrNoReport
	}

	path := s.destination(run)
	if path == "" {
		return s.writeStream(run)
	}

	paths := make([]string, 0, len(run.Groups)+1)
	paths = append(paths, path)
	for _, g := range run.Groups {
		paths = append(paths, GroupPath(path, g.Key))
	}
	if err := s.claims.Claim(run.Input, paths...); err != nil {
		return err
	}

	if err := report.WriteFileFormat(path, run.Report, s.format); err != nil {
		return err
	}
	run.Outputs = append(run.Outputs, path)

	for i, g := range run.Groups {
		if err := report.WriteFileFormat(paths[i+1], g.Report, s.format); err != nil {
			return err
		}
		run.Outputs = append(run.Outputs, paths[i+1])
	}

	s.logger.InfoContext(ctx, "report written", "path", path, "files", len(run.Outputs))

	return nil
}

// destination returns the file the run is written to, or "" for the stream.
func (s *WriteStep) destination(run *Run) string {
	switch {
	case s.outputFile != "":
		return s.outputFile
	case s.outputDir != "":
		return filepath.Join(s.outputDir, DefaultName(run.Input)+s.format.Extension())
	default:
		return ""
	}
}

// writeStream renders everything first so concurrent runs never interleave.
func (s *WriteStep) writeStream(run *Run) error {
	if s.format == report.FormatJSON && len(run.Groups) > 0 {
		return ErrGroupedJSONStream
	}

	var buf bytes.Buffer

	w, err := report.NewWriter(s.format, &buf)
	if err != nil {
		return err
	}
	if _, err := w.Write(run.Report); err != nil {
		return err
	}
	for _, g := range run.Groups {
		fmt.Fprintf(&buf, "\n--- group: %s ---\n\n", GroupLabel(g.Key))
		if _, err := w.Write(g.Report); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := buf.WriteTo(s.stdout); err != nil {
		return &report.IOError{Op: "write", Err: err}
	}
	return nil
}

// GroupLabel returns a printable label for a group key. Keys are quoted and
// the empty key is shown as (ungrouped), so no key can pass for another.
func GroupLabel(key string) string {
	if key == "" {
		return "(ungrouped)"
	}
	return strconv.Quote(key)
}

// GroupPath derives the file path of a group report from the main path:
// <stem>.group-<escaped key><ext>, or <stem>.ungrouped<ext> for the empty key.
// The key is path-escaped so it cannot name another directory.
func GroupPath(path, key string) string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	if key == "" {
		return stem + ".ungrouped" + ext
	}
	return stem + ".group-" + url.PathEscape(key) + ext
}

// OutputClaims tracks which input owns each output file of a batch.
// It is safe for concurrent use.
type OutputClaims struct {
	mu     sync.Mutex
	owners map[string]string
}

// NewOutputClaims returns an empty claim set.
func NewOutputClaims() *OutputClaims {
	return &OutputClaims{owners: make(map[string]string)}
}

// Claim reserves paths for input. It reserves nothing and returns
// ErrDuplicateOutput when any path is already taken or repeated.
func (c *OutputClaims) Claim(input string, paths ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		key := filepath.Clean(p)
		if owner, ok := c.owners[key]; ok {
			return fmt.Errorf("%w: %s is already written for %s", ErrDuplicateOutput, p, owner)
		}
		if seen[key] {
			return fmt.Errorf("%w: %s is written twice for %s", ErrDuplicateOutput, p, input)
		}
		seen[key] = true
	}
	for key := range seen {
		c.owners[key] = input
	}
	return nil
}

// CheckOutputNames reports inputs that would be written to the same file in an
// output directory, because their names without directory and extension match.
func CheckOutputNames(inputs []string) error {
	owners := make(map[string]string, len(inputs))
	for _, in := range inputs {
		name := DefaultName(in)
		if prev, ok := owners[name]; ok {
			return fmt.Errorf("%w: %s and %s both produce %q", ErrDuplicateOutput, prev, in, name)
		}
		owners[name] = in
	}
	return nil
}

// ArchiveStep saves the report in the report archive.
type ArchiveStep struct {
	db     *database.ReportDB
	logger *slog.Logger
}

// NewArchiveStep creates an archive step writing to db.
func NewArchiveStep(db *database.ReportDB, logger *slog.Logger) *ArchiveStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArchiveStep{db: db, logger: logger}
}

// Name returns the step name.
func (s *ArchiveStep) Name() string {
	return "archive"
}

// Do stores run.Report under run.Name and records the row in run.Saved.
// Group reports are not archived.
func (s *ArchiveStep) Do(ctx context.Context, run *Run) error {
	if run.Report == nil {
		return ErrNoReport
	}

	meta, err := s.db.SaveReport(ctx, run.Name, run.Report)
	if err != nil {
		return err
	}
	run.Saved = meta

	s.logger.InfoContext(ctx, "report archived",
		"id", meta.ID,
		"run_id", meta.RunID,
		"digest", meta.Digest,
	)

	return nil
}

// MetricsStep exports the report's statistics to a metrics recorder.
type MetricsStep struct {
	recorder *metrics.Recorder
}

// NewMetricsStep creates a metrics step for recorder.
func NewMetricsStep(recorder *metrics.Recorder) *MetricsStep {
	return &MetricsStep{recorder: recorder}
}

// Name returns the step name.
func (s *MetricsStep) Name() string {
	return "metrics"
}

// Do records the report, each group as "<name>/<GroupLabel(key)>", and the
// build time.
func (s *MetricsStep) Do(_ context.Context, run *Run) error {
	if run.Report == nil {
		return ErrNoReport
	}

	s.recorder.ObserveReport(run.Name, run.Report)
	for _, g := range run.Groups {
		s.recorder.ObserveReport(run.Name+"/"+GroupLabel(g.Key), g.Report)
	}
	s.recorder.ObserveBuildDuration(run.BuildDuration)

	return nil
}
