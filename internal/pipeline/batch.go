package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of inputs processed at once by default.
const DefaultConcurrency = 4

// BatchProcessor runs one pipeline per input with bounded concurrency.
type BatchProcessor struct {
	// pipelineFactory creates a fresh pipeline for each input.
	pipelineFactory func() *Pipeline

	// namer maps an input to its report name.
	namer func(input string) string

	// concurrency is the maximum number of concurrent runs.
	concurrency int

	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent runs.
// Non-positive values keep the default.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithNamer sets how report names are derived from inputs.
func WithNamer(namer func(input string) string) BatchOption {
	return func(b *BatchProcessor) {
		if namer != nil {
			b.namer = namer
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		namer:           DefaultName,
		concurrency:     DefaultConcurrency,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch runs every input and returns the runs in input order.
//
// A failing input does not stop the others; its error is kept in Run.Err.
// The returned error is only set when ctx is cancelled, in which case runs
// that never started are nil.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, inputs []string) ([]*Run, error) {
	runs := make([]*Run, len(inputs))
	err := bp.ProcessBatchWithCallback(ctx, inputs, func(run *Run, index int) {
		runs[index] = run
	})
	return runs, err
}

// ProcessBatchWithCallback runs every input and calls callback as each one
// finishes. The callback runs on the worker goroutine, so it must be safe for
// concurrent use unless the concurrency is 1.
func (bp *BatchProcessor) ProcessBatchWithCallback(ctx context.Context, inputs []string, callback func(run *Run, index int)) error {
	bp.logger.InfoContext(ctx, "starting batch",
		"inputs", len(inputs),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, input := range inputs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			run := NewRun(input, bp.namer(input))
			if err := bp.pipelineFactory().Execute(gctx, run); err != nil {
				bp.logger.WarnContext(gctx, "input failed",
					"input", input,
					"error", err,
				)
			}

			callback(run, i)
			return nil
		})
	}

	err := g.Wait()

	bp.logger.InfoContext(ctx, "batch complete",
		"inputs", len(inputs),
		"elapsed", time.Since(startTime),
	)

	return err
}
