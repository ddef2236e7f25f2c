package builder

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/nao1215/calibreport/internal/model"
	"golang.org/x/sync/errgroup"
)

// sample is the part of an evaluation record that affects aggregation.
type sample struct {
	confidence float64
	outcome    bool
}

// Build aggregates records into a calibration report with binCount bins
// placed according to strategy.
//
// It returns a *model.InvalidConfigurationError when binCount < 1 or the
// strategy is unknown, and a *model.InvalidRecordError when any record has a
// non-finite confidence or one outside [0,1]. Validation happens before any
// aggregation, so an error never comes with a partial report.
func Build(records []model.EvaluationRecord, binCount int, strategy model.BinStrategy, opts ...Option) (*model.Report, error) {
	if err := ValidateConfig(binCount, strategy); err != nil {
		return nil, err
	}
	if err := ValidateRecords(records); err != nil {
		return nil, err
	}
	return build(canonicalize(records), binCount, strategy, newConfig(opts))
}

// ValidateConfig checks the report generation parameters.
func ValidateConfig(binCount int, strategy model.BinStrategy) error {
	if binCount < 1 {
		return &model.InvalidConfigurationError{
			Field:  "bin_count",
			Value:  strconv.Itoa(binCount),
			Reason: "must be >= 1",
		}
	}
	if !strategy.Valid() {
		return &model.InvalidConfigurationError{
			Field:  "bin_strategy",
			Value:  string(strategy),
			Reason: "must be one of EQUAL_WIDTH, EQUAL_COUNT",
		}
	}
	return nil
}

// ValidateRecords checks every record and returns the first violation,
// annotated with the record's index.
func ValidateRecords(records []model.EvaluationRecord) error {
	for i, r := range records {
		if err := r.Validate(); err != nil {
			var recErr *model.InvalidRecordError
			if errors.As(err, &recErr) {
				return recErr.WithIndex(i)
			}
			return err
		}
	}
	return nil
}

// canonicalize returns the records' samples sorted by confidence, then by
// outcome with false first. Samples that compare equal are interchangeable,
// so every permutation of the input yields the same slice.
func canonicalize(records []model.EvaluationRecord) []sample {
	samples := make([]sample, len(records))
	for i, r := range records {
		// Adding +0 turns -0 into +0 so signed zeros cannot reach the output.
		samples[i] = sample{confidence: r.Confidence + 0, outcome: r.Outcome}
	}
	slices.SortFunc(samples, func(a, b sample) int {
		if c := cmp.Compare(a.confidence, b.confidence); c != 0 {
			return c
		}
		switch {
		case a.outcome == b.outcome:
			return 0
		case !a.outcome:
			return -1
		default:
			return 1
		}
	})
	return samples
}

// build runs binning and aggregation over validated, canonical samples.
// The finished report is checked against the model invariants, so a binning
// fault surfaces here instead of at write time.
func build(samples []sample, binCount int, strategy model.BinStrategy, cfg config) (*model.Report, error) {
	part := newPartition(samples, binCount, strategy)
	totals := aggregate(samples, part, cfg)
	rep := assemble(totals, part, len(samples), model.GeneratedWith{
		BinCount:    binCount,
		BinStrategy: strategy,
	})
	if err := rep.Validate(); err != nil {
		return nil, fmt.Errorf("build %s report with %d bins: %w", strategy, binCount, err)
	}
	return rep, nil
}

// aggregate accumulates samples per bin.
//
// Samples are cut into chunks of cfg.chunkSize, each chunk is reduced to
// per-bin partials, and the partials are merged in chunk order. The chunking
// does not depend on cfg.workers, so the sequential and concurrent paths
// perform the same floating point operations in the same order.
func aggregate(samples []sample, part partition, cfg config) []accumulator {
	k := part.binCount()
	size := cfg.chunkSize
	chunks := (len(samples) + size - 1) / size
	partials := make([][]accumulator, chunks)

	reduce := func(c int) {
		lo := c * size
		hi := min(lo+size, len(samples))
		acc := make([]accumulator, k)
		for _, s := range samples[lo:hi] {
			acc[part.index(s.confidence)].add(s.confidence, s.outcome)
		}
		partials[c] = acc
	}

	if cfg.workers <= 1 || chunks <= 1 {
		for c := range chunks {
			reduce(c)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(cfg.workers)
		for c := range chunks {
			g.Go(func() error {
				reduce(c)
				return nil
			})
		}
		_ = g.Wait() //nolint:errcheck // reduce never fails
	}

	totals := make([]accumulator, k)
	for _, p := range partials {
		for i := range totals {
			totals[i] = merge(totals[i], p[i])
		}
	}
	return totals
}

// assemble converts per-bin totals into the immutable report.
func assemble(totals []accumulator, part partition, n int, gw model.GeneratedWith) *model.Report {
	bins := make([]model.BinStat, len(totals))
	positives := 0
	ece := 0.0

	for i, a := range totals {
		bin := model.BinStat{
			LowerBound:  part.edges[i],
			UpperBound:  part.edges[i+1],
			SampleCount: a.count,
		}
		if a.count > 0 {
			acc := a.meanAccuracy()
			bin.MeanConfidence = model.Some(a.meanConfidence)
			bin.MeanAccuracy = model.Some(acc)
			ece += float64(a.count) / float64(n) * math.Abs(a.meanConfidence-acc)
			positives += a.positives
		}
		bins[i] = bin
	}

	overall := model.None()
	if n > 0 {
		overall = model.Some(float64(positives) / float64(n))
	}

	return model.NewReport(model.ReportParams{
		RecordCount:              n,
		OverallAccuracy:          overall,
		ExpectedCalibrationError: ece,
		Bins:                     bins,
		GeneratedWith:            gw,
	})
}
