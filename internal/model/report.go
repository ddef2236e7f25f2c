package model

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvariantViolation is wrapped by every error returned from Report.Validate.
var ErrInvariantViolation = errors.New("report invariant violated")

// BinStat holds the aggregated statistics of one confidence bin.
// A BinStat is a plain value; copies never alias the owning Report.
type BinStat struct {
	// LowerBound and UpperBound delimit the bin, 0 <= LowerBound < UpperBound <= 1.
	LowerBound float64
	UpperBound float64

	// SampleCount is the number of records assigned to the bin.
	SampleCount int

	// MeanConfidence is the mean predicted confidence; absent when SampleCount is 0.
	MeanConfidence OptionalFloat

	// MeanAccuracy is the fraction of positive outcomes; absent when SampleCount is 0.
	MeanAccuracy OptionalFloat
}

// Gap returns |MeanConfidence - MeanAccuracy|, or absent for an empty bin.
func (b BinStat) Gap() OptionalFloat {
	if !b.MeanConfidence.Valid || !b.MeanAccuracy.Valid {
		return None()
	}
	return Some(math.Abs(b.MeanConfidence.Value - b.MeanAccuracy.Value))
}

// GeneratedWith records the parameters that produced a Report.
// Two reports are only comparable bin-for-bin when these are equal.
type GeneratedWith struct {
	BinCount    int         `json:"bin_count"`
	BinStrategy BinStrategy `json:"bin_strategy"`
}

// ReportParams carries the fields of a Report under construction.
type ReportParams struct {
	RecordCount              int
	OverallAccuracy          OptionalFloat
	ExpectedCalibrationError float64
	Bins                     []BinStat
	GeneratedWith            GeneratedWith
}

// Report is a finished calibration report.
// It is immutable: every accessor returns a value or a copy.
type Report struct {
	recordCount              int
	overallAccuracy          OptionalFloat
	expectedCalibrationError float64
	bins                     []BinStat
	generatedWith            GeneratedWith
}

// NewReport constructs a Report from p. The bin slice is copied, so later
// changes to p.Bins do not affect the report.
// NewReport does not check invariants; see Validate.
func NewReport(p ReportParams) *Report {
	bins := make([]BinStat, len(p.Bins))
	copy(bins, p.Bins)
	return &Report{
		recordCount:              p.RecordCount,
		overallAccuracy:          p.OverallAccuracy,
		expectedCalibrationError: p.ExpectedCalibrationError,
		bins:                     bins,
		generatedWith:            p.GeneratedWith,
	}
}

// RecordCount returns the number of records aggregated into the report.
func (r *Report) RecordCount() int { return r.recordCount }

// OverallAccuracy returns the mean outcome over all records.
// It is absent iff RecordCount is 0.
func (r *Report) OverallAccuracy() OptionalFloat { return r.overallAccuracy }

// ExpectedCalibrationError returns the sample-weighted mean absolute gap
// between bin confidence and bin accuracy.
func (r *Report) ExpectedCalibrationError() float64 { return r.expectedCalibrationError }

// GeneratedWith returns the parameters that produced the report.
func (r *Report) GeneratedWith() GeneratedWith { return r.generatedWith }

// NumBins returns the number of bins.
func (r *Report) NumBins() int { return len(r.bins) }

// Bin returns the i-th bin. It panics if i is out of range.
func (r *Report) Bin(i int) BinStat { return r.bins[i] }

// Bins returns a copy of the bins ordered by ascending lower bound.
func (r *Report) Bins() []BinStat {
	bins := make([]BinStat, len(r.bins))
	copy(bins, r.bins)
	return bins
}

// Params returns the report's fields as ReportParams (with a copied bin slice).
// It is the inverse of NewReport and is used by encoders.
func (r *Report) Params() ReportParams {
	return ReportParams{
		RecordCount:              r.recordCount,
		OverallAccuracy:          r.overallAccuracy,
		ExpectedCalibrationError: r.expectedCalibrationError,
		Bins:                     r.Bins(),
		GeneratedWith:            r.generatedWith,
	}
}

// Equal reports whether r and other hold structurally equal fields.
// Floating point fields are compared exactly.
func (r *Report) Equal(other *Report) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.recordCount != other.recordCount ||
		r.overallAccuracy != other.overallAccuracy ||
		r.expectedCalibrationError != other.expectedCalibrationError ||
		r.generatedWith != other.generatedWith ||
		len(r.bins) != len(other.bins) {
		return false
	}
	for i := range r.bins {
		if r.bins[i] != other.bins[i] {
			return false
		}
	}
	return true
}

// Validate checks every report invariant and returns the first violation,
// wrapped around ErrInvariantViolation.
func (r *Report) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil report", ErrInvariantViolation)
	}
	gw := r.generatedWith
	if gw.BinCount < 1 {
		return violation("generated_with.bin_count %d must be >= 1", gw.BinCount)
	}
	if !gw.BinStrategy.Valid() {
		return violation("generated_with.bin_strategy %q is unknown", gw.BinStrategy)
	}
	if r.recordCount < 0 {
		return violation("record_count %d must be non-negative", r.recordCount)
	}
	if r.overallAccuracy.Valid != (r.recordCount > 0) {
		return violation("overall_accuracy presence (%t) must match record_count > 0", r.overallAccuracy.Valid)
	}
	if r.overallAccuracy.Valid && !isUnit(r.overallAccuracy.Value) {
		return violation("overall_accuracy %v must lie in [0,1]", r.overallAccuracy.Value)
	}
	if ece := r.expectedCalibrationError; math.IsNaN(ece) || math.IsInf(ece, 0) || ece < 0 {
		return violation("expected_calibration_error %v must be finite and non-negative", ece)
	}
	if r.recordCount == 0 && r.expectedCalibrationError != 0 {
		return violation("expected_calibration_error must be 0 without records")
	}
	if len(r.bins) != gw.BinCount {
		return violation("bins length %d must equal bin_count %d", len(r.bins), gw.BinCount)
	}

	total := 0
	prevUpper := 0.0
	for i, b := range r.bins {
		if err := validateBin(i, b, prevUpper); err != nil {
			return err
		}
		prevUpper = b.UpperBound
		total += b.SampleCount
	}
	if prevUpper != 1 {
		return violation("last bin upper_bound %v must be 1", prevUpper)
	}
	if total != r.recordCount {
		return violation("bin sample counts sum to %d, record_count is %d", total, r.recordCount)
	}
	return nil
}

// validateBin checks a single bin; prevUpper is the previous bin's upper
// bound (0 for the first bin).
func validateBin(i int, b BinStat, prevUpper float64) error {
	if !isUnit(b.LowerBound) || !isUnit(b.UpperBound) || b.LowerBound >= b.UpperBound {
		return violation("bin %d bounds [%v, %v] must satisfy 0 <= lower < upper <= 1", i, b.LowerBound, b.UpperBound)
	}
	if b.LowerBound != prevUpper {
		return violation("bin %d lower_bound %v must equal previous upper_bound %v", i, b.LowerBound, prevUpper)
	}
	if b.SampleCount < 0 {
		return violation("bin %d sample_count %d must be non-negative", i, b.SampleCount)
	}
	nonEmpty := b.SampleCount > 0
	if b.MeanConfidence.Valid != nonEmpty || b.MeanAccuracy.Valid != nonEmpty {
		return violation("bin %d means must be present iff sample_count > 0", i)
	}
	if nonEmpty && (!isUnit(b.MeanConfidence.Value) || !isUnit(b.MeanAccuracy.Value)) {
		return violation("bin %d means must lie in [0,1]", i)
	}
	return nil
}

func violation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariantViolation, fmt.Sprintf(format, args...))
}

// isUnit reports whether f is finite and within [0,1].
func isUnit(f float64) bool {
	return !math.IsNaN(f) && f >= 0 && f <= 1
}
