package compare

import (
	"errors"
	"fmt"
	"math"

	"github.com/nao1215/calibreport/internal/model"
)

// ErrIncompatibleReports is returned when two reports were generated with
// different bin counts or strategies.
var ErrIncompatibleReports = errors.New("reports are not comparable")

// DefaultTolerance is the ECE change below which a comparison is unchanged.
const DefaultTolerance = 1e-9

// Direction describes how calibration moved from base to target.
type Direction string

const (
	// Improved means the target has a lower calibration error.
	Improved Direction = "improved"

	// Worsened means the target has a higher calibration error.
	Worsened Direction = "worsened"

	// Unchanged means the error moved by no more than the tolerance.
	Unchanged Direction = "unchanged"
)

// Summary holds the scalar statistics of one side of a comparison.
type Summary struct {
	RecordCount              int                 `json:"record_count"`
	OverallAccuracy          model.OptionalFloat `json:"overall_accuracy"`
	ExpectedCalibrationError float64             `json:"expected_calibration_error"`
}

// BinDelta is the change of one bin from base to target.
// Mean deltas are absent when the bin is empty on either side.
type BinDelta struct {
	Index               int                 `json:"index"`
	BaseSampleCount     int                 `json:"base_sample_count"`
	TargetSampleCount   int                 `json:"target_sample_count"`
	SampleCountDelta    int                 `json:"sample_count_delta"`
	MeanConfidenceDelta model.OptionalFloat `json:"mean_confidence_delta"`
	MeanAccuracyDelta   model.OptionalFloat `json:"mean_accuracy_delta"`
	GapDelta            model.OptionalFloat `json:"gap_delta"`

	// BoundsChanged is set when the bin edges differ, which happens for
	// EQUAL_COUNT reports over different data.
	BoundsChanged bool `json:"bounds_changed"`
}

// Comparison is the result of Diff.
type Comparison struct {
	GeneratedWith    model.GeneratedWith `json:"generated_with"`
	Base             Summary             `json:"base"`
	Target           Summary             `json:"target"`
	RecordCountDelta int                 `json:"record_count_delta"`
	AccuracyDelta    model.OptionalFloat `json:"accuracy_delta"`
	ECEDelta         float64             `json:"ece_delta"`
	Direction        Direction           `json:"direction"`
	Bins             []BinDelta          `json:"bins"`
}

// Option configures Diff.
type Option func(*options)

type options struct {
	tolerance float64
}

// WithTolerance sets the ECE change treated as noise. Negative values are
// ignored.
func WithTolerance(tolerance float64) Option {
	return func(o *options) {
		if tolerance >= 0 {
			o.tolerance = tolerance
		}
	}
}

// Diff compares target against base.
// Both reports must be valid and share their GeneratedWith parameters.
func Diff(base, target *model.Report, opts ...Option) (*Comparison, error) {
	o := options{tolerance: DefaultTolerance}
	for _, opt := range opts {
		opt(&o)
	}

	if err := base.Validate(); err != nil {
		return nil, fmt.Errorf("invalid base report: %w", err)
	}
	if err := target.Validate(); err != nil {
		return nil, fmt.Errorf("invalid target report: %w", err)
	}
	if base.GeneratedWith() != target.GeneratedWith() {
		return nil, fmt.Errorf("%w: base uses %d %s bins, target uses %d %s bins",
			ErrIncompatibleReports,
			base.GeneratedWith().BinCount, base.GeneratedWith().BinStrategy,
			target.GeneratedWith().BinCount, target.GeneratedWith().BinStrategy)
	}

	c := &Comparison{
		GeneratedWith:    base.GeneratedWith(),
		Base:             summarize(base),
		Target:           summarize(target),
		RecordCountDelta: target.RecordCount() - base.RecordCount(),
		AccuracyDelta:    subtract(target.OverallAccuracy(), base.OverallAccuracy()),
		ECEDelta:         target.ExpectedCalibrationError() - base.ExpectedCalibrationError(),
		Bins:             make([]BinDelta, base.NumBins()),
	}
	c.Direction = direction(c.ECEDelta, o.tolerance)

	for i := range c.Bins {
		b, t := base.Bin(i), target.Bin(i)
		c.Bins[i] = BinDelta{
			Index:               i,
			BaseSampleCount:     b.SampleCount,
			TargetSampleCount:   t.SampleCount,
			SampleCountDelta:    t.SampleCount - b.SampleCount,
			MeanConfidenceDelta: subtract(t.MeanConfidence, b.MeanConfidence),
			MeanAccuracyDelta:   subtract(t.MeanAccuracy, b.MeanAccuracy),
			GapDelta:            subtract(t.Gap(), b.Gap()),
			BoundsChanged:       b.LowerBound != t.LowerBound || b.UpperBound != t.UpperBound,
		}
	}

	return c, nil
}

func summarize(r *model.Report) Summary {
	return Summary{
		RecordCount:              r.RecordCount(),
		OverallAccuracy:          r.OverallAccuracy(),
		ExpectedCalibrationError: r.ExpectedCalibrationError(),
	}
}

// subtract returns a-b, absent if either side is absent.
func subtract(a, b model.OptionalFloat) model.OptionalFloat {
	if !a.Valid || !b.Valid {
		return model.None()
	}
	return model.Some(a.Value - b.Value)
}

func direction(eceDelta, tolerance float64) Direction {
	switch {
	case math.Abs(eceDelta) <= tolerance:
		return Unchanged
	case eceDelta < 0:
		return Improved
	default:
		return Worsened
	}
}
