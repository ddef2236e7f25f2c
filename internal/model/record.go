package model

import (
	"math"
	"strconv"
)

// EvaluationRecord pairs a predicted confidence with the observed outcome.
// Records are supplied by an external source; the pipeline consumes them but
// never retains them beyond a build call.
type EvaluationRecord struct {
	// Confidence is the predicted probability that the outcome is positive.
	// It must be finite and lie in [0,1].
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// Outcome is true when the prediction turned out to be correct.
	Outcome bool `json:"outcome" yaml:"outcome"`

	// GroupKey optionally assigns the record to a category.
	// An empty key means the record is ungrouped.
	GroupKey string `json:"group,omitempty" yaml:"group,omitempty"`
}

// NewEvaluationRecord creates a validated record.
func NewEvaluationRecord(confidence float64, outcome bool, groupKey string) (EvaluationRecord, error) {
	r := EvaluationRecord{Confidence: confidence, Outcome: outcome, GroupKey: groupKey}
	if err := r.Validate(); err != nil {
		return EvaluationRecord{}, err
	}
	return r, nil
}

// Validate checks the record's field constraints.
// The returned error, if any, is an *InvalidRecordError with Index -1;
// callers that know the record position should use WithIndex.
func (r EvaluationRecord) Validate() error {
	c := r.Confidence
	switch {
	case math.IsNaN(c) || math.IsInf(c, 0):
		return &InvalidRecordError{
			Index:  -1,
			Field:  "confidence",
			Value:  formatFloat(c),
			Reason: "must be finite",
		}
	case c < 0 || c > 1:
		return &InvalidRecordError{
			Index:  -1,
			Field:  "confidence",
			Value:  formatFloat(c),
			Reason: "must lie in [0,1]",
		}
	}
	return nil
}

// HasGroup reports whether the record carries a group key.
func (r EvaluationRecord) HasGroup() bool {
	return r.GroupKey != ""
}

// formatFloat formats f with the shortest representation that round-trips.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
