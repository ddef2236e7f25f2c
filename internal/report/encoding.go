package report

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/nao1215/calibreport/internal/model"
	"golang.org/x/crypto/sha3"
)

// FormatVersion is the version tag written into every encoded report.
// Bump it whenever the document layout changes incompatibly.
const FormatVersion = 1

// document is the top-level persisted layout.
type document struct {
	FormatVersion int          `json:"format_version"`
	Report        *reportEntry `json:"report"`
}

type reportEntry struct {
	RecordCount              int                `json:"record_count"`
	OverallAccuracy          *float64           `json:"overall_accuracy"`
	ExpectedCalibrationError float64            `json:"expected_calibration_error"`
	GeneratedWith            generatedWithEntry `json:"generated_with"`
	Bins                     []binEntry         `json:"bins"`
}

type generatedWithEntry struct {
	BinCount    int               `json:"bin_count"`
	BinStrategy model.BinStrategy `json:"bin_strategy"`
}

type binEntry struct {
	LowerBound     float64  `json:"lower_bound"`
	UpperBound     float64  `json:"upper_bound"`
	SampleCount    int      `json:"sample_count"`
	MeanConfidence *float64 `json:"mean_confidence"`
	MeanAccuracy   *float64 `json:"mean_accuracy"`
}

// versionProbe reads only the version tag of a document.
type versionProbe struct {
	FormatVersion *int `json:"format_version"`
}

// Encode returns the canonical encoding of report.
// It fails with a *SerializationError if the report violates its invariants.
func Encode(report *model.Report) ([]byte, error) {
	if err := report.Validate(); err != nil {
		return nil, &SerializationError{Err: err}
	}

	p := report.Params()
	entry := &reportEntry{
		RecordCount:              p.RecordCount,
		OverallAccuracy:          p.OverallAccuracy.Ptr(),
		ExpectedCalibrationError: p.ExpectedCalibrationError,
		GeneratedWith: generatedWithEntry{
			BinCount:    p.GeneratedWith.BinCount,
			BinStrategy: p.GeneratedWith.BinStrategy,
		},
		Bins: make([]binEntry, len(p.Bins)),
	}
	for i, b := range p.Bins {
		entry.Bins[i] = binEntry{
			LowerBound:     b.LowerBound,
			UpperBound:     b.UpperBound,
			SampleCount:    b.SampleCount,
			MeanConfidence: b.MeanConfidence.Ptr(),
			MeanAccuracy:   b.MeanAccuracy.Ptr(),
		}
	}

	data, err := json.MarshalIndent(document{FormatVersion: FormatVersion, Report: entry}, "", "  ")
	if err != nil {
		return nil, &SerializationError{Err: err}
	}
	return append(data, '\n'), nil
}

// Decode reads one encoded report from r.
//
// It rejects documents without a format_version, documents from a newer
// format version, unknown fields, and reports that fail model validation.
func Decode(r io.Reader) (*model.Report, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	return decodeBytes(data)
}

func decodeBytes(data []byte) (*model.Report, error) {
	var probe versionProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	if probe.FormatVersion == nil {
		return nil, fmt.Errorf("%w: format_version is missing", ErrUnsupportedFormatVersion)
	}
	if v := *probe.FormatVersion; v < 1 || v > FormatVersion {
		return nil, fmt.Errorf("%w: got %d, this build reads up to %d", ErrUnsupportedFormatVersion, v, FormatVersion)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("failed to parse report: trailing data after document")
	}
	if doc.Report == nil {
		return nil, errors.New("failed to parse report: report object is missing")
	}

	e := doc.Report
	bins := make([]model.BinStat, len(e.Bins))
	for i, b := range e.Bins {
		bins[i] = model.BinStat{
			LowerBound:     b.LowerBound,
			UpperBound:     b.UpperBound,
			SampleCount:    b.SampleCount,
			MeanConfidence: model.FromPtr(b.MeanConfidence),
			MeanAccuracy:   model.FromPtr(b.MeanAccuracy),
		}
	}
	report := model.NewReport(model.ReportParams{
		RecordCount:              e.RecordCount,
		OverallAccuracy:          model.FromPtr(e.OverallAccuracy),
		ExpectedCalibrationError: e.ExpectedCalibrationError,
		Bins:                     bins,
		GeneratedWith: model.GeneratedWith{
			BinCount:    e.GeneratedWith.BinCount,
			BinStrategy: e.GeneratedWith.BinStrategy,
		},
	})
	if err := report.Validate(); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return report, nil
}

// Digest returns the hex-encoded SHA3-256 of the canonical encoding.
// Equal reports have equal digests.
func Digest(report *model.Report) (string, error) {
	data, err := Encode(report)
	if err != nil {
		return "", err
	}
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
