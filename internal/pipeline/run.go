package pipeline

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/nao1215/calibreport/internal/database"
	"github.com/nao1215/calibreport/internal/model"
)

// StdinInput is the input name that selects standard input.
const StdinInput = "-"

// Run carries the state of one input through the pipeline.
// Steps fill it in as they execute.
type Run struct {
	// Input is the input path, or StdinInput.
	Input string

	// Name identifies the report in the archive and in metrics.
	Name string

	// Records are the evaluation records read by LoadStep.
	Records []model.EvaluationRecord

	// Report is the overall report produced by BuildStep.
	Report *model.Report

	// Groups holds per-group reports when grouping is enabled.
	Groups []model.GroupReport

	// BuildDuration is the time BuildStep spent building.
	BuildDuration time.Duration

	// Outputs lists the files written by WriteStep.
	Outputs []string

	// Saved is the archive row written by ArchiveStep.
	Saved *database.ReportMetadata

	// PerformedSteps lists the steps that ran, in order.
	PerformedSteps []string

	// Err is the error that stopped the run, if any.
	Err error
}

// NewRun creates a Run for input named name.
// An empty name is derived from the input with DefaultName.
func NewRun(input, name string) *Run {
	if name == "" {
		name = DefaultName(input)
	}
	return &Run{
		Input:          input,
		Name:           name,
		PerformedSteps: make([]string, 0),
	}
}

// DefaultName returns the input's base name without its extension,
// or "stdin" for standard input.
func DefaultName(input string) string {
	if input == StdinInput || input == "" {
		return "stdin"
	}
	base := filepath.Base(input)
	if stem := strings.TrimSuffix(base, filepath.Ext(base)); stem != "" {
		return stem
	}
	return base
}

// Failed reports whether the run stopped with an error.
func (r *Run) Failed() bool {
	return r.Err != nil
}
