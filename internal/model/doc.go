// Package model defines the data structures shared by the calibration report
// pipeline.
//
// This package contains the following main types:
//   - EvaluationRecord: one predicted confidence paired with an observed outcome
//   - BinStrategy: how the [0,1] confidence range is partitioned into bins
//   - BinStat: aggregated statistics for a single bin
//   - Report: the immutable, finished calibration report
//   - GroupReport: a Report scoped to one category key
//   - Grade: a coarse severity bucket derived from the expected calibration error
//
// The builder package produces Reports and the report package serializes them.
//
// A Report never changes after NewReport returns. Accessors hand out copies,
// so a Report can be shared between goroutines without locking.
package model
