// Package compare computes the difference between two calibration reports.
//
// Reports are comparable only when they were generated with the same bin
// count and strategy. The result carries summary deltas, a direction judged
// by the change in expected calibration error, and per-bin deltas.
package compare
