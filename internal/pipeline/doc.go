// Package pipeline runs calibration reports through a fixed sequence of steps.
//
// One input file becomes one Run. The Run is loaded, built, written, and
// optionally archived and exported as metrics, each stage being a Step. A
// BatchProcessor drives one pipeline per input with bounded concurrency using
// errgroup.
package pipeline
