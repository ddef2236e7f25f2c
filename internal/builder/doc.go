// Package builder turns evaluation records into calibration reports.
//
// Build is a pure function of its inputs: it validates the configuration and
// every record before doing any work, partitions the [0,1] confidence range
// into bins, aggregates each bin with numerically stable running means and
// assembles an immutable model.Report.
//
// The result does not depend on the order of the input records. Records are
// first put into a canonical order (confidence, then outcome) and all
// floating point work runs over that order. Optional parallelism splits the
// canonical order into fixed-size chunks whose per-bin partial accumulators
// are merged in chunk order, so any worker count yields bit-identical reports.
package builder
