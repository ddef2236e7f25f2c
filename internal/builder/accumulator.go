package builder

// accumulator aggregates the records of one bin.
//
// count and positives are exact integers. meanConfidence is a running mean,
// updated as m += (x-m)/n, which keeps the magnitude of intermediate values
// bounded by the inputs instead of growing with the record count.
type accumulator struct {
	count          int
	positives      int
	meanConfidence float64
}

// add folds one record into the accumulator.
func (a *accumulator) add(confidence float64, outcome bool) {
	a.count++
	if outcome {
		a.positives++
	}
	a.meanConfidence += (confidence - a.meanConfidence) / float64(a.count)
}

// merge combines two partial accumulators.
//
// The empty accumulator is the identity. Counts combine by addition and the
// means by the weighted update m = ma + (mb-ma)*nb/(na+nb). Callers merge
// partials in a fixed order so the floating point result is reproducible.
func merge(a, b accumulator) accumulator {
	switch {
	case b.count == 0:
		return a
	case a.count == 0:
		return b
	}
	n := a.count + b.count
	return accumulator{
		count:          n,
		positives:      a.positives + b.positives,
		meanConfidence: a.meanConfidence + (b.meanConfidence-a.meanConfidence)*(float64(b.count)/float64(n)),
	}
}

// meanAccuracy returns the fraction of positive outcomes.
func (a accumulator) meanAccuracy() float64 {
	return float64(a.positives) / float64(a.count)
}
