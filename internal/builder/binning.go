package builder

import (
	"math"
	"slices"
	"sort"

	"github.com/nao1215/calibreport/internal/model"
)

// partition is a split of [0,1] into len(edges)-1 contiguous bins.
//
// For equal-width bins, bin i is [edges[i], edges[i+1]) and the last bin is
// closed at 1. For equal-count bins, bin i is (edges[i], edges[i+1]] and the
// first bin is closed at 0, so a record lying on a boundary belongs to the
// lower-indexed bin.
type partition struct {
	edges          []float64
	upperInclusive bool
}

// newPartition computes the bins for strategy over the canonically ordered
// samples.
func newPartition(samples []sample, binCount int, strategy model.BinStrategy) partition {
	if strategy == model.EqualCount {
		return partition{
			edges:          equalCountEdges(samples, binCount),
			upperInclusive: true,
		}
	}
	return partition{edges: equalWidthEdges(binCount)}
}

// binCount returns the number of bins.
func (p partition) binCount() int {
	return len(p.edges) - 1
}

// index returns the bin holding confidence c, which must lie in [0,1].
func (p partition) index(c float64) int {
	k := p.binCount()
	if p.upperInclusive {
		return sort.Search(k-1, func(i int) bool { return c <= p.edges[i+1] })
	}

	// floor(c*k) is the right answer up to rounding; the loops settle values
	// sitting next to an edge against the edges themselves.
	i := int(c * float64(k))
	if i >= k {
		i = k - 1
	}
	for i > 0 && c < p.edges[i] {
		i--
	}
	for i < k-1 && c >= p.edges[i+1] {
		i++
	}
	return i
}

// equalWidthEdges returns k+1 edges i/k. The last edge is exactly 1.
func equalWidthEdges(k int) []float64 {
	edges := make([]float64, k+1)
	for i := range edges {
		edges[i] = float64(i) / float64(k)
	}
	return edges
}

// equalCountEdges returns k+1 strictly increasing edges from 0 to 1 such that
// bins hold as close to len(samples)/k samples as the data allows.
//
// Bin i nominally ends at rank floor((i+1)*n/k). Samples equal to the last
// sample of a bin are pulled into that bin, so ties go to the lower index and
// the following bin may come out smaller or empty. Zeros always fall in the
// first bin and ones in the last, since only those bins include 0 and 1.
func equalCountEdges(samples []sample, k int) []float64 {
	n := len(samples)
	if n == 0 {
		return equalWidthEdges(k)
	}

	below := settleBoundaries(samples, boundaryRanks(samples, k))

	edges := make([]float64, k+1)
	edges[k] = 1

	// Boundaries sharing the same number of samples below them sit in the
	// same gap between two neighbouring sample values; spread them across it.
	for b := 1; b < k; {
		p := below[b-1]
		m := 1
		for b+m < k && below[b+m-1] == p {
			m++
		}
		placeEdges(edges[b:b+m], gapOf(samples, p))
		b += m
	}
	return edges
}

// boundaryRanks returns, for each of the k-1 inner boundaries, the number of
// samples below it.
func boundaryRanks(samples []sample, k int) []int {
	n := len(samples)
	ranks := make([]int, k-1)
	pos := 0
	for i := range ranks {
		end := max((i+1)*n/k, pos)
		if i == 0 && end == 0 && samples[0].confidence == 0 {
			end = 1
		}
		if end > pos {
			cut := samples[end-1].confidence
			if cut >= 1 {
				end = max(firstAtLeast(samples, 1), pos)
			} else {
				end = firstAbove(samples, cut)
			}
		}
		ranks[i] = end
		pos = end
	}
	return ranks
}

// gap is the range [lo, hi) an edge may take so that it separates the samples
// below it from those above. When lo is 0 the edge must also exceed 0.
type gap struct {
	lo, hi float64
}

// gapOf returns the gap for a boundary with p samples below it.
func gapOf(samples []sample, p int) gap {
	g := gap{lo: 0, hi: 1}
	if p > 0 {
		g.lo = samples[p-1].confidence
	}
	if p < len(samples) {
		g.hi = samples[p].confidence
	}
	return g
}

// room returns how many distinct edges fit in the gap.
func (g gap) room() uint64 {
	if g.hi <= g.lo {
		return 0
	}
	r := math.Float64bits(g.hi) - math.Float64bits(g.lo)
	if g.lo == 0 {
		r--
	}
	return r
}

// settleBoundaries moves boundaries out of gaps too narrow to hold them all.
//
// Several boundaries in one gap only add empty bins, and an empty bin can sit
// in any gap that already holds a boundary, or before the first or after the
// last sample, without changing which samples share a bin. The surplus goes
// to the candidate gap with the most room, lowest rank first on ties.
func settleBoundaries(samples []sample, ranks []int) []int {
	n := len(samples)
	counts := make(map[int]uint64, len(ranks)+2)
	for _, p := range ranks {
		counts[p]++
	}

	var surplus uint64
	for p, c := range counts {
		if r := gapOf(samples, p).room(); c > r {
			counts[p] = r
			surplus += c - r
		}
	}
	if surplus == 0 {
		return ranks
	}

	candidates := make([]int, 0, len(counts)+2)
	for p := range counts {
		candidates = append(candidates, p)
	}
	for _, p := range []int{0, n} {
		if _, ok := counts[p]; !ok {
			candidates = append(candidates, p)
		}
	}
	slices.Sort(candidates)

	widest := func(ps []int) (int, bool) {
		best, bestSpare := -1, uint64(0)
		for _, p := range ps {
			if spare := gapOf(samples, p).room() - counts[p]; spare > bestSpare {
				best, bestSpare = p, spare
			}
		}
		return best, best >= 0
	}

	var all []int
	for ; surplus > 0; surplus-- {
		p, ok := widest(candidates)
		if !ok {
			// Splitting a populated bin is the last resort.
			if all == nil {
				all = make([]int, n+1)
				for i := range all {
					all[i] = i
				}
			}
			if p, ok = widest(all); !ok {
				break
			}
		}
		counts[p]++
	}

	keys := make([]int, 0, len(counts))
	for p := range counts {
		keys = append(keys, p)
	}
	slices.Sort(keys)

	settled := make([]int, 0, len(ranks))
	for _, p := range keys {
		for c := counts[p]; c > 0; c-- {
			settled = append(settled, p)
		}
	}
	return settled
}

// placeEdges fills dst with strictly increasing values inside g, which must
// have room for len(dst) edges. The first edge sits on the sample below the
// gap when there is one, so a bin's upper bound is its largest sample.
func placeEdges(dst []float64, g gap) {
	m := len(dst)
	hiBits := math.Float64bits(g.hi)
	next := math.Float64bits(g.lo)
	if g.lo == 0 {
		next++
	}
	for t := range dst {
		var e float64
		if g.lo > 0 {
			e = g.lo + (g.hi-g.lo)*float64(t)/float64(m)
		} else {
			e = g.hi * float64(t+1) / float64(m+1)
		}
		bits := min(max(math.Float64bits(e), next), hiBits-uint64(m-t))
		dst[t] = math.Float64frombits(bits)
		next = bits + 1
	}
}

// firstAbove returns the index of the first sample with confidence > v.
func firstAbove(samples []sample, v float64) int {
	return sort.Search(len(samples), func(i int) bool { return samples[i].confidence > v })
}

// firstAtLeast returns the index of the first sample with confidence >= v.
func firstAtLeast(samples []sample, v float64) int {
	return sort.Search(len(samples), func(i int) bool { return samples[i].confidence >= v })
}
