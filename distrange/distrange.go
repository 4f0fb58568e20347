// Package distrange implements the distribution-range algebra that maps a
// subtree of the ADWS task graph onto a half-open interval of worker ranks.
//
// A DistRange is a real-valued interval [Begin, End) carved out of [0, P)
// where P is the number of workers. Its integer parts name the rank that
// owns the left edge and the rank one past the right edge; splitting a
// range by a pair of work-hint ratios produces two contiguous sub-ranges
// whose ranks partition the parent's rank interval.
package distrange

import "math"

// epsilon is the fixed nudge applied when a split point would land exactly
// on the parent's End boundary, so the "rest" child is never degenerate.
//
// This is a fixed constant, not scaled to a range's width: very deep trees
// with narrow ranges can still collapse multiple ranges onto identical
// boundaries, a known and unguarded edge case rather than a bug to fix here.
const epsilon = 1e-5

// DistRange is a half-open interval [Begin, End) with 0 <= Begin <= End <= P.
type DistRange struct {
	Begin float64
	End   float64
}

// New returns the root distribution range spanning every rank [0, nRanks).
func New(nRanks int) DistRange {
	return DistRange{Begin: 0, End: float64(nRanks)}
}

// BeginRank is floor(Begin), the rank owning the left edge of the range.
func (r DistRange) BeginRank() int {
	return int(math.Floor(r.Begin))
}

// EndRank is floor(End): the rank owning the right edge of the range, or
// one past it for an at-end-boundary range.
func (r DistRange) EndRank() int {
	return int(math.Floor(r.End))
}

// Owner is the rank responsible for this range: its begin rank.
func (r DistRange) Owner() int {
	return r.BeginRank()
}

// IsCrossWorker reports whether BeginRank differs from EndRank. Because
// EndRank is floor(End), a range whose End sits exactly on the integer
// boundary after its begin rank counts as cross-worker even though it
// covers a single rank: [3, 4) is cross-worker, [3, 3.5) is not.
func (r DistRange) IsCrossWorker() bool {
	return r.BeginRank() != r.EndRank()
}

// Width is End - Begin.
func (r DistRange) Width() float64 {
	return r.End - r.Begin
}

// IsAtEndBoundary reports whether End lands exactly on an integer rank
// boundary (no fractional remainder owed to EndRank).
func (r DistRange) IsAtEndBoundary() bool {
	return r.End == math.Trunc(r.End)
}

// IsSufficientlySmall reports whether the range's width is below minSize,
// i.e. too small to usefully subdivide further.
func (r DistRange) IsSufficientlySmall(minSize float64) bool {
	return r.Width() < minSize
}

// MoveToEndBoundary snaps End down to floor(End) when the range is deemed
// too small to keep a fractional tail. It is a no-op when the range is
// already at an integer boundary.
func (r DistRange) MoveToEndBoundary() DistRange {
	if r.IsAtEndBoundary() {
		return r
	}
	return DistRange{Begin: r.Begin, End: math.Floor(r.End)}
}

// MakeNonCrossWorker collapses a range onto its Begin (End = Begin), so
// BeginRank equals EndRank and the range is no longer cross-worker while
// its Owner is unchanged; used by on_task_die to prevent re-entry on
// subsequent joins.
func (r DistRange) MakeNonCrossWorker() DistRange {
	return DistRange{Begin: r.Begin, End: r.Begin}
}

// Divide splits r into two contiguous sub-ranges at a point determined by
// the ratio r1/(r1+r2): the first ("rest") covers [Begin, split), the
// second ("new") covers [split, End). Both r1 and r2 must be positive;
// only their ratio matters — they are opaque work-hint weights, not a
// unit of work.
//
// If the computed split point coincides numerically with End, it is pulled
// back by epsilon (clamped to Begin) so the "rest" child is never empty —
// otherwise floating-point rounding could hand the degenerate suffix to a
// rank past P-1, which does not exist.
func (r DistRange) Divide(r1, r2 float64) (rest, newRange DistRange) {
	total := r1 + r2
	split := r.Begin + r.Width()*r1/total

	if split == r.End {
		split -= epsilon
		if split < r.Begin {
			split = r.Begin
		}
	}

	rest = DistRange{Begin: r.Begin, End: split}
	newRange = DistRange{Begin: split, End: r.End}
	return rest, newRange
}
