package adws

import (
	"math/rand"

	"github.com/lattice-hpc/adws/flipper"
	"github.com/lattice-hpc/adws/wsqueue"
)

// Steal starts from this worker's dtree bottom hint, finds the topmost
// dominant ancestor, and picks a uniform random target rank within its
// (boundary-adjusted) [beginRank, endRank] range. A range collapsed to a
// single rank has nothing to steal and bails immediately. Otherwise it
// tries up to AdwsMaxDtreeReuse attempts against the chosen target:
// the migration deque only when target isn't beginRank (beginRank's
// migration deque holds work this worker can already reach directly),
// the primary deque only when target isn't endRank or the range sits at
// an end boundary (an end rank not at a boundary owns none of the range
// past its fractional edge) — both filtered by tg_version.match against
// the dominant node's own version — checking this worker's own
// cross-worker mailbox between attempts, since a cross-worker task arriving there
// always outranks a steal. Returns whether it found and ran something.
func (w *Worker) Steal() bool {
	bottom := w.DtreeBottom()
	if bottom.Depth < 0 {
		return false
	}

	topmost, ok := w.dt.GetTopmostDominant(bottom)
	if !ok {
		return false
	}
	node := w.dt.Node(topmost)

	atEndBoundary := node.DRange.IsAtEndBoundary()
	beginRank := node.DRange.BeginRank()
	endRank := node.DRange.EndRank()
	if atEndBoundary {
		endRank--
	}
	if beginRank == endRank {
		return false
	}

	for attempt := 0; attempt < w.opts.AdwsMaxDtreeReuse; attempt++ {
		target := beginRank + rand.Intn(endRank-beginRank+1)
		tw := w.group.Worker(target)

		if target != beginRank {
			if e, ok := stealFrom(tw.migration, w.opts.AdwsMaxDepth, true, node.TgVersion, topmost.Depth); ok {
				w.ExecuteMigratedTask(e)
				return true
			}
		}
		if target != endRank || atEndBoundary {
			if e, ok := stealFrom(tw.primary, w.opts.AdwsMaxDepth, false, node.TgVersion, topmost.Depth); ok {
				w.resumeEntry(e)
				return true
			}
		}

		if e, ok := w.group.crossWorkerBoxes.Of(w.rank).TryPop(); ok {
			w.ExecuteCrossWorkerTask(e)
			return true
		}
	}
	return false
}

// stealFrom scans d's non-empty levels in the given direction and tries a
// thief-side steal at the first one found, filtering by tg_version.match
// against want at matchDepth.
func stealFrom(d *wsqueue.Deque[taskEntry], maxDepth int, shallowFirst bool, want flipper.Flipper, matchDepth int) (wsqueue.Entry[taskEntry], bool) {
	var found wsqueue.Entry[taskEntry]
	stole := false
	d.ForEachNonemptyQueue(0, maxDepth, shallowFirst, func(depth int) bool {
		e, ok := d.TrySteal(depth, want, matchDepth)
		if !ok {
			return false
		}
		found = e
		stole = true
		return true
	})
	return found, stole
}
