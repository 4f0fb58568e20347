package adws

import (
	"time"

	"github.com/lattice-hpc/adws/allocator"
	"github.com/lattice-hpc/adws/callstack"
	"github.com/lattice-hpc/adws/dtree"
)

// TaskGroupBegin opens a new task group on tls. If the current range is
// cross-worker and there is room left in the dtree, it
// appends a new dtree node representing this group, points tls at it,
// and marks the range undistributed (no dummy tasks synthesized yet).
// The returned TaskGroupData must be passed to TaskGroupEnd to restore
// tls and retire the node.
func TaskGroupBegin(w *Worker, tls *TLS) TaskGroupData {
	tg := TaskGroupData{
		DRange:        tls.DRange,
		ParentNodeRef: tls.NodeRef,
	}
	if tls.DRange.IsCrossWorker() && tls.NodeRef.Depth+1 < w.opts.AdwsMaxDepth {
		tg.GroupNodeRef = w.dt.Append(tls.NodeRef, tls.DRange, tls.TgVersion)
		tg.OwnsDtreeNode = true
		tls.NodeRef = tg.GroupNodeRef
		tls.Undistributed = true
		w.setDtreeBottom(tg.GroupNodeRef)
	}
	return tg
}

// TaskGroupEnd closes the task group tg opened on tls: it runs
// on_task_die, restores tls.DRange to the range in effect when the
// group began, migrates the continuation to that range's owner if it is
// no longer the local rank, then — if this group owned a dtree node —
// retires it, pops tls back to the parent node, and flips tg_version at
// the retired depth so the next sibling group gets a distinct
// generation.
func TaskGroupEnd(w *Worker, tls *TLS, tg TaskGroupData) {
	w.onTaskDie(tls)
	tls.DRange = tg.DRange

	if tls.DRange.IsCrossWorker() && tls.DRange.Owner() != w.rank {
		w.migrateContinuation(tls)
	}

	if tg.OwnsDtreeNode {
		w.dt.SetDominant(tg.GroupNodeRef, false)
		tls.NodeRef = tg.ParentNodeRef
		tls.TgVersion = tls.TgVersion.Flip(tg.GroupNodeRef.Depth)
	}
}

// migrateContinuation evacuates the calling goroutine's continuation and
// hands it to drange.owner()'s cross-worker mailbox, parking until that
// rank's scheduler loop resumes it.
func (w *Worker) migrateContinuation(tls *TLS) {
	owner := tls.DRange.Owner()
	target := w.group.Worker(owner)
	callstack.Suspend(func(p *callstack.Parked) {
		target.group.crossWorkerBoxes.PostTo(owner, taskEntry{resume: p, tls: tls})
	})
}

// dummyPollInterval is the backoff between IsRemotelyFreed polls in
// on_task_die's liveness wait. The original spins without backoff; this
// edition adds a short sleep purely so the loopback binding doesn't pin
// a CPU core per waiting goroutine.
const dummyPollInterval = 50 * time.Microsecond

// onTaskDie runs the bookkeeping every task (and task-group) termination
// needs: if tls.DRange is still cross-worker, its
// dtree node is marked dominant; if the range was left undistributed and
// spans more than one rank, one dummy task per interior rank is posted
// so those ranks observe the dtree path for the first time via
// CopyParents, and on_task_die waits for each to be acknowledged before
// collapsing the range to non-cross-worker.
//
// If tls.DRange is already non-cross-worker (including after a prior
// on_task_die call within the same task, e.g. a second Join), this is a
// no-op — on_task_die is idempotent within one task's lifetime. A task
// whose range is cross-worker but that never went through
// TaskGroupBegin (tls.NodeRef is still the dtree.Root sentinel — plain
// Fork/Join without an enclosing task group) has no dtree node to mark
// dominant, so that step is skipped; the range still collapses to
// non-cross-worker below, same as a task-group member would.
func (w *Worker) onTaskDie(tls *TLS) {
	if !tls.DRange.IsCrossWorker() {
		return
	}

	if tls.NodeRef != dtree.Root {
		w.dt.SetDominant(tls.NodeRef, true)
	}

	if tls.Undistributed && tls.DRange.Width() > 1 {
		beginRank := tls.DRange.BeginRank()
		endRank := tls.DRange.EndRank()

		handles := make([]allocator.Handle, 0, endRank-beginRank-1)
		for r := beginRank + 1; r < endRank; r++ {
			h := w.alloc.Alloc(struct{}{})
			handles = append(handles, h)
			w.group.Worker(r).group.crossWorkerBoxes.PostTo(r, taskEntry{
				dummy: &dummyMsg{nodeRef: tls.NodeRef, ack: h},
			})
		}

		// TODO(dummy-barrier): spin-polling IsRemotelyFreed can spin-idle
		// under contention; an ibarrier scoped to this dtree node is the
		// noted follow-up once topology grows one.
		for _, h := range handles {
			for !w.alloc.IsRemotelyFreed(h) {
				time.Sleep(dummyPollInterval)
			}
		}
	}

	tls.DRange = tls.DRange.MakeNonCrossWorker()
	tls.Undistributed = false
}
