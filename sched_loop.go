package adws

import (
	"runtime"
	"unsafe"

	"github.com/lattice-hpc/adws/callstack"
	"github.com/lattice-hpc/adws/topology"
	"github.com/lattice-hpc/adws/wsqueue"
)

// SchedLoop runs w's scheduler loop on the calling goroutine until cond
// returns true and the collective ibarrier-guarded termination protocol
// agrees. cb, if non-nil, is invoked once per iteration after the other
// scheduling steps — the sched_loop_callback hook; RootExec passes nil.
//
// Each iteration: an MPI-progress tick, a termination check, then in
// priority order — cross-worker mailbox, primary deque (deep-to-shallow),
// migration deque (shallow-to-deep), steal() — the first of which finds
// something runs it and the loop restarts; if nothing was found this
// iteration, it yields the goroutine before trying again, since this
// rendition's workers are cooperative in spirit but not in the Go runtime
// sense: "worker concurrency is cooperative" describes a single physical
// stack per worker, which this binding does not have.
func SchedLoop(w *Worker, cond func() bool, cb func()) {
	var exitBarrier topology.BarrierHandle

	for {
		if w.opts.SchedLoopMakeMPIProgress {
			w.topo.Progress()
		}

		if exitBarrier == nil {
			if cond() {
				exitBarrier = w.topo.IBarrier()
			}
		} else if exitBarrier.Test() {
			return
		}

		did := w.schedLoopStep()

		if cb != nil {
			cb()
		}

		if !did {
			runtime.Gosched()
		}
	}
}

// schedLoopStep runs sched_loop steps 3-6 once, returning whether any of
// them found work to do.
func (w *Worker) schedLoopStep() bool {
	if e, ok := w.group.crossWorkerBoxes.Of(w.rank).TryPop(); ok {
		w.ExecuteCrossWorkerTask(e)
		return true
	}
	if e, _, ok := w.primary.PopMostRecent(w.opts.AdwsMaxDepth); ok {
		w.resumeEntry(e)
		return true
	}
	if e, _, ok := w.migration.PopMostRecent(w.opts.AdwsMaxDepth); ok {
		w.ExecuteMigratedTask(e)
		return true
	}
	if w.opts.AdwsEnableSteal {
		return w.Steal()
	}
	return false
}

// resumeEntry dispatches one deque entry: an evacuated continuation is
// resumed (a non-blocking wake-up of whichever goroutine parked it, per
// callstack's Suspend/Resume contract); a fresh task runs synchronously on
// the calling goroutine, since its tls.Migrated already routes any nested
// work-first fork to the right deque.
func (w *Worker) resumeEntry(e wsqueue.Entry[taskEntry]) {
	if e.Value.resume != nil {
		e.Value.resume.Resume()
		return
	}
	if e.Value.task != nil {
		e.Value.task()
	}
}

// ExecuteCrossWorkerTask runs one entry popped from this worker's own
// cross-worker mailbox (execute_cross_worker_task): a dummy liveness
// probe is acknowledged by copying its dtree ancestor path and freeing
// the sender's handle so on_task_die's wait unblocks; an evacuated
// continuation (posted by
// TaskGroupEnd's migrateContinuation) is resumed; a fresh task (posted by
// Fork's continuation-passing branch for a cross-worker child range) runs
// directly.
func (w *Worker) ExecuteCrossWorkerTask(e taskEntry) {
	if e.dummy != nil {
		w.dt.CopyParents(e.dummy.nodeRef)
		w.group.allocFor(e.dummy.ack).Free(e.dummy.ack)
		return
	}
	if e.resume != nil {
		e.resume.Resume()
		return
	}
	if e.task != nil {
		e.task()
	}
}

// ExecuteMigratedTask runs one entry popped from this worker's migration
// deque: the entry is either a fresh task Fork's continuation-passing
// branch handed to this worker, or an evacuated continuation Poll pushed
// here because tls.Migrated was true when it was called.
func (w *Worker) ExecuteMigratedTask(e wsqueue.Entry[taskEntry]) {
	w.resumeEntry(e)
}

// Poll is the cooperative cross-worker-arrival check: if w's
// cross-worker mailbox already has something waiting, the calling
// continuation is evacuated onto its active deque (primary,
// or migration if tls.Migrated) and parked, so the scheduler loop's own
// deque draining (or a thief) picks it back up instead of letting the
// arrived task starve behind however long this call chain keeps running.
// A no-op if the mailbox is empty.
func Poll(w *Worker, tls *TLS) {
	if !w.group.crossWorkerBoxes.Of(w.rank).Arrived() {
		return
	}

	deque := w.activeDeque(tls)
	depth := pushDepth(tls.NodeRef.Depth)

	callstack.Suspend(func(p *callstack.Parked) {
		frameID := uintptr(unsafe.Pointer(p))
		deque.PushBottom(depth, wsqueue.Entry[taskEntry]{
			FrameID:        frameID,
			TgVersion:      tls.TgVersion,
			Evacuated:      true,
			IsContinuation: true,
			Value:          taskEntry{resume: p, tls: tls},
		})
		// Unlike Fork's work-first closure, nothing here calls p.Resume():
		// this goroutine stays parked until SchedLoop's own deque drain or
		// a thief finds the entry just pushed and resumes it.
	})
}

// EvacuateAll is the pre-shutdown pass that rewrites every still-on-stack
// deque entry into an evacuated one before a worker goes away, needed in
// the original because an on-stack frame is only valid
// while its owner's physical stack is alive. This rendition has no
// on-stack representation distinct from an evacuated one: every entry
// callstack.Suspend ever pushes already carries a resumable *Parked
// (heap-allocated, independent of any one goroutine's stack) from the
// moment it is created. EvacuateAll is therefore a documented no-op, kept
// so code written against the external interface compiles unchanged.
func EvacuateAll(w *Worker) {}
