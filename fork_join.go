package adws

import (
	"unsafe"

	"github.com/lattice-hpc/adws/allocator"
	"github.com/lattice-hpc/adws/callstack"
	"github.com/lattice-hpc/adws/distrange"
	"github.com/lattice-hpc/adws/wsqueue"
)

// Thread is the fork handle owning a ThreadState — `thread<T>` in the
// original. Join consumes it exactly once.
//
// Design: Serialized and RetvalSer carry the fast-path result with no
// allocator round trip at all — when serialized is true, join performs
// no RMA at all; ts is kept as a directly typed pointer rather than
// recovered via allocator.Load/any, since this in-process loopback
// binding never actually needs a type-erased remote fetch to reach it.
type Thread[T any] struct {
	w          *Worker
	handle     allocator.Handle
	ts         *callstack.ThreadState[T]
	serialized bool
	retvalSer  T
}

// pushDepth clamps a dtree node's depth to a valid wsqueue level index.
// dtree.Root has depth -1 (no task group has begun yet); forks issued
// before any TaskGroupBegin push their continuation at level 0, the only
// sensible degenerate case once root = -1 is taken into account.
func pushDepth(depth int) int {
	if depth < 0 {
		return 0
	}
	return depth
}

// activeDeque returns the deque a work-first continuation is pushed onto:
// the migration deque while tls.Migrated is true (i.e. while running a
// migrated task — the original's scheduler-wide use_primary_wsq_ flag,
// tracked per-TLS here instead of per-worker; see TLS.Migrated), the
// primary deque otherwise.
func (w *Worker) activeDeque(tls *TLS) *wsqueue.Deque[taskEntry] {
	if tls.Migrated {
		return w.migration
	}
	return w.primary
}

// computeChildRange implements fork's sub-range arithmetic: when the
// parent range is cross-worker, it is boundary-snapped if
// too small and then divided by the w_rest:w_new ratio; the parent
// (caller) keeps the "rest" half and the "new" half becomes the child's
// range and names its target rank. A non-cross-worker parent range is
// inherited unchanged and targets the local rank — but the local rank is
// not assumed to stay the owner: a non-cross-worker task can still be
// stolen later.
func computeChildRange(tls *TLS, myRank int, wNew, wRest, minDrangeSize float64) (child distrange.DistRange, target int) {
	if tls.DRange.IsCrossWorker() {
		dr := tls.DRange
		if dr.IsSufficientlySmall(minDrangeSize) {
			dr = dr.MoveToEndBoundary()
		}
		rest, newRange := dr.Divide(wRest, wNew)
		tls.DRange = rest
		return newRange, newRange.Owner()
	}
	return tls.DRange, myRank
}

// completeThreadState implements the non-serialized completion half of
// the fork/join race: the side whose FetchAdd observes the other party
// already having incremented (previous value 1)
// is responsible for waking whichever side evacuated and parked; the
// side that observes previous value 0 has arrived first and does nothing
// further; the eventual second arrival — whichever it is — performs the
// wake.
func completeThreadState[T any](ts *callstack.ThreadState[T], retval T) {
	ts.Retval = retval
	if prev := ts.FetchAddResumeFlag(1); prev == 1 {
		ts.Suspended.Resume()
	}
}

// Fork spawns a child task computing T. wNew and wRest are opaque
// work-hint weights; only their ratio matters. fn receives the child's
// own TLS, seeded from the caller's.
//
// If the child's target rank is the caller's own rank, Fork takes the
// work-first path: the caller's continuation is evacuated and pushed
// onto the active work-stealing deque, then fn runs immediately. If
// nothing stole the continuation by the time fn returns, this is the
// serialized fast path: Fork frees the ThreadState block it allocated
// and keeps the result in the Thread itself, so Join never reads the
// block. Otherwise the child's result is deposited into the
// ThreadState for Join to race against.
//
// If the target is a different rank, Fork takes the continuation-passing
// path: fn is packaged as a task and handed to the target (via its
// cross-worker mailbox if the child range is itself cross-worker,
// otherwise pushed directly onto its migration deque), and Fork returns
// immediately so the caller keeps running its own continuation.
func Fork[T any](w *Worker, tls *TLS, wNew, wRest float64, fn func(childTLS *TLS) T) *Thread[T] {
	childRange, target := computeChildRange(tls, w.rank, wNew, wRest, w.opts.AdwsMinDrangeSize)

	childTLS := &TLS{
		DRange:        childRange,
		NodeRef:       tls.NodeRef,
		TgVersion:     tls.TgVersion,
		Undistributed: true,
		Migrated:      tls.Migrated,
	}

	ts := callstack.NewThreadState[T]()
	th := &Thread[T]{w: w, ts: ts, handle: w.alloc.Alloc(ts)}

	if target == w.rank {
		depth := pushDepth(tls.NodeRef.Depth)
		deque := w.activeDeque(tls)

		callstack.Suspend(func(p *callstack.Parked) {
			frameID := uintptr(unsafe.Pointer(p))
			entry := wsqueue.Entry[taskEntry]{
				FrameID:        frameID,
				TgVersion:      tls.TgVersion,
				Evacuated:      true,
				IsContinuation: true,
				Value:          taskEntry{resume: p, tls: tls},
			}
			deque.PushBottom(depth, entry)

			retval := fn(childTLS)
			w.onTaskDie(childTLS)

			if top, ok := deque.Top(depth); ok && top.FrameID == frameID {
				// Conservative re-push guard: FrameID aliasing across
				// dtree-slot generations is possible in a real
				// uni-address deployment; this loopback binding mints a
				// fresh channel per Parked so aliasing cannot occur
				// here, but the identity check is kept exactly where
				// the original would re-check frame_base, so a future
				// uni-address-backed callstack implementation slots in
				// without changing this call site.
				deque.PopBottom(depth)
				w.alloc.Free(th.handle)
				th.serialized = true
				th.retvalSer = retval
				p.Resume()
				return
			}
			completeThreadState(ts, retval)
		})
		return th
	}

	// Continuation-passing: package fn as a task for target and return
	// to the caller's continuation without suspending. Migrated is forced
	// true regardless of the caller's own TLS.Migrated: relative to
	// target, this task is arriving by migration, full stop.
	childTLS.Migrated = true
	task := taskEntry{tls: childTLS}
	targetWorker := w.group.Worker(target)
	task.task = func() {
		targetWorker.setDtreeBottom(childTLS.NodeRef)
		if childTLS.DRange.IsCrossWorker() {
			targetWorker.dt.CopyParents(childTLS.NodeRef)
		}
		retval := fn(childTLS)
		targetWorker.onTaskDie(childTLS)
		completeThreadState(ts, retval)
	}

	depth := pushDepth(tls.NodeRef.Depth)
	entry := wsqueue.Entry[taskEntry]{TgVersion: tls.TgVersion, Value: task}
	if childTLS.DRange.IsCrossWorker() {
		w.group.crossWorkerBoxes.PostTo(target, task)
	} else {
		targetWorker.migration.Pass(depth, entry)
	}
	return th
}

// Join waits for th's child to complete and returns its result. It
// always runs on_task_die for the caller's own TLS first, relying on
// on_task_die's cross-worker guard to make repeated calls within one
// task idempotent.
func Join[T any](w *Worker, tls *TLS, th *Thread[T]) T {
	w.onTaskDie(tls)

	if th.serialized {
		return th.retvalSer
	}

	ts := th.ts
	if ts.LoadResumeFlag() >= 1 {
		retval := ts.Retval
		w.group.allocFor(th.handle).Free(th.handle)
		return retval
	}

	callstack.Suspend(func(p *callstack.Parked) {
		ts.Suspended = p
		if prev := ts.FetchAddResumeFlag(1); prev == 1 {
			// The child finished between our plain read above and this
			// FAA; it never saw ts.Suspended set, so we must wake
			// ourselves rather than wait for it.
			p.Resume()
		}
	})

	retval := ts.Retval
	w.group.allocFor(th.handle).Free(th.handle)
	return retval
}

// allocFor resolves the allocator that owns h, regardless of which rank
// is currently executing — the one-sided "free a block whose home is
// another rank" operation.
func (g *Group) allocFor(h allocator.Handle) *allocator.Allocator {
	return g.workers[h.Home].alloc
}
