// Package wsqueue implements the two multi-level work-stealing deques
// ADWS keeps per worker: the primary deque (work-first continuations) and
// the migration deque (migratable, continuation-passing tasks), each
// indexed by dtree depth.
//
// Grounded on the Chase-Lev deque shape (rutvijjoshi26-parallel-compressor-go
// /wsdeque.go, Tahsin716-flock/chase_lev_deque.go) for the owner-LIFO /
// thief-FIFO discipline, adapted to a mutex-TryLock-guarded level instead
// of a lock-free ring, and to a per-dtree-depth array of such levels
// instead of one flat deque. The per-level stats idiom (atomic counters,
// snapshot-then-range) follows framebus/internal/bus/bus.go.
package wsqueue

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/lattice-hpc/adws/flipper"
)

// Entry is one deque slot. FrameID identifies the continuation or task
// this entry represents: an opaque identity, since this binding represents
// frames as goroutine-parked continuations rather than raw stack addresses
// (see callstack package). Evacuated reports whether the frame has already
// been evacuated to the remotable allocator (a nil evac pointer means the
// frame is still on the owner's stack). IsContinuation distinguishes, in
// the migration deque only, an evacuated continuation from a brand-new
// heap-allocated callable task.
type Entry[T any] struct {
	FrameID        uintptr
	TgVersion      flipper.Flipper
	Evacuated      bool
	IsContinuation bool
	Value          T
}

type level[T any] struct {
	mu    sync.Mutex
	items []Entry[T]

	pushes uint64
	steals uint64
}

// Deque is one worker's multi-level work-stealing deque. shallowFirst
// selects the default scan direction PopMostRecent and ForEachNonemptyQueue
// use when no explicit direction is requested: false for the primary
// deque (deep-to-shallow, most-recent-first), true for the migration
// deque (shallow-to-deep, prefer larger granularities).
type Deque[T any] struct {
	levels       []*level[T]
	shallowFirst bool
	capacity     int // 0 = unbounded
}

// SetCapacity bounds every level at capacity entries; a PushBottom or Pass
// that would exceed it panics as a resource-exhaustion fatal error.
// capacity <= 0 means unbounded.
func (d *Deque[T]) SetCapacity(capacity int) {
	d.capacity = capacity
}

// New allocates a deque with maxDepth levels.
func New[T any](maxDepth int, shallowFirst bool) *Deque[T] {
	levels := make([]*level[T], maxDepth)
	for i := range levels {
		levels[i] = &level[T]{}
	}
	return &Deque[T]{levels: levels, shallowFirst: shallowFirst}
}

func (d *Deque[T]) MaxDepth() int { return len(d.levels) }

// PushBottom is the owner-side push: append entry at depth's bottom
// (most-recent) end. Succeeds unless a capacity is set and the level is
// full, in which case it panics (see SetCapacity).
func (d *Deque[T]) PushBottom(depth int, e Entry[T]) {
	l := d.levels[depth]
	l.mu.Lock()
	if d.capacity > 0 && len(l.items) >= d.capacity {
		l.mu.Unlock()
		panic(fmt.Sprintf("wsqueue: capacity exhausted at depth %d (capacity=%d)", depth, d.capacity))
	}
	l.items = append(l.items, e)
	atomic.AddUint64(&l.pushes, 1)
	l.mu.Unlock()
}

// Pass is the remote push onto a (possibly remote) target's migration
// deque. In this in-process binding the "target rank" routing happens at
// the caller (each rank owns its own *Deque), so Pass is PushBottom under
// the name a one-sided remote push would carry; the indirection is kept
// as a distinct method so call sites read as a remote operation.
func (d *Deque[T]) Pass(depth int, e Entry[T]) {
	d.PushBottom(depth, e)
}

// PopBottom is the owner-side pop at a specific depth: remove and return
// the most-recently pushed entry, or ok=false if depth is empty.
func (d *Deque[T]) PopBottom(depth int) (Entry[T], bool) {
	l := d.levels[depth]
	l.mu.Lock()
	defer l.mu.Unlock()
	return popBottomLocked(l)
}

func popBottomLocked[T any](l *level[T]) (Entry[T], bool) {
	n := len(l.items)
	if n == 0 {
		var zero Entry[T]
		return zero, false
	}
	e := l.items[n-1]
	l.items = l.items[:n-1]
	return e, true
}

// Top peeks the most-recently-pushed entry at depth without removing it,
// used by fork's serialized fast path to test whether the forked
// continuation is still on top of the active deque.
func (d *Deque[T]) Top(depth int) (Entry[T], bool) {
	l := d.levels[depth]
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.items)
	if n == 0 {
		var zero Entry[T]
		return zero, false
	}
	return l.items[n-1], true
}

// PopMostRecent scans depths in this deque's default direction
// (shallowFirst) and pops the first non-empty depth it finds, returning
// the popped entry and the depth it came from.
func (d *Deque[T]) PopMostRecent(maxD int) (Entry[T], int, bool) {
	var found Entry[T]
	foundDepth := -1
	d.ForEachNonemptyQueue(0, maxD, d.shallowFirst, func(depth int) bool {
		l := d.levels[depth]
		l.mu.Lock()
		e, ok := popBottomLocked(l)
		l.mu.Unlock()
		if ok {
			found = e
			foundDepth = depth
			return true
		}
		return false
	})
	return found, foundDepth, foundDepth >= 0
}

// TrySteal attempts a thief-side steal at depth: a non-blocking try-lock
// followed by removing the oldest entry (the "top" of the Chase-Lev
// deque, opposite the owner's bottom), matching an entry's tg_version
// against want at matchDepth so a thief never picks up a task that has
// already been superseded by a newer task-group generation.
// Returns ok=false if the try-lock fails, the level is empty, or no entry
// matches.
func (d *Deque[T]) TrySteal(depth int, want flipper.Flipper, matchDepth int) (Entry[T], bool) {
	l := d.levels[depth]
	if !l.mu.TryLock() {
		return Entry[T]{}, false
	}
	defer l.mu.Unlock()

	if len(l.items) == 0 {
		return Entry[T]{}, false
	}
	top := l.items[0]
	if !top.TgVersion.Match(want, matchDepth) {
		return Entry[T]{}, false
	}
	l.items = l.items[1:]
	atomic.AddUint64(&l.steals, 1)
	return top, true
}

// ForEachNonemptyQueue scans depths [minD, maxD) in shallow-to-deep order
// (or deep-to-shallow if shallowFirst is false) and invokes fn once per
// non-empty depth, stopping as soon as fn returns true.
func (d *Deque[T]) ForEachNonemptyQueue(minD, maxD int, shallowFirst bool, fn func(depth int) bool) {
	if shallowFirst {
		for depth := minD; depth < maxD; depth++ {
			if d.isEmptyAt(depth) {
				continue
			}
			if fn(depth) {
				return
			}
		}
		return
	}
	for depth := maxD - 1; depth >= minD; depth-- {
		if d.isEmptyAt(depth) {
			continue
		}
		if fn(depth) {
			return
		}
	}
}

func (d *Deque[T]) isEmptyAt(depth int) bool {
	l := d.levels[depth]
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items) == 0
}

// ForEachEntry iterates a snapshot of every entry currently owned at
// depth, without removing any. EvacuateAll is a no-op in this binding and
// does not call it.
func (d *Deque[T]) ForEachEntry(depth int, fn func(Entry[T])) {
	l := d.levels[depth]
	l.mu.Lock()
	items := make([]Entry[T], len(l.items))
	copy(items, l.items)
	l.mu.Unlock()

	for _, e := range items {
		fn(e)
	}
}

// Stats is a snapshot of one level's lifetime push/steal counts, the
// telemetry idiom grounded on framesupplier/internal/stats.go.
type Stats struct {
	Depth  int
	Pushes uint64
	Steals uint64
}

// LevelStats returns a snapshot of every level's counters.
func (d *Deque[T]) LevelStats() []Stats {
	out := make([]Stats, len(d.levels))
	for i, l := range d.levels {
		out[i] = Stats{
			Depth:  i,
			Pushes: atomic.LoadUint64(&l.pushes),
			Steals: atomic.LoadUint64(&l.steals),
		}
	}
	return out
}
