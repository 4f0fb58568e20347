// Package mailbox implements a one-slot, remote-writable mailbox: a
// single-slot queue written one-sidedly by a remote worker, whose
// Arrived is a lower bound and whose TryPop may return nothing even when
// a concurrent Post is in flight ("spuriously safe").
//
// Directly adapted from framesupplier/internal/inbox.go and worker_slot.go
// (single-slot buffer, overwrite-on-full, drop counter), changed from
// blocking sync.Cond consume to non-blocking TryPop: ADWS's sched_loop and
// poll() drain mailboxes as one step of a larger cooperative loop and must
// never block waiting on one.
package mailbox

import "sync/atomic"

// Mailbox is a single-slot, multi-producer, single-consumer mailbox of T.
// Safe for concurrent Post from any number of goroutines; TryPop is meant
// to be called only by the owning worker (single producer per recipient
// in practice, single consumer always).
type Mailbox[T any] struct {
	mu      chan struct{} // 1-buffered channel used as a non-blocking-aware mutex
	slot    *T
	dropped uint64
}

// New returns an empty mailbox.
func New[T any]() *Mailbox[T] {
	m := &Mailbox[T]{mu: make(chan struct{}, 1)}
	m.mu <- struct{}{}
	return m
}

func (m *Mailbox[T]) lock()   { <-m.mu }
func (m *Mailbox[T]) unlock() { m.mu <- struct{}{} }

// Post writes value into the mailbox's single slot. If the slot already
// holds an unconsumed value, it is overwritten and the drop counter is
// incremented: a bounded single slot must do *something* when the
// consumer falls behind, and overwriting the older, stale task matches
// ADWS's general bias toward recency over completeness while keeping
// Post non-blocking and one-sided.
func (m *Mailbox[T]) Post(value T) {
	m.lock()
	if m.slot != nil {
		atomic.AddUint64(&m.dropped, 1)
	}
	v := value
	m.slot = &v
	m.unlock()
}

// Arrived is a lower-bound predicate: a false result means the mailbox was
// empty at some recent instant, but a concurrent Post may have landed
// since.
func (m *Mailbox[T]) Arrived() bool {
	m.lock()
	defer m.unlock()
	return m.slot != nil
}

// TryPop removes and returns the slot's value if present. It is safe to
// spuriously return (zero, false) even when a Post is concurrently in
// flight; it never blocks.
func (m *Mailbox[T]) TryPop() (T, bool) {
	m.lock()
	defer m.unlock()
	if m.slot == nil {
		var zero T
		return zero, false
	}
	v := *m.slot
	m.slot = nil
	return v, true
}

// Dropped reports how many Post calls overwrote an unconsumed value.
func (m *Mailbox[T]) Dropped() uint64 {
	return atomic.LoadUint64(&m.dropped)
}

// Registry is nRanks mailboxes of T, one per rank, the shape the
// cross-worker mailbox needs.
type Registry[T any] struct {
	boxes []*Mailbox[T]
}

// NewRegistry allocates one mailbox per rank.
func NewRegistry[T any](nRanks int) *Registry[T] {
	boxes := make([]*Mailbox[T], nRanks)
	for i := range boxes {
		boxes[i] = New[T]()
	}
	return &Registry[T]{boxes: boxes}
}

// PostTo performs the one-sided write into rank's mailbox.
func (r *Registry[T]) PostTo(rank int, value T) {
	r.boxes[rank].Post(value)
}

// Of returns rank's own mailbox, for local Arrived/TryPop calls.
func (r *Registry[T]) Of(rank int) *Mailbox[T] {
	return r.boxes[rank]
}
