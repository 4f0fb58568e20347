// Package allocator implements a remotable allocator: blocks are
// allocated locally by their home rank but may be freed one-sidedly by
// any rank, and a rank may poll whether a block it handed off has been
// remotely freed yet (used by on_task_die's dummy-task liveness wait).
//
// Grounded on framesupplier/internal/worker_slot.go's registry-plus-closed
// -flag idiom ("closed" there is this package's "freed").
package allocator

import (
	"sync"

	"github.com/google/uuid"
)

// Handle identifies a block home-allocated by one rank. It carries the
// home rank so Free can be routed without a further lookup, since any
// rank may free a block whose home is another rank.
type Handle struct {
	ID   uuid.UUID
	Home int
}

type block struct {
	value any
	freed bool
}

// Allocator is a per-process (per-rank, in this in-process binding)
// remotable allocator: Alloc is always called by the home rank; Free may
// be called by any rank holding the Handle.
type Allocator struct {
	home int

	mu     sync.Mutex
	blocks map[uuid.UUID]*block
}

// New creates an allocator whose home rank is homeRank. One Allocator
// exists per simulated rank; Free calls against handles homed elsewhere
// are routed to that rank's Allocator by the caller (the scheduler core
// keeps one Allocator per worker and dispatches on Handle.Home).
func New(homeRank int) *Allocator {
	return &Allocator{
		home:   homeRank,
		blocks: make(map[uuid.UUID]*block),
	}
}

// Alloc allocates a new block homed on this allocator, holding value (a
// ThreadState, a suspended continuation, or an evacuated frame blob,
// depending on caller).
func (a *Allocator) Alloc(value any) Handle {
	id := uuid.New()
	a.mu.Lock()
	a.blocks[id] = &block{value: value}
	a.mu.Unlock()
	return Handle{ID: id, Home: a.home}
}

// Load reads back the value stored at h. Panics as a resource-exhaustion
// fatal if h is unknown to this allocator — callers must route to the
// allocator whose Home matches h.Home.
func (a *Allocator) Load(h Handle) any {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.blocks[h.ID]
	if !ok {
		panic("allocator: load of unknown handle")
	}
	return b.value
}

// Free performs the one-sided deallocation: it marks the block freed
// (observable via IsRemotelyFreed from any rank) and releases the value
// for garbage collection, without requiring the caller to be the home
// rank.
func (a *Allocator) Free(h Handle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.blocks[h.ID]
	if !ok {
		return // already freed; Free is idempotent.
	}
	b.value = nil
	b.freed = true
}

// IsRemotelyFreed polls whether h has been freed. on_task_die spins on
// this to wait for dummy tasks to arrive and release their blocks; under
// contention this can spin-idle, and a barrier-based variant is a known
// follow-up.
func (a *Allocator) IsRemotelyFreed(h Handle) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.blocks[h.ID]
	return !ok || b.freed
}
