package topology

import (
	"context"
	"sync"
	"sync/atomic"
)

// Local is an in-process Topology binding one goroutine-addressable rank
// per simulated worker. Every rank in the group shares a *group, so
// "one-sided" operations are ordinary memory accesses guarded by
// sync/atomic — see the package doc for why this stands in for a real MPI
// one-sided binding.
//
// Goroutine topology:
//   - Callers create one Local per simulated rank via NewGroup, then drive
//     each Local from its own goroutine (or OS thread via
//     runtime.LockOSThread, matching a real deployment's one-process,
//     one-worker binding).
//   - Barrier/IBarrier are safe to call concurrently from every rank's
//     goroutine; all other methods are single-caller (the owning rank)
//     except the windows, which take remote writes by design.
type Local struct {
	rank  int
	group *group
}

type group struct {
	nRanks int

	mu      sync.Mutex
	cond    *sync.Cond
	arrived map[int]bool
	epoch   int
}

// NewGroup creates nRanks Local topologies sharing one barrier epoch.
func NewGroup(nRanks int) []*Local {
	g := &group{
		nRanks:  nRanks,
		arrived: make(map[int]bool, nRanks),
	}
	g.cond = sync.NewCond(&g.mu)

	locals := make([]*Local, nRanks)
	for r := 0; r < nRanks; r++ {
		locals[r] = &Local{rank: r, group: g}
	}
	return locals
}

func (l *Local) Rank() int    { return l.rank }
func (l *Local) NRanks() int  { return l.group.nRanks }
func (l *Local) Progress()    {} // loopback RMA is synchronous; nothing to pump.

// Barrier blocks the calling rank until every rank in the group has called
// Barrier for the current epoch, or until ctx is done, in which case it
// returns ctx.Err().
func (l *Local) Barrier(ctx context.Context) error {
	g := l.group
	g.mu.Lock()
	defer g.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		g.mu.Lock()
		g.cond.Broadcast()
		g.mu.Unlock()
	})
	defer stop()

	epoch := g.epoch
	g.arrived[l.rank] = true

	if len(g.arrived) == g.nRanks {
		g.arrived = make(map[int]bool, g.nRanks)
		g.epoch++
		g.cond.Broadcast()
		return nil
	}

	for g.epoch == epoch {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		g.cond.Wait()
	}
	return nil
}

// IBarrier starts a non-blocking barrier for this rank and returns a
// handle whose Test reports completion.
func (l *Local) IBarrier() BarrierHandle {
	g := l.group
	g.mu.Lock()
	epoch := g.epoch
	g.arrived[l.rank] = true
	done := len(g.arrived) == g.nRanks
	if done {
		g.arrived = make(map[int]bool, g.nRanks)
		g.epoch++
		g.cond.Broadcast()
	}
	g.mu.Unlock()

	return &localBarrierHandle{group: g, epoch: epoch}
}

type localBarrierHandle struct {
	group *group
	epoch int
}

func (h *localBarrierHandle) Test() bool {
	h.group.mu.Lock()
	defer h.group.mu.Unlock()
	return h.group.epoch != h.epoch
}

// localInt32Window is the loopback Int32Window: one atomic int32 per rank.
type localInt32Window struct {
	slots []int32
}

// NewInt32Window allocates a collective window with one slot per rank,
// all initialized to zero (the "undetermined" dominant-flag encoding).
func NewInt32Window(nRanks int) Int32Window {
	return &localInt32Window{slots: make([]int32, nRanks)}
}

func (w *localInt32Window) Load(rank int) int32 {
	return atomic.LoadInt32(&w.slots[rank])
}

func (w *localInt32Window) Store(rank int, v int32) {
	atomic.StoreInt32(&w.slots[rank], v)
}

func (w *localInt32Window) CAS(rank int, old, new int32) bool {
	return atomic.CompareAndSwapInt32(&w.slots[rank], old, new)
}

func (w *localInt32Window) FAA(rank int, delta int32) int32 {
	return atomic.AddInt32(&w.slots[rank], delta) - delta
}
