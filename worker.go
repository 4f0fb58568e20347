package adws

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/lattice-hpc/adws/allocator"
	"github.com/lattice-hpc/adws/callstack"
	"github.com/lattice-hpc/adws/dtree"
	"github.com/lattice-hpc/adws/mailbox"
	"github.com/lattice-hpc/adws/topology"
	"github.com/lattice-hpc/adws/wsqueue"
)

// taskEntry is the value carried by both work-stealing deques and the
// cross-worker mailbox: either an evacuated continuation waiting to be
// resumed, or a fresh heap-allocated task closure.
type taskEntry struct {
	resume *callstack.Parked // non-nil: an evacuated continuation
	task   func()            // non-nil when resume == nil: a fresh task
	tls    *TLS              // TLS to install before running/resuming

	// dummy, when non-nil, marks this entry as the liveness-probe
	// on_task_die posts to every rank in a cross-worker range's interior
	// so they can observe the dtree path for the first time. Dummy
	// entries travel through the same cross-worker mailbox as ordinary
	// tasks, distinguished by this field rather than a second mailbox.
	dummy *dummyMsg
}

// dummyMsg is the liveness-probe payload on_task_die posts.
type dummyMsg struct {
	nodeRef dtree.NodeRef
	ack     allocator.Handle
}

// Worker is one rank's view of the scheduler: its own dtree slice, its
// two work-stealing deques, its remotable allocator, and the mailboxes
// addressed to it. Every field that participates in cross-rank
// one-sided access (dtree, deques via Steal, allocator via Free) is safe
// for concurrent use by any rank's goroutine; TLS itself is never stored
// here (see tls.go).
type Worker struct {
	ID     uuid.UUID
	rank   int
	nRanks int
	opts   Options

	group *Group

	topo topology.Topology
	dt   *dtree.Dtree
	alloc *allocator.Allocator

	primary   *wsqueue.Deque[taskEntry]
	migration *wsqueue.Deque[taskEntry]

	// spmd is this worker's is_spmd() flag: 1 outside any RootExec call,
	// 0 for its entire duration (fn() plus the sched_loop that follows
	// it — every task sched_loop runs, local or migrated in, only
	// exists because some RootExec call is in flight).
	spmd int32 // atomic bool (0/1)

	// inRoot is 1 only while this worker's own root_exec fn is directly
	// executing (not while sched_loop is running some other task on its
	// behalf), the narrower "root thread" context CollExec also accepts
	// alongside spmd==1.
	inRoot int32 // atomic bool (0/1)

	// dtreeBottomMu guards dtreeBottom, this worker's best-effort record
	// of the last dtree node a task or continuation running on it
	// belonged to — the steal-target hint Steal reads as "the current
	// dtree position" (dtree_local_bottom_ref_ in the original). Set
	// opportunistically by RootExec, TaskGroupBegin, and the task closure
	// Fork's continuation-passing branch builds; a stale or racy
	// read only ever picks a worse steal target, never corrupts
	// anything, since dtree.Node itself is safe for concurrent
	// cross-rank reads.
	dtreeBottomMu sync.Mutex
	dtreeBottom   dtree.NodeRef

	logger  Logger
	onFatal func(error)
}

// IsSPMD reports whether this worker's goroutine is in the SPMD region:
// true between RootExec calls, false for the whole duration of one.
func (w *Worker) IsSPMD() bool { return atomic.LoadInt32(&w.spmd) != 0 }

// DtreeBottom returns this worker's last-recorded dtree position, the
// hint Steal starts its dominant-node search from. Its zero value,
// dtree.Root, has Depth -1 and causes Steal to no-op until something
// sets a real position.
func (w *Worker) DtreeBottom() dtree.NodeRef {
	w.dtreeBottomMu.Lock()
	defer w.dtreeBottomMu.Unlock()
	return w.dtreeBottom
}

func (w *Worker) setDtreeBottom(nr dtree.NodeRef) {
	w.dtreeBottomMu.Lock()
	w.dtreeBottom = nr
	w.dtreeBottomMu.Unlock()
}

// Group is a collective of nRanks Workers sharing one dtree, one set of
// topology windows, and one cross-worker mailbox registry — the
// in-process stand-in for an MPI job.
type Group struct {
	nRanks  int
	workers []*Worker
	opts    Options

	topo []*topology.Local

	crossWorkerBoxes *mailbox.Registry[taskEntry]

	collBarrier []*topology.Local
	collLines   []chan collMsg
}

// NewGroup builds a group of nRanks workers, wiring the shared dtree
// windows, topology loopback, and mailbox registries every rank needs to
// address its peers.
func NewGroup(nRanks int, opts ...Option) *Group {
	if nRanks < 1 {
		panic("adws: NewGroup requires at least one rank")
	}
	o := NewOptions(opts...)

	nodes, flags := dtree.NewWindows(nRanks, o.AdwsMaxDepth)
	topoGroup := topology.NewGroup(nRanks)
	collBarrier := topology.NewGroup(nRanks)

	g := &Group{
		nRanks:           nRanks,
		opts:             o,
		topo:             topoGroup,
		crossWorkerBoxes: mailbox.NewRegistry[taskEntry](nRanks),
		collBarrier:      collBarrier,
		collLines:        make([]chan collMsg, nRanks),
	}

	g.workers = make([]*Worker, nRanks)
	for r := 0; r < nRanks; r++ {
		w := &Worker{
			ID:        uuid.New(),
			rank:      r,
			nRanks:    nRanks,
			opts:      o,
			group:     g,
			topo:      topoGroup[r],
			dt:        dtree.New(r, nRanks, o.AdwsMaxDepth, nodes, flags),
			alloc:     allocator.New(r),
			primary:   wsqueue.New[taskEntry](o.AdwsMaxDepth, false),
			migration: wsqueue.New[taskEntry](o.AdwsMaxDepth, true),
			logger:    o.logger,
			onFatal:   o.onFatal,
		}
		w.spmd = 1
		w.dtreeBottom = dtree.Root
		if o.AdwsWSQueueCapacity > 0 {
			w.primary.SetCapacity(o.AdwsWSQueueCapacity)
			w.migration.SetCapacity(o.AdwsWSQueueCapacity)
		}
		g.workers[r] = w
		g.collLines[r] = make(chan collMsg, 1)
	}

	for r := 0; r < nRanks; r++ {
		go g.workers[r].collDaemon(g)
	}

	return g
}

// NRanks reports the group's fixed rank count.
func (g *Group) NRanks() int { return g.nRanks }

// Worker returns the Worker object for rank.
func (g *Group) Worker(rank int) *Worker { return g.workers[rank] }

// Rank reports this worker's rank.
func (w *Worker) Rank() int { return w.rank }

// NRanks reports the group's fixed rank count.
func (w *Worker) NRanks() int { return w.nRanks }

// Fini tears the group down. It requires every worker's deques and
// mailboxes to be empty; returns ErrOutstandingThreads otherwise.
func (g *Group) Fini() error {
	for _, w := range g.workers {
		for d := 0; d < w.opts.AdwsMaxDepth; d++ {
			if _, ok := w.primary.Top(d); ok {
				return ErrOutstandingThreads
			}
			if _, ok := w.migration.Top(d); ok {
				return ErrOutstandingThreads
			}
		}
		if g.crossWorkerBoxes.Of(w.rank).Arrived() {
			return ErrOutstandingThreads
		}
	}
	return nil
}

// barrier is a small helper around a *topology.Local collective used by
// coll_exec.
func barrier(t *topology.Local) {
	_ = t.Barrier(context.Background())
}
