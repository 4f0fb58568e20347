package adws

import (
	"github.com/lattice-hpc/adws/distrange"
	"github.com/lattice-hpc/adws/dtree"
	"github.com/lattice-hpc/adws/flipper"
)

// TLS is the thread-local state that, in the original, lives on the
// user stack of the currently running thread and is swapped during
// suspend/resume. This edition represents each logical thread of
// control (the root execution, each forked child, each migrated or
// stolen task) as its own goroutine, so TLS is carried as an explicit
// pointer threaded through Fork/Join/TaskGroupBegin/TaskGroupEnd calls
// rather than stored in worker-global state — the idiomatic-Go rendition
// of "per-thread" storage (compare context.Context, threaded explicitly
// rather than kept in a goroutine-local map).
type TLS struct {
	// DRange is the distribution range this thread of control is
	// currently responsible for.
	DRange distrange.DistRange

	// NodeRef is the dtree node this thread's current task group
	// belongs to; dtree.Root until the first TaskGroupBegin.
	NodeRef dtree.NodeRef

	// TgVersion is the task-group generation tag carried with forked
	// work so a thief can reject stale-generation entries.
	TgVersion flipper.Flipper

	// Undistributed is true from TaskGroupBegin until on_task_die
	// resolves this task group's cross-worker range into dummy-task
	// propagation.
	Undistributed bool

	// Migrated is true for a thread of control that arrived on this
	// worker via continuation-passing (cross-worker mailbox or migration
	// deque) rather than being spawned work-first on it. It is this
	// rendition's replacement for the original's scheduler-wide
	// use_primary_wsq_ flag: since a migrated task's own nested forks
	// run concurrently with whatever else this
	// worker is doing (goroutines, not a single physical stack), the
	// "which deque does a nested work-first fork land in" decision has
	// to travel with the task's TLS instead of living in worker-global
	// state, or two migrated tasks running at once on the same worker
	// would corrupt each other's flag.
	Migrated bool
}

// RootTLS returns the TLS a rank's root_exec execution starts with:
// drange = [0, nRanks), dtree_node_ref = Root.
func RootTLS(nRanks int) *TLS {
	return &TLS{
		DRange:  distrange.New(nRanks),
		NodeRef: dtree.Root,
	}
}

// Clone returns an independent copy of tls. Fork does not call it: it
// builds the child's TLS field by field from the parent's.
func (t *TLS) Clone() *TLS {
	c := *t
	return &c
}

// TaskGroupData is the snapshot TaskGroupBegin records and TaskGroupEnd
// restores from: the drange in effect before the group's forks began
// narrowing it, whether this group owns a dtree node, and (if so) that
// node's ref plus the parent ref to pop back to.
type TaskGroupData struct {
	DRange        distrange.DistRange
	OwnsDtreeNode bool
	GroupNodeRef  dtree.NodeRef // the node this task group appended, if any
	ParentNodeRef dtree.NodeRef // tls.NodeRef to restore at TaskGroupEnd
}
