package adws

import (
	"sync/atomic"

	"github.com/lattice-hpc/adws/callstack"
)

// RootExec is root_exec: it builds the root TLS (drange=[0,nRanks),
// dtree_node_ref=Root), runs fn on it, and only returns once this
// worker's scheduler loop has serviced every steal and migration
// targeting it and agreed, via a collective non-blocking barrier, that
// every rank in the group has also finished. Only SPMD context may call
// it; nothing currently enforces this since nothing in this rendition
// can call RootExec except from SPMD in the first place — root_exec is
// not itself reachable from inside a forked or migrated task's call
// chain, which never has a *Worker handle of its own root context to
// call it again with.
//
// A collective caller (e.g. one goroutine per simulated rank) must call
// RootExec on every worker in the group with an equivalent fn for the
// group to make progress and terminate: every rank must call with
// identical fn/args, and every rank returns — RootExec itself is
// single-worker, mirroring how a real SPMD program's root_exec call is
// made independently by each rank's own process.
func RootExec[T any](w *Worker, fn func(tls *TLS) T) T {
	atomic.StoreInt32(&w.spmd, 0)
	defer atomic.StoreInt32(&w.spmd, 1)

	tls := RootTLS(w.nRanks)
	ts := callstack.NewThreadState[T]()

	callstack.Suspend(func(p *callstack.Parked) {
		atomic.StoreInt32(&w.inRoot, 1)
		w.setDtreeBottom(tls.NodeRef)
		retval := fn(tls)
		atomic.StoreInt32(&w.inRoot, 0)

		w.onTaskDie(tls)
		ts.Retval = retval
		ts.FetchAddResumeFlag(1)
		p.Resume()
	})

	SchedLoop(w, func() bool { return ts.LoadResumeFlag() >= 1 }, nil)
	return ts.Retval
}
