package adws

import "sync/atomic"

// collMsg is one coll_exec broadcast in flight: the rank that initiated
// it (the shifted-rank arithmetic's origin) and the callable to run on
// every rank it reaches.
type collMsg struct {
	beginRank int
	run       func(rank int)
}

// nextPow2 returns the smallest power of two >= n (n >= 1), the tree
// width coll_exec's dissemination pattern is built over: i = next_pow2(P),
// P/2, ..., 2.
func nextPow2(n int) int {
	p := 1
	for p < n {
		p *= 2
	}
	return p
}

// disseminate forwards msg from rank to its children in the power-of-two
// binary dissemination tree rooted at msg.beginRank: rank r at shifted
// position p forwards to p+i/2 for i = next_pow2(P), P/2, ..., 2. Every
// rank runs this same loop — for the root all of
// these checks pass (0 mod anything is 0), so the root fans out directly
// to every level; for any other rank only the levels at or below the one
// it was itself reached at pass, so the binomial shape falls out of the
// arithmetic without needing to track which level a rank was forwarded
// at.
func (g *Group) disseminate(rank int, msg collMsg) {
	shifted := ((rank-msg.beginRank)%g.nRanks + g.nRanks) % g.nRanks
	for i := nextPow2(g.nRanks); i >= 2; i /= 2 {
		if shifted%i != 0 {
			continue
		}
		peer := shifted + i/2
		if peer >= g.nRanks {
			continue
		}
		target := (peer + msg.beginRank) % g.nRanks
		g.collLines[target] <- msg
	}
}

// collDaemon is the persistent per-rank goroutine NewGroup starts for
// every worker: it waits to be reached by someone else's CollExec call,
// forwards the broadcast onward through its own subtree, then runs the
// same two-barrier protocol as the initiator — two barriers bracket the
// execution so that (a) every rank has received the task before any rank
// begins executing it, and (b) no rank deallocates before all have
// finished.
func (w *Worker) collDaemon(g *Group) {
	for msg := range g.collLines[w.rank] {
		g.disseminate(w.rank, msg)
		barrier(g.collBarrier[w.rank])
		msg.run(w.rank)
		barrier(g.collBarrier[w.rank])
	}
}

// CollExec is coll_exec: a broadcast callable from the SPMD region or
// the root thread. fn runs on every rank; only the initiating rank's
// call returns fn's value — the invariant being that the initiating
// rank's returned value equals fn() evaluated in the initiator's
// environment.
//
// Every rank's fn call runs the same closure object the initiator built,
// sharing whatever it captures by reference — a real multi-process
// deployment would instead replicate the captured environment to each
// rank's own address space, but this in-process loopback binding shares
// memory by construction, the same simplification RootExec's redundant
// per-rank execution already relies on.
func CollExec[T any](w *Worker, fn func() T) T {
	if !w.IsSPMD() && atomic.LoadInt32(&w.inRoot) == 0 {
		w.fatalErr("%w: coll_exec called outside the SPMD region or the root thread", ErrNotSPMD)
		var zero T
		return zero
	}

	g := w.group
	rank := w.rank
	var result T

	msg := collMsg{
		beginRank: rank,
		run: func(r int) {
			v := fn()
			if r == rank {
				result = v
			}
		},
	}

	g.disseminate(rank, msg)
	barrier(g.collBarrier[rank])
	msg.run(rank)
	barrier(g.collBarrier[rank])

	return result
}
