package adws_test

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lattice-hpc/adws"
)

// fib is a recursive two-task fork where fib(n-1) is spawned and
// fib(n-2) runs in the continuation. Its base case returns 1 (not n), so
// fib(10) lands on 89.
func fib(w *adws.Worker, tls *adws.TLS, n int) int {
	if n < 2 {
		return 1
	}
	th := adws.Fork(w, tls, 1, 1, func(childTLS *adws.TLS) int {
		return fib(w, childTLS, n-1)
	})
	b := fib(w, tls, n-2)
	a := adws.Join(w, tls, th)
	return a + b
}

// TestFibReturns89 runs fib(10) on a single rank: every child range Fork
// carves out of [0,1) is owned by rank 0, so every Fork takes the
// work-first path and, with no other rank to steal the continuation,
// every Join takes the serialized fast path — the same code path a
// real multi-rank deployment's local recursion within one rank's slice
// of the dtree would take.
func TestFibReturns89(t *testing.T) {
	g := adws.NewGroup(1)
	w := g.Worker(0)

	got := adws.RootExec(w, func(tls *adws.TLS) int {
		return fib(w, tls, 10)
	})

	assert.Equal(t, 89, got)
}

// TestCollExecBroadcastRunsOnEveryRank runs a coll_exec of a closure
// capturing x=42, initiated from rank 0 of a 4-rank group: it must
// return 42 to the initiator and run the closure exactly once on every
// rank.
func TestCollExecBroadcastRunsOnEveryRank(t *testing.T) {
	g := adws.NewGroup(4)
	w0 := g.Worker(0)

	var ran int32
	x := 42

	got := adws.CollExec(w0, func() int {
		atomic.AddInt32(&ran, 1)
		return x
	})

	assert.Equal(t, 42, got)
	assert.EqualValues(t, g.NRanks(), ran)
}
