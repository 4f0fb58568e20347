// Package topology defines the rank group a scheduler runs over: a
// fixed-size set of ranks offering a progress/barrier primitive and
// one-sided (RMA-style) windows that any rank may read, write, CAS, or
// fetch-and-add on any other rank's slot.
//
// A real deployment binds this to MPI one-sided windows over a network.
// This module ships one concrete, in-process implementation (local.go)
// that represents ranks as goroutines sharing memory, sufficient to run
// and test the scheduler in a single OS process.
package topology

import "context"

// Topology is the process-wide view of the rank group: how many ranks
// there are, which one is "me", and the progress/barrier primitive the
// scheduler's termination protocol and sched_loop rely on.
type Topology interface {
	// Rank returns this process's rank in [0, NRanks).
	Rank() int

	// NRanks returns the fixed size of the rank group.
	NRanks() int

	// Progress drives any pending one-sided traffic forward. The
	// scheduler loop calls this once per iteration; the loopback
	// implementation treats all RMA ops as already complete and this is a
	// no-op, but the call site is kept so a networked implementation has
	// somewhere to pump completions.
	Progress()

	// Barrier blocks until every rank has called Barrier (or ctx is done).
	Barrier(ctx context.Context) error

	// IBarrier starts a non-blocking barrier and returns a handle whose
	// Test method reports completion without blocking, used by the
	// scheduler loop's termination protocol.
	IBarrier() BarrierHandle
}

// BarrierHandle is a non-blocking barrier in flight.
type BarrierHandle interface {
	// Test reports whether the barrier has completed. It never blocks.
	Test() bool
}

// Int32Window is a one-sided window of one int32 slot per rank, used for
// dtree dominant flags.
type Int32Window interface {
	// Load performs a local (or RMA, for a networked binding) read of
	// rank's slot.
	Load(rank int) int32

	// Store performs a one-sided write to rank's slot.
	Store(rank int, v int32)

	// CAS performs a one-sided compare-and-swap on rank's slot, returning
	// whether the swap took effect.
	CAS(rank int, old, new int32) bool

	// FAA performs a one-sided fetch-and-add on rank's slot, returning the
	// value observed before the add.
	FAA(rank int, delta int32) int32
}
