// Package adws implements the Almost Deterministic Work Stealing
// scheduler: a locality-aware, work-stealing runtime for nested fork-join
// task trees spread across a fixed set of worker processes.
//
// Design:
//   - Public facade (this package) over unexported per-worker state,
//     following framesupplier.go's Supplier-interface-over-internal-impl
//     shape.
//   - Every worker is represented by one *Worker and driven by whichever
//     goroutine currently "owns" it; suspension points (fork, join's race
//     path, task_group_end's migration path, sched_loop, poll) use the
//     callstack package's park-on-channel primitive in place of an
//     assembly-level context switch.
//   - Cross-worker communication is one-sided in spirit: the topology,
//     dtree, allocator and mailbox packages all model RMA-style
//     operations over shared memory, since this edition runs every rank
//     as a goroutine in one OS process rather than across a real MPI job.
package adws
