package callstack

import "sync/atomic"

// ThreadState is the handoff block a fork allocates on the remotable
// allocator to carry a forked task's return value and the join race's
// resume_flag. It is created by the forking worker and freed by the
// joining worker once the race is decided.
type ThreadState[T any] struct {
	Retval     T
	resumeFlag int32

	// Suspended holds the joiner's parked continuation. Join sets it before
	// its own FetchAdd on resume_flag; when the joiner arrived first, the
	// child's later FetchAdd observes 1 and resumes it.
	Suspended *Parked
}

// NewThreadState allocates a zero-valued ThreadState with resume_flag 0.
func NewThreadState[T any]() *ThreadState[T] {
	return &ThreadState[T]{}
}

// FetchAddResumeFlag adds delta to resume_flag and returns the value
// observed *before* the add, the primitive join's race and the child's
// completion signal both rely on: the worker that FAA-returned 0 is the
// unique owner of the resumption.
func (ts *ThreadState[T]) FetchAddResumeFlag(delta int32) int32 {
	return atomic.AddInt32(&ts.resumeFlag, delta) - delta
}

// LoadResumeFlag reads resume_flag without modifying it.
func (ts *ThreadState[T]) LoadResumeFlag() int32 {
	return atomic.LoadInt32(&ts.resumeFlag)
}
