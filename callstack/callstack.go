// Package callstack is ADWS's stand-in for a collective, uni-address
// stack reservation plus save-context/resume-context/call-on-stack
// assembly.
//
// Go already ships the moral equivalent of that subsystem — goroutines are
// cheap, cooperatively-park-able stacks the runtime grows and moves for
// you — so this package represents "suspend the current context and run a
// closure on the new top of stack" as parking the calling goroutine on a
// channel while a fresh goroutine runs the closure that is expected to
// arrange for the park to eventually be woken; suspend(fn) is the only
// place control can transfer to another task. This is the idiomatic-Go
// rendition of an assembly context switch, not an approximation of one.
package callstack

import "sync"

// Parked is a handle to a goroutine blocked inside Suspend, waiting to be
// woken. It is the Go-native analog of an evacuated continuation's
// resume handle (evac_ptr in the original).
type Parked struct {
	wake chan struct{}
	once sync.Once
}

// Suspend saves the calling goroutine's continuation (by parking it) and
// runs fn on a fresh goroutine, passing the Parked handle so fn can arrange
// for it to be resumed later — by pushing it onto a work-stealing queue,
// posting it to a mailbox, or (if nothing else needs to run first) calling
// Resume immediately. Suspend does not return until some caller, anywhere,
// calls Resume on the handle fn received.
func Suspend(fn func(p *Parked)) {
	p := &Parked{wake: make(chan struct{})}
	go fn(p)
	<-p.wake
}

// Resume wakes the parked goroutine, letting it continue past its Suspend
// call. Safe to call more than once; only the first call has effect,
// matching the scheduler's invariant that a given suspension is resumed
// exactly once.
func (p *Parked) Resume() {
	p.once.Do(func() { close(p.wake) })
}
