package callstack_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lattice-hpc/adws/callstack"
)

func TestSuspendBlocksUntilResumed(t *testing.T) {
	done := make(chan struct{})
	var resumed *callstack.Parked

	go func() {
		callstack.Suspend(func(p *callstack.Parked) {
			resumed = p
			p.Resume()
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Suspend did not return after Resume")
	}
	assert.NotNil(t, resumed)
}

func TestResumeIsIdempotent(t *testing.T) {
	waitForFn := make(chan *callstack.Parked, 1)
	go callstack.Suspend(func(p *callstack.Parked) { waitForFn <- p })
	p := <-waitForFn

	assert.NotPanics(t, func() {
		p.Resume()
		p.Resume()
	})
}

func TestThreadStateResumeFlagFAASemantics(t *testing.T) {
	ts := callstack.NewThreadState[int]()
	assert.Zero(t, ts.LoadResumeFlag())

	prev := ts.FetchAddResumeFlag(1)
	assert.EqualValues(t, 0, prev, "first FAA observes the pre-race value")
	assert.EqualValues(t, 1, ts.LoadResumeFlag())

	ts.Retval = 42
	assert.Equal(t, 42, ts.Retval)
}

func TestResumeFlagRaceHasUniqueWinner(t *testing.T) {
	ts := callstack.NewThreadState[int]()
	const n = 8
	prevs := make([]int32, n)
	done := make(chan struct{})
	for i := 0; i < n; i++ {
		i := i
		go func() {
			prevs[i] = ts.FetchAddResumeFlag(1)
			done <- struct{}{}
		}()
	}
	for i := 0; i < n; i++ {
		<-done
	}

	zeros := 0
	for _, p := range prevs {
		if p == 0 {
			zeros++
		}
	}
	assert.Equal(t, 1, zeros, "exactly one caller must observe the pre-increment value 0")
}
