package topology_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-hpc/adws/topology"
)

func TestBarrierReleasesAllRanksTogether(t *testing.T) {
	const nRanks = 4
	ranks := topology.NewGroup(nRanks)

	var wg sync.WaitGroup
	results := make([]bool, nRanks)
	wg.Add(nRanks)
	for r := 0; r < nRanks; r++ {
		go func(r int) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			err := ranks[r].Barrier(ctx)
			results[r] = err == nil
		}(r)
	}
	wg.Wait()

	for r, ok := range results {
		assert.True(t, ok, "rank %d barrier failed", r)
	}
}

func TestBarrierTimesOutWithoutAllRanks(t *testing.T) {
	ranks := topology.NewGroup(2)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := ranks[0].Barrier(ctx)
	require.Error(t, err)
}

func TestIBarrierTestIsNonBlocking(t *testing.T) {
	ranks := topology.NewGroup(2)
	h := ranks[0].IBarrier()
	assert.False(t, h.Test())

	h2 := ranks[1].IBarrier()
	assert.True(t, h.Test())
	assert.True(t, h2.Test())
}

func TestInt32WindowCASAndFAA(t *testing.T) {
	w := topology.NewInt32Window(3)

	assert.Zero(t, w.Load(1))
	w.Store(1, 5)
	assert.EqualValues(t, 5, w.Load(1))

	ok := w.CAS(1, 5, 9)
	assert.True(t, ok)
	assert.EqualValues(t, 9, w.Load(1))

	ok = w.CAS(1, 5, 1)
	assert.False(t, ok, "stale compare value must fail")

	prev := w.FAA(2, 1)
	assert.EqualValues(t, 0, prev)
	assert.EqualValues(t, 1, w.Load(2))
}

func TestValueWindowAppendAndBulkGet(t *testing.T) {
	w := topology.NewValueWindow[int](2)

	idx0 := w.Append(0, 10)
	idx1 := w.Append(0, 20)
	assert.Equal(t, 0, idx0)
	assert.Equal(t, 1, idx1)

	got := w.GetRange(0, 2)
	assert.Equal(t, []int{10, 20}, got)

	w.Set(0, 0, 99)
	assert.Equal(t, 99, w.Get(0, 0))
	assert.Equal(t, 2, w.Len(0))
}
