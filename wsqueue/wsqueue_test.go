package wsqueue_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-hpc/adws/flipper"
	"github.com/lattice-hpc/adws/wsqueue"
)

func TestPushBottomPopBottomLIFO(t *testing.T) {
	d := wsqueue.New[int](4, false)
	d.PushBottom(1, wsqueue.Entry[int]{Value: 1})
	d.PushBottom(1, wsqueue.Entry[int]{Value: 2})

	e, ok := d.PopBottom(1)
	require.True(t, ok)
	assert.Equal(t, 2, e.Value, "owner pop is LIFO: most recent first")

	e, ok = d.PopBottom(1)
	require.True(t, ok)
	assert.Equal(t, 1, e.Value)

	_, ok = d.PopBottom(1)
	assert.False(t, ok)
}

func TestTryStealIsFIFOAcrossSteals(t *testing.T) {
	d := wsqueue.New[int](4, false)
	d.PushBottom(0, wsqueue.Entry[int]{Value: 1})
	d.PushBottom(0, wsqueue.Entry[int]{Value: 2})
	d.PushBottom(0, wsqueue.Entry[int]{Value: 3})

	e, ok := d.TrySteal(0, 0, 0)
	require.True(t, ok)
	assert.Equal(t, 1, e.Value, "thief steals oldest first")

	e, ok = d.TrySteal(0, 0, 0)
	require.True(t, ok)
	assert.Equal(t, 2, e.Value)
}

func TestTryStealFiltersByTgVersion(t *testing.T) {
	d := wsqueue.New[int](1, false)
	var stale flipper.Flipper
	fresh := stale.Flip(0)

	d.PushBottom(0, wsqueue.Entry[int]{Value: 1, TgVersion: stale})

	_, ok := d.TrySteal(0, fresh, 0)
	assert.False(t, ok, "mismatched generation must not be stolen")

	_, ok = d.TrySteal(0, stale, 0)
	assert.True(t, ok)
}

func TestPopMostRecentScanOrderPrimaryDeepFirst(t *testing.T) {
	d := wsqueue.New[int](3, false) // primary: deep-to-shallow
	d.PushBottom(0, wsqueue.Entry[int]{Value: 10})
	d.PushBottom(2, wsqueue.Entry[int]{Value: 30})

	e, depth, ok := d.PopMostRecent(3)
	require.True(t, ok)
	assert.Equal(t, 2, depth)
	assert.Equal(t, 30, e.Value)
}

func TestPopMostRecentScanOrderMigrationShallowFirst(t *testing.T) {
	d := wsqueue.New[int](3, true) // migration: shallow-to-deep
	d.PushBottom(0, wsqueue.Entry[int]{Value: 10})
	d.PushBottom(2, wsqueue.Entry[int]{Value: 30})

	e, depth, ok := d.PopMostRecent(3)
	require.True(t, ok)
	assert.Equal(t, 0, depth)
	assert.Equal(t, 10, e.Value)
}

func TestForEachNonemptyQueueStopsEarly(t *testing.T) {
	d := wsqueue.New[int](4, false)
	d.PushBottom(0, wsqueue.Entry[int]{Value: 1})
	d.PushBottom(1, wsqueue.Entry[int]{Value: 1})
	d.PushBottom(3, wsqueue.Entry[int]{Value: 1})

	var visited []int
	d.ForEachNonemptyQueue(0, 4, true, func(depth int) bool {
		visited = append(visited, depth)
		return depth == 1
	})
	assert.Equal(t, []int{0, 1}, visited)
}

func TestForEachEntryDoesNotMutate(t *testing.T) {
	d := wsqueue.New[int](2, false)
	d.PushBottom(0, wsqueue.Entry[int]{Value: 1})
	d.PushBottom(0, wsqueue.Entry[int]{Value: 2})

	var seen []int
	d.ForEachEntry(0, func(e wsqueue.Entry[int]) {
		seen = append(seen, e.Value)
	})
	assert.Len(t, seen, 2)

	_, ok := d.PopBottom(0)
	assert.True(t, ok, "ForEachEntry must not have removed entries")
}

func TestTopPeeksWithoutRemoving(t *testing.T) {
	d := wsqueue.New[int](1, false)
	d.PushBottom(0, wsqueue.Entry[int]{Value: 7, FrameID: 123})

	top, ok := d.Top(0)
	require.True(t, ok)
	assert.EqualValues(t, 123, top.FrameID)

	_, ok = d.PopBottom(0)
	assert.True(t, ok, "Top must not have removed the entry")
}
