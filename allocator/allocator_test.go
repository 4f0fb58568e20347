package allocator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-hpc/adws/allocator"
)

func TestAllocLoadFree(t *testing.T) {
	a := allocator.New(0)
	h := a.Alloc(42)
	assert.Equal(t, 0, h.Home)
	assert.False(t, a.IsRemotelyFreed(h))

	assert.Equal(t, 42, a.Load(h))

	a.Free(h)
	assert.True(t, a.IsRemotelyFreed(h))
}

func TestFreeIsIdempotent(t *testing.T) {
	a := allocator.New(1)
	h := a.Alloc("x")
	a.Free(h)
	assert.NotPanics(t, func() { a.Free(h) })
	assert.True(t, a.IsRemotelyFreed(h))
}

func TestLoadOfUnknownHandlePanics(t *testing.T) {
	a := allocator.New(0)
	other := allocator.New(1)
	h := other.Alloc(1)
	require.Panics(t, func() { a.Load(h) })
}
