package distrange_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-hpc/adws/distrange"
)

func TestNewRootRange(t *testing.T) {
	r := distrange.New(4)
	assert.Equal(t, 0.0, r.Begin)
	assert.Equal(t, 4.0, r.End)
	assert.Equal(t, 0, r.Owner())
	assert.True(t, r.IsCrossWorker())
	assert.True(t, r.IsAtEndBoundary())
}

func TestDivideScenario6(t *testing.T) {
	// A fork with w_new=1, w_rest=3 on [0,4) narrows to [0,3) and [3,4).
	r := distrange.New(4)
	rest, newR := r.Divide(3, 1)

	require.Equal(t, 3.0, rest.End)
	assert.Equal(t, 0.0, rest.Begin)
	assert.Equal(t, 0, rest.Owner())

	assert.Equal(t, 3.0, newR.Begin)
	assert.Equal(t, 4.0, newR.End)
	assert.Equal(t, 3, newR.Owner())
}

func TestDivideOwnerInvariant(t *testing.T) {
	// For any chain of divides starting from an integer-ending range, the
	// "rest" child's owner must equal the parent's owner.
	r := distrange.DistRange{Begin: 2, End: 6}
	for i := 0; i < 30; i++ {
		rest, newR := r.Divide(1, 1)
		assert.LessOrEqual(t, rest.Begin, rest.End)
		assert.Equal(t, r.Owner(), rest.Owner())
		assert.LessOrEqual(t, newR.Begin, newR.End)
		r = rest
	}
}

func TestDivideNeverEmptiesRestAtBoundary(t *testing.T) {
	// A parent ending exactly on an integer boundary must produce a
	// non-degenerate rest child (rest.Begin < rest.End) that ends strictly
	// before the boundary, even when the rest weight is tiny.
	r := distrange.DistRange{Begin: 0, End: 1}
	rest, newR := r.Divide(1, 1e9)
	assert.Less(t, rest.Begin, rest.End)
	assert.Less(t, rest.End, r.End)
	assert.Equal(t, rest.End, newR.Begin)
}

func TestMoveToEndBoundary(t *testing.T) {
	r := distrange.DistRange{Begin: 1.2, End: 3.7}
	snapped := r.MoveToEndBoundary()
	assert.Equal(t, 3.0, snapped.End)
	assert.Equal(t, 1.2, snapped.Begin)

	atBoundary := distrange.DistRange{Begin: 1, End: 3}
	assert.Equal(t, atBoundary, atBoundary.MoveToEndBoundary())
}

func TestIsSufficientlySmall(t *testing.T) {
	r := distrange.DistRange{Begin: 0, End: 0.5}
	assert.True(t, r.IsSufficientlySmall(1.0))
	assert.False(t, r.IsSufficientlySmall(0.1))
}

func TestMakeNonCrossWorker(t *testing.T) {
	r := distrange.DistRange{Begin: 1, End: 3}
	collapsed := r.MakeNonCrossWorker()
	assert.False(t, collapsed.IsCrossWorker())
	assert.Equal(t, 1, collapsed.Owner())
}

func TestBoundedByP(t *testing.T) {
	r := distrange.New(8)
	for i := 0; i < 10; i++ {
		rest, newR := r.Divide(float64(i+1), float64(10-i))
		assert.GreaterOrEqual(t, rest.Begin, 0.0)
		assert.LessOrEqual(t, newR.End, 8.0)
		assert.Less(t, rest.BeginRank(), 8)
		r = rest
	}
}
