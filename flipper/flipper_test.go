package flipper_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lattice-hpc/adws/flipper"
)

func TestMatchAgreesOnPrefix(t *testing.T) {
	var f, g flipper.Flipper
	f = f.Flip(0).Flip(2)
	g = g.Flip(0).Flip(2).Flip(3)

	assert.True(t, f.Match(g, 2), "agree through depth 2")
	assert.False(t, f.Match(g, 3), "diverge at depth 3")
}

func TestFlipTogglesExactlyOneBit(t *testing.T) {
	var f flipper.Flipper
	flipped := f.Flip(5)
	assert.True(t, flipped.Match(f, 3))
	assert.False(t, flipped.Match(f, 5))
}

func TestMatchQuantifiedOverDistinctDepthSets(t *testing.T) {
	// For all Flippers resulting from flipping distinct depth sets Df, Dg:
	// f.Match(g, d) iff Df ∩ [0,d] == Dg ∩ [0,d].
	build := func(bits ...int) flipper.Flipper {
		var f flipper.Flipper
		for _, b := range bits {
			f = f.Flip(b)
		}
		return f
	}

	cases := []struct {
		df, dg []int
		d      int
		want   bool
	}{
		{[]int{1, 4}, []int{1, 4}, 4, true},
		{[]int{1, 4}, []int{1, 5}, 4, false},
		{[]int{1, 4}, []int{1, 5}, 5, false},
		{[]int{}, []int{0}, 0, false},
		{[]int{}, []int{1}, 0, true},
	}
	for _, c := range cases {
		f := build(c.df...)
		g := build(c.dg...)
		assert.Equal(t, c.want, f.Match(g, c.d), "df=%v dg=%v d=%d", c.df, c.dg, c.d)
	}
}

func TestVersionCounterNeverCollidesAcrossRanks(t *testing.T) {
	const nRanks = 4
	counters := make([]*flipper.VersionCounter, nRanks)
	for r := range counters {
		counters[r] = flipper.NewVersionCounter(r, nRanks)
	}

	seen := map[int32]int{}
	for round := 0; round < 100; round++ {
		for r := 0; r < nRanks; r++ {
			v := counters[r].Next()
			seen[v]++
		}
	}
	for v, count := range seen {
		assert.Equal(t, 1, count, "version %d minted by more than one rank", v)
	}
}

func TestVersionCounterSeedsOwnerRankInvariant(t *testing.T) {
	const nRanks = 5
	for r := 0; r < nRanks; r++ {
		c := flipper.NewVersionCounter(r, nRanks)
		assert.EqualValues(t, r+1, c.Current())
	}
}
