package gvector_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lattice-hpc/adws"
	"github.com/lattice-hpc/adws/container/gvector"
)

// TestResizeThenReduce resizes a vector of [0, 10000) from 10000 to
// 100000 elements with fill 3, then reduces; result must be
// 10000*9999/2 + 90000*3 = 50265000 on every rank.
func TestResizeThenReduce(t *testing.T) {
	const n = 10000
	g := adws.NewGroup(2, adws.WithMaxDtreeReuse(2))

	results := make([]int, g.NRanks())
	done := make(chan struct{}, g.NRanks())

	for r := 0; r < g.NRanks(); r++ {
		r := r
		go func() {
			w := g.Worker(r)
			results[r] = adws.RootExec(w, func(tls *adws.TLS) int {
				seed := make([]int, n)
				for i := range seed {
					seed[i] = i
				}
				v := gvector.NewFrom(seed)

				gvector.Resize(w, tls, v, n*10, 3)
				return gvector.Reduce(w, tls, v, 0, func(a, b int) int { return a + b })
			})
			done <- struct{}{}
		}()
	}
	for r := 0; r < g.NRanks(); r++ {
		<-done
	}

	want := n*(n-1)/2 + (n*9)*3
	for r := 0; r < g.NRanks(); r++ {
		assert.Equal(t, want, results[r], "rank %d", r)
	}
}

// TestTransformReduceDotProduct computes a dot product of [1,2,3,4,5]
// and [2,3,4,5,6] via transform_reduce, which must return 70.
func TestTransformReduceDotProduct(t *testing.T) {
	g := adws.NewGroup(1)
	w := g.Worker(0)

	got := adws.RootExec(w, func(tls *adws.TLS) int {
		vColl := gvector.NewFrom([]int{1, 2, 3, 4, 5})
		vNoncoll := gvector.NewFrom([]int{2, 3, 4, 5, 6})
		return gvector.TransformReduce(w, tls, vColl.Slice(), vNoncoll.Slice(), 0,
			func(a, b int) int { return a + b },
			func(a, b int) int { return a * b },
		)
	})

	assert.Equal(t, 70, got)
}

func TestFillOverwritesEveryElement(t *testing.T) {
	g := adws.NewGroup(1)
	w := g.Worker(0)

	got := adws.RootExec(w, func(tls *adws.TLS) []int {
		v := gvector.New[int](5000)
		gvector.Fill(w, tls, v, 7)
		return v.Slice()
	})

	for i, x := range got {
		assert.Equal(t, 7, x, "index %d", i)
	}
}
