// Command adwsdemo runs a handful of worked scheduler examples end to end
// over the loopback binding: fib via recursive fork/join, a coll_exec
// broadcast, a global-vector dot product, a resize-then-reduce, and the
// collective termination barrier every root_exec call enforces.
//
// Grounded on framesupplier/examples/demo/main.go's setup-then-run-then-log
// shape, adapted from one long-running pipeline to a handful of short,
// independent demonstrations selected by -scenario.
package main

import (
	"flag"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lattice-hpc/adws"
	"github.com/lattice-hpc/adws/container/gvector"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	scenario := flag.String("scenario", "all", "fib|collexec|dotproduct|resize|barrier|all")
	flag.Parse()

	run := map[string]func(){
		"fib":        demoFib,
		"collexec":   demoCollExec,
		"dotproduct": demoDotProduct,
		"resize":     demoResize,
		"barrier":    demoBarrier,
	}

	if *scenario == "all" {
		for _, name := range []string{"fib", "collexec", "dotproduct", "resize", "barrier"} {
			run[name]()
		}
		return
	}

	fn, ok := run[*scenario]
	if !ok {
		log.Fatalf("unknown scenario %q", *scenario)
	}
	fn()
}

// demoFib computes fib(10) via a recursive two-task fork, where fib(n-1)
// is spawned and fib(n-2) runs in the continuation.
func demoFib() {
	g := adws.NewGroup(1)
	w := g.Worker(0)

	got := adws.RootExec(w, func(tls *adws.TLS) int {
		return fib(w, tls, 10)
	})
	log.Printf("fib: root_exec(fib, 10) = %d", got)
}

func fib(w *adws.Worker, tls *adws.TLS, n int) int {
	if n < 2 {
		return 1
	}
	th := adws.Fork(w, tls, 1, 1, func(childTLS *adws.TLS) int {
		return fib(w, childTLS, n-1)
	})
	b := fib(w, tls, n-2)
	a := adws.Join(w, tls, th)
	return a + b
}

// demoCollExec runs a coll_exec of a closure capturing x=42, initiated
// from rank 0 of a 4-rank group: fn runs exactly once on every rank and
// returns fn's value to the initiator.
func demoCollExec() {
	g := adws.NewGroup(4)
	w0 := g.Worker(0)

	var ran int32
	x := 42

	got := adws.CollExec(w0, func() int {
		atomic.AddInt32(&ran, 1)
		return x
	})
	log.Printf("coll_exec: broadcast of x=%d returned %d on rank 0, ran on %d/%d ranks", x, got, ran, g.NRanks())
}

// demoDotProduct runs transform_reduce over [1,2,3,4,5] and [2,3,4,5,6]
// as a dot product.
func demoDotProduct() {
	g := adws.NewGroup(1)
	w := g.Worker(0)

	got := adws.RootExec(w, func(tls *adws.TLS) int {
		a := gvector.NewFrom([]int{1, 2, 3, 4, 5})
		b := gvector.NewFrom([]int{2, 3, 4, 5, 6})
		return gvector.TransformReduce(w, tls, a.Slice(), b.Slice(), 0,
			func(x, y int) int { return x + y },
			func(x, y int) int { return x * y },
		)
	})
	log.Printf("dotproduct: %d", got)
}

// demoResize resizes a 10000-element vector to 100000 elements filled
// with 3, then reduces by sum, across two ranks.
func demoResize() {
	const n = 10000
	g := adws.NewGroup(2, adws.WithMaxDtreeReuse(2))

	results := make([]int, g.NRanks())
	var wg sync.WaitGroup
	for r := 0; r < g.NRanks(); r++ {
		r := r
		wg.Add(1)
		go func() {
			defer wg.Done()
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
		}()
	}
	wg.Wait()
	for r, v := range results {
		log.Printf("resize: rank %d reduced to %d", r, v)
	}
}

// demoBarrier demonstrates the collective exit barrier every root_exec
// call enforces: ranks with artificially staggered workloads all return
// from root_exec together rather than as soon as their own fn finishes.
func demoBarrier() {
	const nRanks = 4
	g := adws.NewGroup(nRanks)

	start := time.Now()
	var wg sync.WaitGroup
	for r := 0; r < nRanks; r++ {
		r := r
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := g.Worker(r)
			adws.RootExec(w, func(tls *adws.TLS) struct{} {
				time.Sleep(time.Duration(nRanks-r) * 5 * time.Millisecond)
				return struct{}{}
			})
			log.Printf("barrier: rank %d returned from root_exec at +%s", r, time.Since(start).Round(time.Millisecond))
		}()
	}
	wg.Wait()
}
