// Package gvector supplements the scheduler core with a minimal collective
// vector, grounded on original_source/include/ityr/container/
// global_vector.hpp, kept deliberately thin: containers are not part of
// the scheduler core itself, but are exactly the kind of higher-level
// pattern that consumes it, and the worked end-to-end examples need one
// to exist.
//
// Unlike the original's PGAS global_vector, whose collective variant
// distributes its backing memory across ranks via ori::malloc_coll, this
// rendition's ranks share one process's memory, so a GVector's backing
// slice simply lives in ordinary Go memory; "collective" here means only
// that Resize/Fill/TransformReduce parallelize their work across the
// caller's own fork/join task tree, the way global_vector's
// parallel_construct/parallel_destruct options drive ityr::for_each.
package gvector

import "github.com/lattice-hpc/adws"

// cutoff is the leaf granularity below which Resize, Fill and
// TransformReduce stop forking and run a plain loop, mirroring
// global_vector_options::cutoff_count.
const cutoff = 1024

// GVector is a resizable sequence of T, analogous to global_vector<T> with
// collective=false in this rendition's single-address-space binding.
type GVector[T any] struct {
	data []T
}

// New returns a GVector of count zero-valued elements.
func New[T any](count int) *GVector[T] {
	return &GVector[T]{data: make([]T, count)}
}

// NewFrom copies items into a new GVector (global_vector's iterator-range
// constructor).
func NewFrom[T any](items []T) *GVector[T] {
	data := make([]T, len(items))
	copy(data, items)
	return &GVector[T]{data: data}
}

// Len reports the current element count.
func (v *GVector[T]) Len() int { return len(v.data) }

// At returns the element at i.
func (v *GVector[T]) At(i int) T { return v.data[i] }

// Set overwrites the element at i.
func (v *GVector[T]) Set(i int, val T) { v.data[i] = val }

// Slice exposes the backing storage directly, the loopback-binding
// equivalent of checking out [begin(), end()) for the whole vector.
func (v *GVector[T]) Slice() []T { return v.data }

// Resize grows or shrinks v to count elements (global_vector::resize).
// Growth fills new elements with fill, parallelized via Fork/Join above
// cutoff; shrinking truncates without running any destructor, since T's
// zero value needs none here.
func Resize[T any](w *adws.Worker, tls *adws.TLS, v *GVector[T], count int, fill T) {
	old := len(v.data)
	if count <= old {
		v.data = v.data[:count]
		return
	}
	grown := make([]T, count)
	copy(grown, v.data)
	v.data = grown
	fillRange(w, tls, v.data, old, count, fill)
}

// Fill overwrites every element of v with value, parallelized the same way
// as Resize's growth path.
func Fill[T any](w *adws.Worker, tls *adws.TLS, v *GVector[T], value T) {
	fillRange(w, tls, v.data, 0, len(v.data), value)
}

func fillRange[T any](w *adws.Worker, tls *adws.TLS, data []T, lo, hi int, value T) {
	if hi-lo <= cutoff {
		for i := lo; i < hi; i++ {
			data[i] = value
		}
		return
	}
	mid := lo + (hi-lo)/2
	th := adws.Fork(w, tls, 1, 1, func(childTLS *adws.TLS) struct{} {
		fillRange(w, childTLS, data, lo, mid, value)
		return struct{}{}
	})
	fillRange(w, tls, data, mid, hi, value)
	adws.Join(w, tls, th)
}

// TransformReduce combines a[i] and b[i] elementwise via transform, folding
// the results with combine starting from init (global_vector's worked
// example). a and b must have equal length. combine must be associative
// with init as its identity element — the standard precondition for
// splitting a fold across Fork's two branches without double-counting
// init. Only the recursive split matters here, not any particular fork
// weight, so both branches use equal work-hints.
func TransformReduce[A, B, U any](w *adws.Worker, tls *adws.TLS, a []A, b []B, init U, combine func(U, U) U, transform func(A, B) U) U {
	return transformReduceRange(w, tls, a, b, 0, len(a), init, combine, transform)
}

func transformReduceRange[A, B, U any](w *adws.Worker, tls *adws.TLS, a []A, b []B, lo, hi int, init U, combine func(U, U) U, transform func(A, B) U) U {
	if hi-lo <= cutoff {
		acc := init
		for i := lo; i < hi; i++ {
			acc = combine(acc, transform(a[i], b[i]))
		}
		return acc
	}
	mid := lo + (hi-lo)/2
	th := adws.Fork(w, tls, 1, 1, func(childTLS *adws.TLS) U {
		return transformReduceRange(w, childTLS, a, b, lo, mid, init, combine, transform)
	})
	right := transformReduceRange(w, tls, a, b, mid, hi, init, combine, transform)
	left := adws.Join(w, tls, th)
	return combine(left, right)
}

// Reduce folds v's elements with combine starting from init, the
// single-vector degenerate case of TransformReduce (identity transform).
func Reduce[T any](w *adws.Worker, tls *adws.TLS, v *GVector[T], init T, combine func(T, T) T) T {
	return TransformReduce(w, tls, v.data, v.data, init, combine, func(x, _ T) T { return x })
}
