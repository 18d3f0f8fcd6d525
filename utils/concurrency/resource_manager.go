// Package concurrency implements a simple channel based resource manager for concurrent operations.
package concurrency

import (
	"runtime"
	"sync"
)

// ResourceManager is a struct storing a channel of some given resource (e.g. a per-worker
// scratch space) meant to be used concurrently and a channel for errors.
// The number of resources bounds the number of tasks running at the same time.
type ResourceManager[T any] struct {
	sync.WaitGroup
	Resources chan T
	Errors    chan error
}

// NewResourceManager instantiates a new [ResourceManager].
func NewResourceManager[T any](resources []T) *ResourceManager[T] {
	Resources := make(chan T, len(resources))
	for i := range resources {
		Resources <- resources[i]
	}
	return &ResourceManager[T]{
		Resources: Resources,
		Errors:    make(chan error, len(resources)),
	}
}

// Task is an abstract template for a function taking as input
// a resource of any kind that can be used concurrently.
type Task[T any] func(resource T) (err error)

// Run runs a [Task] concurrently.
// If the internal error channel is not empty, does nothing.
// Adds any error returned by [Task] to the internal error channel.
func (r *ResourceManager[T]) Run(f Task[T]) {
	r.Add(1)
	go func() {
		defer r.Done()
		if len(r.Errors) != 0 {
			return
		}
		resource := <-r.Resources
		if err := f(resource); err != nil {
			select {
			case r.Errors <- err:
			default:
			}
		}
		r.Resources <- resource
	}()
}

// Wait waits until all concurrent [Task] have finished and returns
// the first encountered error, if any.
func (r *ResourceManager[T]) Wait() (err error) {
	r.WaitGroup.Wait()
	select {
	case err = <-r.Errors:
	default:
	}
	return
}

// Workers returns n if n > 0 and runtime.NumCPU() otherwise.
func Workers(n int) int {
	if n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// Ranges splits [0, n) into at most k contiguous ranges of near-equal size.
func Ranges(n, k int) (ranges [][2]int) {
	if n <= 0 {
		return nil
	}
	if k <= 0 || k > n {
		k = n
	}
	size, rem := n/k, n%k
	ranges = make([][2]int, k)
	var start int
	for i := range ranges {
		end := start + size
		if i < rem {
			end++
		}
		ranges[i] = [2]int{start, end}
		start = end
	}
	return
}
