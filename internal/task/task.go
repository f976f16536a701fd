// Package task runs independent units of step work, either inline or
// spread over a worker pool. The stepper hands it islands and
// narrow-phase pairs; anything scheduled through the same Executor in
// one call is assumed independent.
package task

import (
	"runtime"
	"sync"
)

// Executor runs fn for every index in [0, n).
type Executor interface {
	ForEach(n int, fn func(i int))
}

// Serial runs everything inline in index order. It is the executor
// for deterministic runs and for small worlds where goroutine
// overhead dominates.
type Serial struct{}

func (Serial) ForEach(n int, fn func(i int)) {
	for i := 0; i < n; i++ {
		fn(i)
	}
}

// Pool fans indices out over a fixed number of goroutines in
// contiguous chunks.
type Pool struct {
	workers  int
	minChunk int
}

// NewPool returns a pool of the given width; workers <= 0 means one
// per logical CPU. minChunk is the smallest slice of work worth a
// goroutine.
func NewPool(workers, minChunk int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if minChunk < 1 {
		minChunk = 1
	}
	return &Pool{workers: workers, minChunk: minChunk}
}

func (p *Pool) ForEach(n int, fn func(i int)) {
	if n <= p.minChunk || p.workers <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	workers := p.workers
	if n/p.minChunk < workers {
		workers = n / p.minChunk
	}
	if workers < 1 {
		workers = 1
	}
	chunkSize := (n + workers - 1) / workers

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				fn(i)
			}
		}(start, end)
	}
	wg.Wait()
}
