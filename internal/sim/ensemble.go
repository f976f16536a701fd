package sim

import (
	"context"
	"sync"
)

// RunEnsemble executes several independent runs concurrently. The
// build function creates the runner for run i; runs share nothing, so
// each goroutine owns its world outright. The first build or run
// error aborts the batch.
func RunEnsemble(ctx context.Context, runs int, duration float64, build func(i int) (*Runner, error)) ([]*Result, error) {
	results := make([]*Result, runs)
	errs := make([]error, runs)

	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			r, err := build(idx)
			if err != nil {
				errs[idx] = err
				return
			}
			results[idx], errs[idx] = r.Run(ctx, duration)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
