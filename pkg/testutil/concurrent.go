package testutil

import (
	"sync"
	"sync/atomic"

	dErrors "meridian/pkg/domain-errors"
)

// ConcurrentResult tracks outcomes of concurrent test operations.
type ConcurrentResult struct {
	Successes int32
	Errors    int32
	Busy      int32
	Handled   int32
}

// Total returns the total number of operations executed.
func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.Errors + r.Busy + r.Handled
}

// RunConcurrent executes fn in parallel goroutines and collects results.
// Errors are split into busy, handled (already notified) and generic.
func RunConcurrent(goroutines int, fn func(idx int) error) *ConcurrentResult {
	var wg sync.WaitGroup
	var successes, errs, busy, handled atomic.Int32

	start := make(chan struct{})
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-start
			err := fn(idx)
			switch {
			case err == nil:
				successes.Add(1)
			case dErrors.HasCode(err, dErrors.CodeBusy):
				busy.Add(1)
			case dErrors.HasCode(err, dErrors.CodeHandled):
				handled.Add(1)
			default:
				errs.Add(1)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	return &ConcurrentResult{
		Successes: successes.Load(),
		Errors:    errs.Load(),
		Busy:      busy.Load(),
		Handled:   handled.Load(),
	}
}
