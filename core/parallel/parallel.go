// Package parallel runs independent units of work on a bounded number of goroutines.
package parallel

import (
	"runtime"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/errgroup"

	"github.com/YuminosukeSato/oobforest/pkg/errors"
)

// Workers normalizes a worker count. Values below 1 mean runtime.NumCPU().
// The result never exceeds items when items is positive.
func Workers(requested, items int) int {
	n := requested
	if n < 1 {
		n = runtime.NumCPU()
	}
	if items > 0 && n > items {
		n = items
	}
	if n < 1 {
		n = 1
	}
	return n
}

// ForEach calls fn(i) for every i in [0, n) using at most workers goroutines
// and waits for all of them. Each call must write only to state owned by its
// index. A panic in fn is recovered and reported as an error; the returned
// error joins every failure.
//
// With workers == 1 the calls run sequentially on the calling goroutine in
// index order.
func ForEach(n, workers int, fn func(i int) error) error {
	if n <= 0 {
		return nil
	}
	workers = Workers(workers, n)

	if workers == 1 {
		var errs []error
		for i := 0; i < n; i++ {
			if err := call(i, fn); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	p := pool.New().WithErrors().WithMaxGoroutines(workers)
	for i := 0; i < n; i++ {
		i := i
		p.Go(func() error { return call(i, fn) })
	}
	return p.Wait()
}

func call(i int, fn func(i int) error) error {
	return errors.SafeExecute("parallel.ForEach", func() error { return fn(i) })
}

// Parallelize divides items into contiguous [start, end) ranges, one per
// worker, and runs fn on each range concurrently. It returns the first error.
func Parallelize(items, workers int, fn func(start, end int) error) error {
	if items <= 0 {
		return nil
	}
	workers = Workers(workers, items)

	// ceiling division
	chunkSize := (items + workers - 1) / workers

	var g errgroup.Group
	for start := 0; start < items; start += chunkSize {
		end := start + chunkSize
		if end > items {
			end = items
		}
		s, e := start, end
		g.Go(func() (err error) {
			defer errors.Recover(&err, "parallel.Parallelize")
			return fn(s, e)
		})
	}
	return g.Wait()
}

// ParallelizeWithThreshold runs fn(0, items) on the calling goroutine when
// items does not exceed threshold, and Parallelize otherwise.
func ParallelizeWithThreshold(items, threshold, workers int, fn func(start, end int) error) error {
	if items <= threshold {
		if items <= 0 {
			return nil
		}
		return fn(0, items)
	}
	return Parallelize(items, workers, fn)
}
