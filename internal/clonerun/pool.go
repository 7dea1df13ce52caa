// Package clonerun is the clone pipeline's ParallelRuntime (C10): bounded
// concurrency helpers built on conc/pool (the teacher's own idiom in its
// file-processing package), plus the lock-free AtomicBitmap and chunked
// frontier expansion the direction-optimizing BFS in simgraph needs.
package clonerun

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// DefaultWorkerMultiplier mirrors the teacher's choice: 2x NumCPU balances
// CGO-bound parsing work against I/O wait.
const DefaultWorkerMultiplier = 2

// Workers resolves a configured worker count (0 meaning "default") to an
// actual goroutine budget.
func Workers(configured int) int {
	if configured > 0 {
		return configured
	}
	return runtime.NumCPU() * DefaultWorkerMultiplier
}

// ItemError associates a failure with the input that produced it.
type ItemError struct {
	Index int
	Err   error
}

func (e ItemError) Error() string { return fmt.Sprintf("item %d: %v", e.Index, e.Err) }

// Errors collects every ItemError from one Map/ForEach call.
type Errors struct {
	mu    sync.Mutex
	Items []ItemError
}

func (e *Errors) add(index int, err error) {
	e.mu.Lock()
	e.Items = append(e.Items, ItemError{Index: index, Err: err})
	e.mu.Unlock()
}

func (e *Errors) Error() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch len(e.Items) {
	case 0:
		return "no errors"
	case 1:
		return e.Items[0].Error()
	default:
		return fmt.Sprintf("%d items failed (first: %v)", len(e.Items), e.Items[0])
	}
}

// HasErrors reports whether any item failed.
func (e *Errors) HasErrors() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Items) > 0
}

// Map runs fn over items with a bounded pool, preserving input order in
// the result slice (a failed item leaves its slot at the zero value and
// is recorded in the returned *Errors). maxWorkers<=0 selects the default.
func Map[T any, R any](ctx context.Context, items []T, maxWorkers int, fn func(T) (R, error)) ([]R, *Errors) {
	if len(items) == 0 {
		return nil, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	results := make([]R, len(items))
	errs := &Errors{}

	p := pool.New().WithMaxGoroutines(Workers(maxWorkers)).WithContext(ctx)
	for i, item := range items {
		p.Go(func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				errs.add(i, ctx.Err())
				return nil
			default:
			}
			r, err := fn(item)
			if err != nil {
				errs.add(i, err)
				return nil
			}
			results[i] = r
			return nil
		})
	}
	_ = p.Wait()

	if !errs.HasErrors() {
		return results, nil
	}
	return results, errs
}

// ForEach runs fn over items purely for side effects, with the same
// bounded-pool and cancellation semantics as Map.
func ForEach[T any](ctx context.Context, items []T, maxWorkers int, fn func(T) error) *Errors {
	_, errs := Map(ctx, items, maxWorkers, func(item T) (struct{}, error) {
		return struct{}{}, fn(item)
	})
	return errs
}
