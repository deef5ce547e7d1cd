package engine

import (
	"context"
	"fmt"
	"sync"
)

// allSettled runs fn for every item concurrently and waits for all of them.
// errs[i] is the result for items[i]. A panicking task is reported as an
// error instead of crashing the job.
func allSettled[T any](ctx context.Context, items []T, fn func(context.Context, T) error) []error {
	errs := make([]error, len(items))

	var wg sync.WaitGroup
	wg.Add(len(items))
	for i, item := range items {
		go func(i int, item T) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("panic: %v", r)
				}
			}()
			errs[i] = fn(ctx, item)
		}(i, item)
	}
	wg.Wait()

	return errs
}
