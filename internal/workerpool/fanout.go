package workerpool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// BoundedParallel runs fn over items with at most degree concurrent calls,
// the "Parallel.For-style fan-out (configurable degree, nominal 10)"
// spec.md section 4.8 calls for in the live bus consumer. The first error
// cancels ctx for the remaining in-flight calls and is returned.
func BoundedParallel(ctx context.Context, items []interface{}, degree int, fn func(ctx context.Context, item interface{}) error) error {
	g, ctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, degree)

	for _, item := range items {
		item := item
		sem <- struct{}{}
		g.Go(func() error {
			defer func() { <-sem }()
			return fn(ctx, item)
		})
	}
	return g.Wait()
}
