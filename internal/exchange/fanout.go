package exchange

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Result is the outcome of one venue call in a fan-out.
type Result[T any] struct {
	Exchange string
	Value    T
	Err      error
}

// FanOutOptions bounds a fan-out. Zero values mean no concurrency limit and no
// per-call timeout.
type FanOutOptions struct {
	MaxConcurrency int
	CallTimeout    time.Duration
}

// FanOut calls fn once per venue concurrently and waits for all of them. A failing
// venue never cancels the others; its error is reported in its Result. Results are
// returned in the order of venues.
func FanOut[V any, T any](ctx context.Context, opts FanOutOptions, venues []V, name func(V) string, fn func(ctx context.Context, v V) (T, error)) []Result[T] {
	results := make([]Result[T], len(venues))

	g := new(errgroup.Group)
	if opts.MaxConcurrency > 0 {
		g.SetLimit(opts.MaxConcurrency)
	}

	for i, v := range venues {
		i, v := i, v
		g.Go(func() error {
			callCtx := ctx
			if opts.CallTimeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, opts.CallTimeout)
				defer cancel()
			}

			value, err := fn(callCtx, v)
			if err == nil {
				err = callCtx.Err()
			}
			// Each goroutine owns its slot, so no lock is needed.
			results[i] = Result[T]{Exchange: name(v), Value: value, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Successes splits a fan-out into successful values and failures.
func Successes[T any](results []Result[T]) (ok []T, failed []Result[T]) {
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
			continue
		}
		ok = append(ok, r.Value)
	}
	return ok, failed
}

// QuoteName and BookName adapt the fetcher interfaces for FanOut.
func QuoteName(q QuoteFetcher) string    { return q.Name() }
func BookName(b OrderBookFetcher) string { return b.Name() }
