package stream

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by AwaitNext when the stream closes first.
var ErrClosed = errors.New("stream closed before the awaited update")

// Resolver completes a single-shot wait. Only the first call counts.
type Resolver[T any] func(value T, err error)

// Await suspends until register's resolver fires or ctx is done. register
// arranges for the resolver to be called and returns a release function that
// detaches whatever it attached; release runs before Await returns.
func Await[T any](ctx context.Context, register func(resolve Resolver[T]) (release func())) (T, error) {
	type result struct {
		value T
		err   error
	}
	ch := make(chan result, 1)
	var once sync.Once

	release := register(func(value T, err error) {
		once.Do(func() {
			ch <- result{value: value, err: err}
		})
	})
	if release != nil {
		defer release()
	}

	select {
	case r := <-ch:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// AwaitNext subscribes to obs and resolves on the first update for which
// match reports done (or an error). arm runs right after subscribing and may
// trigger the awaited update or resolve early, e.g. when the current value
// already satisfies the caller.
func AwaitNext[T, R any](
	ctx context.Context,
	obs Observable[T],
	match func(T) (R, bool, error),
	arm func(resolve Resolver[R]),
) (R, error) {
	return Await(ctx, func(resolve Resolver[R]) func() {
		sub := obs.Subscribe()

		go func() {
			for v := range sub.C() {
				r, done, err := match(v)
				if err != nil || done {
					resolve(r, err)
					return
				}
			}
			var zero R
			resolve(zero, ErrClosed)
		}()

		if arm != nil {
			arm(resolve)
		}
		return sub.Cancel
	})
}
