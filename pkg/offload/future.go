package offload

import (
	"context"
)

// Future holds the outcome of a function running on a Pool.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func failedFuture[T any](err error) *Future[T] {
	f := newFuture[T]()
	f.err = err
	close(f.done)
	return f
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the function returns or ctx is done. Cancelling ctx
// only stops the wait; the function keeps running to completion.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Submit schedules fn on the pool. The returned error, if any, is exactly the
// one fn returned.
func Submit[T any](ctx context.Context, p *Pool, fn func() (T, error)) *Future[T] {
	f := newFuture[T]()

	task := func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.err = &PanicError{Value: r}
			}
		}()
		f.value, f.err = fn()
	}

	if err := p.submit(ctx, task); err != nil {
		return failedFuture[T](err)
	}
	return f
}

// Wrap turns a blocking single-argument function into one that runs on the
// pool and waits for the result.
func Wrap[A, T any](p *Pool, fn func(A) (T, error)) func(context.Context, A) (T, error) {
	return func(ctx context.Context, arg A) (T, error) {
		return Submit(ctx, p, func() (T, error) {
			return fn(arg)
		}).Await(ctx)
	}
}

// Go runs an error-only function on the pool and waits for it.
func Go(ctx context.Context, p *Pool, fn func() error) error {
	_, err := Submit(ctx, p, func() (struct{}, error) {
		return struct{}{}, fn()
	}).Await(ctx)
	return err
}
