package apiclient

import (
	"context"
	"sync"
)

// deferred is a result that settles exactly once
type deferred[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

func newDeferred[T any]() *deferred[T] {
	return &deferred[T]{done: make(chan struct{})}
}

func (d *deferred[T]) settle(value T, err error) {
	d.once.Do(func() {
		d.value, d.err = value, err
		close(d.done)
	})
}

func (d *deferred[T]) reject(err error) {
	var zero T
	d.settle(zero, err)
}

func (d *deferred[T]) wait(ctx context.Context) (T, error) {
	select {
	case <-d.done:
		return d.value, d.err
	case <-ctx.Done():
		// a settled result wins over a simultaneous cancellation
		select {
		case <-d.done:
			return d.value, d.err
		default:
		}
		var zero T
		return zero, ctx.Err()
	}
}
