package connector

import "context"

var (
	_ Source[any] = (*BlockingSource[any])(nil)
	_ Sink[any]   = (*BlockingSink[any])(nil)
)

// BlockingSource makes the reads of a non-blocking [Source] wait
// until at least one event is available.
//
// A cancelled ctx makes the pending read return without events.
type BlockingSource[T any] struct {
	src      Source[T]
	notifier Notifier
}

// NewBlockingSource wraps src. The notifier is usually src itself, e.g. an [EventChannel].
func NewBlockingSource[T any](src Source[T], notifier Notifier) *BlockingSource[T] {
	return &BlockingSource[T]{
		src:      src,
		notifier: notifier,
	}
}

func (bs *BlockingSource[T]) GetEvent(ctx context.Context) (T, bool) {
	for {
		// the signal is taken before trying, so an event
		// added right after a failed attempt is not missed
		ready := bs.notifier.NotEmpty()

		if ev, ok := bs.src.GetEvent(ctx); ok {
			return ev, true
		}

		select {
		case <-ready:
		case <-ctx.Done():
			var zero T
			return zero, false
		}
	}
}

func (bs *BlockingSource[T]) GetEvents(ctx context.Context, n int) []T {
	if n < 1 {
		return nil
	}

	for {
		ready := bs.notifier.NotEmpty()

		if evs := bs.src.GetEvents(ctx, n); len(evs) > 0 {
			return evs
		}

		select {
		case <-ready:
		case <-ctx.Done():
			return nil
		}
	}
}

// BlockingSink makes the writes of a non-blocking [Sink] wait
// until the events are accepted.
//
// A cancelled ctx makes the pending write return false.
type BlockingSink[T any] struct {
	dst      Sink[T]
	notifier Notifier
}

// NewBlockingSink wraps dst. The notifier is usually dst itself, e.g. an [EventChannel].
func NewBlockingSink[T any](dst Sink[T], notifier Notifier) *BlockingSink[T] {
	return &BlockingSink[T]{
		dst:      dst,
		notifier: notifier,
	}
}

func (bs *BlockingSink[T]) AddEvent(ctx context.Context, ev T) bool {
	for {
		ready := bs.notifier.NotFull()

		if bs.dst.AddEvent(ctx, ev) {
			return true
		}

		select {
		case <-ready:
		case <-ctx.Done():
			return false
		}
	}
}

// AddEvents waits until the whole batch is accepted. It returns false
// straight away if the sink reports that the batch can never fit.
func (bs *BlockingSink[T]) AddEvents(ctx context.Context, evs []T) bool {
	if s, ok := bs.dst.(sizer); ok && !s.CanHold(len(evs)) {
		return false
	}

	for {
		ready := bs.notifier.NotFull()

		if bs.dst.AddEvents(ctx, evs) {
			return true
		}

		select {
		case <-ready:
		case <-ctx.Done():
			return false
		}
	}
}
