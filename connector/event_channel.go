package connector

import (
	"context"
	"sync"

	"github.com/squadracorsepolito/acmenet/internal"
	"github.com/squadracorsepolito/acmenet/ring"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sys/cpu"
)

var (
	_ Connector[any] = (*EventChannel[any])(nil)
	_ Notifier       = (*EventChannel[any])(nil)
)

// EventChannel is a goroutine-safe FIFO queue of events built on a [ring.Buffer].
//
// Producers and consumers share a single mutex, so an enqueue and a dequeue
// never touch the buffer at the same time. None of its methods block:
// a full bounded channel rejects events and an empty one returns nothing.
// The ctx arguments are only used for telemetry.
type EventChannel[T any] struct {
	tel *internal.Telemetry

	mux sync.Mutex
	buf *ring.Buffer[T]

	// notEmpty is broadcast after a successful enqueue,
	// notFull after a dequeue returning at least one event
	notEmpty signal
	notFull  signal

	// used to avoid false sharing with the hot fields above
	_ cpu.CacheLinePad

	// Telemetry metrics
	addedEvents    metric.Int64Counter
	rejectedEvents metric.Int64Counter
	removedEvents  metric.Int64Counter
}

// NewEventChannel returns an [EventChannel] that takes ownership of buf.
func NewEventChannel[T any](name string, buf *ring.Buffer[T]) *EventChannel[T] {
	if buf == nil {
		buf = ring.New[T](nil)
	}

	ec := &EventChannel[T]{
		tel: internal.NewTelemetry("channel", name),

		buf: buf,

		notEmpty: newSignal(),
		notFull:  newSignal(),
	}

	ec.initMetrics()

	return ec
}

func (ec *EventChannel[T]) initMetrics() {
	ec.addedEvents = ec.tel.NewCounter("added_events")
	ec.rejectedEvents = ec.tel.NewCounter("rejected_events")
	ec.removedEvents = ec.tel.NewCounter("removed_events")

	ec.tel.NewGauge("depth", func() int64 { return int64(ec.Len()) })
}

func (ec *EventChannel[T]) AddEvent(ctx context.Context, ev T) bool {
	if !ec.add(ev) {
		ec.rejectedEvents.Add(ctx, 1)
		return false
	}

	ec.addedEvents.Add(ctx, 1)

	return true
}

func (ec *EventChannel[T]) add(ev T) bool {
	ec.mux.Lock()
	defer ec.mux.Unlock()

	if !ec.buf.Add(ev) {
		return false
	}

	ec.notEmpty.broadcast()

	return true
}

func (ec *EventChannel[T]) AddEvents(ctx context.Context, evs []T) bool {
	if !ec.addAll(evs) {
		ec.rejectedEvents.Add(ctx, int64(len(evs)))
		return false
	}

	ec.addedEvents.Add(ctx, int64(len(evs)))

	return true
}

func (ec *EventChannel[T]) addAll(evs []T) bool {
	ec.mux.Lock()
	defer ec.mux.Unlock()

	if !ec.buf.AddAll(evs) {
		return false
	}

	if len(evs) > 0 {
		ec.notEmpty.broadcast()
	}

	return true
}

func (ec *EventChannel[T]) GetEvent(ctx context.Context) (T, bool) {
	ec.mux.Lock()
	ev, ok := ec.buf.Pop()
	if ok {
		ec.notFull.broadcast()
	}
	ec.mux.Unlock()

	if ok {
		ec.removedEvents.Add(ctx, 1)
	}

	return ev, ok
}

func (ec *EventChannel[T]) GetEvents(ctx context.Context, n int) []T {
	if n < 1 {
		return nil
	}

	ec.mux.Lock()

	size := min(n, ec.buf.Len())
	if size == 0 {
		ec.mux.Unlock()
		return nil
	}

	evs := make([]T, 0, size)
	for range size {
		ev, _ := ec.buf.Pop()
		evs = append(evs, ev)
	}

	ec.notFull.broadcast()
	ec.mux.Unlock()

	ec.removedEvents.Add(ctx, int64(len(evs)))

	return evs
}

// NotEmpty returns a channel closed by the next successful enqueue.
func (ec *EventChannel[T]) NotEmpty() <-chan struct{} {
	ec.mux.Lock()
	defer ec.mux.Unlock()

	return ec.notEmpty.wait()
}

// NotFull returns a channel closed by the next dequeue returning events.
func (ec *EventChannel[T]) NotFull() <-chan struct{} {
	ec.mux.Lock()
	defer ec.mux.Unlock()

	return ec.notFull.wait()
}

// Len returns the number of queued events.
func (ec *EventChannel[T]) Len() int {
	ec.mux.Lock()
	defer ec.mux.Unlock()

	return ec.buf.Len()
}

// CanHold reports whether a batch of n events fits the channel when it is empty.
func (ec *EventChannel[T]) CanHold(n int) bool {
	ec.mux.Lock()
	defer ec.mux.Unlock()

	return ec.buf.IsUnbounded() || n <= ec.buf.Cap()
}
