// Package connector links the components producing events with the ones consuming them.
//
// [EventChannel] is the non-blocking queue; [BlockingSource] and [BlockingSink]
// wrap its two ends to park the caller until the operation can complete.
package connector

import "context"

// Source is the consumer end of a connector.
type Source[T any] interface {
	// GetEvent removes the oldest event. The boolean is false if there was no event.
	GetEvent(ctx context.Context) (T, bool)
	// GetEvents removes up to n events, oldest first. The batch may be empty.
	GetEvents(ctx context.Context, n int) []T
}

// Sink is the producer end of a connector.
type Sink[T any] interface {
	// AddEvent enqueues ev. It returns false if ev was not accepted.
	AddEvent(ctx context.Context, ev T) bool
	// AddEvents enqueues every event of the batch or none of them.
	AddEvents(ctx context.Context, evs []T) bool
}

// Connector joins a [Source] and a [Sink] over the same queue.
type Connector[T any] interface {
	Source[T]
	Sink[T]
}

// Notifier lets a caller wait for a connector state change.
// The returned channel is closed the next time the condition may have become true.
type Notifier interface {
	NotEmpty() <-chan struct{}
	NotFull() <-chan struct{}
}

// sizer is implemented by connectors able to tell whether
// a batch of n events could ever be accepted.
type sizer interface {
	CanHold(n int) bool
}
