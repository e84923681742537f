// Package pump moves events from a [connector.Source] to a [Handler].
//
// A [Pump] does the work of a single pass and never runs on its own;
// a [Runner] owns the goroutine that refreshes one or more pumps.
package pump

import (
	"context"
	"errors"
	"fmt"

	"github.com/squadracorsepolito/acmenet/connector"
	"github.com/squadracorsepolito/acmenet/internal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// ErrHandlerPanic wraps the value recovered from a panicking handler.
var ErrHandlerPanic = errors.New("pump: handler panic")

// Refresher is the unit of work driven by a [Runner].
type Refresher interface {
	// Refresh performs one pass and returns the number of dispatched events.
	Refresh(ctx context.Context) int
}

var _ Refresher = (*Pump[any])(nil)

type Pump[T any] struct {
	tel *internal.Telemetry

	src     connector.Source[T]
	handler Handler[T]

	batchSize int

	// Telemetry metrics
	dispatchedEvents metric.Int64Counter
	handlerErrors    metric.Int64Counter
}

// NewPump returns a pump reading from src. A nil cfg selects [NewDefaultConfig].
// It panics if src or handler is nil.
func NewPump[T any](name string, src connector.Source[T], handler Handler[T], cfg *Config) *Pump[T] {
	if src == nil {
		panic("source is nil")
	}
	if handler == nil {
		panic("handler is nil")
	}

	if cfg == nil {
		cfg = NewDefaultConfig()
	}

	p := &Pump[T]{
		tel: internal.NewTelemetry("pump", name),

		src:     src,
		handler: handler,

		batchSize: cfg.BatchSize,
	}

	p.initMetrics()

	return p
}

func (p *Pump[T]) initMetrics() {
	p.dispatchedEvents = p.tel.NewCounter("dispatched_events")
	p.handlerErrors = p.tel.NewCounter("handler_errors")
}

// BatchSize returns the maximum number of events dispatched by a refresh.
func (p *Pump[T]) BatchSize() int {
	if p.batchSize < 2 {
		return 1
	}
	return p.batchSize
}

// Refresh pulls what is available from the source, up to the batch size,
// and hands it to the handler. Handler errors and panics are logged and counted.
func (p *Pump[T]) Refresh(ctx context.Context) int {
	if p.batchSize < 2 {
		ev, ok := p.src.GetEvent(ctx)
		if !ok {
			return 0
		}

		p.dispatch(ctx, 1, func(ctx context.Context) error {
			return p.handler.Handle(ctx, ev)
		})

		return 1
	}

	evs := p.src.GetEvents(ctx, p.batchSize)
	if len(evs) == 0 {
		return 0
	}

	p.dispatch(ctx, len(evs), func(ctx context.Context) error {
		return p.handler.HandleBatch(ctx, evs)
	})

	return len(evs)
}

func (p *Pump[T]) dispatch(ctx context.Context, count int, fn func(ctx context.Context) error) {
	ctx, span := p.tel.NewTrace(ctx, "handle events")
	defer span.End()

	span.SetAttributes(attribute.Int("event_count", count))

	p.dispatchedEvents.Add(ctx, int64(count))

	if err := p.safeCall(ctx, fn); err != nil {
		p.tel.LogError("failed to handle events", err, "event_count", count)
		p.handlerErrors.Add(ctx, 1)

		span.RecordError(err)
		span.SetStatus(codes.Error, "handler failed")
	}
}

func (p *Pump[T]) safeCall(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()

	return fn(ctx)
}
