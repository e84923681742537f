package pump

import "context"

// Handler consumes the events pulled by a [Pump].
type Handler[T any] interface {
	// Handle is called when the pump pulls a single event.
	Handle(ctx context.Context, ev T) error
	// HandleBatch is called when the pump pulls a batch. The batch is never empty.
	HandleBatch(ctx context.Context, evs []T) error
}

// HandlerFuncs adapts plain functions to a [Handler].
// If OnBatch is nil, a batch is handed to OnEvent one event at a time,
// stopping at the first error.
type HandlerFuncs[T any] struct {
	OnEvent func(ctx context.Context, ev T) error
	OnBatch func(ctx context.Context, evs []T) error
}

func (hf HandlerFuncs[T]) Handle(ctx context.Context, ev T) error {
	if hf.OnEvent != nil {
		return hf.OnEvent(ctx, ev)
	}

	if hf.OnBatch != nil {
		return hf.OnBatch(ctx, []T{ev})
	}

	return nil
}

func (hf HandlerFuncs[T]) HandleBatch(ctx context.Context, evs []T) error {
	if hf.OnBatch != nil {
		return hf.OnBatch(ctx, evs)
	}

	if hf.OnEvent == nil {
		return nil
	}

	for _, ev := range evs {
		if err := hf.OnEvent(ctx, ev); err != nil {
			return err
		}
	}

	return nil
}
