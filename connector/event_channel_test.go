package connector

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/squadracorsepolito/acmenet/ring"
	"github.com/stretchr/testify/assert"
)

func newTestChannel(capacity int) *EventChannel[int] {
	return NewEventChannel("test", ring.NewBounded[int](capacity))
}

func Test_EventChannel_FIFO(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	ec := newTestChannel(8)

	for i := range 8 {
		assert.True(ec.AddEvent(ctx, i))
	}
	assert.False(ec.AddEvent(ctx, 8))
	assert.Equal(8, ec.Len())

	ev, ok := ec.GetEvent(ctx)
	assert.True(ok)
	assert.Equal(0, ev)

	assert.Equal([]int{1, 2, 3}, ec.GetEvents(ctx, 3))
	assert.Equal([]int{4, 5, 6, 7}, ec.GetEvents(ctx, 100))
	assert.Empty(ec.GetEvents(ctx, 100))
	assert.Empty(ec.GetEvents(ctx, 0))

	_, ok = ec.GetEvent(ctx)
	assert.False(ok)
}

func Test_EventChannel_AddEventsAllOrNothing(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	ec := newTestChannel(4)

	assert.True(ec.AddEvents(ctx, []int{1, 2}))
	assert.False(ec.AddEvents(ctx, []int{3, 4, 5}))
	assert.Equal(2, ec.Len())

	assert.True(ec.CanHold(4))
	assert.False(ec.CanHold(5))
}

func Test_EventChannel_Signals(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	ec := newTestChannel(1)

	notEmpty := ec.NotEmpty()
	select {
	case <-notEmpty:
		assert.Fail("not empty signalled before any add")
	default:
	}

	assert.True(ec.AddEvent(ctx, 1))
	assert.Eventually(func() bool {
		select {
		case <-notEmpty:
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)

	notFull := ec.NotFull()

	// a failed add must not wake anybody
	assert.False(ec.AddEvent(ctx, 2))

	_, ok := ec.GetEvent(ctx)
	assert.True(ok)

	select {
	case <-notFull:
	default:
		assert.Fail("not full not signalled after a get")
	}
}

func Test_EventChannel_MultipleProducersConsumers(t *testing.T) {
	assert := assert.New(t)

	const (
		numProducers     = 8
		numConsumers     = 8
		itemsPerProducer = 10_000
		totalItems       = numProducers * itemsPerProducer
	)

	ec := newTestChannel(128)
	sink := NewBlockingSink[int](ec, ec)
	source := NewBlockingSource[int](ec, ec)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var receivedItems sync.Map
	var receivedCount atomic.Int64

	consumersCtx, stopConsumers := context.WithCancel(ctx)
	defer stopConsumers()

	consumerWg := &sync.WaitGroup{}
	consumerWg.Add(numConsumers)
	for range numConsumers {
		go func() {
			defer consumerWg.Done()

			for {
				evs := source.GetEvents(consumersCtx, 16)
				if len(evs) == 0 {
					return
				}

				for _, ev := range evs {
					_, loaded := receivedItems.LoadOrStore(ev, true)
					assert.False(loaded, "duplicated item %d", ev)
				}

				if receivedCount.Add(int64(len(evs))) == totalItems {
					stopConsumers()
				}
			}
		}()
	}

	producerWg := &sync.WaitGroup{}
	producerWg.Add(numProducers)
	for p := range numProducers {
		go func(producerID int) {
			defer producerWg.Done()

			base := producerID * itemsPerProducer
			for i := range itemsPerProducer {
				assert.True(sink.AddEvent(ctx, base+i))
			}
		}(p)
	}

	producerWg.Wait()
	consumerWg.Wait()

	assert.Equal(int64(totalItems), receivedCount.Load())
	assert.Equal(0, ec.Len())
}

func Benchmark_EventChannel_AddGet(b *testing.B) {
	ctx := context.Background()
	ec := newTestChannel(1024)

	b.ReportAllocs()
	for b.Loop() {
		ec.AddEvent(ctx, 1)
		ec.GetEvent(ctx)
	}
}
