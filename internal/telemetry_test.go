package internal

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_Telemetry(t *testing.T) {
	assert := assert.New(t)

	tel := NewTelemetry("test", "telemetry")

	assert.Equal("test", tel.Kind())
	assert.Equal("telemetry", tel.Name())
	assert.NotNil(tel.Logger())
	assert.Equal("test_telemetry_events", tel.getMeterName("events"))

	counter := tel.NewCounter("events")
	assert.NotNil(counter)
	assert.NotPanics(func() { counter.Add(context.Background(), 1) })

	assert.NotPanics(func() { tel.NewGauge("depth", func() int64 { return 1 }) })

	ctx, span := tel.NewTrace(context.Background(), "test span")
	assert.NotNil(ctx)
	span.End()

	assert.NotPanics(func() {
		tel.LogDebug("debug")
		tel.LogInfo("info", "key", "value")
		tel.LogWarn("warn")
		tel.LogError("error", errors.New("boom"))
	})
}

func Test_SetLogLevel(t *testing.T) {
	assert := assert.New(t)

	defer SetLogLevel(slog.LevelInfo)

	SetLogLevel(slog.LevelDebug)
	assert.Equal(slog.LevelDebug, logLevel.Level())

	l := NewLogger("test", "level")
	assert.True(l.Enabled(context.Background(), slog.LevelDebug))

	SetLogLevel(slog.LevelWarn)
	assert.False(l.Enabled(context.Background(), slog.LevelInfo))
}

func Test_Stats(t *testing.T) {
	assert := assert.New(t)

	s := NewStats(NewLogger("test", "stats"), 0)
	assert.Equal(time.Second, s.interval)

	s.AddItems(3)
	s.AddItems(4)
	assert.Equal(uint64(7), s.itemCount.Load())
	assert.Equal(uint64(2), s.batchCount.Load())

	s = NewStats(NewLogger("test", "stats"), time.Millisecond)
	s.AddItems(5)

	ctx, cancel := context.WithCancel(context.Background())
	doneCh := make(chan struct{})
	go func() {
		s.RunStats(ctx)
		close(doneCh)
	}()

	assert.Eventually(func() bool { return s.itemCount.Load() == 0 }, 5*time.Second, time.Millisecond)

	cancel()
	<-doneCh
}
