// Package ingress turns accepted stream connections into messages.
package ingress

import (
	"bufio"
	"context"
	"errors"
	"net"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/squadracorsepolito/acmenet/acceptor"
	"github.com/squadracorsepolito/acmenet/connector"
	"github.com/squadracorsepolito/acmenet/internal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Stream reads newline delimited records from every connection handed to it,
// one goroutine per connection, and pushes them to a sink as [Message] values.
type Stream struct {
	tel *internal.Telemetry
	cfg *Config

	acceptorName string
	sink         connector.Sink[*Message]

	ctx    context.Context
	cancel context.CancelFunc

	mux    sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
	wg     sync.WaitGroup

	// Telemetry metrics
	receivedRecords metric.Int64Counter
	receivedBytes   metric.Int64Counter
	droppedRecords  metric.Int64Counter
}

var _ acceptor.Handler = (*Stream)(nil)

// NewStream returns a stream handler for the acceptor named acceptorName.
// A nil cfg selects [NewDefaultConfig]. It panics if sink is nil.
func NewStream(acceptorName string, sink connector.Sink[*Message], cfg *Config) *Stream {
	if sink == nil {
		panic("sink is nil")
	}

	if cfg == nil {
		cfg = NewDefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Stream{
		tel: internal.NewTelemetry("ingress", acceptorName),
		cfg: cfg,

		acceptorName: acceptorName,
		sink:         sink,

		ctx:    ctx,
		cancel: cancel,

		conns: make(map[net.Conn]struct{}),
	}

	s.receivedRecords = s.tel.NewCounter("received_records")
	s.receivedBytes = s.tel.NewCounter("received_bytes")
	s.droppedRecords = s.tel.NewCounter("dropped_records")

	s.tel.NewGauge("open_connections", func() int64 {
		return int64(s.OpenConnections())
	})

	return s
}

// Handle starts reading conn on a new goroutine and returns immediately.
func (s *Stream) Handle(conn net.Conn) {
	s.mux.Lock()
	if s.closed {
		s.mux.Unlock()
		conn.Close()
		return
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	s.mux.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.forget(conn)

		s.read(conn)
	}()
}

func (s *Stream) forget(conn net.Conn) {
	s.mux.Lock()
	delete(s.conns, conn)
	s.mux.Unlock()

	if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.tel.LogWarn("failed to close connection", "reason", err)
	}
}

func (s *Stream) read(conn net.Conn) {
	remote := conn.RemoteAddr().String()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), s.cfg.MaxRecordSize)

	for {
		if s.cfg.IdleTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		}

		if !scanner.Scan() {
			break
		}

		record := scanner.Bytes()
		if len(record) == 0 {
			continue
		}

		s.push(remote, slices.Clone(record))
	}

	err := scanner.Err()
	switch {
	case err == nil:
		s.tel.LogDebug("connection closed by peer", "remote", remote)
	case errors.Is(err, net.ErrClosed), s.ctx.Err() != nil:
	case errors.Is(err, os.ErrDeadlineExceeded):
		s.tel.LogInfo("closing idle connection", "remote", remote)
	default:
		s.tel.LogError("failed to read connection", err, "remote", remote)
	}
}

func (s *Stream) push(remote string, payload []byte) {
	ctx, span := s.tel.NewTrace(s.ctx, "receive record")
	defer span.End()

	span.SetAttributes(attribute.Int("payload_size", len(payload)))

	s.receivedRecords.Add(ctx, 1)
	s.receivedBytes.Add(ctx, int64(len(payload)))

	if !s.sink.AddEvent(ctx, newMessage(s.acceptorName, remote, payload)) {
		s.droppedRecords.Add(ctx, 1)
	}
}

// OpenConnections returns the number of connections being read.
func (s *Stream) OpenConnections() int {
	s.mux.Lock()
	defer s.mux.Unlock()

	return len(s.conns)
}

// Close closes every open connection, unblocks pending pushes
// and waits for the readers to return or ctx to be done.
// Connections handed over afterwards are closed right away.
func (s *Stream) Close(ctx context.Context) error {
	s.mux.Lock()
	s.closed = true
	for conn := range s.conns {
		conn.Close()
	}
	s.mux.Unlock()

	s.cancel()

	doneCh := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(doneCh)
	}()

	select {
	case <-doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Stream) Init(_ context.Context) error {
	return nil
}

// Run waits until ctx is done or the stream is closed.
// Connections are served by the goroutines started in Handle.
func (s *Stream) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
	case <-s.ctx.Done():
	}
	return nil
}

func (s *Stream) Stop() {
	if err := s.Close(context.Background()); err != nil {
		s.tel.LogError("failed to close stream", err)
	}
}
