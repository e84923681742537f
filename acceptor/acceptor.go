// Package acceptor accepts connections from a listener on a dedicated goroutine
// and hands each of them to a [Handler].
package acceptor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/squadracorsepolito/acmenet/internal"
	"github.com/squadracorsepolito/acmenet/monitor"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrAlreadyStarted = errors.New("acceptor: already started")
	ErrListenerClosed = errors.New("acceptor: listener closed while active")
)

// Handler takes ownership of an accepted connection.
type Handler interface {
	Handle(conn net.Conn)
}

// HandlerFunc adapts a function to the [Handler] interface.
type HandlerFunc func(conn net.Conn)

func (f HandlerFunc) Handle(conn net.Conn) {
	f(conn)
}

type Acceptor struct {
	tel *internal.Telemetry
	cfg *Config

	name    string
	ln      net.Listener
	handler Handler
	mon     monitor.Monitor

	active atomic.Bool

	mux     sync.Mutex
	started bool

	closeOnce sync.Once
	closeErr  error
	closingCh chan struct{}
	doneCh    chan struct{}

	// Telemetry metrics
	acceptedConns  metric.Int64Counter
	discardedConns metric.Int64Counter
	handlerPanics  metric.Int64Counter
}

// NewAcceptor returns an active acceptor serving ln. A nil cfg selects [NewDefaultConfig].
// It panics if ln or handler is nil.
func NewAcceptor(name string, ln net.Listener, handler Handler, cfg *Config) *Acceptor {
	if ln == nil {
		panic("listener is nil")
	}
	if handler == nil {
		panic("handler is nil")
	}

	if cfg == nil {
		cfg = NewDefaultConfig()
	}

	a := &Acceptor{
		tel: internal.NewTelemetry("acceptor", name),
		cfg: cfg,

		name:    name,
		ln:      ln,
		handler: handler,
		mon:     monitor.OrNop(cfg.Monitor),

		closingCh: make(chan struct{}),
		doneCh:    make(chan struct{}),
	}

	a.active.Store(true)
	a.initMetrics()

	a.mon.AcceptorCreated(name, ln.Addr())

	return a
}

// Listen opens a TCP listener on addr and returns an acceptor serving it.
func Listen(ctx context.Context, name, addr string, handler Handler, cfg *Config) (*Acceptor, error) {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("acceptor: listen on %s: %w", addr, err)
	}

	return NewAcceptor(name, ln, handler, cfg), nil
}

func (a *Acceptor) initMetrics() {
	a.acceptedConns = a.tel.NewCounter("accepted_connections")
	a.discardedConns = a.tel.NewCounter("discarded_connections")
	a.handlerPanics = a.tel.NewCounter("handler_panics")
}

func (a *Acceptor) Name() string {
	return a.name
}

func (a *Acceptor) Addr() net.Addr {
	return a.ln.Addr()
}

// IsActive reports whether the acceptor still hands off connections.
func (a *Acceptor) IsActive() bool {
	return a.active.Load()
}

func (a *Acceptor) Init(_ context.Context) error {
	return nil
}

// Start runs the accept loop on a new goroutine.
func (a *Acceptor) Start() {
	go func() {
		if err := a.Run(context.Background()); err != nil {
			a.tel.LogError("accept loop failed", err)
		}
	}()
}

// Run accepts connections on the calling goroutine until the acceptor is closed
// or ctx is done. Cancelling ctx closes the acceptor.
// It returns an error wrapping [ErrListenerClosed] if the listener
// was closed by someone else while the acceptor was still active.
func (a *Acceptor) Run(ctx context.Context) error {
	a.mux.Lock()
	if a.started {
		a.mux.Unlock()
		return ErrAlreadyStarted
	}
	a.started = true
	a.mux.Unlock()

	defer close(a.doneCh)

	if !a.active.Load() {
		return nil
	}

	go func() {
		select {
		case <-ctx.Done():
			a.close()
		case <-a.doneCh:
		}
	}()

	a.mon.Listening(a.name, a.ln.Addr())

	var backoff time.Duration
	for {
		conn, err := a.ln.Accept()
		if err != nil {
			if !a.active.Load() {
				return nil
			}

			a.mon.ErrorAccepting(a.name, err)

			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("%w: %w", ErrListenerClosed, err)
			}

			backoff = a.nextBackoff(backoff)
			a.pause(backoff)
			continue
		}

		backoff = 0

		if !a.active.Load() {
			// closed between accept and handoff
			a.discard(conn)
			return nil
		}

		a.handoff(ctx, conn)
	}
}

// nextBackoff doubles prev, starting from MinAcceptBackoff
// (or [defaultMinAcceptBackoff] when unset) and capping at MaxAcceptBackoff.
func (a *Acceptor) nextBackoff(prev time.Duration) time.Duration {
	next := prev * 2
	if prev <= 0 {
		next = a.cfg.MinAcceptBackoff
		if next <= 0 {
			next = defaultMinAcceptBackoff
		}
	}

	if a.cfg.MaxAcceptBackoff > 0 && next > a.cfg.MaxAcceptBackoff {
		next = a.cfg.MaxAcceptBackoff
	}

	return next
}

func (a *Acceptor) pause(d time.Duration) {
	if d <= 0 {
		return
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-a.closingCh:
	case <-timer.C:
	}
}

func (a *Acceptor) discard(conn net.Conn) {
	a.discardedConns.Add(context.Background(), 1)

	if err := conn.Close(); err != nil {
		a.tel.LogWarn("failed to close discarded connection", "reason", err)
	}
}

func (a *Acceptor) handoff(ctx context.Context, conn net.Conn) {
	_, span := a.tel.NewTrace(ctx, "accept connection")
	defer span.End()

	span.SetAttributes(attribute.String("remote_addr", conn.RemoteAddr().String()))

	a.acceptedConns.Add(ctx, 1)
	a.mon.HandlingConnection(a.name, conn)

	defer func() {
		if r := recover(); r != nil {
			a.handlerPanics.Add(ctx, 1)
			a.tel.LogError("connection handler panicked", fmt.Errorf("%v", r))
		}
	}()

	a.handler.Handle(conn)
}

func (a *Acceptor) close() {
	a.closeOnce.Do(func() {
		a.active.Store(false)
		close(a.closingCh)

		a.mon.AcceptorClosing(a.name)

		if err := a.ln.Close(); err != nil {
			a.mon.ErrorClosingSocket(a.name, err)
			a.closeErr = err
		}
	})
}

// Close deactivates the acceptor, closes its listener and waits for the
// accept loop to return. It must not be called from a [Handler].
// It returns the error met closing the listener, if any.
func (a *Acceptor) Close() error {
	a.close()

	a.mux.Lock()
	started := a.started
	a.mux.Unlock()

	if started {
		<-a.doneCh
	}

	return a.closeErr
}

func (a *Acceptor) Stop() {
	if err := a.Close(); err != nil {
		a.tel.LogError("failed to close acceptor", err)
	}
}
