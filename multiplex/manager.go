// Package multiplex serves many listening sockets from a single goroutine.
//
// A [Manager] registers the listeners with the operating system readiness
// poller (epoll or kqueue) and, when one of them has a pending connection,
// accepts it and hands it to the [acceptor.Handler] attached to that listener.
// Handlers run one at a time on the manager goroutine, so they should hand
// long work off to other goroutines.
package multiplex

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/squadracorsepolito/acmenet/acceptor"
	"github.com/squadracorsepolito/acmenet/internal"
	"github.com/squadracorsepolito/acmenet/monitor"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type attachment struct {
	name    string
	handler acceptor.Handler
}

type registration struct {
	ln  net.Listener
	raw syscall.RawConn
	fd  int

	// cleared on disconnect, a readiness event seen afterwards is ignored
	att atomic.Pointer[attachment]
}

type Manager struct {
	tel *internal.Telemetry
	cfg *Config
	mon monitor.Monitor

	poller      poller
	pollTimeout time.Duration

	mux     sync.Mutex
	byName  map[string]*registration
	byFD    map[int]*registration
	started bool
	closed  bool

	running atomic.Bool
	doneCh  chan struct{}

	// Telemetry metrics
	acceptedConns metric.Int64Counter
	acceptErrors  metric.Int64Counter
	handlerPanics metric.Int64Counter
}

// NewManager opens the readiness poller. A nil cfg selects [NewDefaultConfig].
// It returns [ErrUnsupported] on platforms without epoll or kqueue.
func NewManager(name string, cfg *Config) (*Manager, error) {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}

	maxEvents := cfg.MaxEvents
	if maxEvents < 1 {
		maxEvents = 1
	}

	pollTimeout := cfg.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = defaultPollTimeout
	}

	p, err := newPoller(maxEvents)
	if err != nil {
		return nil, fmt.Errorf("multiplex: open poller: %w", err)
	}

	m := &Manager{
		tel: internal.NewTelemetry("multiplex", name),
		cfg: cfg,
		mon: monitor.OrNop(cfg.Monitor),

		poller:      p,
		pollTimeout: pollTimeout,

		byName: make(map[string]*registration),
		byFD:   make(map[int]*registration),

		doneCh: make(chan struct{}),
	}

	m.initMetrics()

	return m, nil
}

func (m *Manager) initMetrics() {
	m.acceptedConns = m.tel.NewCounter("accepted_connections")
	m.acceptErrors = m.tel.NewCounter("accept_errors")
	m.handlerPanics = m.tel.NewCounter("handler_panics")

	m.tel.NewGauge("connected_acceptors", func() int64 {
		m.mux.Lock()
		defer m.mux.Unlock()
		return int64(len(m.byName))
	})
}

// Connect registers ln under name. When ln has a pending connection,
// the manager accepts it and calls handler with it.
func (m *Manager) Connect(name string, ln net.Listener, handler acceptor.Handler) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidArgument)
	}
	if ln == nil {
		return fmt.Errorf("%w: nil listener", ErrInvalidArgument)
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler", ErrInvalidArgument)
	}

	sc, ok := ln.(syscall.Conn)
	if !ok {
		return ErrUnsupportedListener
	}

	raw, err := sc.SyscallConn()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnsupportedListener, err)
	}

	fd := -1
	if err := raw.Control(func(sysfd uintptr) { fd = int(sysfd) }); err != nil {
		return fmt.Errorf("%w: %w", ErrUnsupportedListener, err)
	}

	m.mux.Lock()
	defer m.mux.Unlock()

	if m.closed {
		return ErrClosed
	}

	if _, ok := m.byName[name]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyConnected, name)
	}

	reg := &registration{
		ln:  ln,
		raw: raw,
		fd:  fd,
	}
	reg.att.Store(&attachment{name: name, handler: handler})

	if err := m.poller.add(fd); err != nil {
		return fmt.Errorf("multiplex: register %s: %w", name, err)
	}

	m.byName[name] = reg
	m.byFD[fd] = reg

	m.mon.AcceptorCreated(name, ln.Addr())
	m.tel.LogInfo("acceptor connected", "acceptor", name, "address", ln.Addr().String())

	return nil
}

func (m *Manager) IsConnected(name string) bool {
	m.mux.Lock()
	defer m.mux.Unlock()

	_, ok := m.byName[name]
	return ok
}

// Names returns the sorted names of the connected acceptors.
func (m *Manager) Names() []string {
	m.mux.Lock()
	defer m.mux.Unlock()

	names := make([]string, 0, len(m.byName))
	for name := range m.byName {
		names = append(names, name)
	}
	slices.Sort(names)

	return names
}

// Disconnect stops serving the listener registered under name.
// The listener is left open.
func (m *Manager) Disconnect(name string) error {
	m.mux.Lock()
	reg, ok := m.byName[name]
	if ok {
		m.unregister(name, reg)
	}
	m.mux.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotConnected, name)
	}

	m.mon.AcceptorClosing(name)

	return nil
}

// unregister must be called with the mutex held.
func (m *Manager) unregister(name string, reg *registration) {
	reg.att.Store(nil)

	delete(m.byName, name)
	if m.byFD[reg.fd] == reg {
		delete(m.byFD, reg.fd)
	}

	// the descriptor may already be gone if the listener was closed elsewhere
	if err := m.poller.remove(reg.fd); err != nil {
		m.tel.LogWarn("failed to remove listener from poller", "acceptor", name, "reason", err)
	}
}

func (m *Manager) start() error {
	m.mux.Lock()
	defer m.mux.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.started {
		return ErrAlreadyStarted
	}

	m.started = true
	m.running.Store(true)

	return nil
}

func (m *Manager) Init(_ context.Context) error {
	return nil
}

// Startup runs the poll loop on a new goroutine.
func (m *Manager) Startup() error {
	if err := m.start(); err != nil {
		return err
	}

	go m.loop(context.Background())

	return nil
}

// Run runs the poll loop on the calling goroutine until the manager
// is shut down or ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.start(); err != nil {
		return err
	}

	m.loop(ctx)

	return nil
}

func (m *Manager) loop(ctx context.Context) {
	defer close(m.doneCh)

	go func() {
		select {
		case <-ctx.Done():
			if err := m.poller.wake(); err != nil {
				m.tel.LogError("failed to wake poller", err)
			}
		case <-m.doneCh:
		}
	}()

	m.tel.LogInfo("polling")

	for m.running.Load() && ctx.Err() == nil {
		if err := m.poller.wait(m.pollTimeout, m.onReady); err != nil {
			m.tel.LogError("failed to poll", err)
			return
		}
	}

	m.tel.LogInfo("stopped polling")
}

// onReady accepts one connection from the ready listener fd.
// A failed accept is reported and dropped without any backoff: readiness is
// level-triggered, so a persistent error such as EMFILE is reported again
// on every poll until it clears or the acceptor is disconnected.
func (m *Manager) onReady(fd int) {
	m.mux.Lock()
	reg := m.byFD[fd]
	m.mux.Unlock()

	if reg == nil {
		return
	}

	att := reg.att.Load()
	if att == nil {
		return
	}

	conn, err := m.accept(reg)
	if err != nil {
		if isWouldBlock(err) {
			// another process or a plain Accept got there first
			return
		}

		m.acceptErrors.Add(context.Background(), 1)
		m.mon.ErrorAccepting(att.name, err)
		return
	}

	m.handoff(att, conn)
}

func (m *Manager) accept(reg *registration) (net.Conn, error) {
	nfd := -1
	var acceptErr error

	if err := reg.raw.Control(func(fd uintptr) {
		nfd, acceptErr = acceptConn(int(fd))
	}); err != nil {
		return nil, err
	}
	if acceptErr != nil {
		return nil, acceptErr
	}

	f := os.NewFile(uintptr(nfd), "")
	defer f.Close()

	// FileConn duplicates the descriptor
	return net.FileConn(f)
}

func (m *Manager) handoff(att *attachment, conn net.Conn) {
	ctx, span := m.tel.NewTrace(context.Background(), "accept connection")
	defer span.End()

	span.SetAttributes(
		attribute.String("acceptor", att.name),
		attribute.String("remote_addr", conn.RemoteAddr().String()),
	)

	m.acceptedConns.Add(ctx, 1)
	m.mon.HandlingConnection(att.name, conn)

	defer func() {
		if r := recover(); r != nil {
			m.handlerPanics.Add(ctx, 1)
			m.tel.LogError("connection handler panicked", fmt.Errorf("%v", r), "acceptor", att.name)
		}
	}()

	att.handler.Handle(conn)
}

// Shutdown disconnects every acceptor, stops the poll loop, waits for it
// and releases the poller. Listeners are closed only if
// Config.CloseListenersOnShutdown is set. Calling Shutdown again is a no-op.
// It must not be called from a handler.
func (m *Manager) Shutdown() error {
	m.mux.Lock()

	if m.closed {
		m.mux.Unlock()
		return nil
	}

	m.closed = true
	started := m.started

	m.running.Store(false)

	listeners := make([]net.Listener, 0, len(m.byName))
	names := make([]string, 0, len(m.byName))
	for name, reg := range m.byName {
		m.unregister(name, reg)

		listeners = append(listeners, reg.ln)
		names = append(names, name)
	}

	m.mux.Unlock()

	var errs []error

	for idx, name := range names {
		m.mon.AcceptorClosing(name)

		if !m.cfg.CloseListenersOnShutdown {
			continue
		}

		if err := listeners[idx].Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			m.mon.ErrorClosingSocket(name, err)
			errs = append(errs, fmt.Errorf("multiplex: close %s: %w", name, err))
		}
	}

	if started {
		if err := m.poller.wake(); err != nil {
			m.tel.LogError("failed to wake poller", err)
		}
		<-m.doneCh
	}

	if err := m.poller.close(); err != nil {
		errs = append(errs, fmt.Errorf("multiplex: close poller: %w", err))
	}

	m.tel.LogInfo("shut down")

	return errors.Join(errs...)
}

func (m *Manager) Stop() {
	if err := m.Shutdown(); err != nil {
		m.tel.LogError("failed to shut down", err)
	}
}
