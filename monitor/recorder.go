package monitor

import (
	"net"
	"slices"
	"sync"
)

type EventKind int

const (
	EventAcceptorCreated EventKind = iota
	EventAcceptorClosing
	EventListening
	EventErrorAccepting
	EventErrorClosingSocket
	EventHandlingConnection
)

func (k EventKind) String() string {
	switch k {
	case EventAcceptorCreated:
		return "acceptor_created"
	case EventAcceptorClosing:
		return "acceptor_closing"
	case EventListening:
		return "listening"
	case EventErrorAccepting:
		return "error_accepting"
	case EventErrorClosingSocket:
		return "error_closing_socket"
	case EventHandlingConnection:
		return "handling_connection"
	default:
		return "unknown"
	}
}

// Event is a notification kept by a [Recorder].
type Event struct {
	Kind EventKind
	Name string
	Addr net.Addr
	Err  error
}

// Recorder keeps every notification in memory. It is safe for concurrent use.
type Recorder struct {
	mux    sync.Mutex
	events []Event
}

var _ Monitor = (*Recorder)(nil)

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) record(ev Event) {
	r.mux.Lock()
	defer r.mux.Unlock()

	r.events = append(r.events, ev)
}

func (r *Recorder) AcceptorCreated(name string, addr net.Addr) {
	r.record(Event{Kind: EventAcceptorCreated, Name: name, Addr: addr})
}

func (r *Recorder) AcceptorClosing(name string) {
	r.record(Event{Kind: EventAcceptorClosing, Name: name})
}

func (r *Recorder) Listening(name string, addr net.Addr) {
	r.record(Event{Kind: EventListening, Name: name, Addr: addr})
}

func (r *Recorder) ErrorAccepting(name string, err error) {
	r.record(Event{Kind: EventErrorAccepting, Name: name, Err: err})
}

func (r *Recorder) ErrorClosingSocket(name string, err error) {
	r.record(Event{Kind: EventErrorClosingSocket, Name: name, Err: err})
}

func (r *Recorder) HandlingConnection(name string, conn net.Conn) {
	r.record(Event{Kind: EventHandlingConnection, Name: name, Addr: conn.RemoteAddr()})
}

// Events returns a copy of the recorded notifications.
func (r *Recorder) Events() []Event {
	r.mux.Lock()
	defer r.mux.Unlock()

	return slices.Clone(r.events)
}

// Count returns how many notifications of the given kind were recorded.
func (r *Recorder) Count(kind EventKind) int {
	r.mux.Lock()
	defer r.mux.Unlock()

	count := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			count++
		}
	}
	return count
}

// Names returns, in order, the acceptor names of the notifications of the given kind.
func (r *Recorder) Names(kind EventKind) []string {
	r.mux.Lock()
	defer r.mux.Unlock()

	names := []string{}
	for _, ev := range r.events {
		if ev.Kind == kind {
			names = append(names, ev.Name)
		}
	}
	return names
}
