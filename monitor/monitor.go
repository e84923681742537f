// Package monitor defines the observer notified by acceptors about their
// lifecycle and about the connections they hand off.
package monitor

import (
	"net"
)

// Monitor receives lifecycle and error notifications from acceptors.
// Implementations are called from the accepting goroutine and must not block.
type Monitor interface {
	AcceptorCreated(name string, addr net.Addr)
	AcceptorClosing(name string)
	Listening(name string, addr net.Addr)
	ErrorAccepting(name string, err error)
	ErrorClosingSocket(name string, err error)
	HandlingConnection(name string, conn net.Conn)
}

// Nop discards every notification.
type Nop struct{}

var _ Monitor = Nop{}

func (Nop) AcceptorCreated(string, net.Addr)    {}
func (Nop) AcceptorClosing(string)              {}
func (Nop) Listening(string, net.Addr)          {}
func (Nop) ErrorAccepting(string, error)        {}
func (Nop) ErrorClosingSocket(string, error)    {}
func (Nop) HandlingConnection(string, net.Conn) {}

// Multi fans every notification out to each of its monitors, in order.
type Multi []Monitor

var _ Monitor = Multi(nil)

func (m Multi) AcceptorCreated(name string, addr net.Addr) {
	for _, mon := range m {
		mon.AcceptorCreated(name, addr)
	}
}

func (m Multi) AcceptorClosing(name string) {
	for _, mon := range m {
		mon.AcceptorClosing(name)
	}
}

func (m Multi) Listening(name string, addr net.Addr) {
	for _, mon := range m {
		mon.Listening(name, addr)
	}
}

func (m Multi) ErrorAccepting(name string, err error) {
	for _, mon := range m {
		mon.ErrorAccepting(name, err)
	}
}

func (m Multi) ErrorClosingSocket(name string, err error) {
	for _, mon := range m {
		mon.ErrorClosingSocket(name, err)
	}
}

func (m Multi) HandlingConnection(name string, conn net.Conn) {
	for _, mon := range m {
		mon.HandlingConnection(name, conn)
	}
}

// OrNop returns mon, or [Nop] when mon is nil.
func OrNop(mon Monitor) Monitor {
	if mon == nil {
		return Nop{}
	}
	return mon
}
