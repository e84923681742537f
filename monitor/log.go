package monitor

import (
	"context"
	"net"

	"github.com/squadracorsepolito/acmenet/internal"
	"go.opentelemetry.io/otel/metric"
)

// Log reports notifications as structured log records
// and counts accepted connections and errors.
type Log struct {
	tel *internal.Telemetry

	// Telemetry metrics
	handledConnections metric.Int64Counter
	acceptErrors       metric.Int64Counter
}

var _ Monitor = (*Log)(nil)

func NewLog(kind, name string) *Log {
	tel := internal.NewTelemetry(kind, name)

	return &Log{
		tel: tel,

		handledConnections: tel.NewCounter("handled_connections"),
		acceptErrors:       tel.NewCounter("accept_errors"),
	}
}

func addrString(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	return addr.String()
}

func (l *Log) AcceptorCreated(name string, addr net.Addr) {
	l.tel.LogInfo("acceptor created", "acceptor", name, "address", addrString(addr))
}

func (l *Log) AcceptorClosing(name string) {
	l.tel.LogInfo("acceptor closing", "acceptor", name)
}

func (l *Log) Listening(name string, addr net.Addr) {
	l.tel.LogInfo("listening", "acceptor", name, "address", addrString(addr))
}

func (l *Log) ErrorAccepting(name string, err error) {
	l.tel.LogError("failed to accept connection", err, "acceptor", name)
	l.acceptErrors.Add(context.Background(), 1)
}

func (l *Log) ErrorClosingSocket(name string, err error) {
	l.tel.LogError("failed to close socket", err, "acceptor", name)
}

func (l *Log) HandlingConnection(name string, conn net.Conn) {
	l.tel.LogDebug("handling connection", "acceptor", name, "remote", addrString(conn.RemoteAddr()))
	l.handledConnections.Add(context.Background(), 1)
}
