package monitor

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Multi(t *testing.T) {
	assert := assert.New(t)

	first := NewRecorder()
	second := NewRecorder()
	m := Multi{first, Nop{}, second}

	addr := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9000}
	m.AcceptorCreated("a", addr)
	m.Listening("a", addr)
	m.ErrorAccepting("a", errors.New("accept failed"))
	m.ErrorClosingSocket("a", errors.New("close failed"))
	m.AcceptorClosing("a")

	for _, rec := range []*Recorder{first, second} {
		evs := rec.Events()
		assert.Len(evs, 5)

		assert.Equal(EventAcceptorCreated, evs[0].Kind)
		assert.Equal(addr, evs[0].Addr)
		assert.Equal(EventListening, evs[1].Kind)
		assert.EqualError(evs[2].Err, "accept failed")
		assert.EqualError(evs[3].Err, "close failed")
		assert.Equal(EventAcceptorClosing, evs[4].Kind)
	}
}

func Test_Recorder_HandlingConnection(t *testing.T) {
	assert := assert.New(t)

	rec := NewRecorder()

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	rec.HandlingConnection("b", server)
	rec.HandlingConnection("a", server)

	assert.Equal(2, rec.Count(EventHandlingConnection))
	assert.Equal([]string{"b", "a"}, rec.Names(EventHandlingConnection))
	assert.Zero(rec.Count(EventErrorAccepting))
}

func Test_OrNop(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(Nop{}, OrNop(nil))

	rec := NewRecorder()
	assert.Same(rec, OrNop(rec))
}

func Test_Log(t *testing.T) {
	l := NewLog("monitor", "test")

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	assert.NotPanics(t, func() {
		l.AcceptorCreated("a", nil)
		l.Listening("a", &net.TCPAddr{})
		l.HandlingConnection("a", server)
		l.ErrorAccepting("a", errors.New("boom"))
		l.ErrorClosingSocket("a", errors.New("boom"))
		l.AcceptorClosing("a")
	})
}

func Test_EventKind_String(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("listening", EventListening.String())
	assert.Equal("handling_connection", EventHandlingConnection.String())
	assert.Equal("unknown", EventKind(99).String())
}
