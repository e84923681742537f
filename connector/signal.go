package connector

// signal is a broadcast primitive usable in a select statement.
// It must be guarded by the mutex of its owner.
type signal struct {
	ch    chan struct{}
	armed bool
}

func newSignal() signal {
	return signal{ch: make(chan struct{})}
}

// wait returns the channel that will be closed by the next broadcast.
func (s *signal) wait() <-chan struct{} {
	s.armed = true
	return s.ch
}

// broadcast wakes every waiter. Nothing is allocated if nobody is waiting.
func (s *signal) broadcast() {
	if !s.armed {
		return
	}

	close(s.ch)
	s.ch = make(chan struct{})
	s.armed = false
}
