//go:build darwin || dragonfly || freebsd || netbsd || openbsd

package multiplex

import (
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

type kqueuePoller struct {
	kq    int
	wakeR int
	wakeW int

	events []unix.Kevent_t
	closed atomic.Bool
}

func newPoller(maxEvents int) (poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(kq)

	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		unix.Close(kq)
		return nil, err
	}

	p := &kqueuePoller{
		kq:    kq,
		wakeR: fds[0],
		wakeW: fds[1],

		events: make([]unix.Kevent_t, maxEvents),
	}

	for _, fd := range fds {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			p.closeAll()
			return nil, err
		}
	}

	if err := p.add(p.wakeR); err != nil {
		p.closeAll()
		return nil, err
	}

	return p, nil
}

func (p *kqueuePoller) ctl(fd, flags int) error {
	changes := make([]unix.Kevent_t, 1)
	unix.SetKevent(&changes[0], fd, unix.EVFILT_READ, flags)

	_, err := unix.Kevent(p.kq, changes, nil, nil)
	return err
}

func (p *kqueuePoller) add(fd int) error {
	return p.ctl(fd, unix.EV_ADD|unix.EV_ENABLE)
}

func (p *kqueuePoller) remove(fd int) error {
	return p.ctl(fd, unix.EV_DELETE)
}

func (p *kqueuePoller) wait(timeout time.Duration, onReady func(fd int)) error {
	ts := unix.NsecToTimespec(int64(timeout))

	n, err := unix.Kevent(p.kq, nil, p.events, &ts)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return nil
		}
		return err
	}

	for i := range n {
		fd := int(p.events[i].Ident)

		if fd == p.wakeR {
			p.drainWake()
			continue
		}

		onReady(fd)
	}

	return nil
}

func (p *kqueuePoller) drainWake() {
	var buf [64]byte
	for {
		if n, err := unix.Read(p.wakeR, buf[:]); n <= 0 || err != nil {
			return
		}
	}
}

func (p *kqueuePoller) wake() error {
	// EAGAIN means the pipe already holds a pending wake-up
	if _, err := unix.Write(p.wakeW, []byte{1}); err != nil && !errors.Is(err, unix.EAGAIN) {
		return err
	}
	return nil
}

func (p *kqueuePoller) closeAll() error {
	return errors.Join(unix.Close(p.wakeR), unix.Close(p.wakeW), unix.Close(p.kq))
}

func (p *kqueuePoller) close() error {
	if p.closed.Swap(true) {
		return nil
	}
	return p.closeAll()
}

func acceptConn(fd int) (int, error) {
	nfd, _, err := unix.Accept(fd)
	if err != nil {
		return -1, err
	}

	unix.CloseOnExec(nfd)
	if err := unix.SetNonblock(nfd, true); err != nil {
		unix.Close(nfd)
		return -1, err
	}

	return nfd, nil
}

func isWouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN)
}
