package multiplex

import "time"

// poller waits for read readiness on a set of listening sockets.
// add and remove may be called concurrently with wait.
type poller interface {
	add(fd int) error
	remove(fd int) error
	// wait blocks up to timeout and calls onReady for every ready descriptor.
	// A wake-up makes it return early without calling onReady for it.
	wait(timeout time.Duration, onReady func(fd int)) error
	wake() error
	close() error
}
