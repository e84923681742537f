//go:build !linux && !darwin && !dragonfly && !freebsd && !netbsd && !openbsd

package multiplex

func newPoller(_ int) (poller, error) {
	return nil, ErrUnsupported
}

func acceptConn(_ int) (int, error) {
	return -1, ErrUnsupported
}

func isWouldBlock(_ error) bool {
	return false
}
