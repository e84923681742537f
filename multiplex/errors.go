package multiplex

import "errors"

var (
	ErrInvalidArgument     = errors.New("multiplex: invalid argument")
	ErrAlreadyConnected    = errors.New("multiplex: acceptor already connected")
	ErrNotConnected        = errors.New("multiplex: acceptor not connected")
	ErrUnsupportedListener = errors.New("multiplex: listener does not expose a file descriptor")
	ErrAlreadyStarted      = errors.New("multiplex: manager already started")
	ErrClosed              = errors.New("multiplex: manager closed")
	ErrUnsupported         = errors.New("multiplex: readiness polling not supported on this platform")
)
