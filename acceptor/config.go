package acceptor

import (
	"time"

	"github.com/squadracorsepolito/acmenet/monitor"
)

const defaultMinAcceptBackoff = 5 * time.Millisecond

type Config struct {
	// Monitor is notified about the acceptor lifecycle.
	// A nil Monitor discards every notification.
	Monitor monitor.Monitor

	// MinAcceptBackoff and MaxAcceptBackoff bound the pause taken
	// after a failed accept. The pause doubles at each consecutive failure.
	// A zero MinAcceptBackoff falls back to 5ms, a zero MaxAcceptBackoff
	// leaves the pause uncapped.
	MinAcceptBackoff time.Duration
	MaxAcceptBackoff time.Duration
}

func NewDefaultConfig() *Config {
	return &Config{
		Monitor: monitor.Nop{},

		MinAcceptBackoff: defaultMinAcceptBackoff,
		MaxAcceptBackoff: time.Second,
	}
}
