package multiplex

import (
	"time"

	"github.com/squadracorsepolito/acmenet/monitor"
)

const defaultPollTimeout = 100 * time.Millisecond

type Config struct {
	// MaxEvents is the number of readiness events collected by a single poll.
	MaxEvents int
	// PollTimeout bounds a single poll, so the loop notices a shutdown
	// even if a wake-up is lost. A non-positive value selects 100ms.
	PollTimeout time.Duration

	// CloseListenersOnShutdown makes Shutdown close the connected listeners.
	// By default listeners are left open and owned by the caller.
	CloseListenersOnShutdown bool

	// Monitor is notified about the acceptors lifecycle.
	// A nil Monitor discards every notification.
	Monitor monitor.Monitor
}

func NewDefaultConfig() *Config {
	return &Config{
		MaxEvents:   128,
		PollTimeout: defaultPollTimeout,

		CloseListenersOnShutdown: false,

		Monitor: monitor.Nop{},
	}
}
