package pump

import (
	"math"
	"time"
)

// Unbounded is the batch size that makes a pump take every available event.
const Unbounded = math.MaxInt

type Config struct {
	// BatchSize is the maximum number of events pulled by a refresh.
	// Values below 2 make the pump work one event at a time.
	BatchSize int
}

func NewDefaultConfig() *Config {
	return &Config{
		BatchSize: Unbounded,
	}
}

type RunnerConfig struct {
	// IdleBackoff is the first pause taken after a cycle in which no pump
	// found events. It doubles at every idle cycle up to MaxIdleBackoff.
	// A zero value disables the pause.
	IdleBackoff    time.Duration
	MaxIdleBackoff time.Duration

	// LogStats enables a periodic log of the dispatched events.
	LogStats      bool
	StatsInterval time.Duration
}

func NewDefaultRunnerConfig() *RunnerConfig {
	return &RunnerConfig{
		IdleBackoff:    10 * time.Microsecond,
		MaxIdleBackoff: 10 * time.Millisecond,

		LogStats:      false,
		StatsInterval: time.Second,
	}
}
