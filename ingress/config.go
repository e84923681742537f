package ingress

import "time"

type Config struct {
	// MaxRecordSize is the longest record accepted. A longer record
	// ends the connection.
	MaxRecordSize int
	// IdleTimeout closes a connection that sends nothing for this long.
	// Zero disables it.
	IdleTimeout time.Duration
}

func NewDefaultConfig() *Config {
	return &Config{
		MaxRecordSize: 64 * 1024,
		IdleTimeout:   time.Minute,
	}
}
