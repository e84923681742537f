package questdb

import "time"

type Config struct {
	// Address is the host:port of the QuestDB HTTP endpoint.
	Address string

	AutoFlushRows int
	RetryTimeout  time.Duration
}

func NewDefaultConfig() *Config {
	return &Config{
		Address: "localhost:9000",

		AutoFlushRows: 75_000,
		RetryTimeout:  time.Second,
	}
}
