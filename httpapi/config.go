package httpapi

import "time"

// Config defines HTTP and WebSocket transport settings.
type Config struct {
	Addr              string
	BasePath          string
	InactivityTimeout time.Duration
	WriteTimeout      time.Duration
	PingInterval      time.Duration
	ReadLimitBytes    int64
}

// Transport defaults.
const (
	DefaultInactivityTimeout = 5 * time.Minute
	DefaultWriteTimeout      = 10 * time.Second
	DefaultPingInterval      = 30 * time.Second
	DefaultReadLimitBytes    = 1 << 20
)

func (c Config) normalized() Config {
	if c.InactivityTimeout <= 0 {
		c.InactivityTimeout = DefaultInactivityTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = DefaultPingInterval
	}
	if c.ReadLimitBytes <= 0 {
		c.ReadLimitBytes = DefaultReadLimitBytes
	}
	return c
}
