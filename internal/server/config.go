package server

import (
	"os"
	"strconv"
	"time"
)

// Config holds every tunable of the server. Defaults mirror spec.md §6
// (listen address) and the teacher's layered flag-then-env override
// style (server/config.go's getEnv* helpers), generalized here for the
// go-flags struct used by cmd/queued.
type Config struct {
	ListenAddr string `long:"listen" description:"address to accept queue protocol connections on" default:"127.0.0.1:5248"`
	MetricsAddr string `long:"metrics-listen" description:"address to serve /metrics on; empty disables metrics" default:"127.0.0.1:9248"`

	MaxConnections int `long:"max-connections" description:"maximum simultaneous connections admitted by the accept pool" default:"1000"`
	AcceptQueue    int `long:"accept-queue" description:"accept backlog size; not read by the server, which holds each accepted connection in the accept loop until an admission slot frees" default:"256"`

	RateLimitPerSecond int `long:"rate-limit" description:"maximum commands per second accepted from a single connection" default:"200"`
	RateLimitBurst     int `long:"rate-limit-burst" description:"token bucket burst size per connection" default:"400"`

	LogLevel string `long:"log-level" description:"logrus level: trace, debug, info, warn, error" default:"info"`
}

// DefaultConfig returns the zero-effort configuration: a loopback
// listener on the protocol's canonical port.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:         "127.0.0.1:5248",
		MetricsAddr:        "127.0.0.1:9248",
		MaxConnections:     1000,
		AcceptQueue:        256,
		RateLimitPerSecond: 200,
		RateLimitBurst:     400,
		LogLevel:           "info",
	}
}

// ApplyEnvOverrides layers QUEUED_-prefixed environment variables over
// whatever go-flags already parsed, the way the teacher's config.go
// lets environment variables win over flag defaults.
func (c *Config) ApplyEnvOverrides() {
	c.ListenAddr = getEnv("QUEUED_LISTEN", c.ListenAddr)
	c.MetricsAddr = getEnv("QUEUED_METRICS_LISTEN", c.MetricsAddr)
	c.MaxConnections = getEnvInt("QUEUED_MAX_CONNECTIONS", c.MaxConnections)
	c.AcceptQueue = getEnvInt("QUEUED_ACCEPT_QUEUE", c.AcceptQueue)
	c.RateLimitPerSecond = getEnvInt("QUEUED_RATE_LIMIT", c.RateLimitPerSecond)
	c.RateLimitBurst = getEnvInt("QUEUED_RATE_LIMIT_BURST", c.RateLimitBurst)
	c.LogLevel = getEnv("QUEUED_LOG_LEVEL", c.LogLevel)
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

// StaleConnectionSweepInterval is how often the Registry logs long-lived
// connections. Not configurable via flags: it's an observability detail,
// not a protocol-affecting one.
const StaleConnectionSweepInterval = 5 * time.Minute
