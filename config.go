package rpcperf

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the full benchmark configuration. It is loaded once, validated,
// and never mutated afterwards; the only runtime-mutable knob is the
// admission rate, which lives in the shared Ratelimiter, not here.
type Config struct {
	General    GeneralConfig    `toml:"general"`
	Target     TargetConfig     `toml:"target"`
	Connection ConnectionConfig `toml:"connection"`
	Request    RequestConfig    `toml:"request"`
	Keyspaces  []KeyspaceConfig `toml:"keyspace"`
}

// GeneralConfig holds run-level settings.
type GeneralConfig struct {
	Protocol string `toml:"protocol"` // memcache, redis, mrpc
	Interval int    `toml:"interval"` // reporting window length in seconds
	Windows  int    `toml:"windows"`  // post-warmup windows before the run stops
	Service  bool   `toml:"service"`  // keep running after windows elapse
	Threads  int    `toml:"threads"`  // worker count
	Admin    string `toml:"admin"`    // admin listen address, empty disables
}

// TargetConfig lists the endpoints under test.
type TargetConfig struct {
	Endpoints []string `toml:"endpoints"`
}

// ConnectionConfig shapes each worker's connection pool.
type ConnectionConfig struct {
	Poolsize       int `toml:"poolsize"`        // connections per endpoint per worker
	Pipeline       int `toml:"pipeline"`        // in-flight requests per connection
	Timeout        int `toml:"timeout"`         // request timeout in milliseconds
	ConnectTimeout int `toml:"connect-timeout"` // dial timeout in milliseconds
}

// RequestConfig holds the global admission settings.
type RequestConfig struct {
	Ratelimit uint64 `toml:"ratelimit"` // requests per second, 0 = unlimited
}

// CommandConfig is one (verb, weight) entry in a keyspace's command mix.
type CommandConfig struct {
	Verb   string `toml:"verb"`
	Weight int    `toml:"weight"`
}

// ValueConfig is one (length, weight) entry in a keyspace's value sizes.
type ValueConfig struct {
	Length int `toml:"length"`
	Weight int `toml:"weight"`
}

// KeyspaceConfig describes one workload segment.
type KeyspaceConfig struct {
	Commands  []CommandConfig `toml:"commands"`
	Length    int             `toml:"length"`
	Values    []ValueConfig   `toml:"values"`
	TTL       uint32          `toml:"ttl"`
	BatchSize int             `toml:"batch_size"`
}

// DefaultConfig returns the config used when a section or field is absent
// from the document.
func DefaultConfig() Config {
	return Config{
		General: GeneralConfig{
			Protocol: "memcache",
			Interval: 60,
			Windows:  5,
			Threads:  1,
		},
		Connection: ConnectionConfig{
			Poolsize:       1,
			Pipeline:       1,
			Timeout:        200,
			ConnectTimeout: 500,
		},
	}
}

// LoadConfig reads and validates the TOML config at path.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks everything that must hold before any connection is opened.
// Keyspace weight and batch-size rules are rechecked against the concrete
// codec by NewKeyspace.
func (c *Config) Validate() error {
	if c.General.Protocol == "" {
		return fmt.Errorf("config: general.protocol is required")
	}
	if c.General.Interval < 1 {
		return fmt.Errorf("config: general.interval must be >= 1 second, got %d", c.General.Interval)
	}
	if c.General.Windows < 1 && !c.General.Service {
		return fmt.Errorf("config: general.windows must be >= 1, got %d", c.General.Windows)
	}
	if c.General.Threads < 1 {
		return fmt.Errorf("config: general.threads must be >= 1, got %d", c.General.Threads)
	}
	if len(c.Target.Endpoints) == 0 {
		return fmt.Errorf("config: target.endpoints must not be empty")
	}
	if c.Connection.Poolsize < 1 {
		return fmt.Errorf("config: connection.poolsize must be >= 1, got %d", c.Connection.Poolsize)
	}
	if c.Connection.Pipeline < 1 {
		return fmt.Errorf("config: connection.pipeline must be >= 1, got %d", c.Connection.Pipeline)
	}
	if c.Connection.Timeout < 1 {
		return fmt.Errorf("config: connection.timeout must be >= 1 ms, got %d", c.Connection.Timeout)
	}
	if c.Connection.ConnectTimeout < 1 {
		return fmt.Errorf("config: connection.connect-timeout must be >= 1 ms, got %d", c.Connection.ConnectTimeout)
	}
	if len(c.Keyspaces) == 0 {
		return fmt.Errorf("config: at least one [[keyspace]] is required")
	}
	return nil
}

// IntervalDuration returns the reporting window length.
func (c *Config) IntervalDuration() time.Duration {
	return time.Duration(c.General.Interval) * time.Second
}

// RequestTimeout returns the per-request I/O timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Connection.Timeout) * time.Millisecond
}

// ConnectTimeout returns the dial timeout.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Connection.ConnectTimeout) * time.Millisecond
}
