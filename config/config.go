// Package config loads service configuration from standard locations.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	errs "github.com/vinayprograms/taskkit/errors"
)

// Config holds the task service configuration loaded from taskkit.toml.
type Config struct {
	HTTP    HTTPConfig    `toml:"http"`
	NATS    NATSConfig    `toml:"nats"`
	Storage StorageConfig `toml:"storage"`
	Log     LogConfig     `toml:"log"`
}

// HTTPConfig configures the public surface.
type HTTPConfig struct {
	// Addr is the listen address for the REST and WebSocket endpoints.
	Addr string `toml:"addr"`
}

// NATSConfig configures the cross-host bus connection. An empty URL
// means the cross-host surface stays off and an in-process bus is used.
type NATSConfig struct {
	URL      string `toml:"url"`
	Token    string `toml:"token"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// StorageConfig configures forwarding to the task-storage peer.
type StorageConfig struct {
	// Enabled turns on archival to the storage peer.
	Enabled bool `toml:"enabled"`

	// Timeout bounds each forward, e.g. "5s".
	Timeout duration `toml:"timeout"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`
}

// duration lets TOML carry time.Duration as a string literal.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// StorageTimeout returns the configured forward timeout, or fallback
// when unset.
func (c *Config) StorageTimeout(fallback time.Duration) time.Duration {
	if c.Storage.Timeout.Duration > 0 {
		return c.Storage.Timeout.Duration
	}
	return fallback
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{Addr: ":8080"},
		Log:  LogConfig{Level: "info"},
	}
}

// StandardPaths returns the config file locations in priority order.
func StandardPaths() []string {
	paths := []string{"taskkit.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "taskkit", "taskkit.toml"))
		paths = append(paths, filepath.Join(home, ".taskkit", "taskkit.toml"))
	}
	return paths
}

// Load reads the first config file found in the standard locations.
// No file at all is not an error: defaults apply.
func Load() (*Config, string, error) {
	for _, path := range StandardPaths() {
		if _, err := os.Stat(path); err == nil {
			cfg, err := LoadFile(path)
			if err != nil {
				return nil, path, err
			}
			return cfg, path, nil
		}
	}
	return Default(), "", nil
}

// LoadFile reads configuration from a specific file, applying defaults
// for anything left unset.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, errs.InvalidInput(fmt.Sprintf("parsing %s", path), errs.WithCause(err))
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, errs.InvalidInput(fmt.Sprintf("unknown config key %q in %s", undecoded[0], path))
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = Default().HTTP.Addr
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = Default().Log.Level
	}
	return cfg, nil
}
