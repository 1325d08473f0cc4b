// Package config loads the msgloop command's configuration, from TOML or YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joeycumines/logiface"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration.
type Config struct {
	// LogLevel is a logiface level keyword, e.g. "info", "debug", "err".
	LogLevel string `toml:"log_level" yaml:"log_level"`

	// MetricsAddr is the listen address for /metrics, disabled if empty.
	MetricsAddr string `toml:"metrics_addr" yaml:"metrics_addr"`

	// CommitPath is the file written by the commit command.
	CommitPath string `toml:"commit_path" yaml:"commit_path"`

	// Threads are the worker threads started by the demo command.
	Threads []Thread `toml:"threads" yaml:"threads"`

	// CommitInterval is the coalescing delay for scheduled file writes.
	CommitInterval time.Duration `toml:"commit_interval" yaml:"commit_interval"`

	// DebugMode enables loop assertions, see msgloop.WithDebugMode.
	DebugMode bool `toml:"debug_mode" yaml:"debug_mode"`
}

// Thread configures one thread.Thread.
type Thread struct {
	Name string `toml:"name" yaml:"name"`

	// LockOSThread defaults to true.
	LockOSThread *bool `toml:"lock_os_thread" yaml:"lock_os_thread"`
}

// Default returns the configuration used when no file is given, and the base
// that files are decoded over.
func Default() *Config {
	return &Config{
		LogLevel:       logiface.LevelInformational.String(),
		CommitPath:     `msgloop-state.json`,
		CommitInterval: 10 * time.Second,
		Threads: []Thread{
			{Name: `worker-1`},
			{Name: `worker-2`},
		},
	}
}

// Load reads the file at path, choosing the format by extension (.toml,
// .yaml or .yml), over Default, then validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case `.toml`:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case `.yaml`, `.yml`:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("config: unsupported file extension %q", ext)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.CommitInterval < 0 {
		return fmt.Errorf("commit_interval must not be negative, got %s", c.CommitInterval)
	}
	if c.CommitPath == `` {
		return errors.New("commit_path is required")
	}
	seen := make(map[string]struct{}, len(c.Threads))
	for i, t := range c.Threads {
		if t.Name == `` {
			return fmt.Errorf("threads[%d]: name is required", i)
		}
		if _, ok := seen[t.Name]; ok {
			return fmt.Errorf("threads[%d]: duplicate name %q", i, t.Name)
		}
		seen[t.Name] = struct{}{}
	}
	return nil
}

// ShouldLockOSThread resolves the LockOSThread default.
func (t Thread) ShouldLockOSThread() bool {
	return t.LockOSThread == nil || *t.LockOSThread
}

// ParseLevel converts a level keyword, as produced by logiface.Level.String,
// back to a level.
func ParseLevel(s string) (logiface.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for level := logiface.LevelDisabled; level <= logiface.LevelTrace; level++ {
		if level.String() == s {
			return level, nil
		}
	}
	switch s {
	case `error`:
		return logiface.LevelError, nil
	case `warn`:
		return logiface.LevelWarning, nil
	}
	return logiface.LevelDisabled, fmt.Errorf("unknown log level %q", s)
}
