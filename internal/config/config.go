package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/gitdecor/internal/logging"
)

// Duration is a time.Duration written as a Go duration string ("500ms").
type Duration time.Duration

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String formats the duration.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config is the complete gitdecor configuration.
type Config struct {
	Log          LogConfig          `toml:"log"`
	Ignore       IgnoreConfig       `toml:"ignore"`
	Decorations  DecorationsConfig  `toml:"decorations"`
	Watch        WatchConfig        `toml:"watch"`
	Repositories []RepositoryConfig `toml:"repository"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `toml:"level"`
}

// IgnoreConfig configures the ignore query queue.
type IgnoreConfig struct {
	// QuietPeriod is how long the queue waits after the last query before
	// asking git.
	QuietPeriod Duration `toml:"quiet_period"`

	// LookupTimeout bounds one batched lookup. Zero disables the bound.
	LookupTimeout Duration `toml:"lookup_timeout"`
}

// DecorationsConfig toggles the decoration providers.
type DecorationsConfig struct {
	Enabled bool `toml:"enabled"`
}

// WatchConfig configures repository watching.
type WatchConfig struct {
	Enabled bool `toml:"enabled"`

	// Debounce is the quiet period before a change refreshes status.
	Debounce Duration `toml:"debounce"`

	// Exclude lists glob patterns that never trigger a refresh.
	Exclude []string `toml:"exclude"`
}

// RepositoryConfig names a repository to open on startup.
type RepositoryConfig struct {
	Path string `toml:"path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Ignore: IgnoreConfig{
			QuietPeriod: Duration(500 * time.Millisecond),
		},
		Decorations: DecorationsConfig{Enabled: true},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: Duration(250 * time.Millisecond),
			Exclude:  []string{"node_modules"},
		},
	}
}

// LogLevel returns the parsed log level.
func (c *Config) LogLevel() logging.Level {
	l, _ := logging.ParseLevel(c.Log.Level)
	return l
}

// RepositoryPaths returns the configured repository paths in order.
func (c *Config) RepositoryPaths() []string {
	out := make([]string, 0, len(c.Repositories))
	for _, r := range c.Repositories {
		out = append(out, r.Path)
	}
	return out
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if _, ok := logging.ParseLevel(c.Log.Level); !ok {
		errs = append(errs, &ValidationError{Setting: "log.level", Message: fmt.Sprintf("unknown level %q", c.Log.Level)})
	}
	if c.Ignore.QuietPeriod <= 0 {
		errs = append(errs, &ValidationError{Setting: "ignore.quiet_period", Message: "must be positive"})
	}
	if c.Ignore.LookupTimeout < 0 {
		errs = append(errs, &ValidationError{Setting: "ignore.lookup_timeout", Message: "must not be negative"})
	}
	if c.Watch.Debounce < 0 {
		errs = append(errs, &ValidationError{Setting: "watch.debounce", Message: "must not be negative"})
	}
	for i, r := range c.Repositories {
		if strings.TrimSpace(r.Path) == "" {
			errs = append(errs, &ValidationError{Setting: fmt.Sprintf("repository[%d].path", i), Message: "must not be empty"})
		}
	}
	return errors.Join(errs...)
}
