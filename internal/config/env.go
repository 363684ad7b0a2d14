package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// envOverrides lists the settings that can be set from the environment.
// Unset variables leave the pointer nil so the lower layers survive.
type envOverrides struct {
	LogLevel           *string        `env:"GITDECOR_LOG_LEVEL"`
	QuietPeriod        *time.Duration `env:"GITDECOR_QUIET_PERIOD"`
	LookupTimeout      *time.Duration `env:"GITDECOR_LOOKUP_TIMEOUT"`
	DecorationsEnabled *bool          `env:"GITDECOR_DECORATIONS_ENABLED"`
	WatchEnabled       *bool          `env:"GITDECOR_WATCH_ENABLED"`
	WatchDebounce      *time.Duration `env:"GITDECOR_WATCH_DEBOUNCE"`
	WatchExclude       []string       `env:"GITDECOR_WATCH_EXCLUDE" envSeparator:","`
}

// ApplyEnv overlays GITDECOR_* environment variables onto c.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(env.Options{})
}

func (c *Config) applyEnv(opts env.Options) error {
	var o envOverrides
	if err := env.ParseWithOptions(&o, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	if o.LogLevel != nil {
		c.Log.Level = *o.LogLevel
	}
	if o.QuietPeriod != nil {
		c.Ignore.QuietPeriod = Duration(*o.QuietPeriod)
	}
	if o.LookupTimeout != nil {
		c.Ignore.LookupTimeout = Duration(*o.LookupTimeout)
	}
	if o.DecorationsEnabled != nil {
		c.Decorations.Enabled = *o.DecorationsEnabled
	}
	if o.WatchEnabled != nil {
		c.Watch.Enabled = *o.WatchEnabled
	}
	if o.WatchDebounce != nil {
		c.Watch.Debounce = Duration(*o.WatchDebounce)
	}
	if o.WatchExclude != nil {
		c.Watch.Exclude = o.WatchExclude
	}
	return nil
}
