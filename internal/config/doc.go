// Package config loads gitdecor's settings.
//
// Configuration is resolved in layers, higher layers overriding lower:
//
//	┌─────────────────────────────┐
//	│  4. Command Line Flags      │  ← Highest priority (applied by the caller)
//	├─────────────────────────────┤
//	│  3. Environment Variables   │  ← GITDECOR_*
//	├─────────────────────────────┤
//	│  2. Config File             │  ← ~/.config/gitdecor/config.toml
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │  ← Lowest priority
//	└─────────────────────────────┘
//
// # Basic Usage
//
//	cfg, err := config.Load(config.DefaultPath())
//	if err != nil {
//	    return err
//	}
//	quiet := cfg.Ignore.QuietPeriod.Std()
//
// # File Format
//
//	[log]
//	level = "debug"
//
//	[ignore]
//	quiet_period = "500ms"
//	lookup_timeout = "5s"
//
//	[decorations]
//	enabled = true
//
//	[watch]
//	enabled = true
//	debounce = "250ms"
//	exclude = ["node_modules", "*.swp"]
//
//	[[repository]]
//	path = "~/src/project"
package config
