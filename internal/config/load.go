package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// DefaultPath returns ~/.config/gitdecor/config.toml, or "" when the user
// config directory is unknown.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "gitdecor", "config.toml")
}

// Load builds the configuration from defaults, the file at path and the
// environment, then validates it. A missing file is not an error; an empty
// path skips the file layer.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil && !errors.Is(err, ErrFileNotFound) {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the TOML file at path onto c. Relative repository paths
// are resolved against the file's directory.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", path, ErrFileNotFound)
		}
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := c.decode(path, bytes.NewReader(data)); err != nil {
		return err
	}

	base := filepath.Dir(path)
	for i := range c.Repositories {
		c.Repositories[i].Path = resolvePath(base, c.Repositories[i].Path)
	}
	return nil
}

// LoadReader overlays TOML read from r onto c.
func (c *Config) LoadReader(r io.Reader) error {
	return c.decode("<reader>", r)
}

func (c *Config) decode(source string, r io.Reader) error {
	dec := toml.NewDecoder(r).DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		pe := &ParseError{Path: source, Message: err.Error(), Err: err}

		var decErr *toml.DecodeError
		var strictErr *toml.StrictMissingError
		switch {
		case errors.As(err, &decErr):
			pe.Line, pe.Column = decErr.Position()
		case errors.As(err, &strictErr) && len(strictErr.Errors) > 0:
			pe.Line, pe.Column = strictErr.Errors[0].Position()
			pe.Message = "unknown setting " + strings.Join(strictErr.Errors[0].Key(), ".")
		}
		return pe
	}
	return nil
}

// resolvePath expands a leading "~/" and makes p absolute relative to base.
func resolvePath(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return p
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, p[1:])
		}
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(base, p)
	}
	return filepath.Clean(p)
}
