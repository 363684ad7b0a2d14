// Package watcher reports file system changes under repository working trees.
//
// FSNotifyWatcher follows a directory tree and forwards raw events. Batcher
// collapses those events into quiet-period batches so that a burst of writes
// becomes a single repository refresh.
package watcher

import (
	"errors"
	"path/filepath"
	"strings"
	"time"
)

// Common errors returned by watcher operations.
var (
	ErrWatcherClosed   = errors.New("watcher is closed")
	ErrAlreadyWatching = errors.New("path is already being watched")
	ErrPathNotExist    = errors.New("path does not exist")
)

// Op represents the type of file system operation.
type Op uint32

const (
	// OpCreate indicates a file or directory was created.
	OpCreate Op = 1 << iota
	// OpWrite indicates a file was written to.
	OpWrite
	// OpRemove indicates a file or directory was removed.
	OpRemove
	// OpRename indicates a file or directory was renamed.
	OpRename
	// OpChmod indicates file permissions were changed.
	OpChmod
)

// String returns a human-readable representation of the operation.
// Combined operations are joined with "|".
func (op Op) String() string {
	if op == 0 {
		return "NONE"
	}
	names := []struct {
		op   Op
		name string
	}{
		{OpCreate, "CREATE"},
		{OpWrite, "WRITE"},
		{OpRemove, "REMOVE"},
		{OpRename, "RENAME"},
		{OpChmod, "CHMOD"},
	}
	s := ""
	for _, n := range names {
		if op.Has(n.op) {
			if s != "" {
				s += "|"
			}
			s += n.name
		}
	}
	if s == "" {
		return "UNKNOWN"
	}
	return s
}

// Has returns true if the operation includes the given op.
func (op Op) Has(o Op) bool {
	return op&o == o
}

// Event represents a file system change event.
type Event struct {
	// Path is the absolute path of the affected file or directory.
	Path string

	// Op is the operation that occurred. Batched events carry every
	// operation seen for the path.
	Op Op

	// Timestamp is when the (last) event occurred.
	Timestamp time.Time
}

// Source is anything that produces raw file events.
type Source interface {
	Events() <-chan Event
	Errors() <-chan error
	Close() error
}

// SkipFunc reports whether a path should be neither watched nor reported.
type SkipFunc func(path string, isDir bool) bool

// Config holds watcher configuration options.
type Config struct {
	// BufferSize is the size of the event and error channels.
	// Default: 256
	BufferSize int

	// Exclude holds glob patterns matched against path segments.
	Exclude []string

	// Skip is consulted in addition to Exclude.
	Skip SkipFunc
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{BufferSize: 256}
}

// WatcherOption configures a watcher.
type WatcherOption func(*Config)

// WithBufferSize sets the channel buffer size.
func WithBufferSize(size int) WatcherOption {
	return func(c *Config) {
		c.BufferSize = size
	}
}

// WithExclude adds exclude patterns.
func WithExclude(patterns ...string) WatcherOption {
	return func(c *Config) {
		c.Exclude = append(c.Exclude, patterns...)
	}
}

// WithSkip sets an extra skip predicate.
func WithSkip(fn SkipFunc) WatcherOption {
	return func(c *Config) {
		c.Skip = fn
	}
}

// Within reports whether path is dir itself or lies below it.
func Within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
