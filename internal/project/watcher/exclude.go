package watcher

import (
	"path"
	"path/filepath"
	"strings"
)

// Exclude matches paths against a set of glob patterns.
//
// A pattern without a separator is tested against every segment of the path,
// so "node_modules" excludes the directory and everything below it and
// "*.swp" excludes swap files anywhere. A pattern with a separator is tested
// against every run of that many consecutive segments.
type Exclude struct {
	patterns []string
}

// NewExclude returns a matcher for the given patterns. Blank patterns and
// patterns that path.Match rejects are dropped.
func NewExclude(patterns []string) *Exclude {
	e := &Exclude{}
	for _, p := range patterns {
		p = strings.TrimSpace(filepath.ToSlash(p))
		p = strings.Trim(p, "/")
		if p == "" {
			continue
		}
		if _, err := path.Match(p, ""); err != nil {
			continue
		}
		e.patterns = append(e.patterns, p)
	}
	return e
}

// Patterns returns the accepted patterns.
func (e *Exclude) Patterns() []string {
	out := make([]string, len(e.patterns))
	copy(out, e.patterns)
	return out
}

// Match reports whether name is excluded.
func (e *Exclude) Match(name string) bool {
	if e == nil || len(e.patterns) == 0 {
		return false
	}
	segs := strings.Split(strings.Trim(filepath.ToSlash(name), "/"), "/")
	for _, p := range e.patterns {
		depth := strings.Count(p, "/") + 1
		if depth == 1 {
			for _, s := range segs {
				if ok, _ := path.Match(p, s); ok {
					return true
				}
			}
			continue
		}
		for i := 0; i+depth <= len(segs); i++ {
			if ok, _ := path.Match(p, strings.Join(segs[i:i+depth], "/")); ok {
				return true
			}
		}
	}
	return false
}
