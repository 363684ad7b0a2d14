package decoration

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Key returns the canonical identity of a filesystem path.
//
// file:// URIs are converted to paths, separators are converted to '/',
// redundant elements are removed and the result is Unicode NFC normalized.
// The empty string maps to itself.
func Key(p string) string {
	if p == "" {
		return ""
	}

	if strings.HasPrefix(p, "file://") {
		if u, err := url.Parse(p); err == nil {
			p = u.Path
			if u.Host != "" && u.Host != "localhost" {
				p = "//" + u.Host + p
			}
		}
	}

	p = filepath.ToSlash(p)
	unc := strings.HasPrefix(p, "//")
	p = path.Clean(p)
	if unc && !strings.HasPrefix(p, "//") {
		p = "/" + p
	}

	return norm.NFC.String(p)
}

// Keys maps Key over paths, dropping duplicates while keeping first-seen order.
func Keys(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		k := Key(p)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// Within reports whether the path identified by key lies at or below root.
// Both arguments are normalized with Key first.
func Within(key, root string) bool {
	key, root = Key(key), Key(root)
	if root == "" {
		return false
	}
	if key == root {
		return true
	}
	if root == "/" {
		return strings.HasPrefix(key, "/")
	}
	return strings.HasPrefix(key, root+"/")
}
