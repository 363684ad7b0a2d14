package aggregator

import (
	"sort"

	"github.com/dshills/gitdecor/internal/decoration"
)

// entry is one decorated path in a decoration map.
type entry struct {
	path       string
	decoration decoration.Decoration
}

// decorationMap maps path keys to their decorated entries.
type decorationMap map[string]entry

// build collects decorated states from groups in order. A later state for the
// same key replaces an earlier one.
func build(groups ...decoration.ResourceGroup) decorationMap {
	m := make(decorationMap)
	for _, g := range groups {
		for _, r := range g.States {
			if r.Decoration == nil {
				continue
			}
			id := r.Identity()
			m[decoration.Key(id)] = entry{path: id, decoration: *r.Decoration}
		}
	}
	return m
}

// changed returns the paths present in exactly one of old and next, sorted.
// old is not modified.
func changed(old, next decorationMap) []string {
	remaining := make(map[string]string, len(old))
	for k, e := range old {
		remaining[k] = e.path
	}

	paths := make([]string, 0)
	for k, e := range next {
		if _, ok := remaining[k]; ok {
			delete(remaining, k)
			continue
		}
		paths = append(paths, e.path)
	}
	for _, path := range remaining {
		paths = append(paths, path)
	}

	sort.Strings(paths)
	return paths
}
