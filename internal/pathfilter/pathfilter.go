// Package pathfilter answers the two questions discovery, monitoring, and
// verification all need: should this directory be pruned, and is this
// file in scope. It is pure and cheap: an ancestor-prefix test over the
// configured WatchPath rows rather than a gitignore-style pattern
// matcher.
package pathfilter

import (
	"path/filepath"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Hamza5/file-brain/internal/model"
)

// cacheSize bounds the ancestor-check memoization so long discovery walks
// over huge trees don't grow this cache without limit.
const cacheSize = 4096

// Filter decides inclusion/exclusion for a fixed watch configuration: an
// ordered list of included roots and a list of excluded subtrees.
type Filter struct {
	roots    []string
	excluded []string

	mu    sync.Mutex
	cache *lru.Cache[string, bool]
}

// New builds a Filter from the enabled WatchPath rows. Paths are
// canonicalized (cleaned, absolute) before classification.
func New(paths []model.WatchPath) *Filter {
	f := &Filter{}
	cache, _ := lru.New[string, bool](cacheSize)
	f.cache = cache

	for _, p := range paths {
		if !p.Enabled {
			continue
		}
		clean := canonical(p.Path)
		if p.IsExcluded {
			f.excluded = append(f.excluded, clean)
		} else {
			f.roots = append(f.roots, clean)
		}
	}
	return f
}

// Roots returns the included roots in configuration order.
func (f *Filter) Roots() []string {
	out := make([]string, len(f.roots))
	copy(out, f.roots)
	return out
}

// IncludeSubdirectories reports whether the given included root allows
// recursive descent. Callers pass the exact root string from Roots().
func IncludeSubdirectories(paths []model.WatchPath, root string) bool {
	clean := canonical(root)
	for _, p := range paths {
		if !p.Enabled || p.IsExcluded {
			continue
		}
		if canonical(p.Path) == clean {
			return p.IncludeSubdirectories
		}
	}
	return true
}

// PruneDir reports whether a directory (by absolute path) should not be
// descended into because it equals or is a descendant of an excluded
// subtree.
func (f *Filter) PruneDir(dir string) bool {
	clean := canonical(dir)
	if v, ok := f.cached("dir:" + clean); ok {
		return v
	}
	pruned := f.isUnderAny(clean, f.excluded)
	f.setCached("dir:"+clean, pruned)
	return pruned
}

// InScope reports whether a file is in scope: some included root is an
// ancestor, and no excluded subtree is.
func (f *Filter) InScope(path string) bool {
	clean := canonical(path)
	if v, ok := f.cached("file:" + clean); ok {
		return v
	}

	inScope := f.isUnderAny(clean, f.roots) && !f.isUnderAny(clean, f.excluded)
	f.setCached("file:"+clean, inScope)
	return inScope
}

func (f *Filter) isUnderAny(path string, ancestors []string) bool {
	for _, a := range ancestors {
		if isAncestor(a, path) {
			return true
		}
	}
	return false
}

func (f *Filter) cached(key string) (bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cache.Get(key)
}

func (f *Filter) setCached(key string, v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache.Add(key, v)
}

// isAncestor reports whether B == A or B starts with A + separator, using
// the OS-canonical form and a path-separator-aware prefix test.
func isAncestor(a, b string) bool {
	if a == b {
		return true
	}
	sep := string(filepath.Separator)
	if !strings.HasSuffix(a, sep) {
		a += sep
	}
	return strings.HasPrefix(b, a)
}

// canonical returns the OS-canonical absolute form of a path: cleaned,
// made absolute relative to the current working directory if relative,
// and case-folded on platforms whose filesystem is case-insensitive.
func canonical(path string) string {
	abs := path
	if !filepath.IsAbs(abs) {
		if a, err := filepath.Abs(abs); err == nil {
			abs = a
		}
	}
	clean := filepath.Clean(abs)
	return foldCase(clean)
}
