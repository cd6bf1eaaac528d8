package watcher

import (
	"path/filepath"
	"strings"
)

// Filter decides which files are build scripts and which directories are
// never descended into.
type Filter struct {
	// Patterns are filepath.Match patterns against the base name.
	Patterns []string

	// SkipDirs are directory base names that are not watched.
	SkipDirs []string

	// SkipHidden skips directories whose name starts with a dot.
	SkipHidden bool
}

// DefaultFilter matches Kotlin build scripts and the wrapper properties.
func DefaultFilter() *Filter {
	return &Filter{
		Patterns: []string{
			"*.gradle.kts",
			"*.kts",
			"gradle-wrapper.properties",
		},
		SkipDirs:   []string{"build", "out", "node_modules"},
		SkipHidden: true,
	}
}

// MatchFile reports whether path names a file that produces events.
func (f *Filter) MatchFile(path string) bool {
	if f == nil {
		return true
	}
	base := filepath.Base(path)
	for _, p := range f.Patterns {
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
	}
	return false
}

// SkipDir reports whether the directory at path should not be watched.
func (f *Filter) SkipDir(path string) bool {
	if f == nil {
		return false
	}
	base := filepath.Base(path)
	if f.SkipHidden && len(base) > 1 && strings.HasPrefix(base, ".") {
		return true
	}
	for _, d := range f.SkipDirs {
		if base == d {
			return true
		}
	}
	return false
}
