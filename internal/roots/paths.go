package roots

import (
	"path/filepath"
	"runtime"
	"strings"
)

// PathPolicy normalizes paths before they are compared or used as keys.
type PathPolicy struct {
	// FoldCase lower-cases keys, for case-insensitive file systems.
	FoldCase bool
}

// DefaultPathPolicy folds case on platforms whose default file systems are
// case-insensitive.
func DefaultPathPolicy() PathPolicy {
	return PathPolicy{FoldCase: runtime.GOOS == "windows" || runtime.GOOS == "darwin"}
}

// Key returns the canonical form of path: cleaned, slash-separated, and
// case-folded when the policy says so.
func (p PathPolicy) Key(path string) string {
	if path == "" {
		return ""
	}
	key := filepath.ToSlash(filepath.Clean(path))
	if p.FoldCase {
		key = strings.ToLower(key)
	}
	return key
}

// HasPrefix reports whether key lies at or under prefix. Both must be keys.
// The match respects separators: /a/bc is not under /a/b.
func (p PathPolicy) HasPrefix(key, prefix string) bool {
	if prefix == "" || !strings.HasPrefix(key, prefix) {
		return false
	}
	if len(key) == len(prefix) || strings.HasSuffix(prefix, "/") {
		return true
	}
	return key[len(prefix)] == '/'
}

// Covers reports whether path lies at or under prefix, normalizing path.
func (p PathPolicy) Covers(prefix string) func(path string) bool {
	prefix = p.Key(prefix)
	return func(path string) bool {
		return p.HasPrefix(p.Key(path), prefix)
	}
}

// isAbsKey reports whether a key is absolute in either unix or drive-letter form.
func isAbsKey(key string) bool {
	if strings.HasPrefix(key, "/") {
		return true
	}
	return len(key) >= 3 && key[1] == ':' && key[2] == '/'
}
