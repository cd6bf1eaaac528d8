package roots

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-version"
)

// ToolVersion is a parsed build tool version such as 7.4.2 or 8.0-rc-1. The
// zero value is an unknown version that supports nothing.
type ToolVersion struct {
	v *version.Version
}

// minScriptModelVersion is the first tool version that imports per-script models.
var minScriptModelVersion = version.Must(version.NewVersion("6.0"))

// ParseToolVersion parses major.minor[.patch][-qualifier]. Failures wrap
// ErrUnresolvableToolVersion.
func ParseToolVersion(s string) (ToolVersion, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ToolVersion{}, ErrUnresolvableToolVersion
	}

	core := s
	if i := strings.IndexAny(core, "-+"); i >= 0 {
		core = core[:i]
	}
	if n := strings.Count(core, ".") + 1; n < 2 || n > 3 || strings.HasSuffix(s, "-") {
		return ToolVersion{}, fmt.Errorf("%w: %q", ErrUnresolvableToolVersion, s)
	}

	v, err := version.NewVersion(s)
	if err != nil {
		return ToolVersion{}, fmt.Errorf("%w: %w", ErrUnresolvableToolVersion, err)
	}
	return ToolVersion{v: v}, nil
}

// IsZero reports whether v is the unknown version.
func (v ToolVersion) IsZero() bool { return v.v == nil }

// Qualifier returns the pre-release qualifier without the leading dash.
func (v ToolVersion) Qualifier() string {
	if v.v == nil {
		return ""
	}
	return v.v.Prerelease()
}

// Compare returns -1, 0, or 1. A qualified version sorts before the release
// with the same numbers, so 6.0-rc-1 < 6.0. The unknown version sorts first.
func (v ToolVersion) Compare(o ToolVersion) int {
	switch {
	case v.v == nil && o.v == nil:
		return 0
	case v.v == nil:
		return -1
	case o.v == nil:
		return 1
	}
	return v.v.Compare(o.v)
}

// String returns the version as it was written.
func (v ToolVersion) String() string {
	if v.v == nil {
		return ""
	}
	return v.v.Original()
}

// SupportsScriptModels reports whether builds on v can import per-script models.
func SupportsScriptModels(v ToolVersion) bool {
	return v.v != nil && v.v.GreaterThanOrEqual(minScriptModelVersion)
}
