package roots

import "slices"

// ProjectSettings is the linked-project configuration supplied by the
// settings collaborator.
type ProjectSettings struct {
	// ExternalProjectPath is the build's working directory.
	ExternalProjectPath string
	// Modules are the module directories of the build.
	Modules []string

	ToolHome     string
	Distribution string
	JavaHome     string
	// ToolVersion pins the tool version; empty means resolve it.
	ToolVersion string
}

// ToolChanged reports whether the tool home, distribution, or pinned version
// differ.
func (s ProjectSettings) ToolChanged(o ProjectSettings) bool {
	return s.ToolHome != o.ToolHome ||
		s.Distribution != o.Distribution ||
		s.ToolVersion != o.ToolVersion
}

// Equal reports whether two settings are identical.
func (s ProjectSettings) Equal(o ProjectSettings) bool {
	return s.ExternalProjectPath == o.ExternalProjectPath &&
		s.JavaHome == o.JavaHome &&
		!s.ToolChanged(o) &&
		slices.Equal(s.Modules, o.Modules)
}
