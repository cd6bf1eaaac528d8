// Package settings stores linked-project settings in a TOML file and turns
// edits of that file into link, unlink and tool-changed events.
//
// The file holds one [[project]] table per linked build:
//
//	[[project]]
//	path = "/home/me/app"
//	modules = ["/home/me/app", "/home/me/app/lib"]
//	tool_home = "/opt/gradle-8.5"
//	distribution = "wrapped"
//	java_home = "/usr/lib/jvm/21"
//	tool_version = "8.5"
package settings

import (
	"fmt"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/scriptroots/internal/roots"
)

// Project is one [[project]] table.
type Project struct {
	Path         string   `toml:"path"`
	Modules      []string `toml:"modules,omitempty"`
	ToolHome     string   `toml:"tool_home,omitempty"`
	Distribution string   `toml:"distribution,omitempty"`
	JavaHome     string   `toml:"java_home,omitempty"`
	ToolVersion  string   `toml:"tool_version,omitempty"`
}

type document struct {
	Projects []Project `toml:"project"`
}

// ParseError represents a settings file parse error.
type ParseError struct {
	Path    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.Path, e.Message)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

func parse(source string, data []byte) ([]Project, error) {
	var doc document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Path: source, Message: err.Error(), Err: err}
	}
	for i, p := range doc.Projects {
		if p.Path == "" {
			return nil, &ParseError{Path: source, Message: fmt.Sprintf("project %d has no path", i+1)}
		}
	}
	return doc.Projects, nil
}

func encode(projects []Project) ([]byte, error) {
	return toml.Marshal(document{Projects: projects})
}

// toSettings resolves relative paths against base.
func (p Project) toSettings(base string) roots.ProjectSettings {
	abs := func(s string) string {
		if s == "" || filepath.IsAbs(s) {
			return s
		}
		return filepath.Join(base, s)
	}

	ps := roots.ProjectSettings{
		ExternalProjectPath: abs(p.Path),
		ToolHome:            abs(p.ToolHome),
		Distribution:        p.Distribution,
		JavaHome:            abs(p.JavaHome),
		ToolVersion:         p.ToolVersion,
	}
	for _, m := range p.Modules {
		ps.Modules = append(ps.Modules, abs(m))
	}
	if len(ps.Modules) == 0 {
		ps.Modules = []string{ps.ExternalProjectPath}
	}
	return ps
}

func fromSettings(ps roots.ProjectSettings) Project {
	p := Project{
		Path:         ps.ExternalProjectPath,
		ToolHome:     ps.ToolHome,
		Distribution: ps.Distribution,
		JavaHome:     ps.JavaHome,
		ToolVersion:  ps.ToolVersion,
	}
	if !(len(ps.Modules) == 1 && ps.Modules[0] == ps.ExternalProjectPath) {
		p.Modules = ps.Modules
	}
	return p
}
