package roots

import (
	"fmt"
	"sort"
	"time"
)

// ScriptModel is the configuration imported for one script file.
type ScriptModel struct {
	// File is the absolute script path as reported by the import.
	File string `json:"file" yaml:"file"`

	Classpath  []string `json:"classpath,omitempty" yaml:"classpath,omitempty"`
	SourcePath []string `json:"sourcePath,omitempty" yaml:"sourcePath,omitempty"`
	Imports    []string `json:"imports,omitempty" yaml:"imports,omitempty"`

	// InputsTimestamp is the script's modification time the import saw.
	// Zero when the producer did not report it.
	InputsTimestamp time.Time `json:"inputsTimestamp" yaml:"inputsTimestamp"`
}

// BuildRootData is an immutable import snapshot. Values are never mutated
// after construction; updates build a new snapshot.
type BuildRootData struct {
	ImportTimestamp time.Time
	ToolHome        string
	JavaHome        string

	// ProjectRoots holds sorted, unique path keys.
	ProjectRoots []string

	// Models is keyed by the PathPolicy key of each model's File.
	Models map[string]ScriptModel
}

// NewBuildRootData builds a snapshot, keying projectRoots and models with policy.
// A later model for the same key wins.
func NewBuildRootData(policy PathPolicy, importTs time.Time, toolHome, javaHome string, projectRoots []string, models []ScriptModel) *BuildRootData {
	set := make(map[string]struct{}, len(projectRoots))
	for _, r := range projectRoots {
		if k := policy.Key(r); k != "" {
			set[k] = struct{}{}
		}
	}

	byKey := make(map[string]ScriptModel, len(models))
	for _, m := range models {
		if k := policy.Key(m.File); k != "" {
			byKey[k] = m
		}
	}

	return &BuildRootData{
		ImportTimestamp: importTs,
		ToolHome:        toolHome,
		JavaHome:        javaHome,
		ProjectRoots:    sortedKeys(set),
		Models:          byKey,
	}
}

// Model returns the model for a path key.
func (d *BuildRootData) Model(key string) (ScriptModel, bool) {
	if d == nil {
		return ScriptModel{}, false
	}
	m, ok := d.Models[key]
	return m, ok
}

// ModelList returns the models sorted by key.
func (d *BuildRootData) ModelList() []ScriptModel {
	keys := make([]string, 0, len(d.Models))
	for k := range d.Models {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]ScriptModel, 0, len(keys))
	for _, k := range keys {
		out = append(out, d.Models[k])
	}
	return out
}

// Validate checks the structural invariants a loaded snapshot must satisfy.
func (d *BuildRootData) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: no data", ErrCorruptData)
	}
	if d.ToolHome == "" {
		return fmt.Errorf("%w: tool home is empty", ErrCorruptData)
	}
	for k, m := range d.Models {
		if !isAbsKey(k) {
			return fmt.Errorf("%w: model path %q is not absolute", ErrCorruptData, m.File)
		}
	}
	return nil
}

// MergeData overlays next onto prev for an import that failed part way.
//
// Project roots are unioned. Models from next win on key collision; models
// only present in prev are retained when keep returns true (nil keeps all).
// Timestamp and homes come from next.
func MergeData(prev, next *BuildRootData, keep func(m ScriptModel) bool) *BuildRootData {
	if prev == nil {
		return next
	}

	set := make(map[string]struct{}, len(prev.ProjectRoots)+len(next.ProjectRoots))
	for _, r := range prev.ProjectRoots {
		set[r] = struct{}{}
	}
	for _, r := range next.ProjectRoots {
		set[r] = struct{}{}
	}

	models := make(map[string]ScriptModel, len(prev.Models)+len(next.Models))
	for k, m := range prev.Models {
		if _, replaced := next.Models[k]; replaced {
			continue
		}
		if keep == nil || keep(m) {
			models[k] = m
		}
	}
	for k, m := range next.Models {
		models[k] = m
	}

	javaHome := next.JavaHome
	if javaHome == "" {
		javaHome = prev.JavaHome
	}

	return &BuildRootData{
		ImportTimestamp: next.ImportTimestamp,
		ToolHome:        next.ToolHome,
		JavaHome:        javaHome,
		ProjectRoots:    sortedKeys(set),
		Models:          models,
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
