package roots

import (
	"fmt"
	"time"
)

// ImportResult is the import producer's payload for one working directory.
type ImportResult struct {
	WorkingDir string `json:"workingDir" yaml:"workingDir"`
	// ToolVersion is the version the import ran with; empty defers to the
	// VersionResolver.
	ToolVersion  string        `json:"toolVersion,omitempty" yaml:"toolVersion,omitempty"`
	ToolHome     string        `json:"toolHome,omitempty" yaml:"toolHome,omitempty"`
	JavaHome     string        `json:"javaHome,omitempty" yaml:"javaHome,omitempty"`
	ProjectRoots []string      `json:"projectRoots,omitempty" yaml:"projectRoots,omitempty"`
	Models       []ScriptModel `json:"models,omitempty" yaml:"models,omitempty"`
	Failed       bool          `json:"failed,omitempty" yaml:"failed,omitempty"`
	Timestamp    time.Time     `json:"timestamp" yaml:"timestamp"`
}

// Reconciler computes a root's next state from an import result. It has no
// side effects; the Manager persists and commits what it returns.
type Reconciler struct {
	policy PathPolicy
	// exists filters retained models on the merge path. Nil keeps them all.
	exists func(path string) bool
}

// NewReconciler creates a reconciler. exists may be nil.
func NewReconciler(policy PathPolicy, exists func(path string) bool) *Reconciler {
	return &Reconciler{policy: policy, exists: exists}
}

// Reconcile returns the root that should replace existing (which may be nil).
//
// Decisions, in order: an unsupported version yields Unsupported; an empty
// import over an Imported root without models is skipped (ErrSkipped); a
// missing tool home is skipped (ErrMissingToolHome); a failed import over an
// Imported root merges; anything else replaces. Returned roots have
// importing cleared and, when Imported, a fresh ledger.
func (rc *Reconciler) Reconcile(existing BuildRoot, settings *ProjectSettings, version ToolVersion, res ImportResult) (BuildRoot, error) {
	prefix := rc.policy.Key(res.WorkingDir)
	if prefix == "" {
		return nil, fmt.Errorf("%w: import has no working directory", ErrSkipped)
	}

	if !SupportsScriptModels(version) {
		return NewUnsupported(prefix, settings), nil
	}

	old, _ := existing.(*Imported)
	if len(res.Models) == 0 && old != nil && len(old.Data.Models) == 0 {
		return nil, ErrSkipped
	}

	if res.ToolHome == "" {
		return nil, ErrMissingToolHome
	}

	data := NewBuildRootData(rc.policy, res.Timestamp, res.ToolHome, res.JavaHome, res.ProjectRoots, res.Models)
	if res.Failed && old != nil {
		data = MergeData(old.Data, data, rc.keep())
	}

	return NewImported(prefix, settings, data, NewLedger()), nil
}

func (rc *Reconciler) keep() func(ScriptModel) bool {
	if rc.exists == nil {
		return nil
	}
	return func(m ScriptModel) bool { return rc.exists(m.File) }
}
