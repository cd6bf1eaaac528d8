package roots

// SettingsSource supplies the linked-project settings.
type SettingsSource interface {
	// LinkedProject returns the settings for a linked project directory.
	LinkedProject(path string) (ProjectSettings, bool)
	// LinkedProjects returns every linked project.
	LinkedProjects() []ProjectSettings
}

// VersionResolver resolves the build tool version for a project.
type VersionResolver interface {
	// ResolveToolVersion returns an error wrapping ErrUnresolvableToolVersion
	// when the version cannot be determined.
	ResolveToolVersion(ps ProjectSettings) (ToolVersion, error)
}

// Storage persists root data and ledgers keyed by root directory.
//
// Reads of state that was never written return an error satisfying
// errors.Is(err, os.ErrNotExist). Unusable state returns ErrCorruptData.
type Storage interface {
	WriteData(rootDir string, data *BuildRootData) error
	ReadData(rootDir string) (*BuildRootData, error)
	RemoveData(rootDir string) error

	WriteLedger(rootDir string, ledger *Ledger) error
	ReadLedger(rootDir string) (*Ledger, error)
	RemoveLedger(rootDir string) error
}

// Notifier receives editor and cache notifications. Calls are made from the
// manager's notification goroutine, never while manager locks are held.
type Notifier interface {
	// PathsChanged asks views whose file satisfies match to refresh.
	PathsChanged(prefix string, match func(path string) bool)
	// CachesInvalidated signals that derived configuration caches must be
	// rebuilt from CollectImportedRootsData.
	CachesInvalidated()
}

// NotifierFuncs adapts plain functions to Notifier. Nil fields are no-ops.
type NotifierFuncs struct {
	OnPathsChanged      func(prefix string, match func(path string) bool)
	OnCachesInvalidated func()
}

// PathsChanged implements Notifier.
func (n NotifierFuncs) PathsChanged(prefix string, match func(string) bool) {
	if n.OnPathsChanged != nil {
		n.OnPathsChanged(prefix, match)
	}
}

// CachesInvalidated implements Notifier.
func (n NotifierFuncs) CachesInvalidated() {
	if n.OnCachesInvalidated != nil {
		n.OnCachesInvalidated()
	}
}
