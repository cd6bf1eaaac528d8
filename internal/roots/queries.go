package roots

// FindRoot returns the root covering path, or nil.
func (m *Manager) FindRoot(path string) BuildRoot {
	return m.registry.FindByPath(path)
}

// RootAt returns the root registered at dir, or nil.
func (m *Manager) RootAt(dir string) BuildRoot {
	return m.registry.FindByWorkingDir(dir)
}

// Roots returns every registered root.
func (m *Manager) Roots() []BuildRoot {
	return m.registry.List()
}

// IsUpToDate reports whether path is covered by an Imported root and has no
// recorded change newer than that root's data.
func (m *Manager) IsUpToDate(path string) bool {
	imp, ok := m.registry.FindByPath(path).(*Imported)
	if !ok {
		return false
	}
	return imp.Ledger.IsUpToDate(m.policy.Key(path), imp.Data)
}

// AreRelatedFilesUpToDate reports whether no file of the covering Imported
// root other than path changed after the root's import.
func (m *Manager) AreRelatedFilesUpToDate(path string) bool {
	imp, ok := m.registry.FindByPath(path).(*Imported)
	if !ok {
		return false
	}
	latest := imp.Ledger.LatestExcept(m.policy.Key(path))
	return !latest.After(imp.Data.ImportTimestamp)
}

// IsFileGovernedAndUpToDate reports whether path has a model in an Imported
// root and that model is current.
func (m *Manager) IsFileGovernedAndUpToDate(path string) bool {
	imp, ok := m.registry.FindByPath(path).(*Imported)
	if !ok {
		return false
	}
	key := m.policy.Key(path)
	if _, ok := imp.Data.Model(key); !ok {
		return false
	}
	return imp.Ledger.IsUpToDate(key, imp.Data)
}

// IsImportInProgress reports whether the root covering path is importing.
func (m *Manager) IsImportInProgress(path string) bool {
	r := m.registry.FindByPath(path)
	return r != nil && r.Importing()
}

// IsStandaloneScript reports whether path is outside every root or under an
// Unsupported one.
func (m *Manager) IsStandaloneScript(path string) bool {
	return m.registry.IsStandaloneScript(path)
}

// CollectImportedRootsData returns the data of every Imported root.
func (m *Manager) CollectImportedRootsData() []*BuildRootData {
	var out []*BuildRootData
	for _, r := range m.registry.List() {
		if imp, ok := r.(*Imported); ok {
			out = append(out, imp.Data)
		}
	}
	return out
}

// ScriptModel returns the model for path together with its root.
func (m *Manager) ScriptModel(path string) (ScriptModel, *Imported, bool) {
	imp, ok := m.registry.FindByPath(path).(*Imported)
	if !ok {
		return ScriptModel{}, nil, false
	}
	model, ok := imp.Data.Model(m.policy.Key(path))
	if !ok {
		return ScriptModel{}, imp, false
	}
	return model, imp, true
}
