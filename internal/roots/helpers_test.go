package roots

import (
	"errors"
	"os"
	"sync"
	"time"

	"github.com/dshills/scriptroots/internal/vfs"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

var errDiskFull = errors.New("disk full")

type memStorage struct {
	mu      sync.Mutex
	data    map[string]*BuildRootData
	ledgers map[string]*Ledger
	corrupt map[string]bool

	failWrites   bool
	failData     bool // fails WriteData only
	ledgerWrites int
}

func newMemStorage() *memStorage {
	return &memStorage{
		data:    map[string]*BuildRootData{},
		ledgers: map[string]*Ledger{},
		corrupt: map[string]bool{},
	}
}

func (s *memStorage) WriteData(dir string, d *BuildRootData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites || s.failData {
		return errDiskFull
	}
	s.data[dir] = d
	return nil
}

func (s *memStorage) ReadData(dir string) (*BuildRootData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.corrupt[dir] {
		return nil, ErrCorruptData
	}
	d, ok := s.data[dir]
	if !ok {
		return nil, os.ErrNotExist
	}
	return d, nil
}

func (s *memStorage) RemoveData(dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, dir)
	return nil
}

func (s *memStorage) WriteLedger(dir string, l *Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites {
		return errDiskFull
	}
	s.ledgerWrites++
	s.ledgers[dir] = l
	return nil
}

func (s *memStorage) ReadLedger(dir string) (*Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.ledgers[dir]
	if !ok {
		return nil, os.ErrNotExist
	}
	return l, nil
}

func (s *memStorage) RemoveLedger(dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ledgers, dir)
	return nil
}

func (s *memStorage) hasData(dir string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[dir]
	return ok
}

func (s *memStorage) ledger(dir string) *Ledger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledgers[dir]
}

type memSettings struct {
	mu       sync.Mutex
	projects map[string]ProjectSettings
}

func newMemSettings(projects ...ProjectSettings) *memSettings {
	s := &memSettings{projects: map[string]ProjectSettings{}}
	for _, p := range projects {
		s.projects[p.ExternalProjectPath] = p
	}
	return s
}

func (s *memSettings) LinkedProject(path string) (ProjectSettings, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[path]
	return p, ok
}

func (s *memSettings) LinkedProjects() []ProjectSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ProjectSettings, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p)
	}
	return out
}

func (s *memSettings) set(p ProjectSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ExternalProjectPath] = p
}

func (s *memSettings) remove(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.projects, path)
}

type recordingNotifier struct {
	mu            sync.Mutex
	invalidations int
	prefixes      []string
	matchers      []func(string) bool
}

func (n *recordingNotifier) PathsChanged(prefix string, match func(string) bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.prefixes = append(n.prefixes, prefix)
	n.matchers = append(n.matchers, match)
}

func (n *recordingNotifier) CachesInvalidated() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.invalidations++
}

func (n *recordingNotifier) counts() (invalidations, paths int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.invalidations, len(n.prefixes)
}

func (s *memStorage) setFailWrites(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrites = fail
}

func mustVersion(s string) ToolVersion {
	v, err := ParseToolVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// versionFunc adapts a function to VersionResolver.
type versionFunc func(ProjectSettings) (ToolVersion, error)

func (f versionFunc) ResolveToolVersion(ps ProjectSettings) (ToolVersion, error) { return f(ps) }

func project(path, version string) ProjectSettings {
	return ProjectSettings{
		ExternalProjectPath: path,
		Modules:             []string{path},
		ToolHome:            "/opt/gradle",
		ToolVersion:         version,
	}
}

func model(file string) ScriptModel {
	return ScriptModel{File: file, Classpath: []string{"/cp/" + file}}
}

func importOf(dir string, ts time.Time, models ...ScriptModel) ImportResult {
	return ImportResult{
		WorkingDir:   dir,
		ToolHome:     "/opt/gradle",
		ProjectRoots: []string{dir},
		Models:       models,
		Timestamp:    ts,
	}
}

type fixture struct {
	storage  *memStorage
	settings *memSettings
	notifier *recordingNotifier
	fs       *vfs.MemFS
	manager  *Manager
}

func newFixture(projects ...ProjectSettings) *fixture {
	return newFixtureWith(nil, projects...)
}

// newFixtureWith builds a fixture whose manager also gets opts.
func newFixtureWith(opts []Option, projects ...ProjectSettings) *fixture {
	f := &fixture{
		storage:  newMemStorage(),
		settings: newMemSettings(projects...),
		notifier: &recordingNotifier{},
		fs:       vfs.NewMemFS(),
	}
	f.manager = f.newManager(opts...)
	return f
}

// newManager creates a manager over the fixture's collaborators, as a
// restart would.
func (f *fixture) newManager(opts ...Option) *Manager {
	base := []Option{
		WithNotifier(f.notifier),
		WithPathPolicy(PathPolicy{}),
		WithFlushExecutor(InlineExecutor{}),
		WithNotifyExecutor(InlineExecutor{}),
		WithFS(f.fs),
	}
	m, err := NewManager(f.storage, f.settings, append(base, opts...)...)
	if err != nil {
		panic(err)
	}
	return m
}

// scripts creates the files on the fixture's file system.
func (f *fixture) scripts(paths ...string) {
	for _, p := range paths {
		if err := f.fs.AddFile(p, "plugins {}"); err != nil {
			panic(err)
		}
	}
}
