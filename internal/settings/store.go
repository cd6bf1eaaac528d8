package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"

	"github.com/dshills/scriptroots/internal/logging"
	"github.com/dshills/scriptroots/internal/roots"
	"github.com/dshills/scriptroots/internal/vfs"
)

// Listener receives settings events. *roots.Manager implements it.
type Listener interface {
	OnProjectLinked(ps roots.ProjectSettings)
	OnProjectUnlinked(path string)
	OnToolHomeOrDistributionChanged(path string)
}

// Store holds the linked projects read from a settings file. It implements
// roots.SettingsSource.
type Store struct {
	fs     vfs.FS
	path   string
	policy roots.PathPolicy
	log    *logging.Logger

	mu       sync.RWMutex
	projects map[string]roots.ProjectSettings // by path key

	listenerMu sync.Mutex // serializes event delivery
	listener   Listener
}

var _ roots.SettingsSource = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithPathPolicy sets how project paths are compared.
func WithPathPolicy(p roots.PathPolicy) Option {
	return func(s *Store) { s.policy = p }
}

// New creates a store for the settings file at path. Call Load or Reload to
// read it.
func New(fsys vfs.FS, path string, opts ...Option) *Store {
	s := &Store{
		fs:       fsys,
		path:     path,
		policy:   roots.DefaultPathPolicy(),
		projects: make(map[string]roots.ProjectSettings),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logging.OrNop(s.log).WithComponent("settings")
	return s
}

// Path returns the settings file path.
func (s *Store) Path() string { return s.path }

// SetListener sets the event listener. Nil stops delivery.
func (s *Store) SetListener(l Listener) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	s.listener = l
}

// LinkedProject implements roots.SettingsSource.
func (s *Store) LinkedProject(path string) (roots.ProjectSettings, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ps, ok := s.projects[s.policy.Key(path)]
	return ps, ok
}

// LinkedProjects implements roots.SettingsSource. Projects are sorted by path.
func (s *Store) LinkedProjects() []roots.ProjectSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked()
}

func (s *Store) sortedLocked() []roots.ProjectSettings {
	keys := make([]string, 0, len(s.projects))
	for k := range s.projects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]roots.ProjectSettings, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.projects[k])
	}
	return out
}

// Load reads the settings file without emitting events. A missing file
// yields no projects.
func (s *Store) Load() error {
	next, err := s.read()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.projects = next
	s.mu.Unlock()
	return nil
}

// Reload rereads the settings file and emits events for every difference.
// Unlinks are delivered before links.
func (s *Store) Reload() error {
	next, err := s.read()
	if err != nil {
		return err
	}
	s.replace(next)
	return nil
}

func (s *Store) read() (map[string]roots.ProjectSettings, error) {
	data, err := s.fs.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]roots.ProjectSettings{}, nil
		}
		return nil, fmt.Errorf("reading settings file %s: %w", s.path, err)
	}

	projects, err := parse(s.path, data)
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(s.path)
	out := make(map[string]roots.ProjectSettings, len(projects))
	for _, p := range projects {
		ps := p.toSettings(base)
		out[s.policy.Key(ps.ExternalProjectPath)] = ps
	}
	return out, nil
}

type event struct {
	unlinked string
	linked   *roots.ProjectSettings
	retooled string
}

// replace swaps in next and delivers the difference to the listener.
func (s *Store) replace(next map[string]roots.ProjectSettings) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()

	s.mu.Lock()
	prev := s.projects
	s.projects = next
	s.mu.Unlock()

	var events []event
	for _, k := range sortedKeys(prev) {
		if _, ok := next[k]; !ok {
			events = append(events, event{unlinked: prev[k].ExternalProjectPath})
		}
	}
	for _, k := range sortedKeys(next) {
		ps := next[k]
		old, ok := prev[k]
		switch {
		case !ok:
			events = append(events, event{linked: &ps})
		case old.ToolChanged(ps):
			events = append(events, event{retooled: ps.ExternalProjectPath})
		case !old.Equal(ps):
			events = append(events, event{linked: &ps})
		}
	}

	if len(events) > 0 {
		s.log.Info("settings changed: %d events", len(events))
	}
	if s.listener == nil {
		return
	}
	for _, e := range events {
		switch {
		case e.unlinked != "":
			s.listener.OnProjectUnlinked(e.unlinked)
		case e.linked != nil:
			s.listener.OnProjectLinked(*e.linked)
		default:
			s.listener.OnToolHomeOrDistributionChanged(e.retooled)
		}
	}
}

// Link adds or replaces a project, saves the file and emits the resulting
// event.
func (s *Store) Link(ps roots.ProjectSettings) error {
	if ps.ExternalProjectPath == "" {
		return errors.New("settings: project path is empty")
	}
	if len(ps.Modules) == 0 {
		ps.Modules = []string{ps.ExternalProjectPath}
	}

	s.mu.RLock()
	next := s.copyLocked()
	s.mu.RUnlock()
	next[s.policy.Key(ps.ExternalProjectPath)] = ps

	if err := s.save(next); err != nil {
		return err
	}
	s.replace(next)
	return nil
}

// Unlink removes a project, saves the file and emits the unlink event. It
// reports whether the project was linked.
func (s *Store) Unlink(path string) (bool, error) {
	key := s.policy.Key(path)

	s.mu.RLock()
	next := s.copyLocked()
	s.mu.RUnlock()
	if _, ok := next[key]; !ok {
		return false, nil
	}
	delete(next, key)

	if err := s.save(next); err != nil {
		return false, err
	}
	s.replace(next)
	return true, nil
}

func (s *Store) copyLocked() map[string]roots.ProjectSettings {
	out := make(map[string]roots.ProjectSettings, len(s.projects))
	for k, v := range s.projects {
		out[k] = v
	}
	return out
}

func (s *Store) save(projects map[string]roots.ProjectSettings) error {
	list := make([]Project, 0, len(projects))
	for _, k := range sortedKeys(projects) {
		list = append(list, fromSettings(projects[k]))
	}
	data, err := encode(list)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	if err := s.fs.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing settings file %s: %w", s.path, err)
	}
	return nil
}

func sortedKeys(m map[string]roots.ProjectSettings) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
