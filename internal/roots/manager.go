package roots

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/scriptroots/internal/logging"
	"github.com/dshills/scriptroots/internal/vfs"
)

const (
	defaultConcurrency = 4
	// minFlushRetryDelay bounds how soon a failed flush is retried.
	minFlushRetryDelay = time.Second
)

// Manager owns the build roots of one session. It reacts to settings and
// import events, serves staleness queries, and fans out notifications.
//
// All methods are safe for concurrent use. Queries read a registry snapshot
// and never block on imports or persistence.
type Manager struct {
	storage  Storage
	settings SettingsSource
	versions VersionResolver
	notifier Notifier
	fs       vfs.FS
	log      *logging.Logger
	policy   PathPolicy

	registry   *Registry
	reconciler *Reconciler
	flusher    *ledgerFlusher

	flushExec   Executor
	notifyExec  Executor
	ownFlush    *SerialExecutor
	ownNotify   *SerialExecutor
	flushDelay  time.Duration
	concurrency int
	sessionID   string

	// persistMu orders persistence against registry commits, so persisted
	// state never runs ahead of the registry.
	persistMu sync.Mutex

	dirtyMu sync.Mutex
	dirty   map[string]struct{}

	retryMu sync.Mutex
	retry   *time.Timer
	closed  bool

	closeOnce sync.Once
	closeErr  error
}

// NewManager creates a manager reading linked projects from settings and
// persisting through storage.
func NewManager(storage Storage, settings SettingsSource, opts ...Option) (*Manager, error) {
	if storage == nil {
		return nil, errors.New("roots: storage is required")
	}
	if settings == nil {
		return nil, errors.New("roots: settings source is required")
	}

	m := &Manager{
		storage:     storage,
		settings:    settings,
		policy:      DefaultPathPolicy(),
		concurrency: defaultConcurrency,
		sessionID:   uuid.NewString(),
		dirty:       make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.versions == nil {
		m.versions = PinnedVersions{}
	}
	if m.notifier == nil {
		m.notifier = NotifierFuncs{}
	}
	if m.fs == nil {
		m.fs = vfs.NewOSFS()
	}
	if m.concurrency < 1 {
		m.concurrency = 1
	}
	m.log = logging.OrNop(m.log).WithComponent("roots").WithField("session", m.sessionID)

	if m.flushExec == nil {
		m.ownFlush = NewSerialExecutor(1)
		m.flushExec = m.ownFlush
	}
	if m.notifyExec == nil {
		m.ownNotify = NewSerialExecutor(64)
		m.notifyExec = m.ownNotify
	}

	m.registry = NewRegistry(m.policy)
	m.reconciler = NewReconciler(m.policy, m.fs.Exists)
	m.flusher = newLedgerFlusher(m.flushExec, m.flushDelay, m.backgroundFlush)
	return m, nil
}

// SessionID identifies this manager in logs.
func (m *Manager) SessionID() string { return m.sessionID }

// Policy returns the path policy in use.
func (m *Manager) Policy() PathPolicy { return m.policy }

// Init loads every linked project into the registry and invalidates caches
// once. Loads run concurrently.
func (m *Manager) Init(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)

	for _, ps := range m.settings.LinkedProjects() {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			m.registry.Add(m.loadRoot(ps))
			return nil
		})
	}
	err := g.Wait()

	m.log.Info("loaded %d build roots", m.registry.Len())
	m.dispatch(m.notifier.CachesInvalidated)
	return err
}

// loadRoot builds the initial state of a linked project from persisted data.
func (m *Manager) loadRoot(ps ProjectSettings) BuildRoot {
	prefix := m.policy.Key(ps.ExternalProjectPath)
	log := m.log.WithField("root", prefix)

	v, err := m.versions.ResolveToolVersion(ps)
	switch {
	case err != nil:
		log.Debug("tool version unresolved, trusting persisted data: %v", err)
	case !SupportsScriptModels(v):
		return NewUnsupported(prefix, &ps)
	}

	data, err := m.storage.ReadData(prefix)
	if err == nil {
		err = data.Validate()
	}
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn("ignoring persisted data: %v", err)
		}
		return NewNotYetImported(prefix, &ps)
	}

	ledger, err := m.storage.ReadLedger(prefix)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn("ignoring persisted ledger: %v", err)
		}
		ledger = NewLedger()
	}
	return NewImported(prefix, &ps, data, ledger)
}

// OnProjectLinked registers a linked project. Relinking with identical
// settings does nothing; relinking an Imported root keeps its data unless
// the tool changed.
func (m *Manager) OnProjectLinked(ps ProjectSettings) {
	prefix := m.policy.Key(ps.ExternalProjectPath)

	if cur := m.registry.FindByWorkingDir(prefix); cur != nil && cur.Settings() != nil {
		old := *cur.Settings()
		if old.Equal(ps) {
			return
		}
		if old.ToolChanged(ps) {
			m.retool(ps)
			return
		}
	}

	m.persistMu.Lock()
	cur := m.registry.FindByWorkingDir(prefix)
	var next BuildRoot
	if imp, ok := cur.(*Imported); ok {
		next = imp.withSettings(&ps)
	} else {
		next = m.loadRoot(ps)
		if cur != nil {
			next = next.withImporting(cur.Importing())
		}
	}
	prev := m.registry.Add(next)
	m.persistMu.Unlock()

	m.log.Info("linked %s as %s", prefix, next.Kind())
	m.afterTransition(prefix, prev, next)
}

// OnProjectUnlinked removes the root at path and, when it held data, deletes
// its persisted state.
func (m *Manager) OnProjectUnlinked(path string) {
	prefix := m.policy.Key(path)

	m.persistMu.Lock()
	prev := m.registry.Remove(prefix)
	if _, ok := prev.(*Imported); ok {
		m.removePersisted(prefix)
	}
	m.persistMu.Unlock()

	if prev == nil {
		return
	}
	m.log.Info("unlinked %s", prefix)
	m.afterTransition(prefix, prev, nil)
}

// OnToolHomeOrDistributionChanged re-derives the root kind of path from its
// current settings.
func (m *Manager) OnToolHomeOrDistributionChanged(path string) {
	ps, ok := m.settings.LinkedProject(path)
	if !ok {
		m.OnProjectUnlinked(path)
		return
	}
	m.retool(ps)
}

func (m *Manager) retool(ps ProjectSettings) {
	prefix := m.policy.Key(ps.ExternalProjectPath)
	log := m.log.WithField("root", prefix)

	v, err := m.versions.ResolveToolVersion(ps)
	if err != nil {
		log.Info("tool changed, keeping state: %v", err)
		return
	}

	m.persistMu.Lock()
	cur := m.registry.FindByWorkingDir(prefix)
	var next BuildRoot
	switch c := cur.(type) {
	case *Imported:
		if SupportsScriptModels(v) {
			next = c.withSettings(&ps)
		} else {
			next = NewUnsupported(prefix, &ps)
			m.removePersisted(prefix)
		}
	default:
		next = m.loadRoot(ps)
	}
	if cur != nil {
		next = next.withImporting(cur.Importing())
	}
	prev := m.registry.Add(next)
	m.persistMu.Unlock()

	log.Info("tool changed to %s, root is %s", v, next.Kind())
	m.afterTransition(prefix, prev, next)
}

// OnImportCompleted reconciles an import result into the registry.
//
// It returns nil once the result is committed, even when persisting it
// failed. Otherwise it returns why the result was dropped: ErrUnlinked,
// ErrUnresolvableToolVersion, ErrMissingToolHome, or ErrSkipped, wrapped in
// a *RootError.
func (m *Manager) OnImportCompleted(res ImportResult) error {
	prefix := m.policy.Key(res.WorkingDir)
	log := m.log.WithField("root", prefix)

	ps, ok := m.settings.LinkedProject(res.WorkingDir)
	if !ok {
		log.Debug("discarding import for unlinked root")
		if m.registry.FindByWorkingDir(prefix) != nil {
			m.OnProjectUnlinked(prefix)
		}
		return rootErr("import", prefix, ErrUnlinked)
	}

	v, err := m.importVersion(res, ps)
	if err != nil {
		log.Info("skipping import: %v", err)
		m.setImporting(prefix, false)
		return rootErr("import", prefix, err)
	}

	m.persistMu.Lock()
	existing := m.registry.FindByWorkingDir(prefix)
	// An unlink may have run while the version was resolved.
	if _, linked := m.settings.LinkedProject(res.WorkingDir); !linked || existing == nil {
		m.persistMu.Unlock()
		log.Debug("discarding import for root unlinked during import")
		return rootErr("import", prefix, ErrUnlinked)
	}
	next, err := m.reconciler.Reconcile(existing, &ps, v, res)
	if err != nil {
		m.persistMu.Unlock()
		if errors.Is(err, ErrMissingToolHome) {
			log.Warn("skipping import: %v", err)
		} else {
			log.Debug("skipping import: %v", err)
		}
		m.setImporting(prefix, false)
		return rootErr("reconcile", prefix, err)
	}

	m.clearDirty(prefix)
	switch r := next.(type) {
	case *Imported:
		m.persist(prefix, r)
	default:
		if isImported(existing) {
			m.removePersisted(prefix)
		}
	}
	prev := m.registry.Add(next)
	m.persistMu.Unlock()

	if imp, ok := next.(*Imported); ok {
		log.Info("imported %d script models", len(imp.Data.Models))
	} else {
		log.Info("root is %s", next.Kind())
	}
	m.afterTransition(prefix, prev, next)
	return nil
}

func (m *Manager) importVersion(res ImportResult, ps ProjectSettings) (ToolVersion, error) {
	if res.ToolVersion != "" {
		return ParseToolVersion(res.ToolVersion)
	}
	return m.versions.ResolveToolVersion(ps)
}

// persist writes data then ledger. Failures are logged; the caller still
// commits. When the data write fails, persisted state is removed so a
// restart starts the root over instead of pairing the old snapshot with the
// new ledger. Callers hold persistMu.
func (m *Manager) persist(prefix string, r *Imported) {
	log := m.log.WithField("root", prefix)
	if err := m.storage.WriteData(prefix, r.Data); err != nil {
		log.Warn("%v", rootErr("persist", prefix, fmt.Errorf("%w: %w", ErrPersistenceWrite, err)))
		m.removePersisted(prefix)
		return
	}
	if err := m.storage.WriteLedger(prefix, r.Ledger); err != nil {
		log.Warn("%v", rootErr("persist", prefix, fmt.Errorf("%w: %w", ErrPersistenceWrite, err)))
		m.markDirty(prefix)
	}
}

// removePersisted deletes data and ledger. Callers hold persistMu.
func (m *Manager) removePersisted(prefix string) {
	m.clearDirty(prefix)
	if err := m.storage.RemoveData(prefix); err != nil && !errors.Is(err, os.ErrNotExist) {
		m.log.WithField("root", prefix).Warn("removing data: %v", err)
	}
	if err := m.storage.RemoveLedger(prefix); err != nil && !errors.Is(err, os.ErrNotExist) {
		m.log.WithField("root", prefix).Warn("removing ledger: %v", err)
	}
}

// MarkImportingInProgress sets the importing flag of the root at path.
func (m *Manager) MarkImportingInProgress(path string, importing bool) {
	prefix := m.policy.Key(path)
	if m.setImporting(prefix, importing) {
		m.dispatchPathsChanged(prefix)
	}
}

func (m *Manager) setImporting(prefix string, importing bool) bool {
	next := m.registry.Update(prefix, func(r BuildRoot) BuildRoot {
		if r.Importing() == importing {
			return nil
		}
		return r.withImporting(importing)
	})
	return next != nil
}

func (m *Manager) afterTransition(prefix string, prev, next BuildRoot) {
	if kindFlipped(prev, next) {
		m.dispatch(m.notifier.CachesInvalidated)
	}
	m.dispatchPathsChanged(prefix)
}

func (m *Manager) dispatchPathsChanged(prefix string) {
	match := func(path string) bool { return m.policy.HasPrefix(m.policy.Key(path), prefix) }
	m.dispatch(func() { m.notifier.PathsChanged(prefix, match) })
}

func (m *Manager) dispatch(fn func()) {
	if !m.notifyExec.Submit(fn) {
		m.log.Debug("notification dropped, executor closed")
	}
}

// FileChanged records a modification of path at ts in the ledger of the
// Imported root covering it and schedules a ledger flush.
func (m *Manager) FileChanged(path string, ts time.Time) {
	key := m.policy.Key(path)
	next := m.registry.UpdateByPath(path, func(r BuildRoot) BuildRoot {
		imp, ok := r.(*Imported)
		if !ok {
			return nil
		}
		if cur, ok := imp.Ledger.Timestamp(key); ok && cur.Equal(ts) {
			return nil
		}
		return imp.withLedger(imp.Ledger.With(key, ts))
	})
	if next == nil {
		return
	}

	m.markDirty(next.PathPrefix())
	m.flusher.Schedule()
}

func (m *Manager) markDirty(prefix string) {
	m.dirtyMu.Lock()
	m.dirty[prefix] = struct{}{}
	m.dirtyMu.Unlock()
}

func (m *Manager) clearDirty(prefix string) {
	m.dirtyMu.Lock()
	delete(m.dirty, prefix)
	m.dirtyMu.Unlock()
}

func (m *Manager) takeDirty() []string {
	m.dirtyMu.Lock()
	defer m.dirtyMu.Unlock()

	out := make([]string, 0, len(m.dirty))
	for p := range m.dirty {
		out = append(out, p)
	}
	clear(m.dirty)
	return out
}

// backgroundFlush runs a scheduled flush. Roots left dirty by a failure get
// another flush after the flush delay.
func (m *Manager) backgroundFlush() {
	if err := m.FlushLedgers(context.Background()); err != nil {
		m.log.Warn("ledger flush: %v", err)
		m.scheduleRetry()
	}
}

// scheduleRetry arms one timer that requests a flush. The flush runs on the
// flush executor, never on the failing flush's stack.
func (m *Manager) scheduleRetry() {
	m.retryMu.Lock()
	defer m.retryMu.Unlock()
	if m.closed || m.retry != nil {
		return
	}
	m.retry = time.AfterFunc(max(m.flushDelay, minFlushRetryDelay), func() {
		m.retryMu.Lock()
		m.retry = nil
		closed := m.closed
		m.retryMu.Unlock()
		if !closed {
			m.flusher.Schedule()
		}
	})
}

// FlushLedgers writes every ledger changed since its last write. Roots whose
// write fails stay dirty.
func (m *Manager) FlushLedgers(ctx context.Context) error {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)

	for _, prefix := range m.takeDirty() {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				m.markDirty(prefix)
				return err
			}
			imp, ok := m.registry.FindByWorkingDir(prefix).(*Imported)
			if !ok {
				return nil
			}
			if err := m.storage.WriteLedger(prefix, imp.Ledger); err != nil {
				m.markDirty(prefix)
				return rootErr("flush", prefix, fmt.Errorf("%w: %w", ErrPersistenceWrite, err))
			}
			return nil
		})
	}
	return g.Wait()
}

// Close runs any pending flush, writes remaining dirty ledgers and stops the
// executors the manager created.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		m.retryMu.Lock()
		m.closed = true
		if m.retry != nil {
			m.retry.Stop()
			m.retry = nil
		}
		m.retryMu.Unlock()

		if m.ownFlush != nil {
			m.ownFlush.Close()
		}
		m.closeErr = m.FlushLedgers(context.Background())
		if m.ownNotify != nil {
			m.ownNotify.Close()
		}
	})
	return m.closeErr
}
