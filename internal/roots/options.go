package roots

import (
	"time"

	"github.com/dshills/scriptroots/internal/logging"
	"github.com/dshills/scriptroots/internal/vfs"
)

// Option configures a Manager.
type Option func(*Manager)

// WithVersionResolver sets the tool version resolver. The default only reads
// the version pinned in the project settings.
func WithVersionResolver(v VersionResolver) Option {
	return func(m *Manager) { m.versions = v }
}

// WithNotifier sets the editor and cache notification target.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithFS sets the file system used to check for vanished scripts during merges.
func WithFS(fs vfs.FS) Option {
	return func(m *Manager) { m.fs = fs }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithPathPolicy sets path normalization.
func WithPathPolicy(p PathPolicy) Option {
	return func(m *Manager) { m.policy = p }
}

// WithFlushDelay delays each background ledger flush, widening the window in
// which changes are coalesced.
func WithFlushDelay(d time.Duration) Option {
	return func(m *Manager) { m.flushDelay = d }
}

// WithFlushExecutor sets the executor running background ledger flushes. The
// caller owns its lifetime.
func WithFlushExecutor(e Executor) Option {
	return func(m *Manager) { m.flushExec = e }
}

// WithNotifyExecutor sets the executor delivering notifications. The caller
// owns its lifetime.
func WithNotifyExecutor(e Executor) Option {
	return func(m *Manager) { m.notifyExec = e }
}

// WithLoadConcurrency bounds concurrent root loads in Init and ledger writes
// in FlushLedgers.
func WithLoadConcurrency(n int) Option {
	return func(m *Manager) { m.concurrency = n }
}

// PinnedVersions resolves the tool version from ProjectSettings.ToolVersion.
type PinnedVersions struct{}

// ResolveToolVersion implements VersionResolver.
func (PinnedVersions) ResolveToolVersion(ps ProjectSettings) (ToolVersion, error) {
	return ParseToolVersion(ps.ToolVersion)
}
