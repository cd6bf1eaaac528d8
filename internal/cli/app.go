package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dshills/scriptroots/internal/config"
	"github.com/dshills/scriptroots/internal/logging"
	"github.com/dshills/scriptroots/internal/notify"
	"github.com/dshills/scriptroots/internal/roots"
	"github.com/dshills/scriptroots/internal/roots/storage"
	"github.com/dshills/scriptroots/internal/scriptcache"
	"github.com/dshills/scriptroots/internal/settings"
	"github.com/dshills/scriptroots/internal/toolchain"
	"github.com/dshills/scriptroots/internal/vfs"
)

// app is the wired set of components a command works with.
type app struct {
	cfg      *config.Config
	log      *logging.Logger
	fs       vfs.FS
	policy   roots.PathPolicy
	store    *settings.Store
	notifier *notify.Notifier
	manager  *roots.Manager
	cache    *scriptcache.Cache
}

type appOptions struct {
	// async delivers notifications on the notifier's goroutine.
	async bool
}

// openApp loads configuration and starts the roots manager.
func openApp(ctx context.Context, cmd *cobra.Command, ro *rootOptions, ao appOptions) (*app, error) {
	cfg, err := config.Load(config.Options{
		Flags:                  cmd.Flags(),
		EnvFiles:               ro.envFiles,
		HomeDir:                ro.homeDir,
		CaseInsensitiveDefault: roots.DefaultPathPolicy().FoldCase,
	})
	if err != nil {
		return nil, err
	}

	log := logging.New(logging.Config{
		Level:  cfg.Level(),
		Output: cmd.ErrOrStderr(),
		Prefix: "scriptroots",
	})
	fsys := vfs.NewOSFS()
	policy := roots.PathPolicy{FoldCase: cfg.CaseInsensitivePaths}

	store := settings.New(fsys, cfg.SettingsFile,
		settings.WithLogger(log),
		settings.WithPathPolicy(policy),
	)
	if err := store.Load(); err != nil {
		return nil, err
	}

	var nopts []notify.Option
	if ao.async {
		nopts = append(nopts, notify.WithAsync(cfg.NotifyBuffer))
	}
	notifier := notify.New(nopts...)

	mgr, err := roots.NewManager(
		storage.New(fsys, cfg.StateDir, storage.WithLogger(log)),
		store,
		roots.WithVersionResolver(toolchain.NewResolver(fsys, log)),
		roots.WithNotifier(notifier),
		roots.WithFS(fsys),
		roots.WithLogger(log),
		roots.WithPathPolicy(policy),
		roots.WithFlushDelay(cfg.LedgerFlushDelay),
		// Notify queues asynchronously itself when async is set.
		roots.WithNotifyExecutor(roots.InlineExecutor{}),
	)
	if err != nil {
		notifier.Close()
		return nil, err
	}

	cache, err := scriptcache.New(mgr, cfg.CacheSize, scriptcache.WithLogger(log))
	if err != nil {
		_ = mgr.Close()
		notifier.Close()
		return nil, err
	}
	cache.Subscribe(notifier)

	store.SetListener(mgr)
	if err := mgr.Init(ctx); err != nil {
		_ = mgr.Close()
		notifier.Close()
		return nil, err
	}

	log.Debug("session %s, state %s, settings %s", mgr.SessionID(), cfg.StateDir, cfg.SettingsFile)

	return &app{
		cfg:      cfg,
		log:      log,
		fs:       fsys,
		policy:   policy,
		store:    store,
		notifier: notifier,
		manager:  mgr,
		cache:    cache,
	}, nil
}

// Close flushes pending ledgers and stops delivery.
func (a *app) Close() error {
	err := a.manager.Close()
	a.notifier.Close()
	return err
}

// withApp runs fn with an open app and closes it afterwards.
func withApp(cmd *cobra.Command, ro *rootOptions, ao appOptions, fn func(ctx context.Context, a *app) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, cmd, ro, ao)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close: %w", cerr))
		}
	}()
	return fn(ctx, a)
}

func absPaths(args []string) ([]string, error) {
	out := make([]string, len(args))
	for i, a := range args {
		abs, err := filepath.Abs(a)
		if err != nil {
			return nil, err
		}
		out[i] = abs
	}
	return out, nil
}
