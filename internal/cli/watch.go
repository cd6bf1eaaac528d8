package cli

import (
	"context"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/dshills/scriptroots/internal/notify"
	"github.com/dshills/scriptroots/internal/settings"
	"github.com/dshills/scriptroots/internal/watcher"
)

// watchSet keeps the watched directories equal to the linked projects.
type watchSet struct {
	mu      sync.Mutex
	w       watcher.Watcher
	a       *app
	out     io.Writer
	current map[string]string // path key -> dir
}

func (s *watchSet) sync() {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := make(map[string]string)
	for _, ps := range s.a.store.LinkedProjects() {
		want[s.a.policy.Key(ps.ExternalProjectPath)] = ps.ExternalProjectPath
	}

	for key, dir := range s.current {
		if _, ok := want[key]; ok {
			continue
		}
		if err := s.w.Unwatch(dir); err != nil {
			s.a.log.Warn("unwatch %s: %v", dir, err)
		}
		delete(s.current, key)
		printDim(s.out, "stopped watching %s", dir)
	}
	for key, dir := range want {
		if _, ok := s.current[key]; ok {
			continue
		}
		if err := s.w.WatchRecursive(dir); err != nil {
			s.a.log.Warn("watch %s: %v", dir, err)
			continue
		}
		s.current[key] = dir
		printDim(s.out, "watching %s", dir)
	}
}

func (s *watchSet) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.current)
}

func newWatchCommand(ro *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Track script changes in every linked project until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, ro, appOptions{async: true}, func(ctx context.Context, a *app) error {
				out := &lockedWriter{w: cmd.OutOrStdout()}

				fsw, err := watcher.NewFSNotifyWatcher()
				if err != nil {
					return err
				}
				w := watcher.NewDebouncer(fsw, a.cfg.WatchDebounce)
				defer w.Close()

				ws := &watchSet{w: w, a: a, out: out, current: make(map[string]string)}
				ws.sync()

				sub := a.notifier.Subscribe(func(c notify.Change) {
					switch c.Type {
					case notify.ChangeCaches:
						printHeader(out, "configuration caches invalidated")
					case notify.ChangePaths:
						printHeader(out, "scripts under "+c.Prefix+" need refresh")
					}
					// Links and unlinks both surface as notifications.
					ws.sync()
				})
				defer sub.Unsubscribe()

				poller := settings.NewPoller(a.store,
					settings.WithInterval(a.cfg.SettingsPollInterval),
					settings.WithDebounce(a.cfg.WatchDebounce),
				)
				poller.Start()
				defer poller.Stop()

				fwdCtx, cancel := context.WithCancel(ctx)
				var wg sync.WaitGroup
				wg.Add(1)
				go func() {
					defer wg.Done()
					watcher.NewForwarder(w, a.manager, a.fs, a.log).Run(fwdCtx)
				}()

				printSuccess(out, "watching %d linked projects, press Ctrl-C to stop", ws.count())
				<-ctx.Done()

				cancel()
				wg.Wait()
				return nil
			})
		},
	}
}

// lockedWriter serializes writes from the notifier goroutine and the command.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
