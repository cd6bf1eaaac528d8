package watcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dshills/scriptroots/internal/vfs"
)

type change struct {
	path string
	ts   time.Time
}

type recordingSink struct {
	mu      sync.Mutex
	changes []change
}

func (s *recordingSink) FileChanged(path string, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changes = append(s.changes, change{path, ts})
}

func (s *recordingSink) snapshot() []change {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]change(nil), s.changes...)
}

func TestForwarder_UsesModTime(t *testing.T) {
	fsys := vfs.NewMemFS()
	mod := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := fsys.AddFile("/p/build.gradle.kts", "plugins {}"); err != nil {
		t.Fatal(err)
	}
	if err := fsys.Chtimes("/p/build.gradle.kts", mod); err != nil {
		t.Fatal(err)
	}

	sink := &recordingSink{}
	f := NewForwarder(newFakeWatcher(), sink, fsys, nil)
	f.Forward(Event{Path: "/p/build.gradle.kts", Op: OpWrite, Timestamp: mod.Add(time.Hour)})

	got := sink.snapshot()
	if len(got) != 1 || !got[0].ts.Equal(mod) {
		t.Errorf("changes = %+v, want modtime %v", got, mod)
	}
}

func TestForwarder_RemovedFileUsesEventTime(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	sink := &recordingSink{}
	f := NewForwarder(newFakeWatcher(), sink, vfs.NewMemFS(), nil)

	f.Forward(Event{Path: "/p/gone.kts", Op: OpRemove, Timestamp: at})

	got := sink.snapshot()
	if len(got) != 1 || got[0].path != "/p/gone.kts" || !got[0].ts.Equal(at) {
		t.Errorf("changes = %+v", got)
	}
}

func TestForwarder_RunStopsWhenWatcherCloses(t *testing.T) {
	inner := newFakeWatcher()
	sink := &recordingSink{}
	f := NewForwarder(inner, sink, vfs.NewMemFS(), nil)

	done := make(chan struct{})
	go func() {
		f.Run(context.Background())
		close(done)
	}()

	inner.events <- Event{Path: "/p/a.kts", Op: OpRemove, Timestamp: time.Now()}
	inner.errors <- ErrPathNotExist

	deadline := time.Now().Add(2 * time.Second)
	for len(sink.snapshot()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("event not forwarded")
		}
		time.Sleep(5 * time.Millisecond)
	}

	_ = inner.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}
}

func TestForwarder_RunStopsOnCancel(t *testing.T) {
	f := NewForwarder(newFakeWatcher(), &recordingSink{}, vfs.NewMemFS(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		f.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run ignored cancelled context")
	}
}
