package watcher

import (
	"context"
	"time"

	"github.com/dshills/scriptroots/internal/logging"
	"github.com/dshills/scriptroots/internal/vfs"
)

// FileChangeSink receives a script's new modification time. The roots
// manager satisfies it.
type FileChangeSink interface {
	FileChanged(path string, ts time.Time)
}

// Forwarder turns watcher events into FileChanged calls. Present files
// report their on-disk modification time; removed files report the event
// time.
type Forwarder struct {
	w    Watcher
	sink FileChangeSink
	fs   vfs.FS
	log  *logging.Logger
}

// NewForwarder creates a forwarder. fsys is used to stat changed files.
func NewForwarder(w Watcher, sink FileChangeSink, fsys vfs.FS, log *logging.Logger) *Forwarder {
	return &Forwarder{
		w:    w,
		sink: sink,
		fs:   fsys,
		log:  logging.OrNop(log).WithComponent("watcher"),
	}
}

// Run forwards events until ctx is done or the watcher is closed.
func (f *Forwarder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-f.w.Events():
			if !ok {
				return
			}
			f.Forward(event)
		case err, ok := <-f.w.Errors():
			if !ok {
				return
			}
			f.log.Warn("watch error: %v", err)
		}
	}
}

// Forward delivers one event to the sink.
func (f *Forwarder) Forward(event Event) {
	ts := event.Timestamp
	if !event.Gone() {
		info, err := f.fs.Stat(event.Path)
		if err == nil {
			ts = info.ModTime()
		} else {
			f.log.Debug("stat %s: %v", event.Path, err)
		}
	}
	f.log.Debug("%s %s", event.Op, event.Path)
	f.sink.FileChanged(event.Path, ts)
}
