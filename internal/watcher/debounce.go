package watcher

import (
	"sync"
	"time"
)

// Debouncer wraps a Watcher so that bursts of operations on the same path
// are coalesced into one event, delivered once the path has been quiet for
// the delay.
type Debouncer struct {
	inner Watcher
	delay time.Duration

	mu       sync.Mutex
	pending  map[string]*pendingEvent
	events   chan Event
	errors   chan error
	closed   bool
	closeCh  chan struct{}
	closedWg sync.WaitGroup
	firing   sync.WaitGroup
}

type pendingEvent struct {
	event Event
	timer *time.Timer
}

// NewDebouncer wraps inner. A non-positive delay uses 100ms.
func NewDebouncer(inner Watcher, delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}

	d := &Debouncer{
		inner:   inner,
		delay:   delay,
		pending: make(map[string]*pendingEvent),
		events:  make(chan Event, 100),
		errors:  make(chan error, 100),
		closeCh: make(chan struct{}),
	}

	d.closedWg.Add(1)
	go d.processLoop()

	return d
}

// WatchRecursive delegates to the wrapped watcher.
func (d *Debouncer) WatchRecursive(dir string) error {
	return d.inner.WatchRecursive(dir)
}

// Unwatch delegates to the wrapped watcher.
func (d *Debouncer) Unwatch(dir string) error {
	return d.inner.Unwatch(dir)
}

// Events returns the debounced event channel.
func (d *Debouncer) Events() <-chan Event {
	return d.events
}

// Errors returns the error channel.
func (d *Debouncer) Errors() <-chan error {
	return d.errors
}

// WatchedPaths delegates to the wrapped watcher.
func (d *Debouncer) WatchedPaths() []string {
	return d.inner.WatchedPaths()
}

// Close drops pending events and closes the wrapped watcher.
func (d *Debouncer) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.closeCh)
	for path, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, path)
	}
	d.mu.Unlock()

	d.closedWg.Wait()
	d.firing.Wait()

	close(d.events)
	close(d.errors)

	return d.inner.Close()
}

// Flush fires every pending event now.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	paths := make([]string, 0, len(d.pending))
	for path, p := range d.pending {
		p.timer.Stop()
		paths = append(paths, path)
	}
	d.mu.Unlock()

	for _, path := range paths {
		d.fire(path)
	}
}

// PendingCount returns the number of paths waiting to fire.
func (d *Debouncer) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

func (d *Debouncer) processLoop() {
	defer d.closedWg.Done()

	for {
		select {
		case <-d.closeCh:
			return

		case event, ok := <-d.inner.Events():
			if !ok {
				return
			}
			d.handleEvent(event)

		case err, ok := <-d.inner.Errors():
			if !ok {
				return
			}
			select {
			case d.errors <- err:
			default:
			}
		}
	}
}

func (d *Debouncer) handleEvent(event Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	if p, ok := d.pending[event.Path]; ok {
		p.event.Op |= event.Op
		// A later create or write supersedes an earlier removal.
		if event.Op.Has(OpCreate | OpWrite) {
			p.event.Op &^= OpRemove | OpRename
		}
		p.event.Timestamp = event.Timestamp
		p.timer.Reset(d.delay)
		return
	}

	path := event.Path
	d.pending[path] = &pendingEvent{
		event: event,
		timer: time.AfterFunc(d.delay, func() { d.fire(path) }),
	}
}

func (d *Debouncer) fire(path string) {
	d.mu.Lock()
	p, ok := d.pending[path]
	if !ok || d.closed {
		d.mu.Unlock()
		return
	}
	delete(d.pending, path)
	event := p.event
	d.firing.Add(1)
	d.mu.Unlock()
	defer d.firing.Done()

	select {
	case d.events <- event:
	case <-d.closeCh:
	}
}

var _ Watcher = (*Debouncer)(nil)
