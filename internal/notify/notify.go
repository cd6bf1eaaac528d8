// Package notify fans build root notifications out to editor views and
// configuration caches.
//
// A Notifier satisfies roots.Notifier. Observers subscribe either to every
// change or to a path prefix; a prefix observer receives cache invalidations
// and path changes whose prefix overlaps its own.
package notify

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ChangeType represents the type of notification.
type ChangeType int

const (
	// ChangePaths asks views of matching files to refresh.
	ChangePaths ChangeType = iota

	// ChangeCaches asks derived configuration caches to rebuild.
	ChangeCaches
)

// String returns the change type name.
func (c ChangeType) String() string {
	switch c {
	case ChangePaths:
		return "paths"
	case ChangeCaches:
		return "caches"
	default:
		return "unknown"
	}
}

// Change is one notification.
type Change struct {
	Type ChangeType

	// Prefix is the root whose files changed. Empty for cache changes.
	Prefix string

	// Source identifies the notifier that delivered the change.
	Source string

	Time time.Time

	match func(path string) bool
}

// Matches reports whether a view of path should refresh. Cache changes
// match everything.
func (c Change) Matches(path string) bool {
	if c.Type == ChangeCaches || c.match == nil {
		return true
	}
	return c.match(path)
}

// Observer is called for each delivered change.
type Observer func(change Change)

// Subscription represents an active observer subscription.
type Subscription struct {
	id       uint64
	notifier *Notifier
}

// Unsubscribe removes this subscription.
func (s *Subscription) Unsubscribe() {
	if s.notifier != nil {
		s.notifier.unsubscribe(s.id)
	}
}

type subscriber struct {
	prefix   string // empty for global observers
	observer Observer
}

// Notifier manages notification subscriptions.
type Notifier struct {
	mu sync.RWMutex

	subscribers map[uint64]subscriber
	nextID      uint64
	source      string
	now         func() time.Time

	async  bool
	buffer chan Change
	done   chan struct{}
	wg     sync.WaitGroup
	closed bool
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithAsync delivers changes on a dedicated goroutine with a buffer of
// bufferSize. Notify blocks while the buffer is full.
func WithAsync(bufferSize int) Option {
	return func(n *Notifier) {
		if bufferSize > 0 {
			n.async = true
			n.buffer = make(chan Change, bufferSize)
		}
	}
}

// New creates a Notifier.
func New(opts ...Option) *Notifier {
	n := &Notifier{
		subscribers: make(map[uint64]subscriber),
		source:      uuid.NewString(),
		now:         time.Now,
		done:        make(chan struct{}),
	}

	for _, opt := range opts {
		opt(n)
	}

	if n.async {
		n.wg.Add(1)
		go n.processAsync()
	}

	return n
}

// Source returns the identifier stamped on delivered changes.
func (n *Notifier) Source() string { return n.source }

// Subscribe registers an observer for all changes.
func (n *Notifier) Subscribe(observer Observer) *Subscription {
	return n.add(subscriber{observer: observer})
}

// SubscribePrefix registers an observer for changes overlapping prefix.
func (n *Notifier) SubscribePrefix(prefix string, observer Observer) *Subscription {
	return n.add(subscriber{prefix: normalize(prefix), observer: observer})
}

func (n *Notifier) add(s subscriber) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	n.subscribers[id] = s
	return &Subscription{id: id, notifier: n}
}

// PathsChanged implements roots.Notifier.
func (n *Notifier) PathsChanged(prefix string, match func(path string) bool) {
	n.Notify(Change{Type: ChangePaths, Prefix: normalize(prefix), match: match})
}

// CachesInvalidated implements roots.Notifier.
func (n *Notifier) CachesInvalidated() {
	n.Notify(Change{Type: ChangeCaches})
}

// Notify delivers change to all relevant observers.
func (n *Notifier) Notify(change Change) {
	n.mu.RLock()
	if n.closed {
		n.mu.RUnlock()
		return
	}
	n.mu.RUnlock()

	change.Source = n.source
	if change.Time.IsZero() {
		change.Time = n.now()
	}

	if n.async {
		select {
		case n.buffer <- change:
		case <-n.done:
		}
		return
	}

	n.deliverChange(change)
}

// Close shuts down the notifier, delivering anything still buffered. It is
// safe to call Close multiple times.
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	n.mu.Unlock()

	close(n.done)
	n.wg.Wait()
}

func (n *Notifier) unsubscribe(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.subscribers, id)
}

// deliverChange calls matching observers outside the lock, in subscription
// order.
func (n *Notifier) deliverChange(change Change) {
	n.mu.RLock()
	ids := make([]uint64, 0, len(n.subscribers))
	for id, s := range n.subscribers {
		if s.prefix == "" || change.Type == ChangeCaches || overlaps(s.prefix, change.Prefix) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	observers := make([]Observer, len(ids))
	for i, id := range ids {
		observers[i] = n.subscribers[id].observer
	}
	n.mu.RUnlock()

	for _, obs := range observers {
		obs(change)
	}
}

func (n *Notifier) processAsync() {
	defer n.wg.Done()

	for {
		select {
		case change := <-n.buffer:
			n.deliverChange(change)
		case <-n.done:
			// Drain remaining buffered changes
			for {
				select {
				case change := <-n.buffer:
					n.deliverChange(change)
				default:
					return
				}
			}
		}
	}
}

func normalize(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

// overlaps reports whether either path lies at or under the other.
func overlaps(a, b string) bool {
	return under(a, b) || under(b, a)
}

func under(child, parent string) bool {
	if parent == "" || !strings.HasPrefix(child, parent) {
		return false
	}
	return len(child) == len(parent) || strings.HasSuffix(parent, "/") || child[len(parent)] == '/'
}
