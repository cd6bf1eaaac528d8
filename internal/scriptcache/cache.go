// Package scriptcache answers "what configuration applies to this script".
//
// Entries are resolved from the data of every imported root and kept in an
// LRU. The cache follows the roots manager through editor notifications:
// a cache invalidation purges everything, a path change evicts the entries
// it matches.
package scriptcache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/scriptroots/internal/logging"
	"github.com/dshills/scriptroots/internal/notify"
	"github.com/dshills/scriptroots/internal/roots"
)

// DefaultSize is the LRU capacity used when none is given.
const DefaultSize = 1024

// Source supplies the root data the cache is built from. *roots.Manager
// satisfies it.
type Source interface {
	CollectImportedRootsData() []*roots.BuildRootData
	IsStandaloneScript(path string) bool
	Policy() roots.PathPolicy
}

// Entry is the resolved configuration for one script.
type Entry struct {
	// File is the path the entry was looked up with.
	File string

	// Standalone is set for scripts outside every supported root. Such
	// scripts carry no model.
	Standalone bool

	Model    roots.ScriptModel
	ToolHome string
	JavaHome string
}

type indexed struct {
	model roots.ScriptModel
	data  *roots.BuildRootData
}

// Cache is a concurrency-safe resolved-configuration cache.
type Cache struct {
	src Source
	log *logging.Logger

	mu      sync.Mutex
	entries *lru.Cache[string, Entry]
	index   map[string]indexed
	stale   bool
	builds  int
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Cache) { c.log = l }
}

// New creates a cache holding at most size entries.
func New(src Source, size int, opts ...Option) (*Cache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	entries, err := lru.New[string, Entry](size)
	if err != nil {
		return nil, err
	}

	c := &Cache{src: src, entries: entries, stale: true}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logging.OrNop(c.log).WithComponent("scriptcache")
	return c, nil
}

// Lookup resolves the configuration for path. It returns false for scripts
// inside a supported root that has no model for them yet.
func (c *Cache) Lookup(path string) (Entry, bool) {
	key := c.src.Policy().Key(path)

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries.Get(key); ok {
		return e, true
	}

	if c.stale {
		c.rebuildLocked()
	}

	if ix, ok := c.index[key]; ok {
		e := Entry{
			File:     path,
			Model:    ix.model,
			ToolHome: ix.data.ToolHome,
			JavaHome: ix.data.JavaHome,
		}
		c.entries.Add(key, e)
		return e, true
	}

	if c.src.IsStandaloneScript(path) {
		e := Entry{File: path, Standalone: true}
		c.entries.Add(key, e)
		return e, true
	}
	return Entry{}, false
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Handle applies a notification. It has the notify.Observer signature.
func (c *Cache) Handle(change notify.Change) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stale = true

	if change.Type == notify.ChangeCaches {
		c.entries.Purge()
		c.log.Debug("purged")
		return
	}

	evicted := 0
	for _, key := range c.entries.Keys() {
		e, ok := c.entries.Peek(key)
		if ok && change.Matches(e.File) {
			c.entries.Remove(key)
			evicted++
		}
	}
	if evicted > 0 {
		c.log.Debug("evicted %d entries under %s", evicted, change.Prefix)
	}
}

// Subscribe attaches the cache to n.
func (c *Cache) Subscribe(n *notify.Notifier) *notify.Subscription {
	return n.Subscribe(c.Handle)
}

func (c *Cache) rebuildLocked() {
	c.index = make(map[string]indexed)
	for _, data := range c.src.CollectImportedRootsData() {
		for key, m := range data.Models {
			c.index[key] = indexed{model: m, data: data}
		}
	}
	c.stale = false
	c.builds++
}
