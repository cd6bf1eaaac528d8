// Package watcher watches linked project directories for changes to build
// script files and reports them, debounced, as file-change notifications.
package watcher

import (
	"errors"
	"strings"
	"time"
)

// Common errors.
var (
	// ErrWatcherClosed is returned when operating on a closed watcher.
	ErrWatcherClosed = errors.New("watcher is closed")

	// ErrPathNotExist is returned when the path to watch does not exist.
	ErrPathNotExist = errors.New("path does not exist")
)

// Op describes a set of file operations.
type Op uint8

const (
	// OpCreate indicates a file was created.
	OpCreate Op = 1 << iota
	// OpWrite indicates a file was written.
	OpWrite
	// OpRemove indicates a file was removed.
	OpRemove
	// OpRename indicates a file was renamed away.
	OpRename
)

// String returns a string representation of the operation.
func (op Op) String() string {
	var parts []string
	if op.Has(OpCreate) {
		parts = append(parts, "CREATE")
	}
	if op.Has(OpWrite) {
		parts = append(parts, "WRITE")
	}
	if op.Has(OpRemove) {
		parts = append(parts, "REMOVE")
	}
	if op.Has(OpRename) {
		parts = append(parts, "RENAME")
	}
	if len(parts) == 0 {
		return "NONE"
	}
	return strings.Join(parts, "|")
}

// Has reports whether op includes other.
func (op Op) Has(other Op) bool {
	return op&other != 0
}

// Event is a change to a script file.
type Event struct {
	// Path is the absolute path of the file.
	Path string

	// Op is the combined set of operations seen.
	Op Op

	// Timestamp is when the last operation was seen.
	Timestamp time.Time
}

// Gone reports whether the file no longer exists after this event.
func (e Event) Gone() bool {
	return e.Op.Has(OpRemove|OpRename) && !e.Op.Has(OpCreate|OpWrite)
}

// Watcher produces script file events.
type Watcher interface {
	// WatchRecursive watches dir and every directory below it that the
	// filter does not skip.
	WatchRecursive(dir string) error

	// Unwatch stops watching dir and everything below it.
	Unwatch(dir string) error

	// Events returns the event channel. It is closed by Close.
	Events() <-chan Event

	// Errors returns the error channel. It is closed by Close.
	Errors() <-chan error

	// WatchedPaths returns the directories currently watched.
	WatchedPaths() []string

	// Close stops the watcher.
	Close() error
}

// Config configures watchers.
type Config struct {
	// DebounceDelay is how long a path must stay quiet before its event is
	// delivered. Default: 100ms
	DebounceDelay time.Duration

	// BufferSize is the size of the event channels. Default: 100
	BufferSize int

	// Filter selects which files produce events and which directories are
	// skipped. Default: DefaultFilter()
	Filter *Filter
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DebounceDelay: 100 * time.Millisecond,
		BufferSize:    100,
		Filter:        DefaultFilter(),
	}
}

// Option configures a watcher.
type Option func(*Config)

// WithDebounceDelay sets the debounce delay.
func WithDebounceDelay(d time.Duration) Option {
	return func(c *Config) {
		c.DebounceDelay = d
	}
}

// WithBufferSize sets the channel buffer size.
func WithBufferSize(size int) Option {
	return func(c *Config) {
		c.BufferSize = size
	}
}

// WithFilter replaces the file filter.
func WithFilter(f *Filter) Option {
	return func(c *Config) {
		c.Filter = f
	}
}
