// Package vfs provides the file system abstraction used by persistence,
// settings, and tool resolution.
//
// OSFS writes atomically (temp file + rename) so a crash never leaves a
// half-written state file behind. MemFS backs the tests.
package vfs

import (
	"io/fs"
	"time"
)

// FS is the subset of file system operations scriptroots needs.
type FS interface {
	// ReadFile reads the entire file content.
	ReadFile(path string) ([]byte, error)

	// WriteFile replaces the file content, creating parent directories.
	WriteFile(path string, data []byte, perm fs.FileMode) error

	// Stat returns file information.
	Stat(path string) (FileInfo, error)

	// Exists returns true if the path exists.
	Exists(path string) bool

	// MkdirAll creates a directory and all parent directories.
	MkdirAll(path string, perm fs.FileMode) error

	// Remove removes a file or empty directory.
	Remove(path string) error

	// RemoveAll removes a path and all its contents.
	RemoveAll(path string) error
}

// FileInfo describes a file or directory.
type FileInfo struct {
	path    string
	size    int64
	modTime time.Time
	isDir   bool
}

// NewFileInfo creates a FileInfo.
func NewFileInfo(path string, size int64, modTime time.Time, isDir bool) FileInfo {
	return FileInfo{path: path, size: size, modTime: modTime, isDir: isDir}
}

// Path returns the full path.
func (fi FileInfo) Path() string { return fi.path }

// Size returns the file size in bytes.
func (fi FileInfo) Size() int64 { return fi.size }

// ModTime returns the modification time.
func (fi FileInfo) ModTime() time.Time { return fi.modTime }

// IsDir returns true if this is a directory.
func (fi FileInfo) IsDir() bool { return fi.isDir }
