// Package storage persists build root data and modification ledgers on a
// vfs.FS.
//
// Each root gets a directory under the state directory named by the xxh3
// hash of its root key:
//
//	<state>/roots/<hash>/data.json   checksummed JSON envelope
//	<state>/roots/<hash>/ledger.bin  binary ledger
//
// Both files record the root key they belong to; a file whose key, checksum
// or format does not match is reported as roots.ErrCorruptData.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strconv"

	"github.com/zeebo/xxh3"

	"github.com/dshills/scriptroots/internal/logging"
	"github.com/dshills/scriptroots/internal/roots"
	"github.com/dshills/scriptroots/internal/vfs"
)

const (
	dataFile   = "data.json"
	ledgerFile = "ledger.bin"
	filePerm   = 0o644
	dirPerm    = 0o755
)

// FileStorage implements roots.Storage.
type FileStorage struct {
	fs   vfs.FS
	base string
	log  *logging.Logger
}

var _ roots.Storage = (*FileStorage)(nil)

// Option configures a FileStorage.
type Option func(*FileStorage)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *FileStorage) { s.log = l }
}

// New creates a storage rooted at stateDir.
func New(fsys vfs.FS, stateDir string, opts ...Option) *FileStorage {
	s := &FileStorage{fs: fsys, base: path.Join(slash(stateDir), "roots")}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logging.OrNop(s.log).WithComponent("storage")
	return s
}

// Dir returns the directory holding the state of rootDir.
func (s *FileStorage) Dir(rootDir string) string {
	return path.Join(s.base, strconv.FormatUint(xxh3.HashString(rootDir), 16))
}

func (s *FileStorage) file(rootDir, name string) string {
	return path.Join(s.Dir(rootDir), name)
}

// WriteData implements roots.Storage.
func (s *FileStorage) WriteData(rootDir string, data *roots.BuildRootData) error {
	b, err := encodeData(rootDir, data)
	if err != nil {
		return err
	}
	return s.write(rootDir, dataFile, b)
}

// ReadData implements roots.Storage.
func (s *FileStorage) ReadData(rootDir string) (*roots.BuildRootData, error) {
	b, err := s.fs.ReadFile(s.file(rootDir, dataFile))
	if err != nil {
		return nil, err
	}
	return decodeData(rootDir, b)
}

// RemoveData implements roots.Storage.
func (s *FileStorage) RemoveData(rootDir string) error {
	return s.remove(rootDir, dataFile)
}

// WriteLedger implements roots.Storage.
func (s *FileStorage) WriteLedger(rootDir string, ledger *roots.Ledger) error {
	b, err := encodeLedger(rootDir, ledger)
	if err != nil {
		return err
	}
	return s.write(rootDir, ledgerFile, b)
}

// ReadLedger implements roots.Storage.
func (s *FileStorage) ReadLedger(rootDir string) (*roots.Ledger, error) {
	b, err := s.fs.ReadFile(s.file(rootDir, ledgerFile))
	if err != nil {
		return nil, err
	}
	return decodeLedger(rootDir, b)
}

// RemoveLedger implements roots.Storage.
func (s *FileStorage) RemoveLedger(rootDir string) error {
	return s.remove(rootDir, ledgerFile)
}

func (s *FileStorage) write(rootDir, name string, b []byte) error {
	if err := s.fs.MkdirAll(s.Dir(rootDir), dirPerm); err != nil {
		return fmt.Errorf("create root state dir: %w", err)
	}
	if err := s.fs.WriteFile(s.file(rootDir, name), b, filePerm); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	s.log.Debug("wrote %s for %s (%d bytes)", name, rootDir, len(b))
	return nil
}

// remove deletes one file and then the root directory once it is empty.
// Missing files are not an error.
func (s *FileStorage) remove(rootDir, name string) error {
	if err := s.fs.Remove(s.file(rootDir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := s.fs.Remove(s.Dir(rootDir)); err == nil {
		s.log.Debug("removed state dir for %s", rootDir)
	}
	return nil
}

func slash(p string) string {
	out := []byte(p)
	for i, c := range out {
		if c == '\\' {
			out[i] = '/'
		}
	}
	return string(out)
}
