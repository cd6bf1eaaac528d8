// Package bundle reads import results written by an external importer.
//
// A bundle is a YAML or JSON document with the fields of roots.ImportResult.
// Relative paths inside it resolve against the working directory, and a
// relative working directory resolves against the bundle's own directory.
package bundle

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dshills/scriptroots/internal/roots"
	"github.com/dshills/scriptroots/internal/vfs"
)

// Format is a bundle encoding.
type Format int

const (
	// FormatAuto picks the format from the file extension, falling back to
	// sniffing the content.
	FormatAuto Format = iota
	FormatYAML
	FormatJSON
)

// ErrNoWorkingDir is returned for bundles that do not name a working directory.
var ErrNoWorkingDir = errors.New("bundle has no working directory")

// DecodeError describes a bundle that could not be decoded.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("bundle: %v", e.Err)
	}
	return fmt.Sprintf("bundle %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// FormatOf returns the format implied by path's extension.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	default:
		return FormatAuto
	}
}

// Load reads and decodes the bundle at path. A bundle without a timestamp
// takes the file's modification time.
func Load(fsys vfs.FS, path string) (roots.ImportResult, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return roots.ImportResult{}, err
	}

	res, err := Decode(data, FormatOf(path))
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			de.Path = path
		}
		return roots.ImportResult{}, err
	}

	if !filepath.IsAbs(res.WorkingDir) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return roots.ImportResult{}, err
		}
		res.WorkingDir = filepath.Join(filepath.Dir(abs), res.WorkingDir)
		resolve(&res)
	}

	if res.Timestamp.IsZero() {
		if info, err := fsys.Stat(path); err == nil {
			res.Timestamp = info.ModTime()
		}
	}
	return res, nil
}

// Decode parses a bundle. Paths are resolved against the working directory
// when it is absolute.
func Decode(data []byte, format Format) (roots.ImportResult, error) {
	if format == FormatAuto {
		format = sniff(data)
	}

	var res roots.ImportResult
	var err error
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&res)
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&res)
	}
	if err != nil {
		return roots.ImportResult{}, &DecodeError{Err: err}
	}

	if strings.TrimSpace(res.WorkingDir) == "" {
		return roots.ImportResult{}, &DecodeError{Err: ErrNoWorkingDir}
	}
	if filepath.IsAbs(res.WorkingDir) {
		resolve(&res)
	}
	return res, nil
}

func sniff(data []byte) Format {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return FormatJSON
	}
	return FormatYAML
}

// resolve makes every path in res absolute against res.WorkingDir.
func resolve(res *roots.ImportResult) {
	res.WorkingDir = filepath.Clean(res.WorkingDir)
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(res.WorkingDir, p)
	}

	for i, r := range res.ProjectRoots {
		res.ProjectRoots[i] = abs(r)
	}
	for i := range res.Models {
		m := &res.Models[i]
		m.File = abs(m.File)
		for j, p := range m.Classpath {
			m.Classpath[j] = abs(p)
		}
		for j, p := range m.SourcePath {
			m.SourcePath[j] = abs(p)
		}
	}
}
