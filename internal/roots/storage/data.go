package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/dshills/scriptroots/internal/roots"
)

const dataVersion = 1

// envelope wraps the payload with what is needed to trust it on load.
type envelope struct {
	Version  int             `json:"version"`
	RootDir  string          `json:"rootDir"`
	Checksum string          `json:"checksum"`
	Payload  json.RawMessage `json:"payload"`
}

type dataPayload struct {
	ImportTimestamp time.Time                    `json:"importTimestamp"`
	ToolHome        string                       `json:"toolHome"`
	JavaHome        string                       `json:"javaHome,omitempty"`
	ProjectRoots    []string                     `json:"projectRoots"`
	Models          map[string]roots.ScriptModel `json:"models"`
}

func checksum(b []byte) string {
	return strconv.FormatUint(xxh3.Hash(b), 16)
}

func encodeData(rootDir string, d *roots.BuildRootData) ([]byte, error) {
	payload, err := json.Marshal(dataPayload{
		ImportTimestamp: d.ImportTimestamp,
		ToolHome:        d.ToolHome,
		JavaHome:        d.JavaHome,
		ProjectRoots:    d.ProjectRoots,
		Models:          d.Models,
	})
	if err != nil {
		return nil, fmt.Errorf("encode root data: %w", err)
	}
	return json.MarshalIndent(envelope{
		Version:  dataVersion,
		RootDir:  rootDir,
		Checksum: checksum(payload),
		Payload:  payload,
	}, "", "  ")
}

func decodeData(rootDir string, b []byte) (*roots.BuildRootData, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", roots.ErrCorruptData, err)
	}
	if env.Version != dataVersion {
		return nil, fmt.Errorf("%w: data version %d", roots.ErrCorruptData, env.Version)
	}
	if env.RootDir != rootDir {
		return nil, fmt.Errorf("%w: data belongs to %q", roots.ErrCorruptData, env.RootDir)
	}
	// MarshalIndent reformats the raw payload; compact it before hashing.
	payload, err := compact(env.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", roots.ErrCorruptData, err)
	}
	if checksum(payload) != env.Checksum {
		return nil, fmt.Errorf("%w: checksum mismatch", roots.ErrCorruptData)
	}

	var p dataPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", roots.ErrCorruptData, err)
	}
	if p.Models == nil {
		p.Models = map[string]roots.ScriptModel{}
	}

	d := &roots.BuildRootData{
		ImportTimestamp: p.ImportTimestamp,
		ToolHome:        p.ToolHome,
		JavaHome:        p.JavaHome,
		ProjectRoots:    p.ProjectRoots,
		Models:          p.Models,
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func compact(raw json.RawMessage) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
