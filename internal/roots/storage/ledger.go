package storage

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/dshills/scriptroots/internal/roots"
)

const ledgerVersion = 1

var ledgerMagic = []byte("SRLG")

// Maximum string length in the ledger format.
const maxStringLength = 1 << 20

// encodeLedger serializes a ledger.
// Format:
//
//	[4 bytes] Magic "SRLG"
//	[4 bytes] Version (little endian)
//	[4 bytes] Root dir length, [n bytes] root dir
//	[4 bytes] Entry count
//	[entries, sorted by path...]
//	  [4 bytes] Path length
//	  [n bytes] Path
//	  [8 bytes] Timestamp (Unix nano)
//	[8 bytes] xxh3 of everything above
func encodeLedger(rootDir string, l *roots.Ledger) ([]byte, error) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	if _, err := w.Write(ledgerMagic); err != nil {
		return nil, err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(ledgerVersion)); err != nil {
		return nil, err
	}
	if err := writeString(w, rootDir); err != nil {
		return nil, err
	}

	entries := l.Entries()
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if err := binary.Write(w, binary.LittleEndian, uint32(len(keys))); err != nil {
		return nil, err
	}
	for _, k := range keys {
		if err := writeString(w, k); err != nil {
			return nil, err
		}
		if err := binary.Write(w, binary.LittleEndian, entries[k].UnixNano()); err != nil {
			return nil, err
		}
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}

	sum := xxh3.Hash(buf.Bytes())
	if err := binary.Write(&buf, binary.LittleEndian, sum); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeLedger(rootDir string, b []byte) (*roots.Ledger, error) {
	if len(b) < len(ledgerMagic)+8 {
		return nil, fmt.Errorf("%w: ledger truncated", roots.ErrCorruptData)
	}
	body, tail := b[:len(b)-8], b[len(b)-8:]
	if xxh3.Hash(body) != binary.LittleEndian.Uint64(tail) {
		return nil, fmt.Errorf("%w: ledger checksum mismatch", roots.ErrCorruptData)
	}

	entries, err := readLedger(rootDir, bufio.NewReader(bytes.NewReader(body)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", roots.ErrCorruptData, err)
	}
	return roots.LedgerFrom(entries), nil
}

func readLedger(rootDir string, r *bufio.Reader) (map[string]time.Time, error) {
	magic := make([]byte, len(ledgerMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, err
	}
	if !bytes.Equal(magic, ledgerMagic) {
		return nil, fmt.Errorf("bad magic %q", magic)
	}

	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, err
	}
	if version != ledgerVersion {
		return nil, fmt.Errorf("ledger version %d", version)
	}

	owner, err := readString(r)
	if err != nil {
		return nil, err
	}
	if owner != rootDir {
		return nil, fmt.Errorf("ledger belongs to %q", owner)
	}

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}

	entries := make(map[string]time.Time, min(count, 1024))
	for i := uint32(0); i < count; i++ {
		key, err := readString(r)
		if err != nil {
			return nil, err
		}
		var nanos int64
		if err := binary.Read(r, binary.LittleEndian, &nanos); err != nil {
			return nil, err
		}
		entries[key] = time.Unix(0, nanos).UTC()
	}
	if _, err := r.ReadByte(); err != io.EOF {
		return nil, fmt.Errorf("trailing bytes after %d entries", count)
	}
	return entries, nil
}

func writeString(w *bufio.Writer, s string) error {
	if len(s) > maxStringLength {
		return fmt.Errorf("string of %d bytes exceeds ledger limit", len(s))
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := w.WriteString(s)
	return err
}

func readString(r *bufio.Reader) (string, error) {
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return "", err
	}
	if length > maxStringLength {
		return "", fmt.Errorf("string length %d exceeds ledger limit", length)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
