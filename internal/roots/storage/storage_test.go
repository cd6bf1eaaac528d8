package storage

import (
	"errors"
	"io/fs"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/scriptroots/internal/roots"
	"github.com/dshills/scriptroots/internal/vfs"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleData() *roots.BuildRootData {
	return roots.NewBuildRootData(roots.PathPolicy{}, t0, "/opt/gradle", "/jdk",
		[]string{"/p", "/p/lib"},
		[]roots.ScriptModel{
			{File: "/p/build.gradle.kts", Classpath: []string{"/cp/a.jar"}, Imports: []string{"org.example.*"}, InputsTimestamp: t0},
			{File: "/p/lib/build.gradle.kts", SourcePath: []string{"/src"}},
		})
}

func newStorage() (*FileStorage, *vfs.MemFS) {
	mem := vfs.NewMemFS()
	return New(mem, "/state"), mem
}

func TestFileStorage_DataRoundTrip(t *testing.T) {
	s, _ := newStorage()
	want := sampleData()

	require.NoError(t, s.WriteData("/p", want))
	got, err := s.ReadData("/p")
	require.NoError(t, err)

	assert.True(t, want.ImportTimestamp.Equal(got.ImportTimestamp))
	assert.Equal(t, want.ToolHome, got.ToolHome)
	assert.Equal(t, want.JavaHome, got.JavaHome)
	assert.Equal(t, want.ProjectRoots, got.ProjectRoots)
	require.Len(t, got.Models, 2)
	m := got.Models["/p/build.gradle.kts"]
	assert.Equal(t, []string{"/cp/a.jar"}, m.Classpath)
	assert.True(t, m.InputsTimestamp.Equal(t0))
}

func TestFileStorage_MissingIsNotExist(t *testing.T) {
	s, _ := newStorage()

	_, err := s.ReadData("/p")
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	_, err = s.ReadLedger("/p")
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	assert.NoError(t, s.RemoveData("/p"))
	assert.NoError(t, s.RemoveLedger("/p"))
}

func TestFileStorage_DataCorruption(t *testing.T) {
	tests := []struct {
		name   string
		mangle func(b []byte) []byte
	}{
		{"garbage", func([]byte) []byte { return []byte("{not json") }},
		{"truncated", func(b []byte) []byte { return b[:len(b)/2] }},
		{"payload edited", func(b []byte) []byte {
			return []byte(strings.Replace(string(b), "/opt/gradle", "/opt/other!", 1))
		}},
		{"version", func(b []byte) []byte {
			return []byte(strings.Replace(string(b), `"version": 1`, `"version": 9`, 1))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mem := newStorage()
			require.NoError(t, s.WriteData("/p", sampleData()))

			file := path.Join(s.Dir("/p"), dataFile)
			b, err := mem.ReadFile(file)
			require.NoError(t, err)
			require.NoError(t, mem.WriteFile(file, tt.mangle(b), 0o644))

			_, err = s.ReadData("/p")
			assert.ErrorIs(t, err, roots.ErrCorruptData)
		})
	}
}

func TestFileStorage_DataForOtherRootIsCorrupt(t *testing.T) {
	s, mem := newStorage()
	require.NoError(t, s.WriteData("/a", sampleData()))

	b, err := mem.ReadFile(path.Join(s.Dir("/a"), dataFile))
	require.NoError(t, err)
	require.NoError(t, mem.WriteFile(path.Join(s.Dir("/b"), dataFile), b, 0o644))

	_, err = s.ReadData("/b")
	assert.ErrorIs(t, err, roots.ErrCorruptData)
}

func TestFileStorage_StructurallyInvalidData(t *testing.T) {
	s, _ := newStorage()
	bad := roots.NewBuildRootData(roots.PathPolicy{}, t0, "", "", nil, nil)

	require.NoError(t, s.WriteData("/p", bad))
	_, err := s.ReadData("/p")
	assert.ErrorIs(t, err, roots.ErrCorruptData)
}

func TestFileStorage_LedgerRoundTrip(t *testing.T) {
	s, _ := newStorage()
	l := roots.NewLedger().
		With("/p/build.gradle.kts", t0.Add(time.Second)).
		With("/p/settings.gradle.kts", t0.Add(2*time.Second+7))

	require.NoError(t, s.WriteLedger("/p", l))
	got, err := s.ReadLedger("/p")
	require.NoError(t, err)

	require.Equal(t, 2, got.Len())
	ts, ok := got.Timestamp("/p/settings.gradle.kts")
	require.True(t, ok)
	assert.True(t, ts.Equal(t0.Add(2*time.Second+7)))
}

func TestFileStorage_EmptyLedger(t *testing.T) {
	s, _ := newStorage()
	require.NoError(t, s.WriteLedger("/p", roots.NewLedger()))

	got, err := s.ReadLedger("/p")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
}

func TestFileStorage_LedgerCorruption(t *testing.T) {
	s, mem := newStorage()
	require.NoError(t, s.WriteLedger("/p", roots.NewLedger().With("/p/a.kts", t0)))

	file := path.Join(s.Dir("/p"), ledgerFile)
	b, err := mem.ReadFile(file)
	require.NoError(t, err)

	flipped := append([]byte(nil), b...)
	flipped[10] ^= 0xff
	require.NoError(t, mem.WriteFile(file, flipped, 0o644))
	_, err = s.ReadLedger("/p")
	assert.ErrorIs(t, err, roots.ErrCorruptData)

	require.NoError(t, mem.WriteFile(file, b[:5], 0o644))
	_, err = s.ReadLedger("/p")
	assert.ErrorIs(t, err, roots.ErrCorruptData)
}

func TestFileStorage_LedgerForOtherRootIsCorrupt(t *testing.T) {
	s, mem := newStorage()
	require.NoError(t, s.WriteLedger("/a", roots.NewLedger()))

	b, err := mem.ReadFile(path.Join(s.Dir("/a"), ledgerFile))
	require.NoError(t, err)
	require.NoError(t, mem.WriteFile(path.Join(s.Dir("/b"), ledgerFile), b, 0o644))

	_, err = s.ReadLedger("/b")
	assert.ErrorIs(t, err, roots.ErrCorruptData)
}

func TestFileStorage_RemoveCleansDirectory(t *testing.T) {
	s, mem := newStorage()
	require.NoError(t, s.WriteData("/p", sampleData()))
	require.NoError(t, s.WriteLedger("/p", roots.NewLedger()))

	require.NoError(t, s.RemoveData("/p"))
	assert.True(t, mem.Exists(s.Dir("/p")), "ledger still present")

	require.NoError(t, s.RemoveLedger("/p"))
	assert.False(t, mem.Exists(s.Dir("/p")))
}

func TestFileStorage_OnDisk(t *testing.T) {
	s := New(vfs.NewOSFS(), t.TempDir())

	require.NoError(t, s.WriteData("/p", sampleData()))
	require.NoError(t, s.WriteLedger("/p", roots.NewLedger().With("/p/a.kts", t0)))

	_, err := s.ReadData("/p")
	require.NoError(t, err)
	l, err := s.ReadLedger("/p")
	require.NoError(t, err)
	assert.Equal(t, 1, l.Len())
}
