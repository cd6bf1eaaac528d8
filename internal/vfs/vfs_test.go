package vfs

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// runFSTests exercises the shared FS contract against an implementation
// rooted at base.
func runFSTests(t *testing.T, fsys FS, base string) {
	t.Helper()

	file := filepath.Join(base, "a", "b", "state.json")

	t.Run("write creates parents", func(t *testing.T) {
		if err := fsys.WriteFile(file, []byte("one"), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		if !fsys.Exists(filepath.Join(base, "a", "b")) {
			t.Error("parent directory not created")
		}
	})

	t.Run("read back", func(t *testing.T) {
		data, err := fsys.ReadFile(file)
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		if string(data) != "one" {
			t.Errorf("ReadFile = %q, want %q", data, "one")
		}
	})

	t.Run("overwrite", func(t *testing.T) {
		if err := fsys.WriteFile(file, []byte("two"), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		data, _ := fsys.ReadFile(file)
		if string(data) != "two" {
			t.Errorf("ReadFile = %q, want %q", data, "two")
		}
	})

	t.Run("stat", func(t *testing.T) {
		info, err := fsys.Stat(file)
		if err != nil {
			t.Fatalf("Stat: %v", err)
		}
		if info.IsDir() || info.Size() != 3 {
			t.Errorf("Stat = dir:%v size:%d", info.IsDir(), info.Size())
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := fsys.ReadFile(filepath.Join(base, "nope"))
		if !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("ReadFile(missing) err = %v, want ErrNotExist", err)
		}
	})

	t.Run("remove all", func(t *testing.T) {
		if err := fsys.RemoveAll(filepath.Join(base, "a")); err != nil {
			t.Fatalf("RemoveAll: %v", err)
		}
		if fsys.Exists(file) {
			t.Error("file still exists after RemoveAll")
		}
		if err := fsys.RemoveAll(filepath.Join(base, "a")); err != nil {
			t.Errorf("RemoveAll(missing) = %v", err)
		}
	})
}

func TestOSFS(t *testing.T) {
	runFSTests(t, NewOSFS(), t.TempDir())
}

func TestMemFS(t *testing.T) {
	runFSTests(t, NewMemFS(), "/work")
}

func TestOSFS_WriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	fsys := NewOSFS()

	for i := 0; i < 3; i++ {
		if err := fsys.WriteFile(filepath.Join(dir, "ledger.bin"), []byte{byte(i)}, 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the target file, got %d entries", len(entries))
	}
}

func TestMemFS_RemoveNonEmptyDir(t *testing.T) {
	m := NewMemFS()
	_ = m.AddFile("/d/f", "x")

	if err := m.Remove("/d"); err == nil {
		t.Error("Remove on non-empty dir should fail")
	}
	if err := m.Remove("/d/f"); err != nil {
		t.Fatalf("Remove file: %v", err)
	}
	if err := m.Remove("/d"); err != nil {
		t.Errorf("Remove empty dir: %v", err)
	}
}

func TestMemFS_ClockAndChtimes(t *testing.T) {
	m := NewMemFS()
	fixed := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return fixed })

	_ = m.AddFile("/p/build.gradle.kts", "plugins {}")
	info, _ := m.Stat("/p/build.gradle.kts")
	if !info.ModTime().Equal(fixed) {
		t.Errorf("ModTime = %v, want %v", info.ModTime(), fixed)
	}

	later := fixed.Add(time.Hour)
	if err := m.Chtimes("/p/build.gradle.kts", later); err != nil {
		t.Fatal(err)
	}
	info, _ = m.Stat("/p/build.gradle.kts")
	if !info.ModTime().Equal(later) {
		t.Errorf("ModTime after Chtimes = %v, want %v", info.ModTime(), later)
	}

	if got := m.Files(); len(got) != 1 || got[0] != "/p/build.gradle.kts" {
		t.Errorf("Files() = %v", got)
	}
}
