package fsutil

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
)

func TestMemoryFileSystem_CreateVisibleAfterClose(t *testing.T) {
	m := NewMemoryFileSystem()

	w, err := m.Create("out/session.csv")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := w.Write([]byte("a,b\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	// truncated until closed
	if data, _ := m.ReadFile("out/session.csv"); len(data) != 0 {
		t.Errorf("expected empty file before Close, got %q", data)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := m.ReadFile("out/./session.csv")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "a,b\n" {
		t.Errorf("got %q", data)
	}

	info, err := m.Stat("out/session.csv")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() != 4 || info.IsDir() || info.Name() != "session.csv" {
		t.Errorf("unexpected info: name=%s size=%d dir=%v", info.Name(), info.Size(), info.IsDir())
	}
}

func TestMemoryFileSystem_Missing(t *testing.T) {
	m := NewMemoryFileSystem()
	if _, err := m.ReadFile("nope"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ReadFile: expected ErrNotExist, got %v", err)
	}
	if _, err := m.Stat("nope"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Stat: expected ErrNotExist, got %v", err)
	}
}

func TestMemoryFileSystem_MkdirAll(t *testing.T) {
	m := NewMemoryFileSystem()
	if err := m.MkdirAll("a/b/c", 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	for _, dir := range []string{"a", "a/b", "a/b/c"} {
		info, err := m.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Errorf("expected %s to be a directory (err=%v)", dir, err)
		}
	}
}

func TestOSFileSystem(t *testing.T) {
	var osfs FileSystem = OSFileSystem{}
	dir := filepath.Join(t.TempDir(), "nested", "dir")
	if err := osfs.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}

	path := filepath.Join(dir, "f.txt")
	w, err := osfs.Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	w.Write([]byte("hello"))
	w.Close()

	data, err := osfs.ReadFile(path)
	if err != nil || string(data) != "hello" {
		t.Errorf("ReadFile = %q, %v", data, err)
	}
	info, err := osfs.Stat(path)
	if err != nil || info.Size() != 5 {
		t.Errorf("Stat = %v, %v", info, err)
	}
}
