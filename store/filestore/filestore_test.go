package filestore

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_WriteReadDelete(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	if err := s.Write("a.bin", []byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, ok := s.Read("a.bin")
	if !ok || string(data) != "hello" {
		t.Fatalf("Read = %q ok=%v, want hello/true", data, ok)
	}

	if err := s.Write("a.bin", []byte("updated")); err != nil {
		t.Fatalf("overwrite Write: %v", err)
	}
	data, ok = s.Read("a.bin")
	if !ok || string(data) != "updated" {
		t.Fatalf("Read after overwrite = %q ok=%v, want updated/true", data, ok)
	}

	if err := s.Delete("a.bin"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := s.Read("a.bin"); ok {
		t.Fatal("file should be gone after Delete")
	}
}

func TestStore_ReadMissingIsNotAnError(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	data, ok := s.Read("nope.bin")
	if ok || data != nil {
		t.Fatalf("Read(missing) = %v ok=%v, want nil/false", data, ok)
	}
}

func TestStore_DeleteMissingFails(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	if err := s.Delete("nope.bin"); err == nil {
		t.Fatal("Delete on a missing file should report failure")
	}
}

func TestStore_MoveAllToTrashAndDrain(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	var drained int
	s, err := New(root, Options{OnTrashDrained: func(n int) { drained += n }})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Write("keep.bin", []byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.MoveAllToTrash(); err != nil {
		t.Fatalf("MoveAllToTrash: %v", err)
	}

	// data/ must be empty and fresh after the move.
	if _, ok := s.Read("keep.bin"); ok {
		t.Fatal("keep.bin should no longer be visible under data/ after MoveAllToTrash")
	}
	entries, err := os.ReadDir(filepath.Join(root, "trash"))
	if err != nil || len(entries) != 1 {
		t.Fatalf("trash dir entries = %v (err=%v), want exactly 1 staged directory", entries, err)
	}

	s.EmptyTrashInBackground()
	deadline := time.Now().Add(2 * time.Second)
	for drained == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if drained == 0 {
		t.Fatal("trash drain worker did not report any drained entries in time")
	}
	entries, err = os.ReadDir(filepath.Join(root, "trash"))
	if err != nil || len(entries) != 0 {
		t.Fatalf("trash dir should be empty after drain, got %v (err=%v)", entries, err)
	}
}

func TestStore_WriteAtomicity(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	if err := s.Write("f.bin", []byte("v1")); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != "f.bin" {
			t.Fatalf("unexpected leftover entry in data dir: %s", e.Name())
		}
	}
}
