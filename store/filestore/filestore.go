package filestore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Options configures a Store.
type Options struct {
	// OnTrashDrained, if set, is called after a background drain that
	// removed at least one top-level trash entry, with the number removed.
	OnTrashDrained func(n int)
	// Logf, if set, receives diagnostic messages for trash-drain failures,
	// which are otherwise swallowed. Defaults to discarding them.
	Logf func(format string, args ...any)
}

// Store manages a data/ directory of content files and a trash/ staging
// directory drained by a dedicated background worker.
type Store struct {
	dataDir  string
	trashDir string
	opt      Options

	drain chan struct{}
	done  chan struct{}
}

// New creates dataDir and trashDir (if missing) and starts the trash-drain
// worker.
func New(root string, opt Options) (*Store, error) {
	if opt.Logf == nil {
		opt.Logf = func(string, ...any) {}
	}
	dataDir := filepath.Join(root, "data")
	trashDir := filepath.Join(root, "trash")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: create data dir: %w", err)
	}
	if err := os.MkdirAll(trashDir, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: create trash dir: %w", err)
	}
	s := &Store{
		dataDir:  dataDir,
		trashDir: trashDir,
		opt:      opt,
		drain:    make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go s.drainLoop()
	return s, nil
}

// Write writes data to data/filename. The write is atomic from the
// caller's perspective: bytes land in a temp file in the same directory,
// which is then renamed into place, so a concurrent Read never observes a
// partially written file. Overwriting an existing filename is permitted.
func (s *Store) Write(filename string, data []byte) error {
	target := filepath.Join(s.dataDir, filename)
	tmp, err := os.CreateTemp(s.dataDir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("filestore: write %s: %w", filename, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("filestore: write %s: %w", filename, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("filestore: write %s: %w", filename, err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("filestore: write %s: %w", filename, err)
	}
	return nil
}

// Read reads the entire contents of data/filename. It returns (nil, false)
// if the file does not exist, or on any other read failure — filestore
// never raises on "not found", matching the store's best-effort read path.
func (s *Store) Read(filename string) ([]byte, bool) {
	data, err := os.ReadFile(filepath.Join(s.dataDir, filename))
	if err != nil {
		if !os.IsNotExist(err) {
			s.opt.Logf("filestore: read %s: %v", filename, err)
		}
		return nil, false
	}
	return data, true
}

// Delete removes data/filename. Unlike Read, absence is reported as a
// failure here — the store layer above decides whether that matters to its
// caller.
func (s *Store) Delete(filename string) error {
	if err := os.Remove(filepath.Join(s.dataDir, filename)); err != nil {
		return fmt.Errorf("filestore: delete %s: %w", filename, err)
	}
	return nil
}

// MoveAllToTrash renames the current data/ directory to trash/<uuid> and
// recreates an empty data/. This is the reclamation primitive used during
// full reset and rebuild: it returns as soon as the rename completes, and
// the actual deletion of trash/<uuid> happens later, off this call's
// critical path, via EmptyTrashInBackground.
func (s *Store) MoveAllToTrash() error {
	staged := filepath.Join(s.trashDir, uuid.NewString())
	if err := os.Rename(s.dataDir, staged); err != nil {
		return fmt.Errorf("filestore: move to trash: %w", err)
	}
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return fmt.Errorf("filestore: recreate data dir: %w", err)
	}
	return nil
}

// EmptyTrashInBackground enqueues a drain of everything beneath trash/ on
// the dedicated worker goroutine. Errors during drain are logged, never
// surfaced — callers cannot observe individual trash-deletion failures,
// only OnTrashDrained's count of what succeeded.
func (s *Store) EmptyTrashInBackground() {
	select {
	case s.drain <- struct{}{}:
	default:
		// A drain is already queued or in flight; coalesce.
	}
}

// Close stops the drain worker after any in-flight drain finishes.
func (s *Store) Close() error {
	close(s.drain)
	<-s.done
	return nil
}

func (s *Store) drainLoop() {
	defer close(s.done)
	for range s.drain {
		s.drainOnce()
	}
}

func (s *Store) drainOnce() {
	entries, err := os.ReadDir(s.trashDir)
	if err != nil {
		s.opt.Logf("filestore: read trash dir: %v", err)
		return
	}
	removed := 0
	for _, e := range entries {
		p := filepath.Join(s.trashDir, e.Name())
		if err := os.RemoveAll(p); err != nil {
			s.opt.Logf("filestore: remove %s: %v", p, err)
			continue
		}
		removed++
	}
	if s.opt.OnTrashDrained != nil && removed > 0 {
		s.opt.OnTrashDrained(removed)
	}
}
