package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/twotier/kvcache/internal/diag"
	"github.com/twotier/kvcache/store/filestore"
	"github.com/twotier/kvcache/store/metadb"
)

// maxPathLen rejects roots that would leave no room for filenames and
// SQLite's own sidecar files (-wal, -shm) beneath a platform path limit.
// 4096 is the common PATH_MAX on Linux; 64 bytes are reserved for the
// longest filename plus suffix this package ever builds.
const maxPathLen = 4096 - 64

// Options configures a Storage.
type Options struct {
	Mode Mode
	// Metrics, if set, receives op/item/trash counters. Defaults to
	// NoopMetrics.
	Metrics Metrics
	// Clock overrides time.Now, for deterministic tests.
	Clock func() time.Time
	// Debug enables the internal/diag logger for metadb and filestore
	// diagnostic messages. Defaults to disabled.
	Debug bool
}

// Storage is KVStorage: a persistent key-value store composing a SQLite
// manifest (store/metadb) with a content-addressed file directory
// (store/filestore). Storage is not internally thread-safe.
type Storage struct {
	root string
	mode Mode
	opt  Options

	files *filestore.Store
	db    *metadb.DB
	now   func() time.Time
}

// New opens (or creates) a Storage rooted at root. If the initial open
// fails — a corrupt manifest, an unreadable data directory — New resets
// root (discarding its contents into trash/ for background reclamation)
// and retries exactly once before giving up.
func New(root string, opt Options) (*Storage, error) {
	if len(root) > maxPathLen {
		return nil, invalidArg("new", fmt.Errorf("path length %d exceeds %d", len(root), maxPathLen))
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Clock == nil {
		opt.Clock = time.Now
	}

	s, err := construct(root, opt)
	if err == nil {
		return s, nil
	}
	resetRoot(root)
	return construct(root, opt)
}

func construct(root string, opt Options) (*Storage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, ioErr("new", err)
	}

	logger := diag.New(opt.Debug)
	files, err := filestore.New(root, filestore.Options{
		OnTrashDrained: opt.Metrics.TrashDrained,
		Logf:           logger.Func(),
	})
	if err != nil {
		return nil, ioErr("new", err)
	}

	db := metadb.New(filepath.Join(root, "manifest.sqlite"), metadb.Options{
		OnOp: opt.Metrics.Op,
		Logf: logger.Func(),
	})
	if _, err := db.CountAll(); err != nil {
		_ = files.Close()
		return nil, fromDBErr("new", err)
	}

	return &Storage{root: root, mode: opt.Mode, opt: opt, files: files, db: db, now: opt.Clock}, nil
}

// resetRoot discards any existing manifest and data directory beneath
// root, moving data/ into trash/ for background reclamation rather than
// deleting it inline. Best-effort: individual failures are swallowed,
// since the caller is about to retry construction from a clean slate
// regardless.
func resetRoot(root string) {
	_ = os.Remove(filepath.Join(root, "manifest.sqlite"))
	_ = os.Remove(filepath.Join(root, "manifest.sqlite-shm"))
	_ = os.Remove(filepath.Join(root, "manifest.sqlite-wal"))

	dataDir := filepath.Join(root, "data")
	if _, err := os.Stat(dataDir); err != nil {
		return
	}
	trashDir := filepath.Join(root, "trash")
	if err := os.MkdirAll(trashDir, 0o755); err != nil {
		return
	}
	staged := filepath.Join(trashDir, uuid.NewString())
	if err := os.Rename(dataDir, staged); err == nil {
		go os.RemoveAll(staged)
	}
}

// Close releases the underlying filestore and metadb resources.
func (s *Storage) Close() error {
	dbErr := s.db.Close()
	fsErr := s.files.Close()
	if dbErr != nil {
		return dbErr
	}
	return fsErr
}

func (s *Storage) reportItems() {
	count, err := s.db.CountAll()
	if err != nil {
		return
	}
	size, err := s.db.SumSize()
	if err != nil {
		return
	}
	s.opt.Metrics.Items(count, size)
}

// SaveItem writes value under key, either externally (filename non-empty,
// required in ModeFile) or inline in the manifest (filename empty,
// required in ModeSQLite). ext, if non-nil, is stored as opaque
// caller-defined metadata alongside the row.
func (s *Storage) SaveItem(key string, value []byte, filename string, ext []byte) error {
	if key == "" {
		return invalidArg("saveItem", fmt.Errorf("empty key"))
	}
	if len(value) == 0 {
		return invalidArg("saveItem", fmt.Errorf("empty value"))
	}
	switch s.mode {
	case ModeFile:
		if filename == "" {
			return invalidArg("saveItem", fmt.Errorf("mode %s requires a filename", s.mode))
		}
	case ModeSQLite:
		filename = ""
	}

	now := s.now().Unix()
	if filename != "" {
		if err := s.files.Write(filename, value); err != nil {
			return ioErr("saveItem", err)
		}
		if err := s.db.Upsert(key, filename, int64(len(value)), nil, ext, now); err != nil {
			_ = s.files.Delete(filename)
			return fromDBErr("saveItem", err)
		}
	} else {
		if old, ok, err := s.db.GetFilename(key); err == nil && ok {
			_ = s.files.Delete(old)
		}
		if err := s.db.Upsert(key, "", int64(len(value)), value, ext, now); err != nil {
			return fromDBErr("saveItem", err)
		}
	}
	s.reportItems()
	return nil
}

// GetItem fetches key's full record, including its value. If the row
// exists but its external file is missing (the two stores drifted out of
// sync), GetItem heals by deleting the stale row and reporting a miss
// rather than an error.
func (s *Storage) GetItem(key string) (Item, bool, error) {
	return s.getItem(key, true)
}

// GetItemValue is a convenience wrapper returning just the value bytes.
func (s *Storage) GetItemValue(key string) ([]byte, bool, error) {
	item, ok, err := s.getItem(key, true)
	if !ok || err != nil {
		return nil, ok, err
	}
	return item.Value, true, nil
}

// GetItemInfo fetches key's metadata without reading its value — no file
// I/O, no inline_data column read.
func (s *Storage) GetItemInfo(key string) (Item, bool, error) {
	return s.getItem(key, false)
}

func (s *Storage) getItem(key string, withValue bool) (Item, bool, error) {
	row, ok, err := s.db.Get(key, withValue)
	if err != nil {
		return Item{}, false, fromDBErr("getItem", err)
	}
	if !ok {
		return Item{}, false, nil
	}
	item := Item{
		Key:              row.Key,
		Filename:         row.Filename,
		Size:             row.Size,
		ModificationTime: row.ModificationTime,
		LastAccessTime:   row.LastAccessTime,
		ExtendedData:     row.ExtendedData,
	}
	if withValue {
		if row.Filename != "" {
			data, ok := s.files.Read(row.Filename)
			if !ok {
				_ = s.db.Delete(key)
				s.reportItems()
				return Item{}, false, nil
			}
			item.Value = data
		} else {
			item.Value = row.InlineData
		}
	}
	_ = s.db.UpdateAccessTime(key, s.now().Unix())
	return item, true, nil
}

// GetItemsForKeys fetches every existing row among keys, in no particular
// order. Rows whose external file is missing are healed (deleted) and
// silently omitted, the same as GetItem.
func (s *Storage) GetItemsForKeys(keys []string) ([]Item, error) {
	rows, err := s.db.GetMany(keys, true)
	if err != nil {
		return nil, fromDBErr("getItemsForKeys", err)
	}
	now := s.now().Unix()
	out := make([]Item, 0, len(rows))
	var stale []string
	var touched []string
	for _, row := range rows {
		item := Item{
			Key:              row.Key,
			Filename:         row.Filename,
			Size:             row.Size,
			ModificationTime: row.ModificationTime,
			LastAccessTime:   row.LastAccessTime,
			ExtendedData:     row.ExtendedData,
		}
		if row.Filename != "" {
			data, ok := s.files.Read(row.Filename)
			if !ok {
				stale = append(stale, row.Key)
				continue
			}
			item.Value = data
		} else {
			item.Value = row.InlineData
		}
		out = append(out, item)
		touched = append(touched, row.Key)
	}
	if len(stale) > 0 {
		_ = s.db.DeleteKeys(stale)
		s.reportItems()
	}
	if len(touched) > 0 {
		_ = s.db.UpdateAccessTimes(touched, now)
	}
	return out, nil
}

// ItemExists reports whether key has a row, without touching its value or
// access time.
func (s *Storage) ItemExists(key string) (bool, error) {
	ok, err := s.db.CountKey(key)
	if err != nil {
		return false, fromDBErr("itemExists", err)
	}
	return ok, nil
}

// GetItemsCount returns the total number of stored items.
func (s *Storage) GetItemsCount() (int64, error) {
	n, err := s.db.CountAll()
	if err != nil {
		return 0, fromDBErr("getItemsCount", err)
	}
	return n, nil
}

// GetItemsSize returns the sum of every stored item's size.
func (s *Storage) GetItemsSize() (int64, error) {
	n, err := s.db.SumSize()
	if err != nil {
		return 0, fromDBErr("getItemsSize", err)
	}
	return n, nil
}
