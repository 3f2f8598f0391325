package store

import "github.com/twotier/kvcache/store/metadb"

// RemoveItem removes key's row and, if external, its file. It reports
// false (no error) if key did not exist.
func (s *Storage) RemoveItem(key string) (bool, error) {
	filename, ok, err := s.db.GetFilename(key)
	if err != nil {
		return false, fromDBErr("removeItem", err)
	}
	existed, err := s.db.CountKey(key)
	if err != nil {
		return false, fromDBErr("removeItem", err)
	}
	if !existed {
		return false, nil
	}
	if ok {
		_ = s.files.Delete(filename)
	}
	if err := s.db.Delete(key); err != nil {
		return false, fromDBErr("removeItem", err)
	}
	s.reportItems()
	return true, nil
}

// RemoveItems removes every row in keys and their external files, if any.
func (s *Storage) RemoveItems(keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	filenames, err := s.db.GetFilenames(keys)
	if err != nil {
		return fromDBErr("removeItems", err)
	}
	for _, f := range filenames {
		_ = s.files.Delete(f)
	}
	if err := s.db.DeleteKeys(keys); err != nil {
		return fromDBErr("removeItems", err)
	}
	s.reportItems()
	return nil
}

// RemoveAll discards every item: all external files move to trash/ for
// background reclamation, and every manifest row is deleted. Sizes are
// never negative, so DeleteLargerThan(-1) matches every row without a
// dedicated "delete everything" statement.
func (s *Storage) RemoveAll() error {
	if err := s.files.MoveAllToTrash(); err != nil {
		return ioErr("removeAll", err)
	}
	s.files.EmptyTrashInBackground()
	if err := s.db.DeleteLargerThan(-1); err != nil {
		return fromDBErr("removeAll", err)
	}
	if err := s.db.Checkpoint(); err != nil {
		return fromDBErr("removeAll", err)
	}
	s.reportItems()
	return nil
}

// RemoveAllWithProgress behaves like RemoveAll but reports progress in
// batches of batchSize rows instead of moving the whole data directory at
// once, for callers that want to show incremental feedback. onProgress is
// called after each batch with the cumulative number of rows removed and
// the total row count as of the start of the call; onEnd is called exactly
// once, whether the call succeeds or fails, with errored set whenever the
// initial count could not be read or a deletion failed partway through.
func (s *Storage) RemoveAllWithProgress(batchSize int, onProgress func(removed, total int64), onEnd func(errored bool)) error {
	if batchSize <= 0 {
		batchSize = 32
	}

	totalCount, err := s.db.CountAll()
	if err != nil {
		if onEnd != nil {
			onEnd(true)
		}
		return fromDBErr("removeAllWithProgress", err)
	}

	var removed int64
	for {
		rows, err := s.db.GetOldest(batchSize)
		if err != nil {
			if onEnd != nil {
				onEnd(true)
			}
			return fromDBErr("removeAllWithProgress", err)
		}
		if len(rows) == 0 {
			break
		}
		keys := make([]string, len(rows))
		for i, r := range rows {
			keys[i] = r.Key
			if r.Filename != "" {
				_ = s.files.Delete(r.Filename)
			}
		}
		if err := s.db.DeleteKeys(keys); err != nil {
			if onEnd != nil {
				onEnd(true)
			}
			return fromDBErr("removeAllWithProgress", err)
		}
		removed += int64(len(rows))
		if onProgress != nil {
			onProgress(removed, totalCount)
		}
	}
	if err := s.db.Checkpoint(); err != nil {
		if onEnd != nil {
			onEnd(true)
		}
		return fromDBErr("removeAllWithProgress", err)
	}
	s.reportItems()
	if onEnd != nil {
		onEnd(false)
	}
	return nil
}

// RemoveItemsLargerThan removes every item whose size exceeds limit.
func (s *Storage) RemoveItemsLargerThan(limit int64) error {
	filenames, err := s.db.GetFilenamesLargerThan(limit)
	if err != nil {
		return fromDBErr("removeItemsLargerThan", err)
	}
	for _, f := range filenames {
		_ = s.files.Delete(f)
	}
	if err := s.db.DeleteLargerThan(limit); err != nil {
		return fromDBErr("removeItemsLargerThan", err)
	}
	if err := s.db.Checkpoint(); err != nil {
		return fromDBErr("removeItemsLargerThan", err)
	}
	s.reportItems()
	return nil
}

// RemoveItemsEarlierThan removes every item whose last access time is
// before ts (unix seconds).
func (s *Storage) RemoveItemsEarlierThan(ts int64) error {
	filenames, err := s.db.GetFilenamesEarlierThan(ts)
	if err != nil {
		return fromDBErr("removeItemsEarlierThan", err)
	}
	for _, f := range filenames {
		_ = s.files.Delete(f)
	}
	if err := s.db.DeleteEarlierThan(ts); err != nil {
		return fromDBErr("removeItemsEarlierThan", err)
	}
	if err := s.db.Checkpoint(); err != nil {
		return fromDBErr("removeItemsEarlierThan", err)
	}
	s.reportItems()
	return nil
}

// RemoveItemsToFitSize removes the least-recently-used items, oldest
// first, until the total stored size is at or below maxBytes.
func (s *Storage) RemoveItemsToFitSize(maxBytes int64) error {
	const batch = 16
	for {
		size, err := s.db.SumSize()
		if err != nil {
			return fromDBErr("removeItemsToFitSize", err)
		}
		if size <= maxBytes {
			break
		}
		rows, err := s.db.GetOldest(batch)
		if err != nil {
			return fromDBErr("removeItemsToFitSize", err)
		}
		if len(rows) == 0 {
			break
		}
		victims := rows
		for i, r := range rows {
			size -= r.Size
			if size <= maxBytes {
				victims = rows[:i+1]
				break
			}
		}
		if err := s.evictRows(victims); err != nil {
			return err
		}
	}
	if err := s.db.Checkpoint(); err != nil {
		return fromDBErr("removeItemsToFitSize", err)
	}
	s.reportItems()
	return nil
}

// RemoveItemsToFitCount removes the least-recently-used items, oldest
// first, until at most maxCount remain.
func (s *Storage) RemoveItemsToFitCount(maxCount int64) error {
	const batch = 16
	for {
		count, err := s.db.CountAll()
		if err != nil {
			return fromDBErr("removeItemsToFitCount", err)
		}
		if count <= maxCount {
			break
		}
		n := batch
		if over := count - maxCount; over < int64(n) {
			n = int(over)
		}
		rows, err := s.db.GetOldest(n)
		if err != nil {
			return fromDBErr("removeItemsToFitCount", err)
		}
		if len(rows) == 0 {
			break
		}
		if err := s.evictRows(rows); err != nil {
			return err
		}
	}
	if err := s.db.Checkpoint(); err != nil {
		return fromDBErr("removeItemsToFitCount", err)
	}
	s.reportItems()
	return nil
}

// evictRows deletes rows' external files and manifest entries in one
// batch, used by the size/count trim loops.
func (s *Storage) evictRows(rows []metadb.Row) error {
	keys := make([]string, len(rows))
	for i, r := range rows {
		keys[i] = r.Key
		if r.Filename != "" {
			_ = s.files.Delete(r.Filename)
		}
	}
	if err := s.db.DeleteKeys(keys); err != nil {
		return fromDBErr("evict", err)
	}
	return nil
}
