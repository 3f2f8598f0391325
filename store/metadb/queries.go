package metadb

import (
	"database/sql"
	"fmt"
)

// Row is one manifest row. Exactly one of Filename/InlineData is
// populated, per the store's data model.
type Row struct {
	Key              string
	Filename         string
	Size             int64
	InlineData       []byte
	ModificationTime int64
	LastAccessTime   int64
	ExtendedData     []byte
}

const upsertSQL = `INSERT INTO manifest
	(key, filename, size, inline_data, modification_time, last_access_time, extended_data)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		filename = excluded.filename,
		size = excluded.size,
		inline_data = excluded.inline_data,
		modification_time = excluded.modification_time,
		last_access_time = excluded.last_access_time,
		extended_data = excluded.extended_data`

// Upsert inserts or replaces the manifest row for key. Exactly one of
// filename/inline should be non-empty per the caller's storage-mode
// policy; metadb itself does not enforce that invariant, the same way the
// source's manifest writer trusts its caller.
func (d *DB) Upsert(key, filename string, size int64, inline []byte, ext []byte, now int64) error {
	if err := d.ensureOpen(); err != nil {
		return err
	}
	stmt, err := d.prepare(upsertSQL)
	if err != nil {
		return d.fail("upsert", err)
	}
	var filenameArg, inlineArg any
	if filename != "" {
		filenameArg = filename
	}
	if len(inline) > 0 {
		inlineArg = inline
	}
	if _, err := stmt.Exec(key, filenameArg, size, inlineArg, now, now, nullIfEmpty(ext)); err != nil {
		return d.fail("upsert", err)
	}
	d.report("upsert", true)
	return nil
}

func nullIfEmpty(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

const updateAccessTimeSQL = `UPDATE manifest SET last_access_time = ? WHERE key = ?`

// UpdateAccessTime sets last_access_time for key to now. Best-effort: a
// failure here is never fatal to the caller's read path.
func (d *DB) UpdateAccessTime(key string, now int64) error {
	if err := d.ensureOpen(); err != nil {
		return err
	}
	stmt, err := d.prepare(updateAccessTimeSQL)
	if err != nil {
		return d.fail("updateAccessTime", err)
	}
	if _, err := stmt.Exec(now, key); err != nil {
		return d.fail("updateAccessTime", err)
	}
	d.report("updateAccessTime", true)
	return nil
}

// UpdateAccessTimes sets last_access_time for every key in keys to now.
func (d *DB) UpdateAccessTimes(keys []string, now int64) error {
	if len(keys) == 0 {
		return nil
	}
	if err := d.ensureOpen(); err != nil {
		return err
	}
	sqlText := fmt.Sprintf(`UPDATE manifest SET last_access_time = ? WHERE key IN (%s)`, placeholders(len(keys)))
	stmt, err := d.prepareUncached(sqlText)
	if err != nil {
		return d.fail("updateAccessTimes", err)
	}
	defer stmt.Close()

	args := make([]any, 0, len(keys)+1)
	args = append(args, now)
	for _, k := range keys {
		args = append(args, k)
	}
	if _, err := stmt.Exec(args...); err != nil {
		return d.fail("updateAccessTimes", err)
	}
	d.report("updateAccessTimes", true)
	return nil
}

const deleteSQL = `DELETE FROM manifest WHERE key = ?`

// Delete removes the row for key, if any.
func (d *DB) Delete(key string) error {
	if err := d.ensureOpen(); err != nil {
		return err
	}
	stmt, err := d.prepare(deleteSQL)
	if err != nil {
		return d.fail("delete", err)
	}
	if _, err := stmt.Exec(key); err != nil {
		return d.fail("delete", err)
	}
	d.report("delete", true)
	return nil
}

// DeleteKeys removes every row whose key is in keys.
func (d *DB) DeleteKeys(keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := d.ensureOpen(); err != nil {
		return err
	}
	sqlText := fmt.Sprintf(`DELETE FROM manifest WHERE key IN (%s)`, placeholders(len(keys)))
	stmt, err := d.prepareUncached(sqlText)
	if err != nil {
		return d.fail("deleteKeys", err)
	}
	defer stmt.Close()

	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	if _, err := stmt.Exec(args...); err != nil {
		return d.fail("deleteKeys", err)
	}
	d.report("deleteKeys", true)
	return nil
}

const deleteLargerThanSQL = `DELETE FROM manifest WHERE size > ?`

// DeleteLargerThan removes every row whose size exceeds limit.
func (d *DB) DeleteLargerThan(limit int64) error {
	if err := d.ensureOpen(); err != nil {
		return err
	}
	stmt, err := d.prepare(deleteLargerThanSQL)
	if err != nil {
		return d.fail("deleteLargerThan", err)
	}
	if _, err := stmt.Exec(limit); err != nil {
		return d.fail("deleteLargerThan", err)
	}
	d.report("deleteLargerThan", true)
	return nil
}

const deleteEarlierThanSQL = `DELETE FROM manifest WHERE last_access_time < ?`

// DeleteEarlierThan removes every row whose last_access_time is before ts.
func (d *DB) DeleteEarlierThan(ts int64) error {
	if err := d.ensureOpen(); err != nil {
		return err
	}
	stmt, err := d.prepare(deleteEarlierThanSQL)
	if err != nil {
		return d.fail("deleteEarlierThan", err)
	}
	if _, err := stmt.Exec(ts); err != nil {
		return d.fail("deleteEarlierThan", err)
	}
	d.report("deleteEarlierThan", true)
	return nil
}

const getSQLWithInline = `SELECT key, filename, size, inline_data, modification_time, last_access_time, extended_data FROM manifest WHERE key = ?`
const getSQLNoInline = `SELECT key, filename, size, modification_time, last_access_time, extended_data FROM manifest WHERE key = ?`

// Get fetches the row for key. The second return value is false if no row
// exists; it is never an error. withInline controls whether inline_data is
// read off disk at all (GetItemInfo-style callers pass false to skip it).
func (d *DB) Get(key string, withInline bool) (Row, bool, error) {
	if err := d.ensureOpen(); err != nil {
		return Row{}, false, err
	}
	sqlText := getSQLNoInline
	if withInline {
		sqlText = getSQLWithInline
	}
	stmt, err := d.prepare(sqlText)
	if err != nil {
		return Row{}, false, d.fail("get", err)
	}
	row := stmt.QueryRow(key)
	r, ok, err := scanRow(row, withInline)
	if err != nil {
		if err == sql.ErrNoRows {
			d.report("get", true)
			return Row{}, false, nil
		}
		return Row{}, false, d.fail("get", err)
	}
	d.report("get", true)
	return r, ok, nil
}

func scanRow(row *sql.Row, withInline bool) (Row, bool, error) {
	var r Row
	var filename sql.NullString
	var err error
	if withInline {
		err = row.Scan(&r.Key, &filename, &r.Size, &r.InlineData, &r.ModificationTime, &r.LastAccessTime, &r.ExtendedData)
	} else {
		err = row.Scan(&r.Key, &filename, &r.Size, &r.ModificationTime, &r.LastAccessTime, &r.ExtendedData)
	}
	if err != nil {
		return Row{}, false, err
	}
	r.Filename = filename.String
	return r, true, nil
}

// GetMany fetches every row for keys, in no particular order. Rows that
// don't exist are simply absent from the result — GetMany never errors on
// a partial miss.
func (d *DB) GetMany(keys []string, withInline bool) ([]Row, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	if err := d.ensureOpen(); err != nil {
		return nil, err
	}
	cols := "key, filename, size, modification_time, last_access_time, extended_data"
	if withInline {
		cols = "key, filename, size, inline_data, modification_time, last_access_time, extended_data"
	}
	sqlText := fmt.Sprintf(`SELECT %s FROM manifest WHERE key IN (%s)`, cols, placeholders(len(keys)))
	stmt, err := d.prepareUncached(sqlText)
	if err != nil {
		return nil, d.fail("getMany", err)
	}
	defer stmt.Close()

	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	rows, err := stmt.Query(args...)
	if err != nil {
		return nil, d.fail("getMany", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		var filename sql.NullString
		if withInline {
			err = rows.Scan(&r.Key, &filename, &r.Size, &r.InlineData, &r.ModificationTime, &r.LastAccessTime, &r.ExtendedData)
		} else {
			err = rows.Scan(&r.Key, &filename, &r.Size, &r.ModificationTime, &r.LastAccessTime, &r.ExtendedData)
		}
		if err != nil {
			return nil, d.fail("getMany", err)
		}
		r.Filename = filename.String
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, d.fail("getMany", err)
	}
	d.report("getMany", true)
	return out, nil
}

const getFilenameSQL = `SELECT filename FROM manifest WHERE key = ?`

// GetFilename returns the filename for key, and false if the row doesn't
// exist or has no external filename.
func (d *DB) GetFilename(key string) (string, bool, error) {
	if err := d.ensureOpen(); err != nil {
		return "", false, err
	}
	stmt, err := d.prepare(getFilenameSQL)
	if err != nil {
		return "", false, d.fail("getFilename", err)
	}
	var filename sql.NullString
	if err := stmt.QueryRow(key).Scan(&filename); err != nil {
		if err == sql.ErrNoRows {
			d.report("getFilename", true)
			return "", false, nil
		}
		return "", false, d.fail("getFilename", err)
	}
	d.report("getFilename", true)
	return filename.String, filename.Valid && filename.String != "", nil
}

// GetFilenames returns the non-empty filenames among keys.
func (d *DB) GetFilenames(keys []string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	if err := d.ensureOpen(); err != nil {
		return nil, err
	}
	sqlText := fmt.Sprintf(`SELECT filename FROM manifest WHERE key IN (%s) AND filename IS NOT NULL`, placeholders(len(keys)))
	return d.queryFilenames(sqlText, toArgs(keys)...)
}

const getFilenamesLargerThanSQL = `SELECT filename FROM manifest WHERE size > ? AND filename IS NOT NULL`

// GetFilenamesLargerThan returns the non-empty filenames of rows whose
// size exceeds limit.
func (d *DB) GetFilenamesLargerThan(limit int64) ([]string, error) {
	if err := d.ensureOpen(); err != nil {
		return nil, err
	}
	return d.queryFilenames(getFilenamesLargerThanSQL, limit)
}

const getFilenamesEarlierThanSQL = `SELECT filename FROM manifest WHERE last_access_time < ? AND filename IS NOT NULL`

// GetFilenamesEarlierThan returns the non-empty filenames of rows whose
// last_access_time is before ts.
func (d *DB) GetFilenamesEarlierThan(ts int64) ([]string, error) {
	if err := d.ensureOpen(); err != nil {
		return nil, err
	}
	return d.queryFilenames(getFilenamesEarlierThanSQL, ts)
}

func (d *DB) queryFilenames(sqlText string, args ...any) ([]string, error) {
	stmt, err := d.prepareUncached(sqlText)
	if err != nil {
		return nil, d.fail("getFilenames", err)
	}
	defer stmt.Close()

	rows, err := stmt.Query(args...)
	if err != nil {
		return nil, d.fail("getFilenames", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name sql.NullString
		if err := rows.Scan(&name); err != nil {
			return nil, d.fail("getFilenames", err)
		}
		if name.Valid && name.String != "" {
			out = append(out, name.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, d.fail("getFilenames", err)
	}
	d.report("getFilenames", true)
	return out, nil
}

func toArgs(keys []string) []any {
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	return args
}

const getOldestSQL = `SELECT key, filename, size FROM manifest ORDER BY last_access_time ASC LIMIT ?`

// GetOldest returns the n rows with the smallest last_access_time,
// ascending. Ties are broken by the database's natural row order, which is
// stable within a single query but otherwise unspecified.
func (d *DB) GetOldest(n int) ([]Row, error) {
	if err := d.ensureOpen(); err != nil {
		return nil, err
	}
	stmt, err := d.prepare(getOldestSQL)
	if err != nil {
		return nil, d.fail("getOldest", err)
	}
	rows, err := stmt.Query(n)
	if err != nil {
		return nil, d.fail("getOldest", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		var filename sql.NullString
		if err := rows.Scan(&r.Key, &filename, &r.Size); err != nil {
			return nil, d.fail("getOldest", err)
		}
		r.Filename = filename.String
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, d.fail("getOldest", err)
	}
	d.report("getOldest", true)
	return out, nil
}

const countAllSQL = `SELECT COUNT(*) FROM manifest`

// CountAll returns the total number of rows in the manifest.
func (d *DB) CountAll() (int64, error) {
	if err := d.ensureOpen(); err != nil {
		return 0, err
	}
	stmt, err := d.prepare(countAllSQL)
	if err != nil {
		return 0, d.fail("countAll", err)
	}
	var n int64
	if err := stmt.QueryRow().Scan(&n); err != nil {
		return 0, d.fail("countAll", err)
	}
	d.report("countAll", true)
	return n, nil
}

const countKeySQL = `SELECT COUNT(*) FROM manifest WHERE key = ?`

// CountKey reports whether key is present.
func (d *DB) CountKey(key string) (bool, error) {
	if err := d.ensureOpen(); err != nil {
		return false, err
	}
	stmt, err := d.prepare(countKeySQL)
	if err != nil {
		return false, d.fail("countKey", err)
	}
	var n int64
	if err := stmt.QueryRow(key).Scan(&n); err != nil {
		return false, d.fail("countKey", err)
	}
	d.report("countKey", true)
	return n > 0, nil
}

const sumSizeSQL = `SELECT COALESCE(SUM(size), 0) FROM manifest`

// SumSize returns the sum of every row's size.
func (d *DB) SumSize() (int64, error) {
	if err := d.ensureOpen(); err != nil {
		return 0, err
	}
	stmt, err := d.prepare(sumSizeSQL)
	if err != nil {
		return 0, d.fail("sumSize", err)
	}
	var n int64
	if err := stmt.QueryRow().Scan(&n); err != nil {
		return 0, d.fail("sumSize", err)
	}
	d.report("sumSize", true)
	return n, nil
}

// Checkpoint issues a WAL checkpoint, folding the write-ahead log back
// into the main database file. Call after bulk deletions to bound on-disk
// growth.
func (d *DB) Checkpoint() error {
	if err := d.ensureOpen(); err != nil {
		return err
	}
	if _, err := d.conn.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return d.fail("checkpoint", err)
	}
	d.report("checkpoint", true)
	return nil
}
