package metadb

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// connState models the connection as the small state machine spec.md's
// design notes ask for, rather than ad-hoc integer counters alone.
type connState int

const (
	stateClosed connState = iota
	stateOpen
	stateGated
)

const (
	// maxReopenAttempts is the bounded retry cap: once openFailures
	// reaches this, reopen attempts are gated.
	maxReopenAttempts = 8
	// minReopenInterval is the minimum time that must elapse since the
	// last failure before a gated DB will attempt to reopen again.
	minReopenInterval = 2 * time.Second
)

const schemaSQL = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
CREATE TABLE IF NOT EXISTS manifest (
  key               TEXT PRIMARY KEY,
  filename          TEXT,
  size              INTEGER,
  inline_data       BLOB,
  modification_time INTEGER,
  last_access_time  INTEGER,
  extended_data     BLOB
);
CREATE INDEX IF NOT EXISTS last_access_time_idx ON manifest(last_access_time);
`

// Options configures a DB.
type Options struct {
	// OnOp, if set, is called after every operation with its name and
	// whether it succeeded. Used to feed Prometheus counters without
	// metadb depending on a metrics package.
	OnOp func(op string, ok bool)
	// Logf, if set, receives diagnostic messages (prepare/step/exec
	// failures). Defaults to discarding them.
	Logf func(format string, args ...any)
}

// DB owns one SQLite database file and its prepared-statement cache. DB is
// not safe for concurrent use; see the package doc comment.
type DB struct {
	path string
	opt  Options

	conn  *sql.DB
	state connState
	stmts map[string]*sql.Stmt

	openFailures  int
	lastFailureAt time.Time
}

// New constructs a DB bound to path. The connection is not opened until
// the first operation is performed.
func New(path string, opt Options) *DB {
	if opt.Logf == nil {
		opt.Logf = func(string, ...any) {}
	}
	return &DB{path: path, opt: opt, state: stateClosed, stmts: make(map[string]*sql.Stmt)}
}

// ensureOpen lazily opens the connection and applies the schema on first
// successful open. It enforces the reopen gate: while openFailures is at
// or above maxReopenAttempts and less than minReopenInterval has elapsed
// since the last failure, it fails fast without touching the filesystem.
func (d *DB) ensureOpen() error {
	if d.state == stateOpen && d.conn != nil {
		return nil
	}
	if d.state == stateGated &&
		d.openFailures >= maxReopenAttempts &&
		time.Since(d.lastFailureAt) < minReopenInterval {
		d.report("open", false)
		return &Error{Status: StatusUnavailable, Op: "open", Err: fmt.Errorf("gated: %d failures, last at %s", d.openFailures, d.lastFailureAt)}
	}

	conn, err := sql.Open("sqlite", d.path)
	if err == nil {
		err = conn.Ping()
	}
	if err == nil {
		_, err = conn.Exec(schemaSQL)
	}
	if err != nil {
		if conn != nil {
			_ = conn.Close()
		}
		d.openFailures++
		d.lastFailureAt = time.Now()
		d.state = stateGated
		d.opt.Logf("metadb: open %s failed (attempt %d): %v", d.path, d.openFailures, err)
		d.report("open", false)
		return &Error{Status: StatusFailure, Op: "open", Err: err}
	}

	d.conn = conn
	d.state = stateOpen
	d.openFailures = 0
	d.report("open", true)
	return nil
}

// Close finalizes all cached statements and closes the connection. If
// closing the connection returns BUSY/LOCKED, it enumerates and finalizes
// any statements it missed and retries close until a terminal result.
func (d *DB) Close() error {
	if d.conn == nil {
		d.state = stateClosed
		return nil
	}
	d.finalizeAll()

	var err error
	for {
		err = d.conn.Close()
		if err == nil || !isBusyErr(err) {
			break
		}
		d.finalizeAll()
		time.Sleep(5 * time.Millisecond)
	}
	d.conn = nil
	d.state = stateClosed
	return err
}

func (d *DB) finalizeAll() {
	for sqlText, stmt := range d.stmts {
		_ = stmt.Close()
		delete(d.stmts, sqlText)
	}
}

func isBusyErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "busy") || strings.Contains(msg, "locked")
}

func (d *DB) report(op string, ok bool) {
	if d.opt.OnOp != nil {
		d.opt.OnOp(op, ok)
	}
}

func (d *DB) fail(op string, err error) error {
	d.report(op, false)
	if isBusyErr(err) {
		return &Error{Status: StatusBusy, Op: op, Err: err}
	}
	d.opt.Logf("metadb: %s failed: %v", op, err)
	return &Error{Status: StatusFailure, Op: op, Err: err}
}
