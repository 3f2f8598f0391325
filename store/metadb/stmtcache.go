package metadb

import (
	"database/sql"
	"strings"
)

// prepare returns a cached *sql.Stmt for sqlText, preparing and caching it
// on first use. database/sql serializes and resets a *sql.Stmt's bound
// connection state on each use internally, which is what stands in here
// for the source's explicit "RESET before reuse" step — Go's sql package
// does not expose a lower-level reset primitive to call by hand.
func (d *DB) prepare(sqlText string) (*sql.Stmt, error) {
	if stmt, ok := d.stmts[sqlText]; ok {
		return stmt, nil
	}
	stmt, err := d.conn.Prepare(sqlText)
	if err != nil {
		return nil, err
	}
	d.stmts[sqlText] = stmt
	return stmt, nil
}

// prepareUncached prepares a one-off statement whose SQL text varies with
// the argument count (a variadic IN (...) clause) and is therefore never
// cached. The caller must Close it after use.
func (d *DB) prepareUncached(sqlText string) (*sql.Stmt, error) {
	return d.conn.Prepare(sqlText)
}

// placeholders returns "?,?,...,?" with n placeholders, for building
// well-formed IN (...) clauses. The source's equivalent builder produced
// unbalanced parentheses for some call sites; this always emits a matched
// "(" ... ")" pair around the result at the call site, never here, so
// there is exactly one place that can get it wrong.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	var b strings.Builder
	b.Grow(n * 2)
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('?')
	}
	return b.String()
}
