// Package metadb owns the SQLite database file backing a KVStorage
// manifest: a single fixed table, a prepared-statement cache keyed by SQL
// text, and a bounded reopen/retry policy for the underlying connection.
//
// DB is not internally thread-safe. Concurrent access from multiple
// goroutines is the caller's responsibility, exactly like any other
// *sql.DB-adjacent type that caches statements by hand — the caching
// itself assumes single-threaded access to DB.stmts.
package metadb
