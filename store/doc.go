// Package store implements KVStorage: a persistent key-value store built
// on a relational metadata table (store/metadb) plus a content-addressed
// file directory (store/filestore), engineered to survive crashes and to
// reclaim space proactively.
//
// A Storage chooses inline vs. external (file-backed) storage for each
// write according to its configured Mode: file mode always writes
// externally, sqlite mode always writes inline, and mixed mode lets the
// caller choose per write by supplying a filename or leaving it empty.
//
// Storage is not internally thread-safe — concurrent access from multiple
// goroutines is the caller's responsibility, the same way metadb.DB and
// filestore.Store (its two collaborators) are not.
package store
