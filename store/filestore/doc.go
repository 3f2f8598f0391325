// Package filestore persists and reads opaque byte sequences identified by
// a caller-supplied filename under a data/ directory, and asynchronously
// drains a trash/ staging directory populated by bulk operations such as
// Store.MoveAllToTrash.
//
// trash/ entries are never read by any other subsystem; the only
// operation performed on trash/ content is destruction.
package filestore
