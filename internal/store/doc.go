// Package store provides durable persistence for conversations and messages.
//
// # Overview
//
// The store is the relay's system of record: conversations, their
// participants, and every persisted message with its ordered attachments.
// Messages are append-mostly: after creation only the read_at, edited_at and
// deleted_at markers change, and deletion is always a soft delete.
//
// # Store interface
//
// All operations take a context and return wrapped errors; ErrNotFound is the
// sentinel for missing entities. Two implementations exist:
//
//   - SQLiteStore: production implementation on modernc.org/sqlite with WAL
//     mode and schema creation on open
//   - MockStore: in-memory implementation for gateway and API tests, with an
//     injectable CreateMessage failure for persistence-error paths
//
// # IDs and ordering
//
// Message ids are assigned by SQLite (AUTOINCREMENT) and are monotonic per
// store. History queries order by (created_at, id) ascending so same-instant
// messages keep insertion order. Ids are int64 here; the wire layer encodes
// them as strings to survive 64-bit-unsafe JSON consumers.
//
// # Read semantics
//
// MarkMessagesRead only touches messages inside the target conversation that
// were not authored by the reader, are unread, and are not deleted. The
// affected count is reported back so callers can tell a no-op from a batch.
package store
