// Package session tracks live client connections and their conversation
// bindings.
//
// The Registry is the only actively shared mutable structure in the relay.
// Sessions are indexed by an opaque id handed out at registration; external
// code never holds a reference into the map, only snapshots. A session binds
// to at most one conversation at a time; rebinding replaces the previous
// binding rather than accumulating.
//
// All mutations serialize on a single mutex: entries are small and operations
// brief, so per-entry locking buys nothing. SessionsIn takes its snapshot
// under the lock and releases it before the caller starts delivering, which
// keeps a blocked socket write from stalling unrelated registry mutations.
package session
