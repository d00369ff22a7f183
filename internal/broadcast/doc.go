// Package broadcast fans events out to the sessions of a conversation and
// replicates durable events across relay instances.
//
// # Local fan-out
//
// PublishLocal resolves the target sessions from the registry (a snapshot
// taken under the registry lock) and writes the marshaled event to each
// channel handle. Delivery is best-effort per target: a broken channel gets
// that session removed from the registry, and delivery continues to the
// survivors. Events without a conversation id are rejected with
// ErrNoConversation: fan-out without a target is a bug, not a no-op.
//
// # Cross-process replication
//
// PublishDurable performs local delivery once, then publishes an
// origin-tagged envelope onto the Bridge. Every instance runs one
// subscription (Run); the handler drops envelopes carrying its own origin and
// re-invokes PublishLocal for the rest. This keeps sessions on other relay
// instances consistent without re-delivering an instance's own events.
//
// Within one conversation, events delivered to a single session preserve the
// order of PublishLocal / handler invocations on that instance. No ordering
// is guaranteed across instances.
//
// # Bridges
//
// RedisBridge is the production bridge (PUBLISH/SUBSCRIBE on one channel).
// MemoryBridge serves tests and deployments that run a single relay process.
package broadcast
