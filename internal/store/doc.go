// Package store provides SQLite-backed durable storage for pairwise
// conversations.
//
// The store holds:
//   - Messages: one row per (conversation key, index), never removed
//   - Change events: one row per accepted mutation, globally ordered by seq
//   - Capabilities: the (capability, identity) grant table
//   - Registry: the one-time initialisation record
//
// # Invariants
//
// Atomic mutations
//   - Every mutation runs in Store.Update; message rows and the change event
//     describing them commit together
//   - Validation runs before any write, so a rejected mutation leaves the
//     log and the event stream untouched
//
// Append-only indices
//   - A message's index is the conversation length at append time
//   - Rows are updated on edit and delete, never removed
//   - Deleted rows have empty content (CHECK constraint)
//
// Ordered, chained events
//   - seq starts at 1 and grows by exactly 1 per event
//   - Each event's prev_digest is the digest of the previous event with the
//     same conversation key, so per-conversation gaps are detectable
//   - All event queries order by seq ASC
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Events must reference an existing message row
//
// Event digests are computed by ir.EventDigest using canonical JSON and
// SHA-256 with domain separation.
package store
