// Package harness runs YAML conversation scenarios against a real ledger.
//
// Each scenario runs in a fresh in-memory store with a step clock and
// sequential request ids, so the same scenario always commits the same
// change events with the same digests. The committed stream can be compared
// against a golden trace.
//
// # Scenario Format
//
//	name: edit_then_delete
//	description: "Sender edits, then deletes; recipient cannot touch it"
//	identities:
//	  alice: "0x00000000000000000000000000000000000000a1"
//	  bob:   "0x00000000000000000000000000000000000000b2"
//	setup:
//	  - op: initialize
//	    caller: alice
//	flow:
//	  - op: send
//	    caller: alice
//	    args: { recipient: bob, content: hi }
//	    expect: { result: 0 }
//	  - op: delete
//	    caller: bob
//	    args: { user1: alice, user2: bob, index: 0 }
//	    expect: { error: NOT_SENDER }
//	assertions:
//	  - type: message
//	    pair: [alice, bob]
//	    index: 0
//	    content: hi
//	  - type: replay
//
// Identity arguments are aliases from identities, the literal "null" for
// the null identity, or raw hex addresses.
//
// # Operations
//
//   - send: recipient, content; result is the new index
//   - edit: user1, user2, index, content
//   - delete: user1, user2, index
//   - length: user1, user2; result is the count
//   - initialize: caller becomes the deployer
//   - grant, revoke: capability, target
//   - grant_upgrade: target
//   - has: capability, identity; result is a bool
//
// A flow step without expect must succeed. Setup steps must always succeed.
//
// # Assertion Types
//
//   - length: pair, count
//   - message: pair, index, and any of content, deleted, sender
//   - event_count: count, optional kind and pair
//   - event_order: kinds, optional pair
//   - capability: capability, identity, held
//   - replay: the event stream folds to exactly the stored state
package harness
