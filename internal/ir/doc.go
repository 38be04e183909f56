// Package ir provides the canonical types shared by every chitchat package.
//
// This package contains type definitions and pure functions only. All other
// internal packages import ir; ir imports nothing internal. This keeps the
// identity model, message state machine and change-event format in one
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Identities are 20-byte addresses; the zero value is the null identity
//   - Conversation keys are a pure function of an unordered identity pair
//   - A message body is either Active{Content} or Deleted{}; Deleted is terminal
//   - Change events carry a global logical seq, never wall-clock ordering
//   - Event digests use canonical JSON and SHA-256 with domain separation
//   - All JSON tags use snake_case
package ir
