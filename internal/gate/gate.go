// Package gate holds the authorization policy applied at every mutation
// entry point. It is pure: no state, no I/O. Callers run it before any write
// so a rejection never leaves partial effects.
package gate

import (
	"github.com/roach88/chitchat/internal/ir"
)

// Send authorizes a new message from sender to recipient and returns the
// conversation key it belongs to.
//
// Fails with ir.ErrInvalidIdentity if either party is null and with
// ir.ErrSelfConversation if they are the same identity.
func Send(sender, recipient ir.Identity) (ir.ConversationKey, error) {
	return ir.DeriveConversationKey(sender, recipient)
}

// Modify authorizes an edit or delete of msg by requester.
// Only the original sender may modify a message; the recipient may not.
// Deletion state is not inspected here.
func Modify(requester ir.Identity, msg ir.Message) error {
	if requester != msg.Sender {
		return ir.NewError(ir.CodeNotSender, requester.String()+" is not the sender of this message")
	}
	return nil
}

// Grant authorizes a change to the capability table.
func Grant(requesterIsAdmin bool) error {
	if !requesterIsAdmin {
		return ir.NewError(ir.CodeNotAdministrator, "caller does not hold the "+string(ir.CapabilityAdmin)+" capability")
	}
	return nil
}
