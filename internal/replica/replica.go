// Package replica rebuilds conversation state from the change-event stream
// alone, the way an external observer would, and checks the stream's
// integrity while doing so.
package replica

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/chitchat/internal/ir"
)

// Integrity failures reported by Apply, wrapped with the offending seq.
var (
	ErrOutOfOrder        = errors.New("event seq not increasing")
	ErrDigestMismatch    = errors.New("event digest does not recompute")
	ErrBrokenChain       = errors.New("event prev does not match last digest")
	ErrIndexGap          = errors.New("sent event index is not the conversation length")
	ErrUnknownIndex      = errors.New("event targets a message that was never sent")
	ErrIllegalTransition = errors.New("event applies an illegal transition")
)

// Replica is a fold of change events into per-conversation message logs.
// Not safe for concurrent use.
type Replica struct {
	convs   map[ir.ConversationKey]*conversation
	order   []ir.ConversationKey
	lastSeq int64
	applied int
}

type conversation struct {
	messages   []ir.Message
	lastDigest string
}

// New creates an empty replica.
func New() *Replica {
	return &Replica{convs: make(map[ir.ConversationKey]*conversation)}
}

// Apply folds one event. On error the replica is unchanged.
func (r *Replica) Apply(e ir.ChangeEvent) error {
	if e.Seq <= r.lastSeq {
		return fmt.Errorf("event %d after %d: %w", e.Seq, r.lastSeq, ErrOutOfOrder)
	}
	if err := e.Verify(); err != nil {
		return fmt.Errorf("event %d: %w: %v", e.Seq, ErrDigestMismatch, err)
	}

	conv := r.convs[e.Key]
	lastDigest := ""
	if conv != nil {
		lastDigest = conv.lastDigest
	}
	if e.Prev != lastDigest {
		return fmt.Errorf("event %d: %w", e.Seq, ErrBrokenChain)
	}

	var (
		length   = int64(0)
		messages []ir.Message
	)
	if conv != nil {
		length = int64(len(conv.messages))
		messages = conv.messages
	}

	switch e.Kind {
	case ir.EventSent:
		if e.Index != length {
			return fmt.Errorf("event %d: index %d, length %d: %w", e.Seq, e.Index, length, ErrIndexGap)
		}
		msg := ir.NewMessage(e.Sent.From, e.Sent.To, e.Sent.Content, e.Sent.Timestamp)
		messages = append(messages, msg)

	case ir.EventEdited, ir.EventDeleted:
		if e.Index < 0 || e.Index >= length {
			return fmt.Errorf("event %d: index %d: %w", e.Seq, e.Index, ErrUnknownIndex)
		}
		var (
			next ir.Message
			err  error
		)
		if e.Kind == ir.EventEdited {
			next, err = messages[e.Index].Edit(e.Edited.NewContent)
		} else {
			next, err = messages[e.Index].Delete()
		}
		if err != nil {
			return fmt.Errorf("event %d: %w: %v", e.Seq, ErrIllegalTransition, err)
		}
		messages[e.Index] = next

	default:
		return fmt.Errorf("event %d: unknown kind %q", e.Seq, e.Kind)
	}

	if conv == nil {
		conv = &conversation{}
		r.convs[e.Key] = conv
		r.order = append(r.order, e.Key)
	}
	conv.messages = messages
	conv.lastDigest = e.Digest
	r.lastSeq = e.Seq
	r.applied++
	return nil
}

// ApplyAll folds events in order, stopping at the first error.
func (r *Replica) ApplyAll(events []ir.ChangeEvent) error {
	for _, e := range events {
		if err := r.Apply(e); err != nil {
			return err
		}
	}
	return nil
}

// Conversation returns a copy of the folded log for key.
// Returns an empty slice for a key never seen.
func (r *Replica) Conversation(key ir.ConversationKey) []ir.Message {
	conv := r.convs[key]
	if conv == nil {
		return []ir.Message{}
	}
	return slices.Clone(conv.messages)
}

// Length returns the folded length for key, counting deleted messages.
func (r *Replica) Length(key ir.ConversationKey) int64 {
	conv := r.convs[key]
	if conv == nil {
		return 0
	}
	return int64(len(conv.messages))
}

// Keys returns every key seen, in order of first appearance.
func (r *Replica) Keys() []ir.ConversationKey {
	return slices.Clone(r.order)
}

// LastSeq returns the seq of the last applied event.
func (r *Replica) LastSeq() int64 {
	return r.lastSeq
}

// Applied returns how many events have been folded.
func (r *Replica) Applied() int {
	return r.applied
}

// Head returns the digest of the last event applied for key.
func (r *Replica) Head(key ir.ConversationKey) string {
	if conv := r.convs[key]; conv != nil {
		return conv.lastDigest
	}
	return ""
}

// Compare checks the folded log for key against messages read directly from
// the store. Returns nil when they are identical.
func (r *Replica) Compare(key ir.ConversationKey, direct []ir.Message) error {
	folded := r.Conversation(key)
	if len(folded) != len(direct) {
		return fmt.Errorf("conversation %s: replica has %d messages, store has %d", key, len(folded), len(direct))
	}
	for i := range folded {
		if folded[i].View(int64(i)) != direct[i].View(int64(i)) {
			return fmt.Errorf("conversation %s: index %d differs: replica %+v, store %+v",
				key, i, folded[i].View(int64(i)), direct[i].View(int64(i)))
		}
	}
	return nil
}
