package ledger

import (
	"context"
	"fmt"

	"github.com/roach88/chitchat/internal/gate"
	"github.com/roach88/chitchat/internal/ir"
	"github.com/roach88/chitchat/internal/notify"
	"github.com/roach88/chitchat/internal/store"
)

// Send appends content from caller to recipient and returns its index.
//
// Fails with ir.ErrInvalidIdentity, ir.ErrSelfConversation,
// ir.ErrEmptyContent or ir.ErrInvalidContent; nothing is appended or
// published on failure.
func (l *Ledger) Send(ctx context.Context, caller, recipient ir.Identity, content string) (int64, error) {
	var index int64
	err := l.mutate(ctx, "send", func(tx *store.Tx) error {
		key, err := gate.Send(caller, recipient)
		if err != nil {
			return err
		}
		now := l.clock.Now().Unix()
		index, _, err = tx.Append(key, caller, recipient, content, now, l.ids.Generate())
		return err
	})
	if err != nil {
		return 0, err
	}
	return index, nil
}

// Edit replaces the content of message index in the conversation between
// user1 and user2. caller must be the message's sender.
//
// Fails with ir.ErrInvalidIdentity or ir.ErrSelfConversation for a bad
// pair, then ir.ErrEmptyContent, ir.ErrInvalidContent,
// ir.ErrIndexOutOfBounds, ir.ErrNotSender, ir.ErrAlreadyDeleted, in that
// order.
func (l *Ledger) Edit(ctx context.Context, caller, user1, user2 ir.Identity, index int64, newContent string) error {
	return l.mutate(ctx, "edit", func(tx *store.Tx) error {
		key, err := ir.DeriveConversationKey(user1, user2)
		if err != nil {
			return err
		}
		_, err = tx.Edit(key, index, newContent, caller, l.ids.Generate())
		return err
	})
}

// Delete soft-deletes message index in the conversation between user1 and
// user2. caller must be the message's sender.
//
// Fails with ir.ErrInvalidIdentity or ir.ErrSelfConversation for a bad
// pair, then ir.ErrIndexOutOfBounds, ir.ErrNotSender, ir.ErrAlreadyDeleted.
func (l *Ledger) Delete(ctx context.Context, caller, user1, user2 ir.Identity, index int64) error {
	return l.mutate(ctx, "delete", func(tx *store.Tx) error {
		key, err := ir.DeriveConversationKey(user1, user2)
		if err != nil {
			return err
		}
		_, err = tx.SoftDelete(key, index, caller, l.ids.Generate())
		return err
	})
}

// ConversationLength returns the number of messages ever sent between
// user1 and user2, including deleted ones. Fails only for an invalid pair.
func (l *Ledger) ConversationLength(ctx context.Context, user1, user2 ir.Identity) (int64, error) {
	key, err := ir.DeriveConversationKey(user1, user2)
	if err != nil {
		return 0, err
	}
	return l.store.LengthOf(ctx, key)
}

// Conversation returns every message between user1 and user2 in index order.
func (l *Ledger) Conversation(ctx context.Context, user1, user2 ir.Identity) ([]ir.Message, error) {
	key, err := ir.DeriveConversationKey(user1, user2)
	if err != nil {
		return nil, err
	}
	return l.store.Conversation(ctx, key)
}

// Message returns one message between user1 and user2.
func (l *Ledger) Message(ctx context.Context, user1, user2 ir.Identity, index int64) (ir.Message, error) {
	key, err := ir.DeriveConversationKey(user1, user2)
	if err != nil {
		return ir.Message{}, err
	}
	return l.store.Message(ctx, key, index)
}

// Events returns committed change events matching f in seq order.
func (l *Ledger) Events(ctx context.Context, f store.EventFilter) ([]ir.ChangeEvent, error) {
	events, err := l.store.Events(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("events: %w", err)
	}
	return events, nil
}

// Subscribe streams committed history after f.AfterSeq followed by live
// events. See notify.Notifier.Subscribe.
func (l *Ledger) Subscribe(ctx context.Context, f notify.Filter) (*notify.Subscription, error) {
	return l.notifier.Subscribe(ctx, f)
}
