package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/roach88/chitchat/internal/gate"
	"github.com/roach88/chitchat/internal/ir"
)

// Append adds a new Active message to the conversation and records a sent
// event. Returns the assigned index, which equals the prior length.
//
// Sender and recipient must already have been validated by gate.Send.
// Fails with ir.ErrEmptyContent if content is empty and
// ir.ErrInvalidContent if it is not valid UTF-8.
func (t *Tx) Append(key ir.ConversationKey, sender, recipient ir.Identity, content string, now int64, requestID string) (int64, ir.ChangeEvent, error) {
	content, err := checkContent(content, "message content")
	if err != nil {
		return 0, ir.ChangeEvent{}, err
	}

	index, err := lengthOf(t.ctx, t.tx, key)
	if err != nil {
		return 0, ir.ChangeEvent{}, fmt.Errorf("append: %w", err)
	}

	msg := ir.NewMessage(sender, recipient, content, now)
	_, err = t.tx.ExecContext(t.ctx, `
		INSERT INTO messages
		(conversation_key, msg_index, sender, recipient, created_at, deleted, content)
		VALUES (?, ?, ?, ?, ?, 0, ?)
	`,
		key.String(),
		index,
		sender.String(),
		recipient.String(),
		now,
		content,
	)
	if err != nil {
		return 0, ir.ChangeEvent{}, fmt.Errorf("append: insert message: %w", err)
	}

	ev := ir.NewSentEvent(key, index, msg)
	ev.RequestID = requestID
	ev, err = t.appendEvent(ev)
	if err != nil {
		return 0, ir.ChangeEvent{}, fmt.Errorf("append: %w", err)
	}
	return index, ev, nil
}

// Edit replaces the content of the message at index and records an edited
// event. Checks, in order: ir.ErrEmptyContent, ir.ErrInvalidContent,
// ir.ErrIndexOutOfBounds, ir.ErrNotSender, ir.ErrAlreadyDeleted.
func (t *Tx) Edit(key ir.ConversationKey, index int64, newContent string, requester ir.Identity, requestID string) (ir.ChangeEvent, error) {
	newContent, err := checkContent(newContent, "new content")
	if err != nil {
		return ir.ChangeEvent{}, err
	}

	msg, err := readMessage(t.ctx, t.tx, key, index)
	if err != nil {
		return ir.ChangeEvent{}, err
	}
	if err := gate.Modify(requester, msg); err != nil {
		return ir.ChangeEvent{}, err
	}
	if _, err := msg.Edit(newContent); err != nil {
		return ir.ChangeEvent{}, err
	}

	if err := t.updateBody(key, index, false, newContent); err != nil {
		return ir.ChangeEvent{}, fmt.Errorf("edit: %w", err)
	}

	ev := ir.NewEditedEvent(key, index, newContent)
	ev.RequestID = requestID
	ev, err = t.appendEvent(ev)
	if err != nil {
		return ir.ChangeEvent{}, fmt.Errorf("edit: %w", err)
	}
	return ev, nil
}

// SoftDelete moves the message at index to the Deleted state, clearing its
// content, and records a deleted event. The slot stays in the log.
// Checks, in order: ir.ErrIndexOutOfBounds, ir.ErrNotSender,
// ir.ErrAlreadyDeleted.
func (t *Tx) SoftDelete(key ir.ConversationKey, index int64, requester ir.Identity, requestID string) (ir.ChangeEvent, error) {
	msg, err := readMessage(t.ctx, t.tx, key, index)
	if err != nil {
		return ir.ChangeEvent{}, err
	}
	if err := gate.Modify(requester, msg); err != nil {
		return ir.ChangeEvent{}, err
	}
	if _, err := msg.Delete(); err != nil {
		return ir.ChangeEvent{}, err
	}

	if err := t.updateBody(key, index, true, ""); err != nil {
		return ir.ChangeEvent{}, fmt.Errorf("delete: %w", err)
	}

	ev := ir.NewDeletedEvent(key, index)
	ev.RequestID = requestID
	ev, err = t.appendEvent(ev)
	if err != nil {
		return ir.ChangeEvent{}, fmt.Errorf("delete: %w", err)
	}
	return ev, nil
}

// checkContent returns content in stored form. Event payloads are JSON, so
// content that is not valid UTF-8 could not be hashed as stored.
func checkContent(content, what string) (string, error) {
	if content == "" {
		return "", ir.NewError(ir.CodeEmptyContent, what+" must be non-empty")
	}
	if !utf8.ValidString(content) {
		return "", ir.NewError(ir.CodeInvalidContent, what+" must be valid UTF-8")
	}
	return ir.NormalizeContent(content), nil
}

// LengthOf returns the length of the conversation as seen inside t.
func (t *Tx) LengthOf(key ir.ConversationKey) (int64, error) {
	return lengthOf(t.ctx, t.tx, key)
}

func (t *Tx) updateBody(key ir.ConversationKey, index int64, deleted bool, content string) error {
	_, err := t.tx.ExecContext(t.ctx, `
		UPDATE messages SET deleted = ?, content = ?
		WHERE conversation_key = ? AND msg_index = ?
	`, deleted, content, key.String(), index)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	return nil
}

// LengthOf returns the number of messages ever appended under key,
// including deleted ones. Returns 0 for a key with no activity.
func (s *Store) LengthOf(ctx context.Context, key ir.ConversationKey) (int64, error) {
	return lengthOf(ctx, s.db, key)
}

// Message returns the message at index.
// Returns ir.ErrIndexOutOfBounds if the conversation has no such index.
func (s *Store) Message(ctx context.Context, key ir.ConversationKey, index int64) (ir.Message, error) {
	return readMessage(ctx, s.db, key, index)
}

// Conversation returns every message under key in index order.
// Returns an empty slice (not nil) for a conversation with no messages.
func (s *Store) Conversation(ctx context.Context, key ir.ConversationKey) ([]ir.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sender, recipient, created_at, deleted, content
		FROM messages
		WHERE conversation_key = ?
		ORDER BY msg_index ASC
	`, key.String())
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	defer rows.Close()

	messages := []ir.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation: %w", err)
	}
	return messages, nil
}

// ConversationKeys returns every key with at least one message, ordered by
// the seq of its first event.
func (s *Store) ConversationKeys(ctx context.Context) ([]ir.ConversationKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT conversation_key
		FROM change_events
		GROUP BY conversation_key
		ORDER BY MIN(seq) ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query conversation keys: %w", err)
	}
	defer rows.Close()

	keys := []ir.ConversationKey{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan conversation key: %w", err)
		}
		key, err := ir.ParseConversationKey(raw)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation keys: %w", err)
	}
	return keys, nil
}

func lengthOf(ctx context.Context, q querier, key ir.ConversationKey) (int64, error) {
	var n int64
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages WHERE conversation_key = ?
	`, key.String()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("length of %s: %w", key, err)
	}
	return n, nil
}

func readMessage(ctx context.Context, q querier, key ir.ConversationKey, index int64) (ir.Message, error) {
	row := q.QueryRowContext(ctx, `
		SELECT sender, recipient, created_at, deleted, content
		FROM messages
		WHERE conversation_key = ? AND msg_index = ?
	`, key.String(), index)

	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Message{}, ir.NewError(ir.CodeIndexOutOfBounds, fmt.Sprintf("no message at index %d", index))
	}
	return msg, err
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(row scanner) (ir.Message, error) {
	var (
		senderHex, recipientHex string
		createdAt               int64
		deleted                 bool
		content                 string
	)
	if err := row.Scan(&senderHex, &recipientHex, &createdAt, &deleted, &content); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ir.Message{}, err
		}
		return ir.Message{}, fmt.Errorf("scan message: %w", err)
	}

	sender, err := ir.ParseIdentity(senderHex)
	if err != nil {
		return ir.Message{}, fmt.Errorf("scan message sender: %w", err)
	}
	recipient, err := ir.ParseIdentity(recipientHex)
	if err != nil {
		return ir.Message{}, fmt.Errorf("scan message recipient: %w", err)
	}

	msg := ir.NewMessage(sender, recipient, content, createdAt)
	if deleted {
		msg.Body = ir.Deleted{}
	}
	return msg, nil
}
