package ir

import (
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// EventKind distinguishes the three change-event variants.
type EventKind string

const (
	EventSent    EventKind = "sent"
	EventEdited  EventKind = "edited"
	EventDeleted EventKind = "deleted"
)

// ParseEventKind validates a stored or transmitted kind.
func ParseEventKind(s string) (EventKind, error) {
	switch k := EventKind(s); k {
	case EventSent, EventEdited, EventDeleted:
		return k, nil
	default:
		return "", fmt.Errorf("unknown event kind %q", s)
	}
}

// ChangeEvent is the record emitted for one accepted mutation.
//
// Observers filter by Key and fold by Index in Seq order to rebuild a
// conversation. Digest chains every event to the previous event of the same
// conversation through Prev, so a replica can verify it saw the whole stream.
type ChangeEvent struct {
	Seq   int64           `json:"seq"`
	Key   ConversationKey `json:"key"`
	Kind  EventKind       `json:"kind"`
	Index int64           `json:"index"`

	// Exactly one of Sent/Edited is set for the matching kind;
	// deleted events carry no payload.
	Sent   *SentPayload   `json:"sent,omitempty"`
	Edited *EditedPayload `json:"edited,omitempty"`

	// RequestID correlates the event with the request that produced it.
	// It is not covered by Digest.
	RequestID string `json:"request_id,omitempty"`

	Prev   string `json:"prev"`
	Digest string `json:"digest"`
}

// SentPayload is the full message as created.
type SentPayload struct {
	From      Identity `json:"from"`
	To        Identity `json:"to"`
	Content   string   `json:"content"`
	Timestamp int64    `json:"timestamp"`
}

// EditedPayload carries the replacement content.
type EditedPayload struct {
	NewContent string `json:"new_content"`
}

// NewSentEvent builds the unsealed event for an appended message.
func NewSentEvent(key ConversationKey, index int64, msg Message) ChangeEvent {
	return ChangeEvent{
		Key:   key,
		Kind:  EventSent,
		Index: index,
		Sent: &SentPayload{
			From:      msg.Sender,
			To:        msg.Recipient,
			Content:   msg.Content(),
			Timestamp: msg.CreatedAt,
		},
	}
}

// NewEditedEvent builds the unsealed event for an edit.
func NewEditedEvent(key ConversationKey, index int64, newContent string) ChangeEvent {
	return ChangeEvent{
		Key:    key,
		Kind:   EventEdited,
		Index:  index,
		Edited: &EditedPayload{NewContent: newContent},
	}
}

// NewDeletedEvent builds the unsealed event for a soft delete.
func NewDeletedEvent(key ConversationKey, index int64) ChangeEvent {
	return ChangeEvent{
		Key:   key,
		Kind:  EventDeleted,
		Index: index,
	}
}

// PayloadObject returns the kind-specific payload in canonical form.
func (e ChangeEvent) PayloadObject() (Object, error) {
	switch e.Kind {
	case EventSent:
		if e.Sent == nil {
			return nil, fmt.Errorf("sent event %d has no payload", e.Seq)
		}
		return Object{
			"from":      e.Sent.From.String(),
			"to":        e.Sent.To.String(),
			"content":   e.Sent.Content,
			"timestamp": e.Sent.Timestamp,
		}, nil
	case EventEdited:
		if e.Edited == nil {
			return nil, fmt.Errorf("edited event %d has no payload", e.Seq)
		}
		return Object{"new_content": e.Edited.NewContent}, nil
	case EventDeleted:
		return Object{}, nil
	default:
		return nil, fmt.Errorf("unknown event kind %q", e.Kind)
	}
}

// Seal stamps the event with its seq and chain link and computes Digest.
func (e ChangeEvent) Seal(seq int64, prev string) (ChangeEvent, error) {
	e.Seq = seq
	e.Prev = prev
	digest, err := EventDigest(e)
	if err != nil {
		return e, err
	}
	e.Digest = digest
	return e, nil
}

// Verify recomputes Digest and reports a mismatch.
func (e ChangeEvent) Verify() error {
	digest, err := EventDigest(e)
	if err != nil {
		return err
	}
	if digest != e.Digest {
		return fmt.Errorf("event %d: digest mismatch: have %s, computed %s", e.Seq, e.Digest, digest)
	}
	return nil
}

// NormalizeContent returns content in Unicode NFC, the form stored and hashed.
func NormalizeContent(content string) string {
	return norm.NFC.String(content)
}
