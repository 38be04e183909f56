package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainEvent prefixes every change-event digest.
// The version suffix leaves room for a future algorithm migration.
const DomainEvent = "chitchat/event/v1"

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// EventDigest computes the content-addressed digest of a change event.
//
// The digest covers seq, key, kind, index, the canonical payload and the
// previous digest of the same conversation. RequestID is excluded: it says
// which request produced the event, not what the event is.
func EventDigest(e ChangeEvent) (string, error) {
	payload, err := e.PayloadObject()
	if err != nil {
		return "", fmt.Errorf("EventDigest: %w", err)
	}

	obj := Object{
		"seq":     e.Seq,
		"key":     e.Key.String(),
		"kind":    string(e.Kind),
		"index":   e.Index,
		"payload": payload,
		"prev":    e.Prev,
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("EventDigest: failed to marshal: %w", err)
	}

	return hashWithDomain(DomainEvent, canonical), nil
}
