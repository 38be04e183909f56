package ir

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// ConversationKeyLength is the width of a conversation key in bytes.
const ConversationKeyLength = 32

// ConversationKey identifies the log shared by exactly two identities.
// It is never stored on its own; it is recomputed from the pair on demand.
type ConversationKey [ConversationKeyLength]byte

// DeriveConversationKey computes the order-independent key for a pair.
//
// The pair is ordered by raw identity value and the 40-byte concatenation
// is hashed with Keccak-256, so DeriveConversationKey(a, b) equals
// DeriveConversationKey(b, a) for every valid pair.
//
// Fails with ErrInvalidIdentity if either identity is null and with
// ErrSelfConversation if both are the same identity.
func DeriveConversationKey(user1, user2 Identity) (ConversationKey, error) {
	var key ConversationKey
	if user1.IsZero() || user2.IsZero() {
		return key, NewError(CodeInvalidIdentity, "conversation participants must be non-null")
	}
	if user1 == user2 {
		return key, NewError(CodeSelfConversation, fmt.Sprintf("%s cannot converse with itself", user1))
	}

	lo, hi := user1, user2
	if lo.Compare(hi) > 0 {
		lo, hi = hi, lo
	}

	h := sha3.NewLegacyKeccak256()
	h.Write(lo[:])
	h.Write(hi[:])
	copy(key[:], h.Sum(nil))
	return key, nil
}

// MustDeriveConversationKey is like DeriveConversationKey but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustDeriveConversationKey(user1, user2 Identity) ConversationKey {
	key, err := DeriveConversationKey(user1, user2)
	if err != nil {
		panic(err)
	}
	return key
}

// ParseConversationKey parses the 0x-prefixed 64-digit hex form.
func ParseConversationKey(s string) (ConversationKey, error) {
	var key ConversationKey
	raw := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(raw) != ConversationKeyLength*2 {
		return key, fmt.Errorf("parse conversation key %q: want %d hex digits, got %d", s, ConversationKeyLength*2, len(raw))
	}
	if _, err := hex.Decode(key[:], []byte(raw)); err != nil {
		return key, fmt.Errorf("parse conversation key %q: %w", s, err)
	}
	return key, nil
}

// String returns the 0x-prefixed lowercase hex form.
func (k ConversationKey) String() string {
	return "0x" + hex.EncodeToString(k[:])
}

// MarshalText implements encoding.TextMarshaler.
func (k ConversationKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ConversationKey) UnmarshalText(text []byte) error {
	parsed, err := ParseConversationKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParsePair parses a comma-separated identity pair, "0xa,0xb".
func ParsePair(s string) (Identity, Identity, error) {
	first, second, ok := strings.Cut(s, ",")
	if !ok {
		return Identity{}, Identity{}, fmt.Errorf("parse pair %q: want two comma-separated identities", s)
	}
	a, err := ParseIdentity(first)
	if err != nil {
		return Identity{}, Identity{}, err
	}
	b, err := ParseIdentity(second)
	if err != nil {
		return Identity{}, Identity{}, err
	}
	return a, b, nil
}

// ResolveConversation accepts either a conversation key or an identity
// pair and returns the key. A pair is subject to the usual derivation
// checks.
func ResolveConversation(s string) (ConversationKey, error) {
	if strings.Contains(s, ",") {
		a, b, err := ParsePair(s)
		if err != nil {
			return ConversationKey{}, err
		}
		return DeriveConversationKey(a, b)
	}
	return ParseConversationKey(s)
}
