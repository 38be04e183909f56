package ir

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
)

// IdentityLength is the width of an identity in bytes (160 bits).
const IdentityLength = 20

// Identity is an opaque, comparable principal.
// The zero value is the null identity and never names a participant.
type Identity [IdentityLength]byte

// ParseIdentity parses a 40-digit hex address, with or without a 0x prefix.
// Upper and lower case digits are both accepted.
func ParseIdentity(s string) (Identity, error) {
	var id Identity
	raw := strings.TrimSpace(s)
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "0x"), "0X")
	if len(raw) != IdentityLength*2 {
		return id, fmt.Errorf("parse identity %q: want %d hex digits, got %d", s, IdentityLength*2, len(raw))
	}
	if _, err := hex.Decode(id[:], []byte(raw)); err != nil {
		return id, fmt.Errorf("parse identity %q: %w", s, err)
	}
	return id, nil
}

// MustParseIdentity is like ParseIdentity but panics on error.
// Use only in tests or with constant inputs.
func MustParseIdentity(s string) Identity {
	id, err := ParseIdentity(s)
	if err != nil {
		panic(err)
	}
	return id
}

// IdentityFromBytes copies b into an Identity. b must be exactly 20 bytes.
func IdentityFromBytes(b []byte) (Identity, error) {
	var id Identity
	if len(b) != IdentityLength {
		return id, fmt.Errorf("identity: want %d bytes, got %d", IdentityLength, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// IsZero reports whether id is the null identity.
func (id Identity) IsZero() bool {
	return id == Identity{}
}

// Compare orders identities by their raw 160-bit value.
// Returns -1, 0 or +1.
func (id Identity) Compare(other Identity) int {
	return bytes.Compare(id[:], other[:])
}

// Bytes returns a copy of the raw identity bytes.
func (id Identity) Bytes() []byte {
	b := make([]byte, IdentityLength)
	copy(b, id[:])
	return b
}

// String returns the 0x-prefixed lowercase hex form.
func (id Identity) String() string {
	return "0x" + hex.EncodeToString(id[:])
}

// MarshalText implements encoding.TextMarshaler.
func (id Identity) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *Identity) UnmarshalText(text []byte) error {
	parsed, err := ParseIdentity(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
