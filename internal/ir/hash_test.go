package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSentEvent(t *testing.T) ChangeEvent {
	t.Helper()
	alice := MustParseIdentity("0x00000000000000000000000000000000000000a1")
	bob := MustParseIdentity("0x00000000000000000000000000000000000000b2")
	key := MustDeriveConversationKey(alice, bob)
	return NewSentEvent(key, 0, NewMessage(alice, bob, "hello", 1700000000))
}

func TestEventDigestDeterminism(t *testing.T) {
	e := testSentEvent(t)
	e.Seq = 1

	d1, err := EventDigest(e)
	require.NoError(t, err)
	d2, err := EventDigest(e)
	require.NoError(t, err)

	assert.Equal(t, d1, d2, "EventDigest must be deterministic")
	assert.Len(t, d1, 64, "SHA-256 hex is 64 characters")
}

func TestEventDigestCoversFields(t *testing.T) {
	base := testSentEvent(t)
	base.Seq = 1
	d0, err := EventDigest(base)
	require.NoError(t, err)

	mutations := map[string]func(e *ChangeEvent){
		"seq":     func(e *ChangeEvent) { e.Seq = 2 },
		"index":   func(e *ChangeEvent) { e.Index = 1 },
		"prev":    func(e *ChangeEvent) { e.Prev = "abc" },
		"content": func(e *ChangeEvent) { p := *e.Sent; p.Content = "bye"; e.Sent = &p },
		"time":    func(e *ChangeEvent) { p := *e.Sent; p.Timestamp++; e.Sent = &p },
		"key":     func(e *ChangeEvent) { e.Key[0] ^= 0xff },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			e := base
			mutate(&e)
			d, err := EventDigest(e)
			require.NoError(t, err)
			assert.NotEqual(t, d0, d)
		})
	}
}

func TestEventDigestIgnoresRequestID(t *testing.T) {
	e := testSentEvent(t)
	e.Seq = 1
	d1 := mustDigest(t, e)

	e.RequestID = "0190a000-0000-7000-8000-000000000001"
	assert.Equal(t, d1, mustDigest(t, e))
}

func TestEventDigestMissingPayload(t *testing.T) {
	e := ChangeEvent{Kind: EventEdited, Seq: 3}
	_, err := EventDigest(e)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no payload")
}

func TestHashWithDomainNullSeparator(t *testing.T) {
	data := []byte("payload")
	h := sha256.Sum256(append([]byte(DomainEvent+"\x00"), data...))
	assert.Equal(t, hex.EncodeToString(h[:]), hashWithDomain(DomainEvent, data))

	// Moving a byte across the separator must change the hash.
	assert.NotEqual(t, hashWithDomain("ab", []byte("c")), hashWithDomain("a", []byte("bc")))
}

func TestSealAndVerify(t *testing.T) {
	e, err := testSentEvent(t).Seal(7, "")
	require.NoError(t, err)
	assert.Equal(t, int64(7), e.Seq)
	require.NoError(t, e.Verify())

	next, err := NewEditedEvent(e.Key, 0, "edited").Seal(8, e.Digest)
	require.NoError(t, err)
	assert.Equal(t, e.Digest, next.Prev)
	require.NoError(t, next.Verify())

	tampered := next
	tampered.Edited = &EditedPayload{NewContent: "forged"}
	err = tampered.Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "digest mismatch")
}

func mustDigest(t *testing.T, e ChangeEvent) string {
	t.Helper()
	d, err := EventDigest(e)
	require.NoError(t, err)
	return d
}
