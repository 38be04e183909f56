package replica

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chitchat/internal/ir"
	"github.com/roach88/chitchat/internal/store"
)

var (
	alice = ir.MustParseIdentity("0x00000000000000000000000000000000000000a1")
	bob   = ir.MustParseIdentity("0x00000000000000000000000000000000000000b2")
	carol = ir.MustParseIdentity("0x00000000000000000000000000000000000000c3")

	keyAB = ir.MustDeriveConversationKey(alice, bob)
	keyAC = ir.MustDeriveConversationKey(alice, carol)
)

// seededStore runs a mixed workload over two conversations.
func seededStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "replica.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	steps := []func(tx *store.Tx) error{
		func(tx *store.Tx) error { _, _, err := tx.Append(keyAB, alice, bob, "hi", 10, ""); return err },
		func(tx *store.Tx) error { _, _, err := tx.Append(keyAB, bob, alice, "hey", 11, ""); return err },
		func(tx *store.Tx) error { _, _, err := tx.Append(keyAC, carol, alice, "yo", 12, ""); return err },
		func(tx *store.Tx) error { _, err := tx.Edit(keyAB, 0, "hello", alice, ""); return err },
		func(tx *store.Tx) error { _, err := tx.SoftDelete(keyAB, 1, bob, ""); return err },
		func(tx *store.Tx) error { _, _, err := tx.Append(keyAB, alice, bob, "bye", 13, ""); return err },
	}
	for i, step := range steps {
		_, err := s.Update(ctx, step)
		require.NoError(t, err, "step %d", i)
	}
	return s
}

func TestReplica_FoldMatchesStore(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()

	events, err := s.Events(ctx, store.EventFilter{})
	require.NoError(t, err)

	r := New()
	require.NoError(t, r.ApplyAll(events))
	assert.Equal(t, int64(6), r.LastSeq())
	assert.Equal(t, 6, r.Applied())
	assert.Equal(t, []ir.ConversationKey{keyAB, keyAC}, r.Keys())

	for _, key := range r.Keys() {
		direct, err := s.Conversation(ctx, key)
		require.NoError(t, err)
		require.NoError(t, r.Compare(key, direct))

		n, err := s.LengthOf(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, n, r.Length(key))
	}

	conv := r.Conversation(keyAB)
	require.Len(t, conv, 3)
	assert.Equal(t, "hello", conv[0].Content())
	assert.True(t, conv[1].IsDeleted())
	assert.Equal(t, "bye", conv[2].Content())
}

func TestReplica_PerKeyStream(t *testing.T) {
	s := seededStore(t)
	key := keyAC

	events, err := s.Events(context.Background(), store.EventFilter{Key: &key})
	require.NoError(t, err)

	r := New()
	require.NoError(t, r.ApplyAll(events))
	assert.Equal(t, int64(1), r.Length(keyAC))
	assert.Equal(t, int64(0), r.Length(keyAB))
	assert.Empty(t, r.Conversation(keyAB))
}

func TestReplica_DetectsTampering(t *testing.T) {
	s := seededStore(t)
	events, err := s.Events(context.Background(), store.EventFilter{})
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(events []ir.ChangeEvent) []ir.ChangeEvent
		want   error
	}{
		{
			name: "dropped send",
			mutate: func(events []ir.ChangeEvent) []ir.ChangeEvent {
				return append(events[:1:1], events[2:]...)
			},
			want: ErrBrokenChain,
		},
		{
			name: "dropped edit breaks chain",
			mutate: func(events []ir.ChangeEvent) []ir.ChangeEvent {
				return append(events[:3:3], events[4:]...)
			},
			want: ErrBrokenChain,
		},
		{
			name: "reordered",
			mutate: func(events []ir.ChangeEvent) []ir.ChangeEvent {
				out := append([]ir.ChangeEvent(nil), events...)
				out[1], out[2] = out[2], out[1]
				return out
			},
			want: ErrOutOfOrder,
		},
		{
			name: "rewritten content",
			mutate: func(events []ir.ChangeEvent) []ir.ChangeEvent {
				out := append([]ir.ChangeEvent(nil), events...)
				out[3].Edited = &ir.EditedPayload{NewContent: "forged"}
				return out
			},
			want: ErrDigestMismatch,
		},
		{
			name: "replayed twice",
			mutate: func(events []ir.ChangeEvent) []ir.ChangeEvent {
				return append(append([]ir.ChangeEvent(nil), events...), events[0])
			},
			want: ErrOutOfOrder,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()
			err := r.ApplyAll(tt.mutate(events))
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestReplica_IllegalTransition(t *testing.T) {
	sent, err := ir.NewSentEvent(keyAB, 0, ir.NewMessage(alice, bob, "hi", 1)).Seal(1, "")
	require.NoError(t, err)
	del1, err := ir.NewDeletedEvent(keyAB, 0).Seal(2, sent.Digest)
	require.NoError(t, err)
	del2, err := ir.NewDeletedEvent(keyAB, 0).Seal(3, del1.Digest)
	require.NoError(t, err)
	missing, err := ir.NewEditedEvent(keyAB, 7, "x").Seal(3, del1.Digest)
	require.NoError(t, err)
	skipped, err := ir.NewSentEvent(keyAC, 4, ir.NewMessage(alice, carol, "yo", 1)).Seal(3, "")
	require.NoError(t, err)

	r := New()
	require.NoError(t, r.ApplyAll([]ir.ChangeEvent{sent, del1}))

	require.ErrorIs(t, r.Apply(del2), ErrIllegalTransition)
	require.ErrorIs(t, r.Apply(missing), ErrUnknownIndex)
	require.ErrorIs(t, r.Apply(skipped), ErrIndexGap)

	// Failed applies leave the replica untouched.
	assert.Equal(t, int64(2), r.LastSeq())
	assert.Equal(t, del1.Digest, r.Head(keyAB))
	assert.True(t, r.Conversation(keyAB)[0].IsDeleted())
}

func TestReplica_CompareReportsDifference(t *testing.T) {
	sent, err := ir.NewSentEvent(keyAB, 0, ir.NewMessage(alice, bob, "hi", 1)).Seal(1, "")
	require.NoError(t, err)

	r := New()
	require.NoError(t, r.Apply(sent))

	require.NoError(t, r.Compare(keyAB, []ir.Message{ir.NewMessage(alice, bob, "hi", 1)}))
	require.Error(t, r.Compare(keyAB, []ir.Message{ir.NewMessage(alice, bob, "changed", 1)}))
	require.Error(t, r.Compare(keyAB, nil))
}
