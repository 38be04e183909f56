package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/chitchat/internal/ir"
)

var (
	alice = ir.MustParseIdentity("0x00000000000000000000000000000000000000a1")
	bob   = ir.MustParseIdentity("0x00000000000000000000000000000000000000b2")
	carol = ir.MustParseIdentity("0x00000000000000000000000000000000000000c3")
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// mustAppend appends content from sender to recipient in its own transaction.
func mustAppend(t *testing.T, s *Store, sender, recipient ir.Identity, content string, now int64) int64 {
	t.Helper()
	key := ir.MustDeriveConversationKey(sender, recipient)
	var index int64
	_, err := s.Update(context.Background(), func(tx *Tx) error {
		var err error
		index, _, err = tx.Append(key, sender, recipient, content, now, "")
		return err
	})
	if err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	return index
}

// edit runs Tx.Edit in its own transaction.
func edit(s *Store, key ir.ConversationKey, index int64, content string, requester ir.Identity) error {
	_, err := s.Update(context.Background(), func(tx *Tx) error {
		_, err := tx.Edit(key, index, content, requester, "")
		return err
	})
	return err
}

// softDelete runs Tx.SoftDelete in its own transaction.
func softDelete(s *Store, key ir.ConversationKey, index int64, requester ir.Identity) error {
	_, err := s.Update(context.Background(), func(tx *Tx) error {
		_, err := tx.SoftDelete(key, index, requester, "")
		return err
	})
	return err
}
