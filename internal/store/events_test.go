package store

import (
	"context"
	"testing"

	"github.com/roach88/chitchat/internal/ir"
)

func seedEvents(t *testing.T, s *Store) (ab, ac ir.ConversationKey) {
	t.Helper()
	ab = ir.MustDeriveConversationKey(alice, bob)
	ac = ir.MustDeriveConversationKey(alice, carol)

	mustAppend(t, s, alice, bob, "hi", 1)   // seq 1
	mustAppend(t, s, alice, carol, "yo", 2) // seq 2
	if err := edit(s, ab, 0, "hello", alice); err != nil {
		t.Fatalf("Edit() failed: %v", err)
	}
	if err := softDelete(s, ab, 0, alice); err != nil {
		t.Fatalf("SoftDelete() failed: %v", err)
	}
	return ab, ac
}

func TestEvents_GlobalOrder(t *testing.T) {
	s := createTestStore(t)
	seedEvents(t, s)

	events, err := s.Events(context.Background(), EventFilter{})
	if err != nil {
		t.Fatalf("Events() failed: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("Events() returned %d, want 4", len(events))
	}

	wantKinds := []ir.EventKind{ir.EventSent, ir.EventSent, ir.EventEdited, ir.EventDeleted}
	for i, ev := range events {
		if ev.Seq != int64(i+1) {
			t.Errorf("events[%d].Seq = %d, want %d", i, ev.Seq, i+1)
		}
		if ev.Kind != wantKinds[i] {
			t.Errorf("events[%d].Kind = %s, want %s", i, ev.Kind, wantKinds[i])
		}
		if err := ev.Verify(); err != nil {
			t.Errorf("events[%d].Verify() failed: %v", i, err)
		}
	}

	if events[2].Edited == nil || events[2].Edited.NewContent != "hello" {
		t.Errorf("edited payload = %+v", events[2].Edited)
	}
	if events[3].Sent != nil || events[3].Edited != nil {
		t.Errorf("deleted event carries a payload: %+v", events[3])
	}

	seq, err := s.LastSeq(context.Background())
	if err != nil {
		t.Fatalf("LastSeq() failed: %v", err)
	}
	if seq != 4 {
		t.Errorf("LastSeq() = %d, want 4", seq)
	}
}

func TestEvents_ChainPerConversation(t *testing.T) {
	s := createTestStore(t)
	ab, ac := seedEvents(t, s)
	ctx := context.Background()

	abEvents, err := s.Events(ctx, EventFilter{Key: &ab})
	if err != nil {
		t.Fatalf("Events(ab) failed: %v", err)
	}
	if len(abEvents) != 3 {
		t.Fatalf("Events(ab) returned %d, want 3", len(abEvents))
	}

	prev := ""
	for _, ev := range abEvents {
		if ev.Key != ab {
			t.Errorf("event %d has key %s, want %s", ev.Seq, ev.Key, ab)
		}
		if ev.Prev != prev {
			t.Errorf("event %d Prev = %q, want %q", ev.Seq, ev.Prev, prev)
		}
		prev = ev.Digest
	}

	acEvents, err := s.Events(ctx, EventFilter{Key: &ac})
	if err != nil {
		t.Fatalf("Events(ac) failed: %v", err)
	}
	if len(acEvents) != 1 || acEvents[0].Prev != "" {
		t.Errorf("Events(ac) = %+v, want one unchained event", acEvents)
	}
}

func TestEvents_AfterSeqAndLimit(t *testing.T) {
	s := createTestStore(t)
	seedEvents(t, s)
	ctx := context.Background()

	events, err := s.Events(ctx, EventFilter{AfterSeq: 1, Limit: 2})
	if err != nil {
		t.Fatalf("Events() failed: %v", err)
	}
	if len(events) != 2 || events[0].Seq != 2 || events[1].Seq != 3 {
		t.Errorf("Events(after 1, limit 2) = %+v", events)
	}

	events, err = s.Events(ctx, EventFilter{AfterSeq: 4})
	if err != nil {
		t.Fatalf("Events() failed: %v", err)
	}
	if events == nil || len(events) != 0 {
		t.Errorf("Events(after last) = %v, want empty non-nil slice", events)
	}
}

func TestEvents_SurviveReopen(t *testing.T) {
	path := t.TempDir() + "/reopen.db"
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	seedEvents(t, s)
	before, err := s.Events(context.Background(), EventFilter{})
	if err != nil {
		t.Fatalf("Events() failed: %v", err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	after, err := s.Events(context.Background(), EventFilter{})
	if err != nil {
		t.Fatalf("Events() failed: %v", err)
	}
	if len(after) != len(before) {
		t.Fatalf("reopened store has %d events, want %d", len(after), len(before))
	}
	for i := range after {
		if after[i].Digest != before[i].Digest {
			t.Errorf("event %d digest changed across reopen", after[i].Seq)
		}
	}
}
