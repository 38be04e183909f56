package ledger

import (
	"context"
	"fmt"

	"github.com/roach88/chitchat/internal/ir"
	"github.com/roach88/chitchat/internal/replica"
	"github.com/roach88/chitchat/internal/store"
)

// VerifyReport summarises a successful replay.
type VerifyReport struct {
	Events        int   `json:"events"`
	Conversations int   `json:"conversations"`
	LastSeq       int64 `json:"last_seq"`

	// Head is the digest of the conversation's last event when a single
	// conversation was verified.
	Head string `json:"head,omitempty"`
}

// Verify folds the committed event stream into a fresh replica, checking
// every digest and chain link, and compares the result with direct store
// reads. A nil key verifies every conversation.
func (l *Ledger) Verify(ctx context.Context, key *ir.ConversationKey) (VerifyReport, error) {
	var report VerifyReport

	events, err := l.store.Events(ctx, store.EventFilter{Key: key})
	if err != nil {
		return report, fmt.Errorf("verify: %w", err)
	}

	r := replica.New()
	if err := r.ApplyAll(events); err != nil {
		return report, fmt.Errorf("verify: replay: %w", err)
	}

	keys := r.Keys()
	if key != nil && len(keys) == 0 {
		keys = []ir.ConversationKey{*key}
	}
	for _, k := range keys {
		direct, err := l.store.Conversation(ctx, k)
		if err != nil {
			return report, fmt.Errorf("verify: %w", err)
		}
		if err := r.Compare(k, direct); err != nil {
			return report, fmt.Errorf("verify: %w", err)
		}
	}

	report.Events = r.Applied()
	report.Conversations = len(r.Keys())
	report.LastSeq = r.LastSeq()
	if key != nil {
		report.Head = r.Head(*key)
	}
	return report, nil
}
