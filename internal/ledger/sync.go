package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/chitchat/internal/ir"
	"github.com/roach88/chitchat/internal/store"
)

// Sync publishes events that other processes committed to the shared
// database since this ledger last published. The first call only records
// the current head, so subscribe after it and history covers the rest.
// Returns the number of events published.
func (l *Ledger) Sync(ctx context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.synced {
		seq, err := l.store.LastSeq(ctx)
		if err != nil {
			return 0, fmt.Errorf("sync: %w", err)
		}
		l.headSeq = seq
		l.synced = true
		return 0, nil
	}

	events, err := l.eventsAfterHead(ctx)
	if err != nil {
		return 0, fmt.Errorf("sync: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	l.notifier.Publish(events...)
	l.metrics.published(events)

	slog.Debug("external events published",
		"count", len(events),
		"last_seq", l.headSeq,
	)
	return len(events), nil
}

// Follow runs Sync every interval until ctx is done.
func (l *Ledger) Follow(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := l.Sync(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// eventsAfterHead reads every event committed after headSeq and advances
// headSeq past them. Caller holds l.mu.
func (l *Ledger) eventsAfterHead(ctx context.Context) ([]ir.ChangeEvent, error) {
	events, err := l.store.Events(ctx, store.EventFilter{AfterSeq: l.headSeq})
	if err != nil {
		return nil, err
	}
	if len(events) > 0 {
		l.headSeq = events[len(events)-1].Seq
	}
	return events, nil
}
