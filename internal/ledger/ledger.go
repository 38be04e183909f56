// Package ledger is the mutation surface of chitchat.
//
// A Ledger is the single serialization point: every mutation takes one
// mutex, validates through the gate, applies inside one store transaction
// and, only after commit, publishes the resulting change events in commit
// order. Reads go straight to the store and take no lock.
package ledger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/chitchat/internal/ir"
	"github.com/roach88/chitchat/internal/notify"
	"github.com/roach88/chitchat/internal/store"
)

// Ledger serializes mutations over a store and fans out their events.
//
// Thread-safety model:
//   - Mutations: safe from any goroutine, applied one at a time
//   - Reads: safe from any goroutine, never blocked by the ledger lock
type Ledger struct {
	mu sync.Mutex

	store    *store.Store
	notifier *notify.Notifier
	metrics  *Metrics
	clock    Clock
	ids      RequestIDGenerator

	// headSeq is the last seq published, tracked once Sync has run.
	headSeq int64
	synced  bool
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock sets the source of message creation times.
// Default: SystemClock.
func WithClock(c Clock) Option {
	return func(l *Ledger) {
		l.clock = c
	}
}

// WithRequestIDs sets the generator for change-event request ids.
// Default: UUIDv7Generator.
func WithRequestIDs(g RequestIDGenerator) Option {
	return func(l *Ledger) {
		l.ids = g
	}
}

// New creates a Ledger over s. The caller keeps ownership of s.
func New(s *store.Store, opts ...Option) *Ledger {
	n := notify.New(s)
	l := &Ledger{
		store:    s,
		notifier: n,
		metrics:  newMetrics(n),
		clock:    SystemClock{},
		ids:      UUIDv7Generator{},
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Close ends every subscription. The store stays open.
func (l *Ledger) Close() {
	l.notifier.Close()
}

// Metrics returns the ledger's collectors.
func (l *Ledger) Metrics() *Metrics {
	return l.metrics
}

// Store returns the underlying store for read-only use.
func (l *Ledger) Store() *store.Store {
	return l.store
}

// mutate runs fn as one serialized, atomic mutation and publishes the
// events it committed. A rejected or failed fn leaves no trace beyond
// logs and metrics.
func (l *Ledger) mutate(ctx context.Context, op string, fn func(tx *store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	start := time.Now()
	events, err := l.store.Update(ctx, fn)
	l.metrics.observe(op, start, err)

	if err != nil {
		if e, ok := ir.AsError(err); ok {
			slog.Info("mutation rejected",
				"op", op,
				"code", e.Code,
				"kind", e.Kind,
			)
		} else {
			slog.Error("mutation failed",
				"op", op,
				"error", err,
			)
		}
		return err
	}

	published := events
	if l.synced && len(events) > 0 {
		// Publish from headSeq so events other processes committed in
		// between precede ours.
		published, err = l.eventsAfterHead(ctx)
		if err != nil {
			slog.Warn("publish deferred to next sync",
				"op", op,
				"after_seq", l.headSeq,
				"error", err,
			)
			published = nil
		}
	}
	l.notifier.Publish(published...)
	l.metrics.published(published)

	for _, e := range events {
		slog.Info("change event committed",
			"seq", e.Seq,
			"key", e.Key.String(),
			"kind", e.Kind,
			"index", e.Index,
			"request_id", e.RequestID,
		)
	}
	return nil
}
