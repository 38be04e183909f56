// Package notify fans committed change events out to subscribers.
//
// Publish never blocks: every subscription owns an unbounded queue drained
// by its own goroutine, so a slow or absent reader cannot delay mutation
// acceptance. A new subscription first replays committed history after its
// starting seq, then continues with live events. Replay and registration
// happen under the same lock Publish takes, and each subscription drops
// events at or below the last seq it queued, so the handover has neither
// gaps nor duplicates.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/chitchat/internal/ir"
	"github.com/roach88/chitchat/internal/store"
)

// ErrClosed is returned by Subscribe after the notifier has been closed.
var ErrClosed = errors.New("notify: notifier closed")

// History supplies committed events for resynchronisation.
// *store.Store satisfies it.
type History interface {
	Events(ctx context.Context, f store.EventFilter) ([]ir.ChangeEvent, error)
}

// Filter selects the events a subscription receives.
type Filter struct {
	// Key restricts delivery to one conversation when non-nil.
	Key *ir.ConversationKey

	// AfterSeq skips history at or below this seq. Zero replays everything.
	AfterSeq int64
}

// Matches reports whether e passes the key filter.
func (f Filter) Matches(e ir.ChangeEvent) bool {
	return f.Key == nil || *f.Key == e.Key
}

// Notifier is the change-event fan-out point.
// Thread-safety: all methods are safe for concurrent use.
type Notifier struct {
	history History

	mu     sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool
}

// New creates a notifier that resynchronises subscribers from history.
func New(history History) *Notifier {
	return &Notifier{
		history: history,
		subs:    make(map[uint64]*Subscription),
	}
}

// Publish queues events for every matching subscription.
//
// Callers must publish only committed events, in commit order. Publish
// returns once the events are queued; it never waits on delivery.
func (n *Notifier) Publish(events ...ir.ChangeEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, sub := range n.subs {
		for _, e := range events {
			sub.offer(e)
		}
	}
}

// Subscribe registers a subscription that first receives committed history
// after f.AfterSeq, then live events, all in seq order.
//
// The subscription ends when ctx is done or Close is called; the Events
// channel is closed afterwards.
func (n *Notifier) Subscribe(ctx context.Context, f Filter) (*Subscription, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil, ErrClosed
	}

	backlog, err := n.history.Events(ctx, store.EventFilter{Key: f.Key, AfterSeq: f.AfterSeq})
	if err != nil {
		return nil, fmt.Errorf("subscribe: replay history: %w", err)
	}

	n.nextID++
	sub := &Subscription{
		id:      n.nextID,
		n:       n,
		filter:  f,
		lastSeq: f.AfterSeq,
		queue:   newEventQueue(),
		out:     make(chan ir.ChangeEvent),
		done:    make(chan struct{}),
	}
	for _, e := range backlog {
		sub.offer(e)
	}
	n.subs[sub.id] = sub

	go sub.deliver(ctx)

	slog.Debug("subscription opened",
		"id", sub.id,
		"after_seq", f.AfterSeq,
		"backlog", len(backlog),
	)
	return sub, nil
}

// Subscribers returns the number of open subscriptions.
func (n *Notifier) Subscribers() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}

// Close ends every subscription and rejects new ones.
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	subs := make([]*Subscription, 0, len(n.subs))
	for _, sub := range n.subs {
		subs = append(subs, sub)
	}
	n.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}

func (n *Notifier) remove(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.subs, id)
}

// Subscription is one reader's ordered view of the event stream.
type Subscription struct {
	id     uint64
	n      *Notifier
	filter Filter

	// lastSeq is guarded by n.mu.
	lastSeq int64
	dropped atomic.Int64

	queue     *eventQueue
	out       chan ir.ChangeEvent
	done      chan struct{}
	closeOnce sync.Once
}

// Events returns the delivery channel. It is closed when the subscription
// ends.
func (s *Subscription) Events() <-chan ir.ChangeEvent {
	return s.out
}

// Dropped returns how many duplicate events were discarded.
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// Pending returns how many events are queued but not yet delivered.
func (s *Subscription) Pending() int {
	return s.queue.Len()
}

// Close ends the subscription. Undelivered events are discarded.
// Safe to call more than once.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.n.remove(s.id)
		s.queue.Close()
		close(s.done)
		slog.Debug("subscription closed", "id", s.id, "dropped", s.dropped.Load())
	})
}

// offer queues e if it matches and is newer than anything queued so far.
// Caller holds n.mu.
func (s *Subscription) offer(e ir.ChangeEvent) {
	if !s.filter.Matches(e) {
		return
	}
	if e.Seq <= s.lastSeq {
		s.dropped.Add(1)
		return
	}
	if s.queue.Enqueue(e) {
		s.lastSeq = e.Seq
	}
}

func (s *Subscription) deliver(ctx context.Context) {
	defer close(s.out)

	for {
		if e, ok := s.queue.TryDequeue(); ok {
			select {
			case s.out <- e:
				continue
			case <-s.done:
				return
			case <-ctx.Done():
				s.Close()
				return
			}
		}

		select {
		case <-s.queue.Wait():
		case <-s.done:
			return
		case <-ctx.Done():
			s.Close()
			return
		}
	}
}
