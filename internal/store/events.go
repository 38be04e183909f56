package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/chitchat/internal/ir"
)

// EventFilter selects change events. The zero value selects everything.
type EventFilter struct {
	// Key restricts results to one conversation when non-nil.
	Key *ir.ConversationKey

	// AfterSeq skips events with seq <= AfterSeq.
	AfterSeq int64

	// Limit caps the number of events returned; 0 means no limit.
	Limit int
}

// appendEvent seals e with the next global seq and the digest of the
// previous event under the same key, then inserts it.
func (t *Tx) appendEvent(e ir.ChangeEvent) (ir.ChangeEvent, error) {
	var seq int64
	if err := t.tx.QueryRowContext(t.ctx, `
		SELECT COALESCE(MAX(seq), 0) + 1 FROM change_events
	`).Scan(&seq); err != nil {
		return e, fmt.Errorf("next seq: %w", err)
	}

	prev, err := lastDigest(t.ctx, t.tx, e.Key)
	if err != nil {
		return e, err
	}

	sealed, err := e.Seal(seq, prev)
	if err != nil {
		return e, fmt.Errorf("seal event: %w", err)
	}

	payload, err := marshalPayload(sealed)
	if err != nil {
		return e, err
	}

	_, err = t.tx.ExecContext(t.ctx, `
		INSERT INTO change_events
		(seq, digest, prev_digest, conversation_key, kind, msg_index, payload, request_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sealed.Seq,
		sealed.Digest,
		sealed.Prev,
		sealed.Key.String(),
		string(sealed.Kind),
		sealed.Index,
		payload,
		sealed.RequestID,
	)
	if err != nil {
		return e, fmt.Errorf("insert event: %w", err)
	}

	t.events = append(t.events, sealed)
	return sealed, nil
}

// Events returns change events matching f, ordered by seq ASC.
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) Events(ctx context.Context, f EventFilter) ([]ir.ChangeEvent, error) {
	var (
		where = []string{"seq > ?"}
		args  = []any{f.AfterSeq}
	)
	if f.Key != nil {
		where = append(where, "conversation_key = ?")
		args = append(args, f.Key.String())
	}

	query := `
		SELECT seq, digest, prev_digest, conversation_key, kind, msg_index, payload, request_id
		FROM change_events
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY seq ASC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []ir.ChangeEvent{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// LastSeq returns the seq of the most recent event, or 0 if none exist.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	if err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM change_events
	`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq, nil
}

func lastDigest(ctx context.Context, q querier, key ir.ConversationKey) (string, error) {
	var digest string
	err := q.QueryRowContext(ctx, `
		SELECT digest FROM change_events
		WHERE conversation_key = ?
		ORDER BY seq DESC
		LIMIT 1
	`, key.String()).Scan(&digest)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("last digest for %s: %w", key, err)
	}
	return digest, nil
}

func scanEvent(row scanner) (ir.ChangeEvent, error) {
	var (
		ev      ir.ChangeEvent
		keyHex  string
		kind    string
		payload string
	)
	err := row.Scan(
		&ev.Seq,
		&ev.Digest,
		&ev.Prev,
		&keyHex,
		&kind,
		&ev.Index,
		&payload,
		&ev.RequestID,
	)
	if err != nil {
		return ev, fmt.Errorf("scan event: %w", err)
	}

	if ev.Key, err = ir.ParseConversationKey(keyHex); err != nil {
		return ev, fmt.Errorf("scan event %d: %w", ev.Seq, err)
	}
	if ev.Kind, err = ir.ParseEventKind(kind); err != nil {
		return ev, fmt.Errorf("scan event %d: %w", ev.Seq, err)
	}
	if err := unmarshalPayload(&ev, payload); err != nil {
		return ev, fmt.Errorf("scan event %d: %w", ev.Seq, err)
	}
	return ev, nil
}
