package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/chitchat/internal/ir"
)

// Initialize records deployer as the initializing caller and grants it
// every known capability. Fails with ir.ErrAlreadyInitialized on any call
// after the first.
func (t *Tx) Initialize(deployer ir.Identity) error {
	res, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO registry (id, initialized_by) VALUES (1, ?)
		ON CONFLICT(id) DO NOTHING
	`, deployer.String())
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("initialize: rows affected: %w", err)
	}
	if n == 0 {
		return ir.NewError(ir.CodeAlreadyInitialized, "registry has already been initialized")
	}

	for _, c := range ir.KnownCapabilities {
		if err := t.Grant(c, deployer); err != nil {
			return fmt.Errorf("initialize: %w", err)
		}
	}
	return nil
}

// Grant sets (capability, identity) to true. Granting twice is a no-op.
func (t *Tx) Grant(capability ir.Capability, identity ir.Identity) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO capabilities (capability, identity) VALUES (?, ?)
		ON CONFLICT(capability, identity) DO NOTHING
	`, string(capability), identity.String())
	if err != nil {
		return fmt.Errorf("grant %s: %w", capability, err)
	}
	return nil
}

// Revoke sets (capability, identity) to false.
// Returns whether a grant was actually removed.
func (t *Tx) Revoke(capability ir.Capability, identity ir.Identity) (bool, error) {
	res, err := t.tx.ExecContext(t.ctx, `
		DELETE FROM capabilities WHERE capability = ? AND identity = ?
	`, string(capability), identity.String())
	if err != nil {
		return false, fmt.Errorf("revoke %s: %w", capability, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoke %s: rows affected: %w", capability, err)
	}
	return n > 0, nil
}

// HasCapability reports whether identity holds capability, inside t.
func (t *Tx) HasCapability(capability ir.Capability, identity ir.Identity) (bool, error) {
	return hasCapability(t.ctx, t.tx, capability, identity)
}

// HasCapability reports whether identity holds capability.
func (s *Store) HasCapability(ctx context.Context, capability ir.Capability, identity ir.Identity) (bool, error) {
	return hasCapability(ctx, s.db, capability, identity)
}

// InitializedBy returns the identity that initialized the registry.
// ok is false if the registry has not been initialized.
func (s *Store) InitializedBy(ctx context.Context) (id ir.Identity, ok bool, err error) {
	var raw string
	err = s.db.QueryRowContext(ctx, `
		SELECT initialized_by FROM registry WHERE id = 1
	`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return id, false, nil
	}
	if err != nil {
		return id, false, fmt.Errorf("read registry: %w", err)
	}
	id, err = ir.ParseIdentity(raw)
	if err != nil {
		return id, false, fmt.Errorf("read registry: %w", err)
	}
	return id, true, nil
}

// Holders returns every identity holding capability, in ascending order.
func (s *Store) Holders(ctx context.Context, capability ir.Capability) ([]ir.Identity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT identity FROM capabilities
		WHERE capability = ?
		ORDER BY identity COLLATE BINARY ASC
	`, string(capability))
	if err != nil {
		return nil, fmt.Errorf("query holders of %s: %w", capability, err)
	}
	defer rows.Close()

	holders := []ir.Identity{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan holder: %w", err)
		}
		id, err := ir.ParseIdentity(raw)
		if err != nil {
			return nil, err
		}
		holders = append(holders, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate holders: %w", err)
	}
	return holders, nil
}

func hasCapability(ctx context.Context, q querier, capability ir.Capability, identity ir.Identity) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM capabilities WHERE capability = ? AND identity = ?
	`, string(capability), identity.String()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("has capability %s: %w", capability, err)
	}
	return n > 0, nil
}
