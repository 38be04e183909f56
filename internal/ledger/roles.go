package ledger

import (
	"context"

	"github.com/roach88/chitchat/internal/gate"
	"github.com/roach88/chitchat/internal/ir"
	"github.com/roach88/chitchat/internal/store"
)

// Initialize grants every capability to deployer. It succeeds exactly once
// per store; later calls fail with ir.ErrAlreadyInitialized.
func (l *Ledger) Initialize(ctx context.Context, deployer ir.Identity) error {
	return l.mutate(ctx, "initialize", func(tx *store.Tx) error {
		if deployer.IsZero() {
			return ir.NewError(ir.CodeInvalidIdentity, "deployer must be non-null")
		}
		return tx.Initialize(deployer)
	})
}

// Grant gives capability to target. caller must hold the admin capability.
//
// Checks, in order: ir.ErrNotAdministrator, ir.ErrInvalidIdentity for a
// null target, ir.ErrUnknownCapability.
func (l *Ledger) Grant(ctx context.Context, caller ir.Identity, capability ir.Capability, target ir.Identity) error {
	return l.mutate(ctx, "grant", func(tx *store.Tx) error {
		c, err := authorizeRoleChange(tx, caller, capability, target)
		if err != nil {
			return err
		}
		return tx.Grant(c, target)
	})
}

// Revoke removes capability from target. Same checks as Grant.
// Revoking a capability that is not held succeeds.
func (l *Ledger) Revoke(ctx context.Context, caller ir.Identity, capability ir.Capability, target ir.Identity) error {
	return l.mutate(ctx, "revoke", func(tx *store.Tx) error {
		c, err := authorizeRoleChange(tx, caller, capability, target)
		if err != nil {
			return err
		}
		_, err = tx.Revoke(c, target)
		return err
	})
}

// GrantUpgradeCapability gives the upgrade capability to target.
// caller must hold the admin capability.
func (l *Ledger) GrantUpgradeCapability(ctx context.Context, caller, target ir.Identity) error {
	return l.Grant(ctx, caller, ir.CapabilityUpgrade, target)
}

// HasCapability reports whether identity holds capability.
// Fails with ir.ErrUnknownCapability for an unknown tag.
func (l *Ledger) HasCapability(ctx context.Context, capability ir.Capability, identity ir.Identity) (bool, error) {
	c, err := ir.ParseCapability(string(capability))
	if err != nil {
		return false, err
	}
	return l.store.HasCapability(ctx, c, identity)
}

// RoleTable is a snapshot of the capability registry.
type RoleTable struct {
	// Deployer is nil until the registry is initialized.
	Deployer *ir.Identity                    `json:"deployer,omitempty"`
	Holders  map[ir.Capability][]ir.Identity `json:"holders"`
}

// Roles returns the registry's deployer and the holders of every known
// capability.
func (l *Ledger) Roles(ctx context.Context) (RoleTable, error) {
	table := RoleTable{Holders: make(map[ir.Capability][]ir.Identity, len(ir.KnownCapabilities))}

	deployer, ok, err := l.store.InitializedBy(ctx)
	if err != nil {
		return table, err
	}
	if ok {
		table.Deployer = &deployer
	}

	for _, c := range ir.KnownCapabilities {
		holders, err := l.store.Holders(ctx, c)
		if err != nil {
			return table, err
		}
		table.Holders[c] = holders
	}
	return table, nil
}

func authorizeRoleChange(tx *store.Tx, caller ir.Identity, capability ir.Capability, target ir.Identity) (ir.Capability, error) {
	isAdmin, err := tx.HasCapability(ir.CapabilityAdmin, caller)
	if err != nil {
		return "", err
	}
	if err := gate.Grant(isAdmin); err != nil {
		return "", err
	}
	if target.IsZero() {
		return "", ir.NewError(ir.CodeInvalidIdentity, "grant target must be non-null")
	}
	return ir.ParseCapability(string(capability))
}
