package store

import (
	"context"
	"errors"
	"testing"

	"github.com/roach88/chitchat/internal/ir"
)

func TestInitialize_GrantsAllCapabilitiesOnce(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, err := s.Update(ctx, func(tx *Tx) error { return tx.Initialize(alice) }); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}

	for _, c := range ir.KnownCapabilities {
		ok, err := s.HasCapability(ctx, c, alice)
		if err != nil {
			t.Fatalf("HasCapability() failed: %v", err)
		}
		if !ok {
			t.Errorf("deployer lacks %s after Initialize", c)
		}
	}

	by, ok, err := s.InitializedBy(ctx)
	if err != nil || !ok || by != alice {
		t.Errorf("InitializedBy() = %s, %v, %v", by, ok, err)
	}

	_, err = s.Update(ctx, func(tx *Tx) error { return tx.Initialize(bob) })
	if !errors.Is(err, ir.ErrAlreadyInitialized) {
		t.Errorf("second Initialize() error = %v, want ALREADY_INITIALIZED", err)
	}
	if ok, _ := s.HasCapability(ctx, ir.CapabilityAdmin, bob); ok {
		t.Error("rejected Initialize granted admin")
	}
}

func TestInitializedBy_Fresh(t *testing.T) {
	s := createTestStore(t)

	_, ok, err := s.InitializedBy(context.Background())
	if err != nil {
		t.Fatalf("InitializedBy() failed: %v", err)
	}
	if ok {
		t.Error("fresh store reports initialized")
	}
}

func TestGrantRevoke(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Update(ctx, func(tx *Tx) error {
		if err := tx.Grant(ir.CapabilityUpgrade, bob); err != nil {
			return err
		}
		// Granting twice is a no-op.
		return tx.Grant(ir.CapabilityUpgrade, bob)
	})
	if err != nil {
		t.Fatalf("Grant() failed: %v", err)
	}

	holders, err := s.Holders(ctx, ir.CapabilityUpgrade)
	if err != nil {
		t.Fatalf("Holders() failed: %v", err)
	}
	if len(holders) != 1 || holders[0] != bob {
		t.Errorf("Holders() = %v, want [bob]", holders)
	}

	var removed bool
	_, err = s.Update(ctx, func(tx *Tx) error {
		var err error
		removed, err = tx.Revoke(ir.CapabilityUpgrade, bob)
		return err
	})
	if err != nil {
		t.Fatalf("Revoke() failed: %v", err)
	}
	if !removed {
		t.Error("Revoke() reported nothing removed")
	}
	if ok, _ := s.HasCapability(ctx, ir.CapabilityUpgrade, bob); ok {
		t.Error("capability still held after Revoke")
	}
}

func TestRoles_DoNotEmitEvents(t *testing.T) {
	s := createTestStore(t)

	events, err := s.Update(context.Background(), func(tx *Tx) error { return tx.Initialize(alice) })
	if err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("Initialize() emitted %d change events", len(events))
	}
}
