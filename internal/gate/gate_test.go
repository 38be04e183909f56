package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chitchat/internal/ir"
)

var (
	alice = ir.MustParseIdentity("0x00000000000000000000000000000000000000a1")
	bob   = ir.MustParseIdentity("0x00000000000000000000000000000000000000b2")
)

func TestSend(t *testing.T) {
	key, err := Send(alice, bob)
	require.NoError(t, err)
	assert.Equal(t, ir.MustDeriveConversationKey(bob, alice), key)

	_, err = Send(alice, ir.Identity{})
	require.ErrorIs(t, err, ir.ErrInvalidIdentity)

	_, err = Send(ir.Identity{}, bob)
	require.ErrorIs(t, err, ir.ErrInvalidIdentity)

	_, err = Send(alice, alice)
	require.ErrorIs(t, err, ir.ErrSelfConversation)
}

func TestModify(t *testing.T) {
	msg := ir.NewMessage(alice, bob, "hi", 1)

	require.NoError(t, Modify(alice, msg))

	err := Modify(bob, msg)
	require.ErrorIs(t, err, ir.ErrNotSender, "the recipient may not modify")
	assert.Equal(t, ir.KindAuthorization, ir.KindOf(err))

	// Deletion state is left to the message itself.
	deleted, err := msg.Delete()
	require.NoError(t, err)
	require.NoError(t, Modify(alice, deleted))
}

func TestGrant(t *testing.T) {
	require.NoError(t, Grant(true))
	require.ErrorIs(t, Grant(false), ir.ErrNotAdministrator)
}
