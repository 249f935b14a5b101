package sctpcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrissan/sctpmux/sctperrors"
)

func TestAssocChangeRoundTrip(t *testing.T) {
	data := AppendAssocChange(nil, AssocCommUp, 0, 16, 32)
	require.Len(t, data, assocChangeSize)
	n, err := ParseNotification(data)
	require.NoError(t, err)
	assert.Equal(t, uint16(NotificationAssocChange), n.Type)
	assert.Equal(t, uint32(assocChangeSize), n.Length)
	assert.Equal(t, uint16(AssocCommUp), n.AssocState)
	assert.Equal(t, uint16(16), n.OutboundStreams)
	assert.Equal(t, uint16(32), n.InboundStreams)
	assert.True(t, n.Up())
	assert.False(t, n.Terminal())
}

func TestNotificationTerminalStates(t *testing.T) {
	for _, state := range []uint16{AssocCommLost, AssocShutdownComp, AssocCantStart} {
		n, err := ParseNotification(AppendAssocChange(nil, state, 0, 0, 0))
		require.NoError(t, err)
		assert.True(t, n.Terminal(), "state %d", state)
		assert.False(t, n.Up(), "state %d", state)
	}
	n, err := ParseNotification(AppendAssocChange(nil, AssocRestart, 0, 0, 0))
	require.NoError(t, err)
	assert.True(t, n.Up())
}

func TestNotificationShort(t *testing.T) {
	_, err := ParseNotification([]byte{1, 0, 0})
	assert.ErrorIs(t, err, sctperrors.ErrNotificationTooShort)

	// assoc change header without body
	_, err = ParseNotification(AppendAssocChange(nil, AssocCommUp, 0, 0, 0)[:notificationHeaderSize])
	assert.ErrorIs(t, err, sctperrors.ErrNotificationTooShort)
}

func TestNotificationOtherType(t *testing.T) {
	data := make([]byte, 12)
	data[0] = NotificationSenderDry // little or big endian, we only check it is not assoc change
	n, err := ParseNotification(data)
	require.NoError(t, err)
	assert.NotEqual(t, uint16(NotificationAssocChange), n.Type)
	assert.Len(t, n.Body, 4)
	assert.False(t, n.Terminal())
}
