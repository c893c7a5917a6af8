package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomKey_StringRoundTrip(t *testing.T) {
	for _, k := range []RoomKey{
		ConversationRoom("65f0c0ffee"),
		TicketRoom("65f0beef"),
		NotifyRoom("client-1"),
		DashboardRoom(),
	} {
		parsed, err := ParseRoomKey(k.String())
		require.NoError(t, err, k.String())
		assert.Equal(t, k, parsed)
	}
}

func TestRoomKey_NamespacesDoNotCollide(t *testing.T) {
	assert.NotEqual(t, ConversationRoom("42"), TicketRoom("42"))
	assert.NotEqual(t, TicketRoom("42").String(), NotifyRoom("42").String())
	assert.NotEqual(t, TicketRoom("dashboard").Kind(), DashboardRoom().Kind())
}

func TestParseRoomKey_Invalid(t *testing.T) {
	for _, s := range []string{"", "conversation", "conversation:", "room:1", "notify"} {
		_, err := ParseRoomKey(s)
		assert.ErrorIs(t, err, ErrValidation, s)
	}
}

func TestRoomKey_CanJoin(t *testing.T) {
	user := Identity{UserID: "client-1", Role: RoleUser}
	agent := Identity{UserID: "agent-1", Role: RoleAdmin}

	assert.ErrorIs(t, DashboardRoom().CanJoin(user), ErrForbidden)
	assert.NoError(t, DashboardRoom().CanJoin(agent))

	assert.NoError(t, NotifyRoom("client-1").CanJoin(user))
	assert.ErrorIs(t, NotifyRoom("client-1").CanJoin(agent), ErrForbidden, "agents do not read other users' notifications")

	assert.NoError(t, ConversationRoom("c").CanJoin(user))
	assert.ErrorIs(t, RoomKey{}.CanJoin(user), ErrValidation)
	assert.False(t, RoomKey{}.Valid())
}
