package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"home-services/realtime-service/internal/models"
)

type recordingBus struct {
	mu   sync.Mutex
	msgs []BusMessage
}

func (b *recordingBus) Publish(_ context.Context, msg BusMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, msg)
	return nil
}

func newTestClient(connID, userID string, role models.Role) *Client {
	return NewClient(models.Identity{ConnectionID: connID, UserID: userID, Role: role}, 8)
}

// drain returns the event names queued for c.
func drain(t *testing.T, c *Client) []string {
	t.Helper()
	var events []string
	for {
		select {
		case frame := <-c.Send:
			var env Envelope
			require.NoError(t, json.Unmarshal(frame, &env))
			events = append(events, env.Event)
		default:
			return events
		}
	}
}

func TestRegistry_RegisterTracksUsers(t *testing.T) {
	r := NewRegistry("node-a", nil, nil)
	tab1 := newTestClient("c1", "client-1", models.RoleUser)
	tab2 := newTestClient("c2", "client-1", models.RoleUser)

	assert.True(t, r.Register(tab1))
	assert.False(t, r.Register(tab2))
	assert.False(t, r.Register(tab2), "registering twice is a no-op")
	assert.Equal(t, 2, r.ConnectionCount())

	assert.False(t, r.Unregister(tab1))
	assert.True(t, r.Unregister(tab2))
	assert.False(t, r.Unregister(tab2))
	assert.Zero(t, r.ConnectionCount())
}

func TestRegistry_JoinPolicy(t *testing.T) {
	r := NewRegistry("node-a", nil, nil)
	user := newTestClient("c1", "client-1", models.RoleUser)
	agent := newTestClient("c2", "agent-1", models.RoleAdmin)
	r.Register(user)
	r.Register(agent)

	assert.ErrorIs(t, r.Join(user, models.DashboardRoom()), models.ErrForbidden)
	assert.NoError(t, r.Join(agent, models.DashboardRoom()))

	assert.ErrorIs(t, r.Join(user, models.NotifyRoom("agent-1")), models.ErrForbidden)
	assert.NoError(t, r.Join(user, models.NotifyRoom("client-1")))

	assert.ErrorIs(t, r.Join(user, models.ConversationRoom("")), models.ErrValidation)

	stranger := newTestClient("c3", "x", models.RoleUser)
	assert.ErrorIs(t, r.Join(stranger, models.ConversationRoom("abc")), models.ErrUnauthenticated)
}

func TestRegistry_EmitReachesRoomMembersOnly(t *testing.T) {
	r := NewRegistry("node-a", nil, nil)
	a := newTestClient("c1", "client-1", models.RoleUser)
	b := newTestClient("c2", "provider-1", models.RoleProvider)
	outsider := newTestClient("c3", "client-2", models.RoleUser)
	for _, c := range []*Client{a, b, outsider} {
		r.Register(c)
	}

	room := models.ConversationRoom("conv-1")
	require.NoError(t, r.Join(a, room))
	require.NoError(t, r.Join(b, room))
	require.NoError(t, r.Join(a, room))

	r.Emit(context.Background(), room, models.EventNewMessage, map[string]string{"text": "hi"})
	assert.Equal(t, []string{models.EventNewMessage}, drain(t, a))
	assert.Equal(t, []string{models.EventNewMessage}, drain(t, b))
	assert.Empty(t, drain(t, outsider))

	r.EmitExcept(context.Background(), room, a.ID(), models.EventUserTyping, nil)
	assert.Empty(t, drain(t, a))
	assert.Equal(t, []string{models.EventUserTyping}, drain(t, b))

	assert.True(t, r.HasUser(room, "provider-1"))
	r.Leave(b, room)
	assert.False(t, r.HasUser(room, "provider-1"))
	assert.False(t, r.InRoom(b, room))

	r.Unregister(a)
	assert.False(t, r.HasUser(room, "client-1"), "unregister leaves every room")

	r.Broadcast(context.Background(), models.EventUserStatusChanged, nil)
	assert.Equal(t, []string{models.EventUserStatusChanged}, drain(t, b))
	assert.Equal(t, []string{models.EventUserStatusChanged}, drain(t, outsider))
}

func TestRegistry_SlowClientIsDropped(t *testing.T) {
	r := NewRegistry("node-a", nil, nil)
	slow := newTestClient("c1", "client-1", models.RoleUser)
	r.Register(slow)
	room := models.NotifyRoom("client-1")
	require.NoError(t, r.Join(slow, room))

	for i := 0; i < cap(slow.Send)+5; i++ {
		r.Emit(context.Background(), room, models.EventNewNotification, i)
	}
	assert.Len(t, drain(t, slow), cap(slow.Send))

	slow.Close()
	assert.False(t, r.SendTo(slow, models.EventUnreadCount, nil))
	slow.Close()
}

func TestRegistry_Bus(t *testing.T) {
	bus := &recordingBus{}
	a := NewRegistry("node-a", bus, nil)
	b := NewRegistry("node-b", nil, nil)

	remote := newTestClient("c1", "provider-1", models.RoleProvider)
	b.Register(remote)
	room := models.ConversationRoom("conv-1")
	require.NoError(t, b.Join(remote, room))

	a.Emit(context.Background(), room, models.EventNewMessage, "hello")
	require.Len(t, bus.msgs, 1)
	msg := bus.msgs[0]
	assert.Equal(t, "node-a", msg.Origin)
	assert.Equal(t, "conversation:conv-1", msg.Room)

	a.HandleBusMessage(msg)
	b.HandleBusMessage(msg)
	assert.Equal(t, []string{models.EventNewMessage}, drain(t, remote))

	b.HandleBusMessage(BusMessage{Origin: "node-c", Room: "bogus", Frame: msg.Frame})
	assert.Empty(t, drain(t, remote))
}

func TestNewRegistry_GeneratesOrigin(t *testing.T) {
	assert.NotEmpty(t, NewRegistry("", nil, nil).Origin())
	assert.NotEqual(t, NewRegistry("", nil, nil).Origin(), NewRegistry("", nil, nil).Origin())
}
