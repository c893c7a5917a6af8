package models

import (
	"fmt"
	"strings"
)

type RoomKind uint8

const (
	RoomConversation RoomKind = iota + 1
	RoomTicket
	RoomUserNotify
	RoomDashboard
)

// RoomKey identifies a broadcast group. Construct it with one of the
// constructors below; the zero value is invalid.
type RoomKey struct {
	kind RoomKind
	id   string
}

func ConversationRoom(conversationID string) RoomKey {
	return RoomKey{kind: RoomConversation, id: conversationID}
}

func TicketRoom(ticketID string) RoomKey {
	return RoomKey{kind: RoomTicket, id: ticketID}
}

func NotifyRoom(userID string) RoomKey {
	return RoomKey{kind: RoomUserNotify, id: userID}
}

func DashboardRoom() RoomKey {
	return RoomKey{kind: RoomDashboard}
}

func (k RoomKey) Kind() RoomKind { return k.kind }
func (k RoomKey) ID() string     { return k.id }

func (k RoomKey) Valid() bool {
	switch k.kind {
	case RoomDashboard:
		return true
	case RoomConversation, RoomTicket, RoomUserNotify:
		return k.id != ""
	default:
		return false
	}
}

func (k RoomKey) String() string {
	switch k.kind {
	case RoomConversation:
		return "conversation:" + k.id
	case RoomTicket:
		return "support:" + k.id
	case RoomUserNotify:
		return "notify:" + k.id
	case RoomDashboard:
		return "support:dashboard"
	default:
		return ""
	}
}

// ParseRoomKey is the inverse of RoomKey.String.
func ParseRoomKey(s string) (RoomKey, error) {
	prefix, id, ok := strings.Cut(s, ":")
	if !ok || id == "" {
		return RoomKey{}, fmt.Errorf("%w: room key %q", ErrValidation, s)
	}
	var k RoomKey
	switch prefix {
	case "conversation":
		k = ConversationRoom(id)
	case "support":
		if id == "dashboard" {
			k = DashboardRoom()
		} else {
			k = TicketRoom(id)
		}
	case "notify":
		k = NotifyRoom(id)
	default:
		return RoomKey{}, fmt.Errorf("%w: room key %q", ErrValidation, s)
	}
	return k, nil
}

// CanJoin applies the per-kind join policy that does not need the store:
// the dashboard is agent-only and a notification channel belongs to one user.
// Conversation and ticket rooms are checked against participants by the services.
func (k RoomKey) CanJoin(id Identity) error {
	switch k.kind {
	case RoomDashboard:
		if !id.IsAgent() {
			return fmt.Errorf("%w: support dashboard is restricted to agents", ErrForbidden)
		}
		return nil
	case RoomUserNotify:
		if k.id != id.UserID {
			return fmt.Errorf("%w: cannot join another user's notifications", ErrForbidden)
		}
		return nil
	case RoomConversation, RoomTicket:
		return nil
	default:
		return fmt.Errorf("%w: invalid room", ErrValidation)
	}
}
