package realtime

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"home-services/realtime-service/internal/models"
	"home-services/realtime-service/internal/services"
	"home-services/realtime-service/internal/utils/validator"
)

// SubprotocolV1 is the protocol name negotiated on the upgrade. The
// credential may travel next to it as "bearer.<token>".
const SubprotocolV1 = "realtime.v1"

// Client to server event names.
const (
	EventJoinConversation         = "join-conversation"
	EventLeaveConversation        = "leave-conversation"
	EventSendMessage              = "send-message"
	EventTypingStart              = "typing-start"
	EventTypingStop               = "typing-stop"
	EventMarkMessagesRead         = "mark-messages-read"
	EventGetMessages              = "get-messages"
	EventJoinNotifications        = "join-notifications"
	EventMarkNotificationRead     = "mark-notification-read"
	EventMarkAllNotificationsRead = "mark-all-notifications-read"
	EventGetUnreadCount           = "get-unread-count"
	EventJoinSupportTicket        = "join-support-ticket"
	EventLeaveSupportTicket       = "leave-support-ticket"
	EventSupportMessage           = "support-message"
	EventSupportTypingStart       = "support-typing-start"
	EventSupportTypingStop        = "support-typing-stop"
	EventJoinSupportDashboard     = "join-support-dashboard"
	EventUpdateSupportTicket      = "update-support-ticket"
)

// Envelope is the frame exchanged in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

func encodeFrame(event string, payload any) ([]byte, error) {
	return json.Marshal(outbound{Event: event, Data: payload})
}

type ConversationRef struct {
	ConversationID string `json:"conversationId" validate:"required"`
}

type TicketRef struct {
	TicketID string `json:"ticketId" validate:"required"`
}

// NotificationRef is the canonical mark-notification-read payload. The
// legacy {data:{notificationId}} wrapper is rejected.
type NotificationRef struct {
	NotificationID string `json:"notificationId" validate:"required"`
}

type JoinNotificationsPayload struct {
	UserID string `json:"userId"`
}

// MessageContent accepts either a plain string or {text, media}.
type MessageContent struct {
	Text  string                `json:"text"`
	Media []services.MediaInput `json:"media,omitempty"`
}

func (c *MessageContent) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &c.Text)
	}
	type plain MessageContent
	var p plain
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return err
	}
	*c = MessageContent(p)
	return nil
}

type SendMessagePayload struct {
	ConversationID string             `json:"conversationId" validate:"required"`
	Content        MessageContent     `json:"content"`
	MessageType    models.MessageKind `json:"messageType"`
}

type SupportSendPayload struct {
	TicketID    string             `json:"ticketId" validate:"required"`
	Content     MessageContent     `json:"content"`
	MessageType models.MessageKind `json:"messageType"`
}

type UpdateTicketPayload struct {
	TicketID string              `json:"ticketId" validate:"required"`
	Status   models.TicketStatus `json:"status" validate:"required"`
}

type GetMessagesPayload struct {
	ConversationID string     `json:"conversationId" validate:"required"`
	Before         *time.Time `json:"before,omitempty"`
	Limit          int64      `json:"limit,omitempty" validate:"omitempty,min=1,max=200"`
}

// Server replies that are not shared with the services.
type NotificationJoinedPayload struct {
	UserID      string `json:"userId"`
	UnreadCount int64  `json:"unreadCount"`
}

type NotificationReadPayload struct {
	NotificationID string `json:"notificationId"`
	UnreadCount    int64  `json:"unreadCount"`
}

type AllNotificationsReadPayload struct {
	MarkedCount int64 `json:"markedCount"`
}

type UnreadCountPayload struct {
	Count int64 `json:"count"`
}

type MessagesHistoryPayload struct {
	ConversationID string           `json:"conversationId"`
	Messages       []models.Message `json:"messages"`
}

type DashboardJoinedPayload struct {
	Tickets []models.Ticket `json:"tickets"`
}

// decode reads an event payload strictly: unknown fields are an error and
// validate tags are enforced.
func decode(raw json.RawMessage, dst any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid payload: %s", models.ErrValidation, strings.TrimPrefix(err.Error(), "json: "))
	}
	if err := validator.Struct(dst); err != nil {
		return fmt.Errorf("%w: %s", models.ErrValidation, err.Error())
	}
	return nil
}
