package models

import "time"

// Server to client event names.
const (
	EventNewMessage           = "new-message"
	EventMessageNotification  = "message-notification"
	EventMessagesRead         = "messages-read"
	EventMessagesDelivered    = "messages-delivered"
	EventMessagesHistory      = "messages-history"
	EventUserTyping           = "user-typing"
	EventUserJoinedChat       = "user-joined-chat"
	EventUserStatusChanged    = "user-status-changed"
	EventNewNotification      = "new-notification"
	EventNotificationJoined   = "notification-joined"
	EventNotificationRead     = "notification-read"
	EventAllNotificationsRead = "all-notifications-read"
	EventUnreadCount          = "unread-count"
	EventNewSupportMessage    = "new-support-message"
	EventNewSupportTicket     = "new-support-ticket"
	EventSupportTicketJoined  = "support-ticket-joined"
	EventSupportTicketUpdated = "support-ticket-updated"
	EventSupportTyping        = "support-user-typing"
	EventDashboardJoined      = "support-dashboard-joined"
	EventError                = "error"
)

type MessageNotificationPayload struct {
	ConversationID string   `json:"conversationId"`
	SenderID       string   `json:"senderId"`
	Message        *Message `json:"message"`
}

type MessagesReadPayload struct {
	UserID         string    `json:"userId"`
	ConversationID string    `json:"conversationId"`
	Count          int64     `json:"count"`
	ReadAt         time.Time `json:"readAt"`
}

type MessagesDeliveredPayload struct {
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId"`
	Count          int64  `json:"count"`
}

type UserJoinedChatPayload struct {
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId"`
}

type TypingPayload struct {
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId,omitempty"`
	TicketID       string `json:"ticketId,omitempty"`
	IsTyping       bool   `json:"isTyping"`
}

type UserStatusPayload struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}

type SupportMessagePayload struct {
	Ticket  *Ticket         `json:"ticket"`
	Message *SupportMessage `json:"message"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Event   string `json:"event,omitempty"`
}
