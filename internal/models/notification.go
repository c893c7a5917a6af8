package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationType string

const (
	TypeNewMessage     NotificationType = "new_message"
	TypeSupportMessage NotificationType = "support_message"
	TypeTicketCreated  NotificationType = "ticket_created"
	TypeTicketAssigned NotificationType = "ticket_assigned"
	TypeTicketUpdated  NotificationType = "ticket_updated"
	TypeQuoteAccepted  NotificationType = "quote_accepted"
	TypeOrderEvent     NotificationType = "order_event"
	TypeAdminAlert     NotificationType = "admin_alert"
	TypeSystemMessage  NotificationType = "system_message"
)

type NotificationPriority string

const (
	NotifyLow    NotificationPriority = "low"
	NotifyNormal NotificationPriority = "normal"
	NotifyHigh   NotificationPriority = "high"
	NotifyUrgent NotificationPriority = "urgent"
)

type Notification struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	UserID      string               `bson:"user_id" json:"user_id"`
	Type        NotificationType     `bson:"type" json:"type"`
	Title       string               `bson:"title" json:"title"`
	Message     string               `bson:"message" json:"message"`
	Data        map[string]any       `bson:"data,omitempty" json:"data,omitempty"`
	Priority    NotificationPriority `bson:"priority" json:"priority"`
	Delivered   bool                 `bson:"delivered" json:"delivered"`
	DeliveredAt *time.Time           `bson:"delivered_at,omitempty" json:"delivered_at,omitempty"`
	Read        bool                 `bson:"read" json:"read"`
	ReadAt      *time.Time           `bson:"read_at,omitempty" json:"read_at,omitempty"`
	CreatedAt   time.Time            `bson:"created_at" json:"created_at"`
}

// NotificationInput is what event producers hand to the fan-out service.
type NotificationInput struct {
	Type     NotificationType     `json:"type" validate:"required"`
	Title    string               `json:"title" validate:"required,max=200"`
	Message  string               `json:"message" validate:"max=2000"`
	Data     map[string]any       `json:"data,omitempty"`
	Priority NotificationPriority `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
}

// SendNotificationRequest is the body of the internal send endpoint.
type SendNotificationRequest struct {
	UserID string `json:"user_id" validate:"required"`
	NotificationInput
}
