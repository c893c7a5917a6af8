package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"home-services/realtime-service/internal/models"
	"home-services/realtime-service/internal/utils"
)

type ConversationRepository interface {
	Create(ctx context.Context, conv *models.Conversation) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Conversation, error)
	FindBetween(ctx context.Context, userA, userB, engagementID string) (*models.Conversation, error)
	ListByUser(ctx context.Context, userID string) ([]models.Conversation, error)
	TouchActivity(ctx context.Context, id primitive.ObjectID, at time.Time) error
}

type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	HasMessageFrom(ctx context.Context, conversationID primitive.ObjectID, senderID string) (bool, error)
	MarkDelivered(ctx context.Context, id primitive.ObjectID, recipientID string, at time.Time) (bool, error)
	MarkConversationDelivered(ctx context.Context, conversationID primitive.ObjectID, recipientID string, at time.Time) (int64, error)
	MarkConversationRead(ctx context.Context, conversationID primitive.ObjectID, recipientID string, at time.Time) (int64, error)
	History(ctx context.Context, conversationID primitive.ObjectID, q models.HistoryQuery) ([]models.Message, error)
	Search(ctx context.Context, conversationID primitive.ObjectID, query string, limit int64) ([]models.Message, error)
}

type SupportRepository interface {
	CreateTicket(ctx context.Context, ticket *models.Ticket) error
	GetTicketByID(ctx context.Context, id primitive.ObjectID) (*models.Ticket, error)
	GetTicketsByRequester(ctx context.Context, requesterID string) ([]models.Ticket, error)
	GetAllTickets(ctx context.Context, status models.TicketStatus) ([]models.Ticket, error)
	UpdateTicketStatus(ctx context.Context, id primitive.ObjectID, from, to models.TicketStatus) (*models.Ticket, error)
	AssignIfUnassigned(ctx context.Context, id primitive.ObjectID, agentID string) (*models.Ticket, bool, error)
	AssignTicket(ctx context.Context, id primitive.ObjectID, agentID string) (*models.Ticket, error)
	TouchActivity(ctx context.Context, id primitive.ObjectID, at time.Time) error
	AddMessage(ctx context.Context, msg *models.SupportMessage) error
	GetMessagesByTicket(ctx context.Context, ticketID primitive.ObjectID) ([]models.SupportMessage, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, notif *models.Notification) error
	CreateMany(ctx context.Context, notifs []*models.Notification) error
	ListByUser(ctx context.Context, userID string, limit, offset int64) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, id primitive.ObjectID, userID string, at time.Time) error
	MarkAllAsRead(ctx context.Context, userID string, at time.Time) (int64, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	MarkPendingDelivered(ctx context.Context, userID string, at time.Time) (int64, error)
	Delete(ctx context.Context, id primitive.ObjectID, userID string) error
}

type EngagementRepository interface {
	HasAcceptedEngagement(ctx context.Context, providerID, clientID, jobID string) (bool, error)
}

type UserDirectory interface {
	ListIDsByRoles(ctx context.Context, roles []string) ([]string, error)
}

// AttachmentStore keeps binary attachments outside the message store.
type AttachmentStore interface {
	Store(ctx context.Context, data []byte, folder, filename string) (utils.StoredObject, error)
	Remove(ctx context.Context, id string) error
}

type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*utils.TokenClaims, error)
}

// Emitter pushes events to live connections. Emission is best-effort: a room
// without members silently drops the event.
type Emitter interface {
	Emit(ctx context.Context, room models.RoomKey, event string, payload any)
	HasUser(room models.RoomKey, userID string) bool
}

// JoinFunc adds the calling connection to a room.
type JoinFunc func(room models.RoomKey) error
