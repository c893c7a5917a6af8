package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TicketStatus string

const (
	StatusOpen       TicketStatus = "open"
	StatusInProgress TicketStatus = "in_progress"
	StatusResolved   TicketStatus = "resolved"
	StatusClosed     TicketStatus = "closed"
)

var ticketTransitions = map[TicketStatus][]TicketStatus{
	StatusOpen:       {StatusInProgress, StatusClosed},
	StatusInProgress: {StatusResolved, StatusClosed},
	StatusResolved:   {StatusClosed},
}

// CanTransition reports whether a ticket may move from s to next.
// There is no way back to open: a new ticket has to be created.
func (s TicketStatus) CanTransition(next TicketStatus) bool {
	for _, allowed := range ticketTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type TicketPriority string

const (
	PriorityLow    TicketPriority = "low"
	PriorityMedium TicketPriority = "medium"
	PriorityHigh   TicketPriority = "high"
	PriorityUrgent TicketPriority = "urgent"
)

type Ticket struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RequesterID     string             `bson:"requester_id" json:"requester_id"`
	AssignedAgentID string             `bson:"assigned_agent_id,omitempty" json:"assigned_agent_id,omitempty"`
	Subject         string             `bson:"subject" json:"subject" validate:"required"`
	Category        string             `bson:"category" json:"category" validate:"required"`
	Priority        TicketPriority     `bson:"priority" json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Status          TicketStatus       `bson:"status" json:"status"`
	CreatedAt       time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time          `bson:"updated_at" json:"updated_at"`
	LastActivityAt  time.Time          `bson:"last_activity_at" json:"last_activity_at"`
}

// IsParticipant reports whether the identity may read and write in the ticket:
// the requester, the assigned agent, or any agent.
func (t *Ticket) IsParticipant(id Identity) bool {
	if t.RequesterID == id.UserID {
		return true
	}
	return id.IsAgent()
}

type SupportMessage struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TicketID   primitive.ObjectID `bson:"ticket_id" json:"ticket_id"`
	SenderID   string             `bson:"sender_id" json:"sender_id"`
	SenderRole Role               `bson:"sender_role" json:"sender_role"`
	Body       MessageBody        `bson:"body" json:"content"`
	Kind       MessageKind        `bson:"kind" json:"message_type"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
}

type CreateTicketRequest struct {
	Subject  string         `json:"subject" validate:"required,max=200"`
	Category string         `json:"category" validate:"required"`
	Priority TicketPriority `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Message  string         `json:"message" validate:"max=4000"`
}

type TicketStatusUpdate struct {
	Status TicketStatus `json:"status" validate:"required,oneof=resolved closed"`
}
