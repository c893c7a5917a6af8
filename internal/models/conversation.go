package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Participant struct {
	UserID string `bson:"user_id" json:"user_id" validate:"required"`
	Role   Role   `bson:"role" json:"role" validate:"required"`
}

// Conversation is a direct two-party thread, optionally tied to a job.
type Conversation struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Participants   []Participant      `bson:"participants" json:"participants" validate:"len=2,dive"`
	ParticipantIDs []string           `bson:"participant_ids" json:"-"`
	EngagementID   string             `bson:"engagement_id,omitempty" json:"engagement_id,omitempty"`
	LastActivityAt time.Time          `bson:"last_activity_at" json:"last_activity_at"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
}

func (c *Conversation) Participant(userID string) (Participant, bool) {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return p, true
		}
	}
	return Participant{}, false
}

func (c *Conversation) HasParticipant(userID string) bool {
	_, ok := c.Participant(userID)
	return ok
}

// Counterpart returns the other participant of a direct conversation.
func (c *Conversation) Counterpart(userID string) (Participant, bool) {
	if !c.HasParticipant(userID) {
		return Participant{}, false
	}
	for _, p := range c.Participants {
		if p.UserID != userID {
			return p, true
		}
	}
	return Participant{}, false
}

// CreateConversationRequest is sent by the marketplace when two parties
// become eligible to talk, e.g. a quote was submitted on a job.
type CreateConversationRequest struct {
	Participants []Participant `json:"participants" validate:"len=2,dive"`
	EngagementID string        `json:"engagement_id"`
}
