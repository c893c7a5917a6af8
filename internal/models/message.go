package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MessageKind string

const (
	KindText   MessageKind = "text"
	KindMedia  MessageKind = "media"
	KindSystem MessageKind = "system"
)

func (k MessageKind) Valid() bool {
	switch k {
	case KindText, KindMedia, KindSystem:
		return true
	}
	return false
}

// Attachment references a file held by the attachment store.
type Attachment struct {
	ID   string `bson:"id" json:"id"`
	URL  string `bson:"url" json:"url"`
	Type string `bson:"type,omitempty" json:"type,omitempty"`
	Name string `bson:"name,omitempty" json:"name,omitempty"`
}

type MessageBody struct {
	Text        string       `bson:"text" json:"text"`
	Attachments []Attachment `bson:"attachments,omitempty" json:"attachments,omitempty"`
}

func (b MessageBody) Empty() bool {
	return strings.TrimSpace(b.Text) == "" && len(b.Attachments) == 0
}

type Message struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ConversationID primitive.ObjectID `bson:"conversation_id" json:"conversation_id"`
	SenderID       string             `bson:"sender_id" json:"sender_id"`
	RecipientID    string             `bson:"recipient_id" json:"recipient_id"`
	Body           MessageBody        `bson:"body" json:"content"`
	Kind           MessageKind        `bson:"kind" json:"message_type"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
	Delivered      bool               `bson:"delivered" json:"delivered"`
	DeliveredAt    *time.Time         `bson:"delivered_at,omitempty" json:"delivered_at,omitempty"`
	Read           bool               `bson:"read" json:"read"`
	ReadAt         *time.Time         `bson:"read_at,omitempty" json:"read_at,omitempty"`
}

// HistoryQuery pages backwards through a conversation.
type HistoryQuery struct {
	Before time.Time
	Limit  int64
}
