// Package memory holds in-process implementations of the repositories. They
// back local development without MongoDB and the service tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"home-services/realtime-service/internal/models"
)

type Conversations struct {
	mu    sync.Mutex
	convs map[primitive.ObjectID]models.Conversation
}

func NewConversations() *Conversations {
	return &Conversations{convs: make(map[primitive.ObjectID]models.Conversation)}
}

func (s *Conversations) Create(_ context.Context, conv *models.Conversation) error {
	now := time.Now().UTC()
	conv.ID = primitive.NewObjectID()
	conv.ParticipantIDs = make([]string, 0, len(conv.Participants))
	for _, p := range conv.Participants {
		conv.ParticipantIDs = append(conv.ParticipantIDs, p.UserID)
	}
	conv.CreatedAt = now
	conv.LastActivityAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs[conv.ID] = *conv
	return nil
}

func (s *Conversations) GetByID(_ context.Context, id primitive.ObjectID) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &conv, nil
}

func (s *Conversations) FindBetween(_ context.Context, userA, userB, engagementID string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conv := range s.convs {
		if conv.EngagementID == engagementID && conv.HasParticipant(userA) && conv.HasParticipant(userB) {
			return &conv, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *Conversations) ListByUser(_ context.Context, userID string) ([]models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := []models.Conversation{}
	for _, conv := range s.convs {
		if conv.HasParticipant(userID) {
			result = append(result, conv)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].LastActivityAt.After(result[j].LastActivityAt) })
	return result, nil
}

func (s *Conversations) TouchActivity(_ context.Context, id primitive.ObjectID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[id]
	if !ok {
		return models.ErrNotFound
	}
	conv.LastActivityAt = at
	s.convs[id] = conv
	return nil
}

// Messages keeps messages in insertion order.
type Messages struct {
	mu   sync.Mutex
	msgs []models.Message
}

func NewMessages() *Messages {
	return &Messages{}
}

func (s *Messages) Create(_ context.Context, msg *models.Message) error {
	msg.ID = primitive.NewObjectID()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	msg.Delivered = false
	msg.DeliveredAt = nil
	msg.Read = false
	msg.ReadAt = nil

	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, *msg)
	return nil
}

func (s *Messages) HasMessageFrom(_ context.Context, conversationID primitive.ObjectID, senderID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.msgs {
		if m.ConversationID == conversationID && m.SenderID == senderID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Messages) MarkDelivered(_ context.Context, id primitive.ObjectID, recipientID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.msgs {
		m := &s.msgs[i]
		if m.ID == id && m.RecipientID == recipientID && !m.Delivered {
			m.Delivered, m.DeliveredAt = true, timePtr(at)
			return true, nil
		}
	}
	return false, nil
}

func (s *Messages) MarkConversationDelivered(_ context.Context, conversationID primitive.ObjectID, recipientID string, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for i := range s.msgs {
		m := &s.msgs[i]
		if m.ConversationID == conversationID && m.RecipientID == recipientID && !m.Delivered {
			m.Delivered, m.DeliveredAt = true, timePtr(at)
			n++
		}
	}
	return n, nil
}

func (s *Messages) MarkConversationRead(_ context.Context, conversationID primitive.ObjectID, recipientID string, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for i := range s.msgs {
		m := &s.msgs[i]
		if m.ConversationID != conversationID || m.RecipientID != recipientID || m.Read {
			continue
		}
		m.Read, m.ReadAt = true, timePtr(at)
		if m.DeliveredAt == nil {
			m.DeliveredAt = timePtr(at)
		}
		m.Delivered = true
		n++
	}
	return n, nil
}

func (s *Messages) History(_ context.Context, conversationID primitive.ObjectID, q models.HistoryQuery) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := []models.Message{}
	for _, m := range s.msgs {
		if m.ConversationID != conversationID {
			continue
		}
		if !q.Before.IsZero() && !m.CreatedAt.Before(q.Before) {
			continue
		}
		result = append(result, m)
	}
	if q.Limit > 0 && int64(len(result)) > q.Limit {
		result = result[int64(len(result))-q.Limit:]
	}
	return result, nil
}

// Search matches every query term case-insensitively.
func (s *Messages) Search(_ context.Context, conversationID primitive.ObjectID, query string, limit int64) ([]models.Message, error) {
	terms := strings.Fields(strings.ToLower(query))
	s.mu.Lock()
	defer s.mu.Unlock()
	result := []models.Message{}
	for _, m := range s.msgs {
		if m.ConversationID != conversationID {
			continue
		}
		text := strings.ToLower(m.Body.Text)
		matched := len(terms) > 0
		for _, t := range terms {
			if !strings.Contains(text, t) {
				matched = false
				break
			}
		}
		if matched {
			result = append(result, m)
		}
		if limit > 0 && int64(len(result)) == limit {
			break
		}
	}
	return result, nil
}

// All returns a snapshot of every stored message.
func (s *Messages) All() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message(nil), s.msgs...)
}

func timePtr(t time.Time) *time.Time { return &t }
