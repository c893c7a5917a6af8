package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"home-services/realtime-service/internal/models"
)

type Support struct {
	mu       sync.Mutex
	tickets  map[primitive.ObjectID]models.Ticket
	messages []models.SupportMessage
}

func NewSupport() *Support {
	return &Support{tickets: make(map[primitive.ObjectID]models.Ticket)}
}

func (s *Support) CreateTicket(_ context.Context, ticket *models.Ticket) error {
	now := time.Now().UTC()
	ticket.ID = primitive.NewObjectID()
	ticket.Status = models.StatusOpen
	ticket.AssignedAgentID = ""
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	ticket.LastActivityAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets[ticket.ID] = *ticket
	return nil
}

func (s *Support) GetTicketByID(_ context.Context, id primitive.ObjectID) (*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &t, nil
}

func (s *Support) GetTicketsByRequester(_ context.Context, requesterID string) ([]models.Ticket, error) {
	return s.find(func(t models.Ticket) bool { return t.RequesterID == requesterID }), nil
}

func (s *Support) GetAllTickets(_ context.Context, status models.TicketStatus) ([]models.Ticket, error) {
	return s.find(func(t models.Ticket) bool { return status == "" || t.Status == status }), nil
}

func (s *Support) find(match func(models.Ticket) bool) []models.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := []models.Ticket{}
	for _, t := range s.tickets {
		if match(t) {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result
}

func (s *Support) UpdateTicketStatus(_ context.Context, id primitive.ObjectID, from, to models.TicketStatus) (*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if t.Status != from {
		return nil, models.ErrConflict
	}
	t.Status = to
	t.UpdatedAt = time.Now().UTC()
	s.tickets[id] = t
	return &t, nil
}

func (s *Support) AssignIfUnassigned(_ context.Context, id primitive.ObjectID, agentID string) (*models.Ticket, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok || t.Status != models.StatusOpen || t.AssignedAgentID != "" {
		return nil, false, nil
	}
	t.AssignedAgentID = agentID
	t.Status = models.StatusInProgress
	t.UpdatedAt = time.Now().UTC()
	s.tickets[id] = t
	return &t, true, nil
}

func (s *Support) AssignTicket(_ context.Context, id primitive.ObjectID, agentID string) (*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	switch t.Status {
	case models.StatusOpen:
		t.Status = models.StatusInProgress
	case models.StatusInProgress:
	default:
		return nil, models.ErrConflict
	}
	t.AssignedAgentID = agentID
	t.UpdatedAt = time.Now().UTC()
	s.tickets[id] = t
	return &t, nil
}

func (s *Support) TouchActivity(_ context.Context, id primitive.ObjectID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tickets[id]; ok {
		t.LastActivityAt = at
		s.tickets[id] = t
	}
	return nil
}

func (s *Support) AddMessage(_ context.Context, msg *models.SupportMessage) error {
	msg.ID = primitive.NewObjectID()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, *msg)
	return nil
}

func (s *Support) GetMessagesByTicket(_ context.Context, ticketID primitive.ObjectID) ([]models.SupportMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := []models.SupportMessage{}
	for _, m := range s.messages {
		if m.TicketID == ticketID {
			result = append(result, m)
		}
	}
	return result, nil
}
