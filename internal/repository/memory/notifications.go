package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"home-services/realtime-service/internal/models"
)

type Notifications struct {
	mu     sync.Mutex
	notifs []models.Notification
}

func NewNotifications() *Notifications {
	return &Notifications{}
}

func (s *Notifications) Create(_ context.Context, notif *models.Notification) error {
	notif.ID = primitive.NewObjectID()
	notif.CreatedAt = time.Now().UTC()
	notif.Read = false
	notif.ReadAt = nil

	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifs = append(s.notifs, *notif)
	return nil
}

func (s *Notifications) CreateMany(ctx context.Context, notifs []*models.Notification) error {
	for _, n := range notifs {
		if err := s.Create(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

func (s *Notifications) ListByUser(_ context.Context, userID string, limit, offset int64) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := []models.Notification{}
	for _, n := range s.notifs {
		if n.UserID == userID {
			result = append(result, n)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if offset >= int64(len(result)) {
		return []models.Notification{}, nil
	}
	result = result[offset:]
	if limit > 0 && int64(len(result)) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Notifications) MarkAsRead(_ context.Context, id primitive.ObjectID, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifs {
		n := &s.notifs[i]
		if n.ID == id && n.UserID == userID {
			if !n.Read {
				n.Read, n.ReadAt = true, timePtr(at)
			}
			return nil
		}
	}
	return models.ErrNotFound
}

func (s *Notifications) MarkAllAsRead(_ context.Context, userID string, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for i := range s.notifs {
		n := &s.notifs[i]
		if n.UserID == userID && !n.Read {
			n.Read, n.ReadAt = true, timePtr(at)
			count++
		}
	}
	return count, nil
}

func (s *Notifications) CountUnread(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, n := range s.notifs {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (s *Notifications) MarkPendingDelivered(_ context.Context, userID string, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for i := range s.notifs {
		n := &s.notifs[i]
		if n.UserID == userID && !n.Delivered {
			n.Delivered, n.DeliveredAt = true, timePtr(at)
			count++
		}
	}
	return count, nil
}

func (s *Notifications) Delete(_ context.Context, id primitive.ObjectID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.notifs {
		if n.ID == id && n.UserID == userID {
			s.notifs = append(s.notifs[:i], s.notifs[i+1:]...)
			return nil
		}
	}
	return models.ErrNotFound
}

// ForUser returns a snapshot of userID's notifications in insertion order.
func (s *Notifications) ForUser(userID string) []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.Notification
	for _, n := range s.notifs {
		if n.UserID == userID {
			result = append(result, n)
		}
	}
	return result
}

// Engagements records accepted quotes.
type Engagements struct {
	mu       sync.Mutex
	accepted []models.Quote
}

func NewEngagements() *Engagements {
	return &Engagements{}
}

func (s *Engagements) Accept(providerID, clientID, jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accepted = append(s.accepted, models.Quote{
		ID:         primitive.NewObjectID(),
		JobID:      jobID,
		ProviderID: providerID,
		ClientID:   clientID,
		Status:     models.QuoteAccepted,
	})
}

func (s *Engagements) HasAcceptedEngagement(_ context.Context, providerID, clientID, jobID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range s.accepted {
		if q.ProviderID == providerID && q.ClientID == clientID && (jobID == "" || q.JobID == jobID) {
			return true, nil
		}
	}
	return false, nil
}

// Users is a fixed role directory.
type Users struct {
	mu    sync.Mutex
	roles map[string]string
}

func NewUsers() *Users {
	return &Users{roles: make(map[string]string)}
}

func (s *Users) Add(userID, role string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[userID] = role
}

func (s *Users) ListIDsByRoles(_ context.Context, roles []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, role := range s.roles {
		for _, r := range roles {
			if role == r {
				ids = append(ids, id)
				break
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}
