package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"home-services/realtime-service/internal/models"
	"home-services/realtime-service/internal/utils/validator"
)

const (
	defaultNotificationPage = 20
	maxNotificationPage     = 100
)

type NotificationService struct {
	repo    NotificationRepository
	users   UserDirectory
	emitter Emitter
	tasks   *TaskRunner
	now     func() time.Time
}

func NewNotificationService(repo NotificationRepository, users UserDirectory, emitter Emitter, tasks *TaskRunner) *NotificationService {
	return &NotificationService{
		repo:    repo,
		users:   users,
		emitter: emitter,
		tasks:   tasks,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type JoinNotificationsResult struct {
	UnreadCount int64 `json:"unreadCount"`
	Delivered   int64 `json:"delivered"`
}

func validateInput(in *models.NotificationInput) error {
	if in.Priority == "" {
		in.Priority = models.NotifyNormal
	}
	if err := validator.Struct(in); err != nil {
		return fmt.Errorf("%w: %s", models.ErrValidation, err.Error())
	}
	return nil
}

func (s *NotificationService) build(userID string, in models.NotificationInput) *models.Notification {
	n := &models.Notification{
		UserID:   userID,
		Type:     in.Type,
		Title:    in.Title,
		Message:  in.Message,
		Data:     in.Data,
		Priority: in.Priority,
	}
	if s.emitter.HasUser(models.NotifyRoom(userID), userID) {
		at := s.now()
		n.Delivered = true
		n.DeliveredAt = &at
	}
	return n
}

// Notify persists a notification for userID and pushes it to the user's
// channel. No live connection is not an error: the record stays undelivered
// until the next join-notifications.
func (s *NotificationService) Notify(ctx context.Context, userID string, in models.NotificationInput) (*models.Notification, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: recipient is required", models.ErrValidation)
	}
	if err := validateInput(&in); err != nil {
		return nil, err
	}

	n := s.build(userID, in)
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to save notification: %w", err)
	}

	s.emitter.Emit(ctx, models.NotifyRoom(userID), models.EventNewNotification, n)

	log.Debug().
		Str("type", string(n.Type)).
		Str("user_id", n.UserID).
		Bool("delivered", n.Delivered).
		Msg("notification created")
	return n, nil
}

// NotifyAdmins writes one record per agent so each keeps its own read state.
func (s *NotificationService) NotifyAdmins(ctx context.Context, in models.NotificationInput) ([]*models.Notification, error) {
	if err := validateInput(&in); err != nil {
		return nil, err
	}

	ids, err := s.users.ListIDsByRoles(ctx, models.AgentRoles())
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	notifs := make([]*models.Notification, 0, len(ids))
	for _, id := range ids {
		notifs = append(notifs, s.build(id, in))
	}
	if err := s.repo.CreateMany(ctx, notifs); err != nil {
		return nil, fmt.Errorf("failed to save admin notifications: %w", err)
	}

	for _, n := range notifs {
		s.emitter.Emit(ctx, models.NotifyRoom(n.UserID), models.EventNewNotification, n)
	}
	return notifs, nil
}

// NotifyLater runs Notify as a background task.
func (s *NotificationService) NotifyLater(userID string, in models.NotificationInput) {
	s.tasks.Go("notify:"+string(in.Type), func(ctx context.Context) error {
		_, err := s.Notify(ctx, userID, in)
		return err
	})
}

// NotifyAdminsLater runs NotifyAdmins as a background task.
func (s *NotificationService) NotifyAdminsLater(in models.NotificationInput) {
	s.tasks.Go("notify-admins:"+string(in.Type), func(ctx context.Context) error {
		_, err := s.NotifyAdmins(ctx, in)
		return err
	})
}

// JoinChannel subscribes the connection to its own notification channel and
// flags every pending notification as delivered.
func (s *NotificationService) JoinChannel(ctx context.Context, id models.Identity, userID string, join JoinFunc) (*JoinNotificationsResult, error) {
	room := models.NotifyRoom(userID)
	if err := room.CanJoin(id); err != nil {
		return nil, err
	}
	if err := join(room); err != nil {
		return nil, err
	}

	delivered, err := s.repo.MarkPendingDelivered(ctx, id.UserID, s.now())
	if err != nil {
		return nil, err
	}
	unread, err := s.repo.CountUnread(ctx, id.UserID)
	if err != nil {
		return nil, err
	}
	return &JoinNotificationsResult{UnreadCount: unread, Delivered: delivered}, nil
}

// MarkRead marks one of the caller's notifications read and returns the new
// unread count. Somebody else's notification is reported as not found.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) (int64, error) {
	id, err := primitive.ObjectIDFromHex(notificationID)
	if err != nil {
		return 0, models.ErrInvalidID
	}
	if err := s.repo.MarkAsRead(ctx, id, userID, s.now()); err != nil {
		return 0, err
	}
	return s.repo.CountUnread(ctx, userID)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.repo.MarkAllAsRead(ctx, userID, s.now())
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *NotificationService) List(ctx context.Context, userID string, limit, offset int64) ([]models.Notification, error) {
	if limit <= 0 {
		limit = defaultNotificationPage
	}
	if limit > maxNotificationPage {
		limit = maxNotificationPage
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// Delete removes one of the caller's notifications.
func (s *NotificationService) Delete(ctx context.Context, userID, notificationID string) error {
	id, err := primitive.ObjectIDFromHex(notificationID)
	if err != nil {
		return models.ErrInvalidID
	}
	return s.repo.Delete(ctx, id, userID)
}
