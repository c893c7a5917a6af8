package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"home-services/realtime-service/internal/models"
)

const (
	OrderEventsChannel   = "order_events"
	SupportEventsChannel = "support_events"
	AdminEventsChannel   = "admin_events"
	QuoteEventsChannel   = "quote_events"
)

// EventPayload is the message other marketplace services publish on Redis.
type EventPayload struct {
	UserID    string            `json:"user_id"`
	Role      string            `json:"role"`
	EventType string            `json:"event_type,omitempty"`
	Title     string            `json:"title,omitempty"`
	Message   string            `json:"message"`
	ExtraData map[string]string `json:"extra_data,omitempty"`
}

// ConversationOpener creates the chat thread for a newly accepted quote.
type ConversationOpener interface {
	CreateConversation(ctx context.Context, req models.CreateConversationRequest) (*models.Conversation, bool, error)
}

// EventSubscriber turns system events into notifications.
type EventSubscriber struct {
	notifier *NotificationService
	chats    ConversationOpener
	redis    *redis.Client
}

func NewEventSubscriber(notifier *NotificationService, chats ConversationOpener, rdb *redis.Client) *EventSubscriber {
	return &EventSubscriber{notifier: notifier, chats: chats, redis: rdb}
}

func (s *EventSubscriber) Channels() []string {
	return []string{OrderEventsChannel, SupportEventsChannel, AdminEventsChannel, QuoteEventsChannel}
}

// ProcessEvent handles one event published on channel.
func (s *EventSubscriber) ProcessEvent(ctx context.Context, channel string, payload []byte) error {
	var event EventPayload
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("%w: failed to unmarshal event: %w", models.ErrValidation, err)
	}

	in := models.NotificationInput{
		Message:  event.Message,
		Data:     extraData(event.ExtraData),
		Priority: models.NotifyNormal,
	}

	switch channel {
	case OrderEventsChannel:
		in.Type = models.TypeOrderEvent
		in.Title = formatOrderTitle(event.EventType)
	case SupportEventsChannel:
		in.Type = models.TypeSupportMessage
		in.Title = "Message from support"
	case AdminEventsChannel:
		in.Type = models.TypeAdminAlert
		in.Title = withDefault(event.Title, "Administrative alert")
		in.Priority = models.NotifyHigh
		if event.UserID == "" {
			_, err := s.notifier.NotifyAdmins(ctx, in)
			return err
		}
	case QuoteEventsChannel:
		if event.EventType != models.QuoteAccepted {
			in.Type = models.TypeSystemMessage
			in.Title = withDefault(event.Title, "Quote update")
			break
		}
		in.Type = models.TypeQuoteAccepted
		in.Title = "Your quote was accepted"
		if err := s.openConversation(ctx, event.ExtraData); err != nil {
			return err
		}
	default:
		in.Type = models.TypeSystemMessage
		in.Title = withDefault(event.Title, "System notification")
	}

	if event.UserID == "" {
		return fmt.Errorf("%w: event on %s has no user_id", models.ErrValidation, channel)
	}
	_, err := s.notifier.Notify(ctx, event.UserID, in)
	return err
}

func (s *EventSubscriber) openConversation(ctx context.Context, data map[string]string) error {
	providerID, clientID := data["provider_id"], data["client_id"]
	if s.chats == nil || providerID == "" || clientID == "" {
		return nil
	}
	conv, created, err := s.chats.CreateConversation(ctx, models.CreateConversationRequest{
		Participants: []models.Participant{
			{UserID: providerID, Role: models.RoleProvider},
			{UserID: clientID, Role: models.RoleUser},
		},
		EngagementID: data["job_id"],
	})
	if err != nil {
		return err
	}
	if created {
		log.Info().Str("conversation_id", conv.ID.Hex()).Str("job_id", data["job_id"]).Msg("[EVENTS] conversation opened for accepted quote")
	}
	return nil
}

func formatOrderTitle(eventType string) string {
	switch eventType {
	case "created":
		return "New order created"
	case "assigned":
		return "Order assigned"
	case "completed":
		return "Order completed"
	case "cancelled":
		return "Order cancelled"
	case "reminder":
		return "Order reminder"
	default:
		return "Order update"
	}
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func extraData(in map[string]string) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Start subscribes to the system event channels and blocks until ctx is done.
func (s *EventSubscriber) Start(ctx context.Context) {
	channels := s.Channels()

	pubsub := s.redis.Subscribe(ctx, channels...)
	defer pubsub.Close()

	log.Info().Strs("channels", channels).Msg("[EVENTS] subscribed to redis channels")

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := s.ProcessEvent(ctx, msg.Channel, []byte(msg.Payload)); err != nil {
				log.Error().Err(err).Str("channel", msg.Channel).Msg("[EVENTS] error processing event")
			}
		case <-ctx.Done():
			log.Info().Msg("[EVENTS] stopping redis subscribers")
			return
		}
	}
}
