package realtime

import (
	"context"
	"fmt"

	"home-services/realtime-service/internal/models"
	"home-services/realtime-service/internal/services"
)

type handlerFunc func(ctx context.Context, c *Client, env Envelope) error

// Router maps client events to the services. Every handler receives the
// identity bound at handshake through the client.
type Router struct {
	registry      *Registry
	chat          *services.ChatService
	notifications *services.NotificationService
	support       *services.SupportService

	handlers map[string]handlerFunc
}

func NewRouter(registry *Registry, chat *services.ChatService, notifications *services.NotificationService, support *services.SupportService) *Router {
	r := &Router{
		registry:      registry,
		chat:          chat,
		notifications: notifications,
		support:       support,
	}
	r.handlers = map[string]handlerFunc{
		EventJoinConversation:         r.joinConversation,
		EventLeaveConversation:        r.leaveConversation,
		EventSendMessage:              r.sendMessage,
		EventTypingStart:              r.typing(true),
		EventTypingStop:               r.typing(false),
		EventMarkMessagesRead:         r.markMessagesRead,
		EventGetMessages:              r.getMessages,
		EventJoinNotifications:        r.joinNotifications,
		EventMarkNotificationRead:     r.markNotificationRead,
		EventMarkAllNotificationsRead: r.markAllNotificationsRead,
		EventGetUnreadCount:           r.getUnreadCount,
		EventJoinSupportTicket:        r.joinSupportTicket,
		EventLeaveSupportTicket:       r.leaveSupportTicket,
		EventSupportMessage:           r.supportMessage,
		EventSupportTypingStart:       r.supportTyping(true),
		EventSupportTypingStop:        r.supportTyping(false),
		EventJoinSupportDashboard:     r.joinSupportDashboard,
		EventUpdateSupportTicket:      r.updateSupportTicket,
	}
	return r
}

func (r *Router) Handles(event string) bool {
	_, ok := r.handlers[event]
	return ok
}

// Dispatch runs the handler for env. The returned error is meant for the
// sender only; it never closes the connection.
func (r *Router) Dispatch(ctx context.Context, c *Client, env Envelope) error {
	h, ok := r.handlers[env.Event]
	if !ok {
		return fmt.Errorf("%w: unsupported event %q", models.ErrValidation, env.Event)
	}
	return h(ctx, c, env)
}

func (r *Router) joinFunc(c *Client) services.JoinFunc {
	return func(room models.RoomKey) error {
		return r.registry.Join(c, room)
	}
}

// --- direct chat ---

func (r *Router) joinConversation(ctx context.Context, c *Client, env Envelope) error {
	var p ConversationRef
	if err := decode(env.Data, &p); err != nil {
		return err
	}
	_, err := r.chat.JoinConversation(ctx, c.Identity, p.ConversationID, r.joinFunc(c))
	return err
}

func (r *Router) leaveConversation(_ context.Context, c *Client, env Envelope) error {
	var p ConversationRef
	if err := decode(env.Data, &p); err != nil {
		return err
	}
	r.registry.Leave(c, models.ConversationRoom(p.ConversationID))
	return nil
}

func (r *Router) sendMessage(ctx context.Context, c *Client, env Envelope) error {
	var p SendMessagePayload
	if err := decode(env.Data, &p); err != nil {
		return err
	}
	_, err := r.chat.Send(ctx, c.Identity, services.SendInput{
		ConversationID: p.ConversationID,
		Text:           p.Content.Text,
		Media:          p.Content.Media,
		Kind:           p.MessageType,
	})
	return err
}

// typing only reaches the room the sender already joined, so the
// participant check was done at join time.
func (r *Router) typing(isTyping bool) handlerFunc {
	return func(ctx context.Context, c *Client, env Envelope) error {
		var p ConversationRef
		if err := decode(env.Data, &p); err != nil {
			return err
		}
		room := models.ConversationRoom(p.ConversationID)
		if !r.registry.InRoom(c, room) {
			return fmt.Errorf("%w: join the conversation first", models.ErrForbidden)
		}
		r.registry.EmitExcept(ctx, room, c.ID(), models.EventUserTyping, models.TypingPayload{
			UserID:         c.Identity.UserID,
			ConversationID: p.ConversationID,
			IsTyping:       isTyping,
		})
		return nil
	}
}

func (r *Router) markMessagesRead(ctx context.Context, c *Client, env Envelope) error {
	var p ConversationRef
	if err := decode(env.Data, &p); err != nil {
		return err
	}
	_, err := r.chat.MarkRead(ctx, c.Identity, p.ConversationID)
	return err
}

func (r *Router) getMessages(ctx context.Context, c *Client, env Envelope) error {
	var p GetMessagesPayload
	if err := decode(env.Data, &p); err != nil {
		return err
	}
	q := models.HistoryQuery{Limit: p.Limit}
	if p.Before != nil {
		q.Before = *p.Before
	}
	msgs, err := r.chat.History(ctx, c.Identity, p.ConversationID, q)
	if err != nil {
		return err
	}
	r.registry.SendTo(c, models.EventMessagesHistory, MessagesHistoryPayload{
		ConversationID: p.ConversationID,
		Messages:       msgs,
	})
	return nil
}

// --- notifications ---

func (r *Router) joinNotifications(ctx context.Context, c *Client, env Envelope) error {
	var p JoinNotificationsPayload
	if err := decode(env.Data, &p); err != nil {
		return err
	}
	userID := p.UserID
	if userID == "" {
		userID = c.Identity.UserID
	}

	res, err := r.notifications.JoinChannel(ctx, c.Identity, userID, r.joinFunc(c))
	if err != nil {
		return err
	}
	r.registry.SendTo(c, models.EventNotificationJoined, NotificationJoinedPayload{
		UserID:      userID,
		UnreadCount: res.UnreadCount,
	})
	r.registry.SendTo(c, models.EventUnreadCount, UnreadCountPayload{Count: res.UnreadCount})
	return nil
}

// replyToUser emits to the caller's notification channel so every tab of the
// user sees the change, and falls back to the caller alone when it never
// joined that channel.
func (r *Router) replyToUser(ctx context.Context, c *Client, event string, payload any) {
	room := models.NotifyRoom(c.Identity.UserID)
	r.registry.Emit(ctx, room, event, payload)
	if !r.registry.InRoom(c, room) {
		r.registry.SendTo(c, event, payload)
	}
}

func (r *Router) markNotificationRead(ctx context.Context, c *Client, env Envelope) error {
	var p NotificationRef
	if err := decode(env.Data, &p); err != nil {
		return err
	}
	unread, err := r.notifications.MarkRead(ctx, c.Identity.UserID, p.NotificationID)
	if err != nil {
		return err
	}
	r.replyToUser(ctx, c, models.EventNotificationRead, NotificationReadPayload{
		NotificationID: p.NotificationID,
		UnreadCount:    unread,
	})
	return nil
}

func (r *Router) markAllNotificationsRead(ctx context.Context, c *Client, env Envelope) error {
	if err := decode(env.Data, &struct{}{}); err != nil {
		return err
	}
	marked, err := r.notifications.MarkAllRead(ctx, c.Identity.UserID)
	if err != nil {
		return err
	}
	r.replyToUser(ctx, c, models.EventAllNotificationsRead, AllNotificationsReadPayload{MarkedCount: marked})
	return nil
}

func (r *Router) getUnreadCount(ctx context.Context, c *Client, env Envelope) error {
	if err := decode(env.Data, &struct{}{}); err != nil {
		return err
	}
	count, err := r.notifications.UnreadCount(ctx, c.Identity.UserID)
	if err != nil {
		return err
	}
	r.registry.SendTo(c, models.EventUnreadCount, UnreadCountPayload{Count: count})
	return nil
}

// --- support ---

func (r *Router) joinSupportTicket(ctx context.Context, c *Client, env Envelope) error {
	var p TicketRef
	if err := decode(env.Data, &p); err != nil {
		return err
	}
	res, err := r.support.JoinTicket(ctx, c.Identity, p.TicketID, r.joinFunc(c))
	if err != nil {
		return err
	}
	r.registry.SendTo(c, models.EventSupportTicketJoined, res)
	return nil
}

func (r *Router) leaveSupportTicket(_ context.Context, c *Client, env Envelope) error {
	var p TicketRef
	if err := decode(env.Data, &p); err != nil {
		return err
	}
	r.registry.Leave(c, models.TicketRoom(p.TicketID))
	return nil
}

func (r *Router) supportMessage(ctx context.Context, c *Client, env Envelope) error {
	var p SupportSendPayload
	if err := decode(env.Data, &p); err != nil {
		return err
	}
	_, err := r.support.SendMessage(ctx, c.Identity, services.SupportSendInput{
		TicketID: p.TicketID,
		Text:     p.Content.Text,
		Media:    p.Content.Media,
		Kind:     p.MessageType,
	})
	return err
}

func (r *Router) supportTyping(isTyping bool) handlerFunc {
	return func(ctx context.Context, c *Client, env Envelope) error {
		var p TicketRef
		if err := decode(env.Data, &p); err != nil {
			return err
		}
		room := models.TicketRoom(p.TicketID)
		if !r.registry.InRoom(c, room) {
			return fmt.Errorf("%w: join the ticket first", models.ErrForbidden)
		}
		r.registry.EmitExcept(ctx, room, c.ID(), models.EventSupportTyping, models.TypingPayload{
			UserID:   c.Identity.UserID,
			TicketID: p.TicketID,
			IsTyping: isTyping,
		})
		return nil
	}
}

func (r *Router) joinSupportDashboard(ctx context.Context, c *Client, env Envelope) error {
	if err := decode(env.Data, &struct{}{}); err != nil {
		return err
	}
	tickets, err := r.support.JoinDashboard(ctx, c.Identity, r.joinFunc(c))
	if err != nil {
		return err
	}
	r.registry.SendTo(c, models.EventDashboardJoined, DashboardJoinedPayload{Tickets: tickets})
	return nil
}

func (r *Router) updateSupportTicket(ctx context.Context, c *Client, env Envelope) error {
	var p UpdateTicketPayload
	if err := decode(env.Data, &p); err != nil {
		return err
	}
	_, err := r.support.UpdateStatus(ctx, c.Identity, p.TicketID, models.TicketStatusUpdate{Status: p.Status})
	return err
}
