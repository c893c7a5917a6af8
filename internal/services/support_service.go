package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"home-services/realtime-service/internal/models"
	"home-services/realtime-service/internal/utils/validator"
)

type SupportSendInput struct {
	TicketID string
	Text     string
	Media    []MediaInput
	Kind     models.MessageKind
}

// JoinTicketResult is what a connection receives after joining a ticket room.
type JoinTicketResult struct {
	Ticket   *models.Ticket          `json:"ticket"`
	Messages []models.SupportMessage `json:"messages"`
}

type SupportService struct {
	repo     SupportRepository
	users    UserDirectory
	authz    *AuthorizationEngine
	media    mediaUploader
	notifier *NotificationService
	emitter  Emitter
	now      func() time.Time
}

func NewSupportService(repo SupportRepository, users UserDirectory, authz *AuthorizationEngine, store AttachmentStore, notifier *NotificationService, emitter Emitter, tasks *TaskRunner) *SupportService {
	return &SupportService{
		repo:     repo,
		users:    users,
		authz:    authz,
		media:    mediaUploader{store: store, tasks: tasks},
		notifier: notifier,
		emitter:  emitter,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, models.ErrNotFound)
}

func (s *SupportService) loadTicket(ctx context.Context, rawID string) (*models.Ticket, error) {
	id, err := primitive.ObjectIDFromHex(rawID)
	if err != nil {
		return nil, models.ErrInvalidID
	}
	return s.repo.GetTicketByID(ctx, id)
}

func (s *SupportService) participantTicket(ctx context.Context, id models.Identity, rawID string) (*models.Ticket, error) {
	ticket, err := s.loadTicket(ctx, rawID)
	if err != nil {
		return nil, err
	}
	if !ticket.IsParticipant(id) {
		return nil, fmt.Errorf("%w: not a participant", models.ErrForbidden)
	}
	return ticket, nil
}

func requireAgent(id models.Identity) error {
	if !id.IsAgent() {
		return fmt.Errorf("%w: support agents only", models.ErrForbidden)
	}
	return nil
}

// isAgentAccount looks userID up in the account directory.
func (s *SupportService) isAgentAccount(ctx context.Context, userID string) (bool, error) {
	ids, err := s.users.ListIDsByRoles(ctx, models.AgentRoles())
	if err != nil {
		return false, fmt.Errorf("%w: %w", models.ErrDependency, err)
	}
	for _, id := range ids {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

// --- Tickets ---

func (s *SupportService) CreateTicket(ctx context.Context, requester models.Identity, req models.CreateTicketRequest) (*models.Ticket, error) {
	if err := validator.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrValidation, err.Error())
	}
	if req.Priority == "" {
		req.Priority = models.PriorityMedium
	}

	ticket := &models.Ticket{
		RequesterID: requester.UserID,
		Subject:     strings.TrimSpace(req.Subject),
		Category:    strings.TrimSpace(req.Category),
		Priority:    req.Priority,
	}
	if err := s.repo.CreateTicket(ctx, ticket); err != nil {
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}

	if text := strings.TrimSpace(req.Message); text != "" {
		msg := &models.SupportMessage{
			TicketID:   ticket.ID,
			SenderID:   requester.UserID,
			SenderRole: requester.Role,
			Body:       models.MessageBody{Text: text},
			Kind:       models.KindText,
			CreatedAt:  ticket.CreatedAt,
		}
		if err := s.repo.AddMessage(ctx, msg); err != nil {
			return nil, fmt.Errorf("failed to save first ticket message: %w", err)
		}
	}

	s.emitter.Emit(ctx, models.DashboardRoom(), models.EventNewSupportTicket, ticket)
	s.notifier.NotifyAdminsLater(models.NotificationInput{
		Type:     models.TypeTicketCreated,
		Title:    "New support ticket",
		Message:  ticket.Subject,
		Data:     map[string]any{"ticketId": ticket.ID.Hex(), "requesterId": ticket.RequesterID},
		Priority: ticketNotifyPriority(ticket.Priority),
	})

	log.Info().Str("ticket_id", ticket.ID.Hex()).Str("requester_id", ticket.RequesterID).Msg("[SUPPORT] ticket created")
	return ticket, nil
}

func ticketNotifyPriority(p models.TicketPriority) models.NotificationPriority {
	switch p {
	case models.PriorityUrgent:
		return models.NotifyUrgent
	case models.PriorityHigh:
		return models.NotifyHigh
	case models.PriorityLow:
		return models.NotifyLow
	default:
		return models.NotifyNormal
	}
}

// ListTickets returns every ticket to agents and only their own to everybody else.
func (s *SupportService) ListTickets(ctx context.Context, id models.Identity, status models.TicketStatus) ([]models.Ticket, error) {
	if id.IsAgent() {
		return s.repo.GetAllTickets(ctx, status)
	}
	return s.repo.GetTicketsByRequester(ctx, id.UserID)
}

func (s *SupportService) GetTicket(ctx context.Context, id models.Identity, ticketID string) (*models.Ticket, error) {
	return s.participantTicket(ctx, id, ticketID)
}

func (s *SupportService) Messages(ctx context.Context, id models.Identity, ticketID string) ([]models.SupportMessage, error) {
	ticket, err := s.participantTicket(ctx, id, ticketID)
	if err != nil {
		return nil, err
	}
	return s.repo.GetMessagesByTicket(ctx, ticket.ID)
}

func (s *SupportService) JoinTicket(ctx context.Context, id models.Identity, ticketID string, join JoinFunc) (*JoinTicketResult, error) {
	ticket, err := s.participantTicket(ctx, id, ticketID)
	if err != nil {
		return nil, err
	}
	if err := join(models.TicketRoom(ticket.ID.Hex())); err != nil {
		return nil, err
	}
	msgs, err := s.repo.GetMessagesByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	return &JoinTicketResult{Ticket: ticket, Messages: msgs}, nil
}

// JoinDashboard subscribes an agent to the feed of new tickets and messages
// and returns the tickets still waiting for an agent.
func (s *SupportService) JoinDashboard(ctx context.Context, id models.Identity, join JoinFunc) ([]models.Ticket, error) {
	room := models.DashboardRoom()
	if err := room.CanJoin(id); err != nil {
		return nil, err
	}
	if err := join(room); err != nil {
		return nil, err
	}
	return s.repo.GetAllTickets(ctx, models.StatusOpen)
}

// --- Chat messages ---

// SendMessage posts into a ticket. The first agent to answer an open,
// unassigned ticket takes it; later replies never change the assignee.
func (s *SupportService) SendMessage(ctx context.Context, sender models.Identity, in SupportSendInput) (*models.SupportMessage, error) {
	ticket, err := s.loadTicket(ctx, in.TicketID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.AuthorizeTicket(sender, "", ticket); err != nil {
		return nil, err
	}
	if ticket.Status == models.StatusClosed {
		return nil, fmt.Errorf("%w: ticket is closed", models.ErrForbidden)
	}

	kind, err := resolveKind(SendInput{Text: in.Text, Media: in.Media, Kind: in.Kind})
	if err != nil {
		return nil, err
	}
	attachments, uploaded, err := s.media.upload(ctx, "support/"+ticket.ID.Hex(), in.Media)
	if err != nil {
		return nil, err
	}

	assigned := false
	if sender.IsAgent() && ticket.Status == models.StatusOpen && ticket.AssignedAgentID == "" {
		updated, ok, err := s.repo.AssignIfUnassigned(ctx, ticket.ID, sender.UserID)
		if err != nil {
			s.media.discard(uploaded)
			return nil, err
		}
		if ok {
			ticket, assigned = updated, true
		}
	}

	msg := &models.SupportMessage{
		TicketID:   ticket.ID,
		SenderID:   sender.UserID,
		SenderRole: sender.Role,
		Body: models.MessageBody{
			Text:        strings.TrimSpace(in.Text),
			Attachments: attachments,
		},
		Kind:      kind,
		CreatedAt: s.now(),
	}
	if err := s.repo.AddMessage(ctx, msg); err != nil {
		s.media.discard(uploaded)
		return nil, fmt.Errorf("failed to save support message: %w", err)
	}
	if err := s.repo.TouchActivity(ctx, ticket.ID, msg.CreatedAt); err != nil {
		log.Warn().Err(err).Str("ticket_id", ticket.ID.Hex()).Msg("[SUPPORT] failed to update last activity")
	}
	ticket.LastActivityAt = msg.CreatedAt

	ticketID := ticket.ID.Hex()
	payload := models.SupportMessagePayload{Ticket: ticket, Message: msg}
	s.emitter.Emit(ctx, models.TicketRoom(ticketID), models.EventNewSupportMessage, payload)
	s.emitter.Emit(ctx, models.DashboardRoom(), models.EventNewSupportMessage, payload)
	if assigned {
		s.emitTicketUpdated(ctx, ticket)
	}

	s.notifyCounterpart(sender, ticket, msg)
	return msg, nil
}

func (s *SupportService) notifyCounterpart(sender models.Identity, ticket *models.Ticket, msg *models.SupportMessage) {
	in := models.NotificationInput{
		Type:     models.TypeSupportMessage,
		Title:    "New support message",
		Message:  preview(msg.Body),
		Data:     map[string]any{"ticketId": ticket.ID.Hex(), "messageId": msg.ID.Hex(), "senderId": sender.UserID},
		Priority: ticketNotifyPriority(ticket.Priority),
	}

	switch {
	case sender.UserID != ticket.RequesterID:
		s.notifier.NotifyLater(ticket.RequesterID, in)
	case ticket.AssignedAgentID != "":
		s.notifier.NotifyLater(ticket.AssignedAgentID, in)
	default:
		s.notifier.NotifyAdminsLater(in)
	}
}

func (s *SupportService) emitTicketUpdated(ctx context.Context, ticket *models.Ticket) {
	s.emitter.Emit(ctx, models.TicketRoom(ticket.ID.Hex()), models.EventSupportTicketUpdated, ticket)
	s.emitter.Emit(ctx, models.DashboardRoom(), models.EventSupportTicketUpdated, ticket)
}

// UpdateStatus resolves or closes a ticket. Only agents may do it and the
// move must be allowed from the current status.
func (s *SupportService) UpdateStatus(ctx context.Context, agent models.Identity, ticketID string, update models.TicketStatusUpdate) (*models.Ticket, error) {
	if err := requireAgent(agent); err != nil {
		return nil, err
	}
	if err := validator.Struct(update); err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrValidation, err.Error())
	}

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !ticket.Status.CanTransition(update.Status) {
		return nil, fmt.Errorf("%w: cannot move ticket from %s to %s", models.ErrConflict, ticket.Status, update.Status)
	}

	updated, err := s.repo.UpdateTicketStatus(ctx, ticket.ID, ticket.Status, update.Status)
	if err != nil {
		return nil, err
	}

	s.emitTicketUpdated(ctx, updated)
	s.notifier.NotifyLater(updated.RequesterID, models.NotificationInput{
		Type:     models.TypeTicketUpdated,
		Title:    "Support ticket " + strings.ReplaceAll(string(updated.Status), "_", " "),
		Message:  updated.Subject,
		Data:     map[string]any{"ticketId": updated.ID.Hex(), "status": string(updated.Status)},
		Priority: models.NotifyNormal,
	})
	return updated, nil
}

// AssignTicket hands a ticket to an agent explicitly. An empty agentID
// assigns it to the caller.
func (s *SupportService) AssignTicket(ctx context.Context, agent models.Identity, ticketID, agentID string) (*models.Ticket, error) {
	if err := requireAgent(agent); err != nil {
		return nil, err
	}
	if agentID == "" {
		agentID = agent.UserID
	}

	id, err := primitive.ObjectIDFromHex(ticketID)
	if err != nil {
		return nil, models.ErrInvalidID
	}
	if agentID != agent.UserID {
		ok, err := s.isAgentAccount(ctx, agentID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: assignee is not a support agent", models.ErrValidation)
		}
	}
	ticket, err := s.repo.AssignTicket(ctx, id, agentID)
	if err != nil {
		return nil, err
	}

	s.emitTicketUpdated(ctx, ticket)
	if agentID != agent.UserID {
		s.notifier.NotifyLater(agentID, models.NotificationInput{
			Type:     models.TypeTicketAssigned,
			Title:    "Ticket assigned to you",
			Message:  ticket.Subject,
			Data:     map[string]any{"ticketId": ticket.ID.Hex()},
			Priority: ticketNotifyPriority(ticket.Priority),
		})
	}
	return ticket, nil
}
