package services

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"home-services/realtime-service/internal/models"
)

type TargetKind uint8

const (
	TargetConversation TargetKind = iota + 1
	TargetTicket
)

// AuthorizationEngine decides whether a sender may deliver a message. A deny
// is returned as an error wrapping models.ErrForbidden and has no side effects.
type AuthorizationEngine struct {
	conversations ConversationRepository
	messages      MessageRepository
	engagements   EngagementRepository
	tickets       SupportRepository
}

func NewAuthorizationEngine(conversations ConversationRepository, messages MessageRepository, engagements EngagementRepository, tickets SupportRepository) *AuthorizationEngine {
	return &AuthorizationEngine{
		conversations: conversations,
		messages:      messages,
		engagements:   engagements,
		tickets:       tickets,
	}
}

// CanSend loads the conversation or ticket and evaluates the send rules.
func (e *AuthorizationEngine) CanSend(ctx context.Context, sender models.Identity, recipientID, targetID string, kind TargetKind) error {
	id, err := primitive.ObjectIDFromHex(targetID)
	if err != nil {
		return models.ErrInvalidID
	}

	switch kind {
	case TargetConversation:
		conv, err := e.conversations.GetByID(ctx, id)
		if err != nil {
			return err
		}
		return e.AuthorizeConversation(ctx, sender, recipientID, conv)
	case TargetTicket:
		ticket, err := e.tickets.GetTicketByID(ctx, id)
		if err != nil {
			return err
		}
		return e.AuthorizeTicket(sender, recipientID, ticket)
	default:
		return fmt.Errorf("%w: unknown target", models.ErrValidation)
	}
}

// AuthorizeConversation applies the direct-chat rules: both ends must be
// participants, and a provider may only write to a client after an accepted
// quote or after the client wrote first.
func (e *AuthorizationEngine) AuthorizeConversation(ctx context.Context, sender models.Identity, recipientID string, conv *models.Conversation) error {
	senderPart, ok := conv.Participant(sender.UserID)
	if !ok {
		return fmt.Errorf("%w: not a participant", models.ErrForbidden)
	}
	recipient, ok := conv.Participant(recipientID)
	if !ok || recipientID == sender.UserID {
		return fmt.Errorf("%w: not a participant", models.ErrForbidden)
	}

	senderRole := sender.Role
	if senderRole == "" {
		senderRole = senderPart.Role
	}
	if senderRole != models.RoleProvider || recipient.Role != models.RoleUser {
		return nil
	}

	accepted, err := e.engagements.HasAcceptedEngagement(ctx, sender.UserID, recipientID, conv.EngagementID)
	if err != nil {
		return err
	}
	if accepted {
		return nil
	}

	repliedTo, err := e.messages.HasMessageFrom(ctx, conv.ID, recipientID)
	if err != nil {
		return err
	}
	if repliedTo {
		return nil
	}

	return fmt.Errorf("%w: providers can message a client only after the client writes first or accepts a quote", models.ErrForbidden)
}

// AuthorizeTicket lets the requester and any agent write in a ticket.
// recipientID may be empty when the recipient is "whoever handles the ticket".
func (e *AuthorizationEngine) AuthorizeTicket(sender models.Identity, recipientID string, ticket *models.Ticket) error {
	if ticket == nil {
		return models.ErrNotFound
	}
	if !ticket.IsParticipant(sender) {
		return fmt.Errorf("%w: not a participant", models.ErrForbidden)
	}
	if recipientID == "" || recipientID == ticket.RequesterID || recipientID == ticket.AssignedAgentID {
		return nil
	}
	return fmt.Errorf("%w: recipient is not a participant", models.ErrForbidden)
}
