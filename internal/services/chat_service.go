package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"home-services/realtime-service/internal/models"
	"home-services/realtime-service/internal/utils/validator"
)

const (
	MaxTextLength     = 4000
	MaxAttachments    = 10
	MaxAttachmentSize = 10 << 20

	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// MediaInput is one attachment in a send request. Either URL/ID reference an
// already stored object or Data carries the base64 encoded file.
type MediaInput struct {
	ID   string `json:"id,omitempty"`
	URL  string `json:"url,omitempty"`
	Type string `json:"type,omitempty"`
	Name string `json:"name,omitempty"`
	Data string `json:"data,omitempty"`
}

type SendInput struct {
	ConversationID string
	Text           string
	Media          []MediaInput
	Kind           models.MessageKind
}

type ChatService struct {
	conversations ConversationRepository
	messages      MessageRepository
	authz         *AuthorizationEngine
	media         mediaUploader
	notifier      *NotificationService
	emitter       Emitter
	tasks         *TaskRunner
	now           func() time.Time
}

func NewChatService(
	conversations ConversationRepository,
	messages MessageRepository,
	authz *AuthorizationEngine,
	store AttachmentStore,
	notifier *NotificationService,
	emitter Emitter,
	tasks *TaskRunner,
) *ChatService {
	return &ChatService{
		conversations: conversations,
		messages:      messages,
		authz:         authz,
		media:         mediaUploader{store: store, tasks: tasks},
		notifier:      notifier,
		emitter:       emitter,
		tasks:         tasks,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *ChatService) loadConversation(ctx context.Context, rawID string) (*models.Conversation, error) {
	id, err := primitive.ObjectIDFromHex(rawID)
	if err != nil {
		return nil, models.ErrInvalidID
	}
	return s.conversations.GetByID(ctx, id)
}

// participantConversation loads a conversation the caller belongs to. Other
// users get a forbidden error.
func (s *ChatService) participantConversation(ctx context.Context, userID, rawID string) (*models.Conversation, error) {
	conv, err := s.loadConversation(ctx, rawID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, fmt.Errorf("%w: not a participant", models.ErrForbidden)
	}
	return conv, nil
}

// Send runs the delivery pipeline: authorize, store attachments, persist,
// then emit and notify. Nothing is emitted before the message is stored.
func (s *ChatService) Send(ctx context.Context, sender models.Identity, in SendInput) (*models.Message, error) {
	conv, err := s.loadConversation(ctx, in.ConversationID)
	if err != nil {
		return nil, err
	}

	recipient, ok := conv.Counterpart(sender.UserID)
	if !ok {
		return nil, fmt.Errorf("%w: not a participant", models.ErrForbidden)
	}
	if err := s.authz.AuthorizeConversation(ctx, sender, recipient.UserID, conv); err != nil {
		return nil, err
	}

	kind, err := resolveKind(in)
	if err != nil {
		return nil, err
	}

	folder := "chat/" + conv.ID.Hex()
	attachments, uploaded, err := s.media.upload(ctx, folder, in.Media)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		ConversationID: conv.ID,
		SenderID:       sender.UserID,
		RecipientID:    recipient.UserID,
		Body: models.MessageBody{
			Text:        strings.TrimSpace(in.Text),
			Attachments: attachments,
		},
		Kind:      kind,
		CreatedAt: s.now(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		s.media.discard(uploaded)
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	if err := s.conversations.TouchActivity(ctx, conv.ID, msg.CreatedAt); err != nil {
		log.Warn().Err(err).Str("conversation_id", conv.ID.Hex()).Msg("[CHAT] failed to update last activity")
	}

	convID := conv.ID.Hex()
	s.emitter.Emit(ctx, models.ConversationRoom(convID), models.EventNewMessage, msg)
	s.emitter.Emit(ctx, models.NotifyRoom(recipient.UserID), models.EventMessageNotification, models.MessageNotificationPayload{
		ConversationID: convID,
		SenderID:       sender.UserID,
		Message:        msg,
	})

	s.notifier.NotifyLater(recipient.UserID, models.NotificationInput{
		Type:     models.TypeNewMessage,
		Title:    "New message",
		Message:  preview(msg.Body),
		Data:     map[string]any{"conversationId": convID, "messageId": msg.ID.Hex(), "senderId": sender.UserID},
		Priority: models.NotifyNormal,
	})

	if s.emitter.HasUser(models.ConversationRoom(convID), recipient.UserID) {
		msgID := msg.ID
		s.tasks.Go("mark-delivered", func(ctx context.Context) error {
			_, err := s.messages.MarkDelivered(ctx, msgID, recipient.UserID, s.now())
			return err
		})
	}

	return msg, nil
}

func resolveKind(in SendInput) (models.MessageKind, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" && len(in.Media) == 0 {
		return "", fmt.Errorf("%w: message must have text or at least one attachment", models.ErrValidation)
	}
	if len(text) > MaxTextLength {
		return "", fmt.Errorf("%w: message text exceeds %d characters", models.ErrValidation, MaxTextLength)
	}
	if len(in.Media) > MaxAttachments {
		return "", fmt.Errorf("%w: at most %d attachments", models.ErrValidation, MaxAttachments)
	}

	switch in.Kind {
	case "":
		if text == "" {
			return models.KindMedia, nil
		}
		return models.KindText, nil
	case models.KindText, models.KindMedia:
		return in.Kind, nil
	case models.KindSystem:
		return "", fmt.Errorf("%w: system messages cannot be sent by clients", models.ErrValidation)
	default:
		return "", fmt.Errorf("%w: unknown message type %q", models.ErrValidation, in.Kind)
	}
}

type mediaUploader struct {
	store AttachmentStore
	tasks *TaskRunner
}

// upload stores inline attachments and returns the references to keep on
// the message, plus the object ids uploaded by this call.
func (s mediaUploader) upload(ctx context.Context, folder string, media []MediaInput) ([]models.Attachment, []string, error) {
	if len(media) == 0 {
		return nil, nil, nil
	}

	attachments := make([]models.Attachment, 0, len(media))
	var uploaded []string
	for _, m := range media {
		if m.Data == "" {
			if m.URL == "" {
				s.discard(uploaded)
				return nil, nil, fmt.Errorf("%w: attachment needs a url or data", models.ErrValidation)
			}
			attachments = append(attachments, models.Attachment{ID: m.ID, URL: m.URL, Type: m.Type, Name: m.Name})
			continue
		}

		if s.store == nil {
			s.discard(uploaded)
			return nil, nil, fmt.Errorf("%w: attachment store is not configured", models.ErrDependency)
		}
		data, err := decodeInline(m.Data)
		if err != nil {
			s.discard(uploaded)
			return nil, nil, err
		}
		obj, err := s.store.Store(ctx, data, folder, m.Name)
		if err != nil {
			s.discard(uploaded)
			return nil, nil, fmt.Errorf("%w: failed to store attachment: %w", models.ErrDependency, err)
		}
		uploaded = append(uploaded, obj.ID)

		contentType := m.Type
		if contentType == "" {
			contentType = obj.ContentType
		}
		attachments = append(attachments, models.Attachment{ID: obj.ID, URL: obj.URL, Type: contentType, Name: m.Name})
	}
	return attachments, uploaded, nil
}

// decodeInline accepts plain base64 or a data URL.
func decodeInline(raw string) ([]byte, error) {
	if strings.HasPrefix(raw, "data:") {
		if _, payload, ok := strings.Cut(raw, ","); ok {
			raw = payload
		}
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: attachment data is not valid base64", models.ErrValidation)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: attachment is empty", models.ErrValidation)
	}
	if len(data) > MaxAttachmentSize {
		return nil, fmt.Errorf("%w: attachment exceeds %d bytes", models.ErrValidation, MaxAttachmentSize)
	}
	return data, nil
}

// discard removes objects uploaded for a message that was never stored.
func (s mediaUploader) discard(ids []string) {
	for _, id := range ids {
		objectID := id
		s.tasks.Go("remove-attachment", func(ctx context.Context) error {
			return s.store.Remove(ctx, objectID)
		})
	}
}

func preview(body models.MessageBody) string {
	text := strings.TrimSpace(body.Text)
	if text == "" {
		return "Sent an attachment"
	}
	if r := []rune(text); len(r) > 120 {
		return string(r[:120]) + "..."
	}
	return text
}

// JoinConversation adds the connection to the conversation room and flags
// everything addressed to the caller as delivered.
func (s *ChatService) JoinConversation(ctx context.Context, id models.Identity, conversationID string, join JoinFunc) (int64, error) {
	conv, err := s.participantConversation(ctx, id.UserID, conversationID)
	if err != nil {
		return 0, err
	}

	room := models.ConversationRoom(conv.ID.Hex())
	if err := join(room); err != nil {
		return 0, err
	}

	delivered, err := s.messages.MarkConversationDelivered(ctx, conv.ID, id.UserID, s.now())
	if err != nil {
		return 0, err
	}

	s.emitter.Emit(ctx, room, models.EventUserJoinedChat, models.UserJoinedChatPayload{
		UserID:         id.UserID,
		ConversationID: conv.ID.Hex(),
	})
	if delivered > 0 {
		s.emitter.Emit(ctx, room, models.EventMessagesDelivered, models.MessagesDeliveredPayload{
			UserID:         id.UserID,
			ConversationID: conv.ID.Hex(),
			Count:          delivered,
		})
	}
	return delivered, nil
}

// MarkRead marks the caller's incoming messages read. Messages the caller
// sent are never touched.
func (s *ChatService) MarkRead(ctx context.Context, id models.Identity, conversationID string) (int64, error) {
	conv, err := s.participantConversation(ctx, id.UserID, conversationID)
	if err != nil {
		return 0, err
	}

	at := s.now()
	count, err := s.messages.MarkConversationRead(ctx, conv.ID, id.UserID, at)
	if err != nil {
		return 0, err
	}

	s.emitter.Emit(ctx, models.ConversationRoom(conv.ID.Hex()), models.EventMessagesRead, models.MessagesReadPayload{
		UserID:         id.UserID,
		ConversationID: conv.ID.Hex(),
		Count:          count,
		ReadAt:         at,
	})
	return count, nil
}

func (s *ChatService) History(ctx context.Context, id models.Identity, conversationID string, q models.HistoryQuery) ([]models.Message, error) {
	conv, err := s.participantConversation(ctx, id.UserID, conversationID)
	if err != nil {
		return nil, err
	}
	if q.Limit <= 0 {
		q.Limit = defaultHistoryLimit
	}
	if q.Limit > maxHistoryLimit {
		q.Limit = maxHistoryLimit
	}
	return s.messages.History(ctx, conv.ID, q)
}

func (s *ChatService) Search(ctx context.Context, id models.Identity, conversationID, query string, limit int64) ([]models.Message, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query is required", models.ErrValidation)
	}
	conv, err := s.participantConversation(ctx, id.UserID, conversationID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxHistoryLimit {
		limit = defaultHistoryLimit
	}
	return s.messages.Search(ctx, conv.ID, query, limit)
}

// CreateConversation opens a thread between two parties, or returns the
// existing one for the same pair and job.
func (s *ChatService) CreateConversation(ctx context.Context, req models.CreateConversationRequest) (*models.Conversation, bool, error) {
	if err := validator.Struct(req); err != nil {
		return nil, false, fmt.Errorf("%w: %s", models.ErrValidation, err.Error())
	}

	participants := make([]models.Participant, 0, len(req.Participants))
	for _, p := range req.Participants {
		role, ok := models.NormalizeRole(string(p.Role))
		if !ok {
			return nil, false, fmt.Errorf("%w: unknown role %q", models.ErrValidation, p.Role)
		}
		participants = append(participants, models.Participant{UserID: p.UserID, Role: role})
	}
	if participants[0].UserID == participants[1].UserID {
		return nil, false, fmt.Errorf("%w: a conversation needs two different users", models.ErrValidation)
	}

	existing, err := s.conversations.FindBetween(ctx, participants[0].UserID, participants[1].UserID, req.EngagementID)
	if err == nil {
		return existing, false, nil
	}
	if !isNotFound(err) {
		return nil, false, err
	}

	conv := &models.Conversation{
		Participants: participants,
		EngagementID: req.EngagementID,
	}
	if err := s.conversations.Create(ctx, conv); err != nil {
		return nil, false, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, true, nil
}

func (s *ChatService) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	return s.conversations.ListByUser(ctx, userID)
}
