package services

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"home-services/realtime-service/internal/models"
)

func TestSend_PersistsEmitsAndNotifies(t *testing.T) {
	env := newTestEnv(t)
	conv := env.conversation(t, "")

	msg, err := env.send(clientID, conv, "  Hi, are you free on Friday?  ")
	require.NoError(t, err)
	env.tasks.Wait()

	assert.False(t, msg.ID.IsZero())
	assert.Equal(t, "Hi, are you free on Friday?", msg.Body.Text)
	assert.Equal(t, providerID.UserID, msg.RecipientID)
	assert.Equal(t, models.KindText, msg.Kind)

	stored := env.messages.All()
	require.Len(t, stored, 1)
	assert.False(t, stored[0].Delivered)
	assert.False(t, stored[0].Read)

	assert.Len(t, env.emitter.find(models.ConversationRoom(conv.ID.Hex()), models.EventNewMessage), 1)
	assert.Len(t, env.emitter.find(models.NotifyRoom(providerID.UserID), models.EventMessageNotification), 1)

	notifs := env.notifications.ForUser(providerID.UserID)
	require.Len(t, notifs, 1)
	assert.Equal(t, models.TypeNewMessage, notifs[0].Type)
	assert.Equal(t, conv.ID.Hex(), notifs[0].Data["conversationId"])

	updated, err := env.conversations.GetByID(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Equal(t, msg.CreatedAt, updated.LastActivityAt)
}

func TestSend_ProviderReplyUnlock(t *testing.T) {
	env := newTestEnv(t)
	conv := env.conversation(t, "")

	_, err := env.send(providerID, conv, "I can do it for $80")
	assert.ErrorIs(t, err, models.ErrForbidden)
	assert.Empty(t, env.messages.All(), "a denied send must not persist")
	assert.Empty(t, env.emitter.find(models.ConversationRoom(conv.ID.Hex()), models.EventNewMessage))

	_, err = env.send(clientID, conv, "Can you quote a deep clean?")
	require.NoError(t, err)

	_, err = env.send(providerID, conv, "Sure, $80")
	require.NoError(t, err)
	assert.Len(t, env.messages.All(), 2)
}

func TestSend_Validation(t *testing.T) {
	env := newTestEnv(t)
	conv := env.conversation(t, "")

	_, err := env.send(clientID, conv, "   ")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = env.chat.Send(context.Background(), clientID, SendInput{ConversationID: conv.ID.Hex(), Text: "hi", Kind: models.KindSystem})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = env.chat.Send(context.Background(), clientID, SendInput{ConversationID: "bad", Text: "hi"})
	assert.ErrorIs(t, err, models.ErrInvalidID)

	assert.Empty(t, env.messages.All())
}

func TestSend_InlineAttachmentIsStoredFirst(t *testing.T) {
	env := newTestEnv(t)
	conv := env.conversation(t, "")

	msg, err := env.chat.Send(context.Background(), clientID, SendInput{
		ConversationID: conv.ID.Hex(),
		Media: []MediaInput{{
			Name: "kitchen.txt",
			Data: base64.StdEncoding.EncodeToString([]byte("greasy stove")),
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, models.KindMedia, msg.Kind)
	require.Len(t, msg.Body.Attachments, 1)
	att := msg.Body.Attachments[0]
	assert.Equal(t, "chat/"+conv.ID.Hex()+"/kitchen.txt", att.ID)
	assert.Equal(t, "https://files.test/"+att.ID, att.URL)
	assert.Equal(t, "text/plain", att.Type)
}

func TestSend_InlineAttachmentWithoutStore(t *testing.T) {
	env := newTestEnv(t)
	env.chat.media.store = nil
	conv := env.conversation(t, "")

	_, err := env.chat.Send(context.Background(), clientID, SendInput{
		ConversationID: conv.ID.Hex(),
		Media:          []MediaInput{{Name: "a.png", Data: base64.StdEncoding.EncodeToString([]byte("png"))}},
	})
	assert.ErrorIs(t, err, models.ErrDependency)
	assert.Empty(t, env.messages.All())
}

func TestSend_MarksDeliveredWhenRecipientIsInRoom(t *testing.T) {
	env := newTestEnv(t)
	conv := env.conversation(t, "")
	env.emitter.setPresent(models.ConversationRoom(conv.ID.Hex()), providerID.UserID)

	_, err := env.send(clientID, conv, "hello")
	require.NoError(t, err)
	env.tasks.Wait()

	stored := env.messages.All()
	require.Len(t, stored, 1)
	assert.True(t, stored[0].Delivered)
	assert.NotNil(t, stored[0].DeliveredAt)
}

func TestJoinConversation_SweepIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	conv := env.conversation(t, "")
	ctx := context.Background()

	for _, text := range []string{"one", "two"} {
		_, err := env.send(clientID, conv, text)
		require.NoError(t, err)
	}

	joins := &joinRecorder{}
	n, err := env.chat.JoinConversation(ctx, providerID, conv.ID.Hex(), joins.join)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Equal(t, []models.RoomKey{models.ConversationRoom(conv.ID.Hex())}, joins.rooms)

	first := env.messages.All()
	for _, m := range first {
		assert.True(t, m.Delivered)
		require.NotNil(t, m.DeliveredAt)
	}

	n, err = env.chat.JoinConversation(ctx, providerID, conv.ID.Hex(), joins.join)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	for i, m := range env.messages.All() {
		assert.Equal(t, *first[i].DeliveredAt, *m.DeliveredAt, "delivered_at is written once")
	}

	room := models.ConversationRoom(conv.ID.Hex())
	assert.Len(t, env.emitter.find(room, models.EventMessagesDelivered), 1)
	assert.Len(t, env.emitter.find(room, models.EventUserJoinedChat), 2)
}

func TestJoinConversation_NonParticipant(t *testing.T) {
	env := newTestEnv(t)
	conv := env.conversation(t, "")

	joins := &joinRecorder{}
	_, err := env.chat.JoinConversation(context.Background(), strangerID, conv.ID.Hex(), joins.join)
	assert.ErrorIs(t, err, models.ErrForbidden)
	assert.Empty(t, joins.rooms)
}

func TestMarkRead_OnlyTouchesCallersIncomingMessages(t *testing.T) {
	env := newTestEnv(t)
	conv := env.conversation(t, "")

	_, err := env.send(clientID, conv, "question")
	require.NoError(t, err)
	_, err = env.send(providerID, conv, "answer")
	require.NoError(t, err)

	n, err := env.chat.MarkRead(context.Background(), clientID, conv.ID.Hex())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	for _, m := range env.messages.All() {
		if m.RecipientID == clientID.UserID {
			assert.True(t, m.Read)
			assert.NotNil(t, m.ReadAt)
			assert.True(t, m.Delivered, "a read message is also delivered")
		} else {
			assert.False(t, m.Read, "the caller's own messages stay unread")
		}
	}

	events := env.emitter.find(models.ConversationRoom(conv.ID.Hex()), models.EventMessagesRead)
	require.Len(t, events, 1)
	payload := events[0].Payload.(models.MessagesReadPayload)
	assert.Equal(t, clientID.UserID, payload.UserID)
	assert.EqualValues(t, 1, payload.Count)
}

func TestHistoryAndSearch(t *testing.T) {
	env := newTestEnv(t)
	conv := env.conversation(t, "")
	ctx := context.Background()

	for _, text := range []string{"oven cleaning", "window cleaning", "thanks"} {
		_, err := env.send(clientID, conv, text)
		require.NoError(t, err)
	}

	msgs, err := env.chat.History(ctx, providerID, conv.ID.Hex(), models.HistoryQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "window cleaning", msgs[0].Body.Text)
	assert.Equal(t, "thanks", msgs[1].Body.Text)

	found, err := env.chat.Search(ctx, clientID, conv.ID.Hex(), "cleaning", 0)
	require.NoError(t, err)
	assert.Len(t, found, 2)

	_, err = env.chat.Search(ctx, clientID, conv.ID.Hex(), "  ", 0)
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = env.chat.History(ctx, strangerID, conv.ID.Hex(), models.HistoryQuery{})
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestCreateConversation_IdempotentAndNormalizesRoles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	req := models.CreateConversationRequest{
		Participants: []models.Participant{
			{UserID: clientID.UserID, Role: "client"},
			{UserID: providerID.UserID, Role: "cleaner"},
		},
		EngagementID: "job-7",
	}

	conv, created, err := env.chat.CreateConversation(ctx, req)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.RoleUser, conv.Participants[0].Role)
	assert.Equal(t, models.RoleProvider, conv.Participants[1].Role)

	again, created, err := env.chat.CreateConversation(ctx, req)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, conv.ID, again.ID)

	_, _, err = env.chat.CreateConversation(ctx, models.CreateConversationRequest{
		Participants: []models.Participant{
			{UserID: clientID.UserID, Role: "client"},
			{UserID: clientID.UserID, Role: "client"},
		},
	})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, _, err = env.chat.CreateConversation(ctx, models.CreateConversationRequest{
		Participants: []models.Participant{
			{UserID: clientID.UserID, Role: "client"},
			{UserID: "x", Role: "wizard"},
		},
	})
	assert.ErrorIs(t, err, models.ErrValidation)
}
