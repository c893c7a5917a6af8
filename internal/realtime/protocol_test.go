package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"home-services/realtime-service/internal/models"
)

func TestDecode_NotificationRef(t *testing.T) {
	var ref NotificationRef
	require.NoError(t, decode(json.RawMessage(`{"notificationId":"n-1"}`), &ref))
	assert.Equal(t, "n-1", ref.NotificationID)

	var nested NotificationRef
	err := decode(json.RawMessage(`{"data":{"notificationId":"n-1"}}`), &nested)
	assert.ErrorIs(t, err, models.ErrValidation)

	var missing NotificationRef
	assert.ErrorIs(t, decode(nil, &missing), models.ErrValidation)
}

func TestDecode_SendMessageContent(t *testing.T) {
	var plain SendMessagePayload
	require.NoError(t, decode(json.RawMessage(`{"conversationId":"c1","content":"hello"}`), &plain))
	assert.Equal(t, "hello", plain.Content.Text)
	assert.Empty(t, plain.Content.Media)

	var rich SendMessagePayload
	require.NoError(t, decode(json.RawMessage(`{
		"conversationId":"c1",
		"messageType":"media",
		"content":{"text":"see photo","media":[{"url":"https://files.test/a.png","type":"image/png"}]}
	}`), &rich))
	assert.Equal(t, "see photo", rich.Content.Text)
	require.Len(t, rich.Content.Media, 1)
	assert.Equal(t, models.KindMedia, rich.MessageType)

	var unknown SendMessagePayload
	err := decode(json.RawMessage(`{"conversationId":"c1","content":{"body":"x"}}`), &unknown)
	assert.ErrorIs(t, err, models.ErrValidation)

	var extra SendMessagePayload
	err = decode(json.RawMessage(`{"conversationId":"c1","content":"x","senderId":"someone-else"}`), &extra)
	assert.ErrorIs(t, err, models.ErrValidation, "the sender always comes from the connection")
}

func TestDecode_GetMessagesLimit(t *testing.T) {
	var p GetMessagesPayload
	require.NoError(t, decode(json.RawMessage(`{"conversationId":"c1","before":"2026-01-02T15:04:05Z","limit":20}`), &p))
	require.NotNil(t, p.Before)
	assert.EqualValues(t, 20, p.Limit)

	var tooMany GetMessagesPayload
	assert.ErrorIs(t, decode(json.RawMessage(`{"conversationId":"c1","limit":5000}`), &tooMany), models.ErrValidation)
}

func TestEncodeFrame(t *testing.T) {
	frame, err := encodeFrame(models.EventUnreadCount, UnreadCountPayload{Count: 3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"unread-count","data":{"count":3}}`, string(frame))
}
