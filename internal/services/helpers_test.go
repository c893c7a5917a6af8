package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"home-services/realtime-service/internal/models"
	"home-services/realtime-service/internal/repository/memory"
	"home-services/realtime-service/internal/utils"
)

var (
	clientID   = models.Identity{ConnectionID: "conn-client", UserID: "client-1", Role: models.RoleUser}
	providerID = models.Identity{ConnectionID: "conn-provider", UserID: "provider-1", Role: models.RoleProvider}
	agentID    = models.Identity{ConnectionID: "conn-agent", UserID: "agent-1", Role: models.RoleAdmin}
	agent2ID   = models.Identity{ConnectionID: "conn-agent-2", UserID: "agent-2", Role: models.RoleAdmin}
	strangerID = models.Identity{ConnectionID: "conn-stranger", UserID: "stranger-1", Role: models.RoleUser}
)

type emitted struct {
	Room    models.RoomKey
	Event   string
	Payload any
}

type recordingEmitter struct {
	mu      sync.Mutex
	events  []emitted
	present map[models.RoomKey]map[string]bool
}

func newRecordingEmitter() *recordingEmitter {
	return &recordingEmitter{present: make(map[models.RoomKey]map[string]bool)}
}

func (e *recordingEmitter) Emit(_ context.Context, room models.RoomKey, event string, payload any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, emitted{Room: room, Event: event, Payload: payload})
}

func (e *recordingEmitter) HasUser(room models.RoomKey, userID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.present[room][userID]
}

func (e *recordingEmitter) setPresent(room models.RoomKey, userID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.present[room] == nil {
		e.present[room] = make(map[string]bool)
	}
	e.present[room][userID] = true
}

func (e *recordingEmitter) find(room models.RoomKey, event string) []emitted {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []emitted
	for _, ev := range e.events {
		if ev.Room == room && ev.Event == event {
			out = append(out, ev)
		}
	}
	return out
}

type fakeAttachmentStore struct {
	mu      sync.Mutex
	stored  map[string][]byte
	removed []string
}

func newFakeAttachmentStore() *fakeAttachmentStore {
	return &fakeAttachmentStore{stored: make(map[string][]byte)}
}

func (s *fakeAttachmentStore) Store(_ context.Context, data []byte, folder, filename string) (utils.StoredObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := folder + "/" + filename
	s.stored[id] = data
	return utils.StoredObject{ID: id, URL: "https://files.test/" + id, ContentType: "text/plain"}, nil
}

func (s *fakeAttachmentStore) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stored[id]; !ok {
		return errors.New("no such object")
	}
	delete(s.stored, id)
	s.removed = append(s.removed, id)
	return nil
}

type testEnv struct {
	conversations *memory.Conversations
	messages      *memory.Messages
	support       *memory.Support
	notifications *memory.Notifications
	engagements   *memory.Engagements
	users         *memory.Users

	emitter *recordingEmitter
	store   *fakeAttachmentStore
	tasks   *TaskRunner

	authz    *AuthorizationEngine
	notifier *NotificationService
	chat     *ChatService
	desk     *SupportService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	e := &testEnv{
		conversations: memory.NewConversations(),
		messages:      memory.NewMessages(),
		support:       memory.NewSupport(),
		notifications: memory.NewNotifications(),
		engagements:   memory.NewEngagements(),
		users:         memory.NewUsers(),
		emitter:       newRecordingEmitter(),
		store:         newFakeAttachmentStore(),
		tasks:         NewTaskRunner(64),
	}
	e.users.Add(agentID.UserID, "admin")
	e.users.Add(agent2ID.UserID, "agent")
	e.users.Add(clientID.UserID, "client")
	e.users.Add(providerID.UserID, "cleaner")

	e.authz = NewAuthorizationEngine(e.conversations, e.messages, e.engagements, e.support)
	e.notifier = NewNotificationService(e.notifications, e.users, e.emitter, e.tasks)
	e.chat = NewChatService(e.conversations, e.messages, e.authz, e.store, e.notifier, e.emitter, e.tasks)
	e.desk = NewSupportService(e.support, e.users, e.authz, e.store, e.notifier, e.emitter, e.tasks)

	t.Cleanup(e.tasks.Wait)
	return e
}

// conversation creates a client/provider thread, optionally tied to a job.
func (e *testEnv) conversation(t *testing.T, engagementID string) *models.Conversation {
	t.Helper()
	conv := &models.Conversation{
		Participants: []models.Participant{
			{UserID: clientID.UserID, Role: models.RoleUser},
			{UserID: providerID.UserID, Role: models.RoleProvider},
		},
		EngagementID: engagementID,
	}
	require.NoError(t, e.conversations.Create(context.Background(), conv))
	return conv
}

func (e *testEnv) send(id models.Identity, conv *models.Conversation, text string) (*models.Message, error) {
	return e.chat.Send(context.Background(), id, SendInput{ConversationID: conv.ID.Hex(), Text: text})
}

type joinRecorder struct {
	rooms []models.RoomKey
}

func (j *joinRecorder) join(room models.RoomKey) error {
	j.rooms = append(j.rooms, room)
	return nil
}
