package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"home-services/realtime-service/internal/models"
)

func (e *testEnv) ticket(t *testing.T) *models.Ticket {
	t.Helper()
	ticket, err := e.desk.CreateTicket(context.Background(), clientID, models.CreateTicketRequest{
		Subject:  "Cleaner did not show up",
		Category: "orders",
		Message:  "Nobody came this morning",
	})
	require.NoError(t, err)
	e.tasks.Wait()
	return ticket
}

func (e *testEnv) reply(id models.Identity, ticket *models.Ticket, text string) (*models.SupportMessage, error) {
	return e.desk.SendMessage(context.Background(), id, SupportSendInput{TicketID: ticket.ID.Hex(), Text: text})
}

func TestCreateTicket(t *testing.T) {
	env := newTestEnv(t)
	ticket := env.ticket(t)

	assert.Equal(t, models.StatusOpen, ticket.Status)
	assert.Equal(t, models.PriorityMedium, ticket.Priority)
	assert.Empty(t, ticket.AssignedAgentID)

	msgs, err := env.desk.Messages(context.Background(), clientID, ticket.ID.Hex())
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Nobody came this morning", msgs[0].Body.Text)

	assert.Len(t, env.emitter.find(models.DashboardRoom(), models.EventNewSupportTicket), 1)
	assert.Len(t, env.notifications.ForUser(agentID.UserID), 1)
	assert.Len(t, env.notifications.ForUser(agent2ID.UserID), 1)

	_, err = env.desk.CreateTicket(context.Background(), clientID, models.CreateTicketRequest{Category: "orders"})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestSendMessage_FirstAgentReplyAssigns(t *testing.T) {
	env := newTestEnv(t)
	ticket := env.ticket(t)

	_, err := env.reply(agentID, ticket, "Sorry about that, checking now")
	require.NoError(t, err)

	got, err := env.desk.GetTicket(context.Background(), agentID, ticket.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, agentID.UserID, got.AssignedAgentID)
	assert.Equal(t, models.StatusInProgress, got.Status)

	room := models.TicketRoom(ticket.ID.Hex())
	assert.Len(t, env.emitter.find(room, models.EventNewSupportMessage), 1)
	assert.Len(t, env.emitter.find(models.DashboardRoom(), models.EventNewSupportMessage), 1)
	assert.Len(t, env.emitter.find(room, models.EventSupportTicketUpdated), 1)

	_, err = env.reply(agent2ID, ticket, "I can help too")
	require.NoError(t, err)

	got, err = env.desk.GetTicket(context.Background(), agentID, ticket.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, agentID.UserID, got.AssignedAgentID, "a later reply never reassigns")
	assert.Len(t, env.emitter.find(room, models.EventSupportTicketUpdated), 1)
}

func TestSendMessage_NotificationRouting(t *testing.T) {
	env := newTestEnv(t)
	ticket := env.ticket(t)
	ctx := context.Background()

	// before assignment a requester message goes to every agent
	_, err := env.reply(clientID, ticket, "Any news?")
	require.NoError(t, err)
	env.tasks.Wait()
	assert.Len(t, env.notifications.ForUser(agentID.UserID), 2)
	assert.Len(t, env.notifications.ForUser(agent2ID.UserID), 2)

	_, err = env.reply(agentID, ticket, "On it")
	require.NoError(t, err)
	env.tasks.Wait()
	clientNotifs := env.notifications.ForUser(clientID.UserID)
	require.Len(t, clientNotifs, 1)
	assert.Equal(t, models.TypeSupportMessage, clientNotifs[0].Type)

	_, err = env.reply(clientID, ticket, "Thanks")
	require.NoError(t, err)
	env.tasks.Wait()
	assert.Len(t, env.notifications.ForUser(agentID.UserID), 3)
	assert.Len(t, env.notifications.ForUser(agent2ID.UserID), 2, "only the assigned agent hears about it")

	msgs, err := env.desk.Messages(ctx, clientID, ticket.ID.Hex())
	require.NoError(t, err)
	assert.Len(t, msgs, 4)
}

func TestSendMessage_Denied(t *testing.T) {
	env := newTestEnv(t)
	ticket := env.ticket(t)

	_, err := env.reply(strangerID, ticket, "let me in")
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = env.reply(clientID, ticket, "   ")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = env.desk.UpdateStatus(context.Background(), agentID, ticket.ID.Hex(), models.TicketStatusUpdate{Status: models.StatusClosed})
	require.NoError(t, err)

	_, err = env.reply(clientID, ticket, "hello?")
	assert.ErrorIs(t, err, models.ErrForbidden)
	_, err = env.reply(agentID, ticket, "hello")
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestUpdateStatus(t *testing.T) {
	env := newTestEnv(t)
	ticket := env.ticket(t)
	ctx := context.Background()

	_, err := env.desk.UpdateStatus(ctx, clientID, ticket.ID.Hex(), models.TicketStatusUpdate{Status: models.StatusResolved})
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = env.desk.UpdateStatus(ctx, agentID, ticket.ID.Hex(), models.TicketStatusUpdate{Status: models.StatusOpen})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = env.desk.UpdateStatus(ctx, agentID, ticket.ID.Hex(), models.TicketStatusUpdate{Status: models.StatusResolved})
	assert.ErrorIs(t, err, models.ErrConflict, "an open ticket has nobody working on it yet")

	_, err = env.desk.AssignTicket(ctx, agentID, ticket.ID.Hex(), "")
	require.NoError(t, err)

	updated, err := env.desk.UpdateStatus(ctx, agentID, ticket.ID.Hex(), models.TicketStatusUpdate{Status: models.StatusResolved})
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, updated.Status)

	_, err = env.desk.UpdateStatus(ctx, agentID, ticket.ID.Hex(), models.TicketStatusUpdate{Status: models.StatusResolved})
	assert.ErrorIs(t, err, models.ErrConflict)

	env.tasks.Wait()
	notifs := env.notifications.ForUser(clientID.UserID)
	require.Len(t, notifs, 1)
	assert.Equal(t, models.TypeTicketUpdated, notifs[0].Type)
	assert.Equal(t, "Support ticket resolved", notifs[0].Title)
}

func TestUpdateStatus_CloseOpenTicket(t *testing.T) {
	env := newTestEnv(t)
	ticket := env.ticket(t)

	closed, err := env.desk.UpdateStatus(context.Background(), agentID, ticket.ID.Hex(), models.TicketStatusUpdate{Status: models.StatusClosed})
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, closed.Status)
}

func TestAssignTicket(t *testing.T) {
	env := newTestEnv(t)
	ticket := env.ticket(t)
	ctx := context.Background()

	_, err := env.desk.AssignTicket(ctx, clientID, ticket.ID.Hex(), "")
	assert.ErrorIs(t, err, models.ErrForbidden)

	got, err := env.desk.AssignTicket(ctx, agentID, ticket.ID.Hex(), agent2ID.UserID)
	require.NoError(t, err)
	assert.Equal(t, agent2ID.UserID, got.AssignedAgentID)
	assert.Equal(t, models.StatusInProgress, got.Status)

	env.tasks.Wait()
	var assigned []models.Notification
	for _, n := range env.notifications.ForUser(agent2ID.UserID) {
		if n.Type == models.TypeTicketAssigned {
			assigned = append(assigned, n)
		}
	}
	assert.Len(t, assigned, 1)

	// an explicit assignment blocks the implicit one
	_, err = env.reply(agentID, ticket, "taking a look")
	require.NoError(t, err)
	got, err = env.desk.GetTicket(ctx, agentID, ticket.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, agent2ID.UserID, got.AssignedAgentID)
}

type brokenDirectory struct{}

func (brokenDirectory) ListIDsByRoles(context.Context, []string) ([]string, error) {
	return nil, errors.New("users collection unreachable")
}

func TestAssignTicket_AssigneeMustBeAgent(t *testing.T) {
	env := newTestEnv(t)
	ticket := env.ticket(t)
	ctx := context.Background()

	_, err := env.desk.AssignTicket(ctx, agentID, ticket.ID.Hex(), providerID.UserID)
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = env.desk.AssignTicket(ctx, agentID, ticket.ID.Hex(), "nobody")
	assert.ErrorIs(t, err, models.ErrValidation)

	got, err := env.desk.GetTicket(ctx, agentID, ticket.ID.Hex())
	require.NoError(t, err)
	assert.Empty(t, got.AssignedAgentID)
	assert.Equal(t, models.StatusOpen, got.Status)

	// the requester's next message must not reach the rejected assignee
	_, err = env.reply(clientID, ticket, "still waiting for an answer")
	require.NoError(t, err)
	env.tasks.Wait()
	assert.Empty(t, env.notifications.ForUser(providerID.UserID))

	desk := NewSupportService(env.support, brokenDirectory{}, env.authz, env.store, env.notifier, env.emitter, env.tasks)
	_, err = desk.AssignTicket(ctx, agentID, ticket.ID.Hex(), agent2ID.UserID)
	assert.ErrorIs(t, err, models.ErrDependency)

	// self-assignment needs no directory lookup
	got, err = desk.AssignTicket(ctx, agentID, ticket.ID.Hex(), "")
	require.NoError(t, err)
	assert.Equal(t, agentID.UserID, got.AssignedAgentID)
}

func TestJoinTicketAndDashboard(t *testing.T) {
	env := newTestEnv(t)
	ticket := env.ticket(t)
	ctx := context.Background()

	joins := &joinRecorder{}
	res, err := env.desk.JoinTicket(ctx, clientID, ticket.ID.Hex(), joins.join)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, res.Ticket.ID)
	assert.Len(t, res.Messages, 1)

	_, err = env.desk.JoinTicket(ctx, strangerID, ticket.ID.Hex(), joins.join)
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = env.desk.JoinDashboard(ctx, clientID, joins.join)
	assert.ErrorIs(t, err, models.ErrForbidden)

	open, err := env.desk.JoinDashboard(ctx, agentID, joins.join)
	require.NoError(t, err)
	assert.Len(t, open, 1)
	assert.Equal(t, []models.RoomKey{models.TicketRoom(ticket.ID.Hex()), models.DashboardRoom()}, joins.rooms)
}

func TestListTickets(t *testing.T) {
	env := newTestEnv(t)
	env.ticket(t)
	ctx := context.Background()

	mine, err := env.desk.ListTickets(ctx, clientID, "")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	theirs, err := env.desk.ListTickets(ctx, strangerID, "")
	require.NoError(t, err)
	assert.Empty(t, theirs)

	all, err := env.desk.ListTickets(ctx, agentID, models.StatusOpen)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
