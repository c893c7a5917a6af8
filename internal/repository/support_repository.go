package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"home-services/realtime-service/internal/models"
)

type SupportRepository struct {
	ticketsCol  *mongo.Collection
	messagesCol *mongo.Collection
}

func NewSupportRepository(db *mongo.Database) *SupportRepository {
	return &SupportRepository{
		ticketsCol:  db.Collection("support_tickets"),
		messagesCol: db.Collection("support_messages"),
	}
}

func (r *SupportRepository) EnsureIndexes(ctx context.Context) error {
	if _, err := r.ticketsCol.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "requester_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "priority", Value: 1}}},
	}); err != nil {
		return handleDatabaseError(err)
	}
	_, err := r.messagesCol.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "ticket_id", Value: 1}, {Key: "created_at", Value: 1}},
	})
	return handleDatabaseError(err)
}

// Ticket CRUD

func (r *SupportRepository) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	now := time.Now().UTC()
	ticket.ID = primitive.NewObjectID()
	ticket.Status = models.StatusOpen
	ticket.AssignedAgentID = ""
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	ticket.LastActivityAt = now
	_, err := r.ticketsCol.InsertOne(ctx, ticket)
	return handleDatabaseError(err)
}

func (r *SupportRepository) GetTicketByID(ctx context.Context, id primitive.ObjectID) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := r.ticketsCol.FindOne(ctx, bson.M{"_id": id}).Decode(&ticket); err != nil {
		return nil, handleDatabaseError(err)
	}
	return &ticket, nil
}

func (r *SupportRepository) GetTicketsByRequester(ctx context.Context, requesterID string) ([]models.Ticket, error) {
	return r.findTickets(ctx, bson.M{"requester_id": requesterID})
}

func (r *SupportRepository) GetAllTickets(ctx context.Context, status models.TicketStatus) ([]models.Ticket, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	return r.findTickets(ctx, filter)
}

func (r *SupportRepository) findTickets(ctx context.Context, filter bson.M) ([]models.Ticket, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.ticketsCol.Find(ctx, filter, opts)
	if err != nil {
		return nil, handleDatabaseError(err)
	}
	defer cursor.Close(ctx)

	result := []models.Ticket{}
	if err := cursor.All(ctx, &result); err != nil {
		return nil, handleDatabaseError(err)
	}
	return result, nil
}

// UpdateTicketStatus moves the ticket from one status to another. It fails
// with ErrConflict when somebody changed the status in between.
func (r *SupportRepository) UpdateTicketStatus(ctx context.Context, id primitive.ObjectID, from, to models.TicketStatus) (*models.Ticket, error) {
	now := time.Now().UTC()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var ticket models.Ticket
	err := r.ticketsCol.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": bson.M{"status": to, "updated_at": now}},
		opts,
	).Decode(&ticket)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrConflict
	}
	if err != nil {
		return nil, handleDatabaseError(err)
	}
	return &ticket, nil
}

// AssignIfUnassigned gives an open, unassigned ticket to agentID and moves it
// to in_progress. It reports false when the ticket already had an agent.
func (r *SupportRepository) AssignIfUnassigned(ctx context.Context, id primitive.ObjectID, agentID string) (*models.Ticket, bool, error) {
	now := time.Now().UTC()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var ticket models.Ticket
	err := r.ticketsCol.FindOneAndUpdate(ctx,
		bson.M{
			"_id":    id,
			"status": models.StatusOpen,
			"$or": bson.A{
				bson.M{"assigned_agent_id": bson.M{"$exists": false}},
				bson.M{"assigned_agent_id": ""},
			},
		},
		bson.M{"$set": bson.M{
			"assigned_agent_id": agentID,
			"status":            models.StatusInProgress,
			"updated_at":        now,
		}},
		opts,
	).Decode(&ticket)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, handleDatabaseError(err)
	}
	return &ticket, true, nil
}

// AssignTicket is the explicit assignment done by an agent. An open ticket
// moves to in_progress, other statuses are kept.
func (r *SupportRepository) AssignTicket(ctx context.Context, id primitive.ObjectID, agentID string) (*models.Ticket, error) {
	now := time.Now().UTC()
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "assigned_agent_id", Value: agentID},
			{Key: "updated_at", Value: now},
			{Key: "status", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$eq", Value: bson.A{"$status", models.StatusOpen}}},
				models.StatusInProgress,
				"$status",
			}}}},
		}}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var ticket models.Ticket
	err := r.ticketsCol.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": bson.M{"$in": bson.A{models.StatusOpen, models.StatusInProgress}}},
		update,
		opts,
	).Decode(&ticket)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, getErr := r.GetTicketByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, models.ErrConflict
	}
	if err != nil {
		return nil, handleDatabaseError(err)
	}
	return &ticket, nil
}

func (r *SupportRepository) TouchActivity(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := r.ticketsCol.UpdateByID(ctx, id, bson.M{"$set": bson.M{"last_activity_at": at}})
	return handleDatabaseError(err)
}

// Chat messages

func (r *SupportRepository) AddMessage(ctx context.Context, msg *models.SupportMessage) error {
	msg.ID = primitive.NewObjectID()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	_, err := r.messagesCol.InsertOne(ctx, msg)
	return handleDatabaseError(err)
}

func (r *SupportRepository) GetMessagesByTicket(ctx context.Context, ticketID primitive.ObjectID) ([]models.SupportMessage, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.messagesCol.Find(ctx, bson.M{"ticket_id": ticketID}, opts)
	if err != nil {
		return nil, handleDatabaseError(err)
	}
	defer cursor.Close(ctx)

	result := []models.SupportMessage{}
	if err := cursor.All(ctx, &result); err != nil {
		return nil, handleDatabaseError(err)
	}
	return result, nil
}
