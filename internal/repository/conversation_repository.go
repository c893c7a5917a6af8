package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"home-services/realtime-service/internal/models"
)

const conversationsCollection = "conversations"

type ConversationRepository struct {
	col *mongo.Collection
}

func NewConversationRepository(db *mongo.Database) *ConversationRepository {
	return &ConversationRepository{col: db.Collection(conversationsCollection)}
}

func (r *ConversationRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "participant_ids", Value: 1}, {Key: "last_activity_at", Value: -1}}},
		{Keys: bson.D{{Key: "participant_ids", Value: 1}, {Key: "engagement_id", Value: 1}}},
	})
	return handleDatabaseError(err)
}

func (r *ConversationRepository) Create(ctx context.Context, conv *models.Conversation) error {
	now := time.Now().UTC()
	conv.ID = primitive.NewObjectID()
	conv.ParticipantIDs = make([]string, 0, len(conv.Participants))
	for _, p := range conv.Participants {
		conv.ParticipantIDs = append(conv.ParticipantIDs, p.UserID)
	}
	conv.CreatedAt = now
	conv.LastActivityAt = now
	_, err := r.col.InsertOne(ctx, conv)
	return handleDatabaseError(err)
}

func (r *ConversationRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Conversation, error) {
	var conv models.Conversation
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&conv); err != nil {
		return nil, handleDatabaseError(err)
	}
	return &conv, nil
}

// FindBetween returns the conversation of two users about one engagement.
func (r *ConversationRepository) FindBetween(ctx context.Context, userA, userB, engagementID string) (*models.Conversation, error) {
	filter := bson.M{
		"participant_ids": bson.M{"$all": bson.A{userA, userB}},
		"engagement_id":   engagementID,
	}
	if engagementID == "" {
		filter["engagement_id"] = bson.M{"$in": bson.A{"", nil}}
	}
	var conv models.Conversation
	if err := r.col.FindOne(ctx, filter).Decode(&conv); err != nil {
		return nil, handleDatabaseError(err)
	}
	return &conv, nil
}

func (r *ConversationRepository) ListByUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "last_activity_at", Value: -1}})
	cursor, err := r.col.Find(ctx, bson.M{"participant_ids": userID}, opts)
	if err != nil {
		return nil, handleDatabaseError(err)
	}
	defer cursor.Close(ctx)

	result := []models.Conversation{}
	if err := cursor.All(ctx, &result); err != nil {
		return nil, handleDatabaseError(err)
	}
	return result, nil
}

// TouchActivity sets last_activity_at; concurrent writers race and the last one wins.
func (r *ConversationRepository) TouchActivity(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	res, err := r.col.UpdateByID(ctx, id, bson.M{"$set": bson.M{"last_activity_at": at}})
	if err != nil {
		return handleDatabaseError(err)
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}
