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

const messagesCollection = "messages"

type MessageRepository struct {
	col *mongo.Collection
}

func NewMessageRepository(db *mongo.Database) *MessageRepository {
	return &MessageRepository{col: db.Collection(messagesCollection)}
}

func (r *MessageRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "sender_id", Value: 1}}},
		{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "recipient_id", Value: 1}, {Key: "read", Value: 1}}},
		{Keys: bson.D{{Key: "body.text", Value: "text"}}},
	})
	return handleDatabaseError(err)
}

func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	msg.ID = primitive.NewObjectID()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	msg.Delivered = false
	msg.DeliveredAt = nil
	msg.Read = false
	msg.ReadAt = nil
	_, err := r.col.InsertOne(ctx, msg)
	return handleDatabaseError(err)
}

// HasMessageFrom reports whether senderID has written in the conversation.
func (r *MessageRepository) HasMessageFrom(ctx context.Context, conversationID primitive.ObjectID, senderID string) (bool, error) {
	count, err := r.col.CountDocuments(ctx,
		bson.M{"conversation_id": conversationID, "sender_id": senderID},
		options.Count().SetLimit(1),
	)
	if err != nil {
		return false, handleDatabaseError(err)
	}
	return count > 0, nil
}

// MarkDelivered flags one message as delivered. Only the recipient's copy
// matches and an already delivered message is left untouched.
func (r *MessageRepository) MarkDelivered(ctx context.Context, id primitive.ObjectID, recipientID string, at time.Time) (bool, error) {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "recipient_id": recipientID, "delivered": false},
		bson.M{"$set": bson.M{"delivered": true, "delivered_at": at}},
	)
	if err != nil {
		return false, handleDatabaseError(err)
	}
	return res.ModifiedCount > 0, nil
}

func (r *MessageRepository) MarkConversationDelivered(ctx context.Context, conversationID primitive.ObjectID, recipientID string, at time.Time) (int64, error) {
	res, err := r.col.UpdateMany(ctx,
		bson.M{"conversation_id": conversationID, "recipient_id": recipientID, "delivered": false},
		bson.M{"$set": bson.M{"delivered": true, "delivered_at": at}},
	)
	if err != nil {
		return 0, handleDatabaseError(err)
	}
	return res.ModifiedCount, nil
}

// MarkConversationRead marks the recipient's unread messages as read. A message
// read before it was flagged delivered gets delivered_at = read_at.
func (r *MessageRepository) MarkConversationRead(ctx context.Context, conversationID primitive.ObjectID, recipientID string, at time.Time) (int64, error) {
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "read", Value: true},
			{Key: "read_at", Value: at},
			{Key: "delivered", Value: true},
			{Key: "delivered_at", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$delivered_at", at}}}},
		}}},
	}
	res, err := r.col.UpdateMany(ctx,
		bson.M{"conversation_id": conversationID, "recipient_id": recipientID, "read": false},
		update,
	)
	if err != nil {
		return 0, handleDatabaseError(err)
	}
	return res.ModifiedCount, nil
}

// History returns up to q.Limit messages created before q.Before, oldest first.
func (r *MessageRepository) History(ctx context.Context, conversationID primitive.ObjectID, q models.HistoryQuery) ([]models.Message, error) {
	filter := bson.M{"conversation_id": conversationID}
	if !q.Before.IsZero() {
		filter["created_at"] = bson.M{"$lt": q.Before}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(q.Limit)

	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, handleDatabaseError(err)
	}
	defer cursor.Close(ctx)

	result := []models.Message{}
	if err := cursor.All(ctx, &result); err != nil {
		return nil, handleDatabaseError(err)
	}
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result, nil
}

// Search runs a full-text query inside one conversation, best match first.
func (r *MessageRepository) Search(ctx context.Context, conversationID primitive.ObjectID, query string, limit int64) ([]models.Message, error) {
	filter := bson.M{
		"conversation_id": conversationID,
		"$text":           bson.M{"$search": query},
	}
	opts := options.Find().
		SetProjection(bson.M{"score": bson.M{"$meta": "textScore"}}).
		SetSort(bson.D{{Key: "score", Value: bson.M{"$meta": "textScore"}}}).
		SetLimit(limit)

	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, handleDatabaseError(err)
	}
	defer cursor.Close(ctx)

	result := []models.Message{}
	if err := cursor.All(ctx, &result); err != nil {
		return nil, handleDatabaseError(err)
	}
	return result, nil
}
