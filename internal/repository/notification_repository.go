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

// Every update here filters on user_id so one user can never touch
// another user's notification state.
type NotificationRepository struct {
	col *mongo.Collection
}

func NewNotificationRepository(db *mongo.Database) *NotificationRepository {
	return &NotificationRepository{col: db.Collection("notifications")}
}

func (r *NotificationRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "read", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "delivered", Value: 1}}},
	})
	return handleDatabaseError(err)
}

func (r *NotificationRepository) Create(ctx context.Context, notif *models.Notification) error {
	notif.ID = primitive.NewObjectID()
	notif.CreatedAt = time.Now().UTC()
	notif.Read = false
	notif.ReadAt = nil
	_, err := r.col.InsertOne(ctx, notif)
	return handleDatabaseError(err)
}

func (r *NotificationRepository) CreateMany(ctx context.Context, notifs []*models.Notification) error {
	if len(notifs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	docs := make([]interface{}, 0, len(notifs))
	for _, n := range notifs {
		n.ID = primitive.NewObjectID()
		n.CreatedAt = now
		n.Read = false
		n.ReadAt = nil
		docs = append(docs, n)
	}
	_, err := r.col.InsertMany(ctx, docs)
	return handleDatabaseError(err)
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, limit, offset int64) ([]models.Notification, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit).
		SetSkip(offset)
	cursor, err := r.col.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, handleDatabaseError(err)
	}
	defer cursor.Close(ctx)

	result := []models.Notification{}
	if err := cursor.All(ctx, &result); err != nil {
		return nil, handleDatabaseError(err)
	}
	return result, nil
}

// MarkAsRead returns ErrNotFound when the notification does not exist or
// belongs to someone else.
func (r *NotificationRepository) MarkAsRead(ctx context.Context, id primitive.ObjectID, userID string, at time.Time) error {
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "read", Value: true},
			{Key: "read_at", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$read_at", at}}}},
		}}},
	}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id, "user_id": userID}, update)
	if err != nil {
		return handleDatabaseError(err)
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *NotificationRepository) MarkAllAsRead(ctx context.Context, userID string, at time.Time) (int64, error) {
	res, err := r.col.UpdateMany(ctx,
		bson.M{"user_id": userID, "read": false},
		bson.M{"$set": bson.M{"read": true, "read_at": at}},
	)
	if err != nil {
		return 0, handleDatabaseError(err)
	}
	return res.ModifiedCount, nil
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	count, err := r.col.CountDocuments(ctx, bson.M{"user_id": userID, "read": false})
	if err != nil {
		return 0, handleDatabaseError(err)
	}
	return count, nil
}

// MarkPendingDelivered is the join-time sweep. Already delivered records do not
// match, so delivered_at is written once.
func (r *NotificationRepository) MarkPendingDelivered(ctx context.Context, userID string, at time.Time) (int64, error) {
	res, err := r.col.UpdateMany(ctx,
		bson.M{"user_id": userID, "delivered": false},
		bson.M{"$set": bson.M{"delivered": true, "delivered_at": at}},
	)
	if err != nil {
		return 0, handleDatabaseError(err)
	}
	return res.ModifiedCount, nil
}

func (r *NotificationRepository) Delete(ctx context.Context, id primitive.ObjectID, userID string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return handleDatabaseError(err)
	}
	if res.DeletedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}
