package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserRepository is a read-only view over the accounts collection.
type UserRepository struct {
	col *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{col: db.Collection("users")}
}

// ListIDsByRoles returns the ids of non-banned users holding any of roles.
func (r *UserRepository) ListIDsByRoles(ctx context.Context, roles []string) ([]string, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cursor, err := r.col.Find(ctx, bson.M{
		"role":   bson.M{"$in": roles},
		"banned": bson.M{"$ne": true},
	}, opts)
	if err != nil {
		return nil, handleDatabaseError(err)
	}
	defer cursor.Close(ctx)

	var ids []string
	for cursor.Next(ctx) {
		var doc struct {
			ID interface{} `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, handleDatabaseError(err)
		}
		switch v := doc.ID.(type) {
		case primitive.ObjectID:
			ids = append(ids, v.Hex())
		case string:
			ids = append(ids, v)
		}
	}
	return ids, handleDatabaseError(cursor.Err())
}
