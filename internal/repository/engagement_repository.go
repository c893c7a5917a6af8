package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"home-services/realtime-service/internal/models"
)

// EngagementRepository reads the quotes written by the marketplace service.
type EngagementRepository struct {
	col *mongo.Collection
}

func NewEngagementRepository(db *mongo.Database) *EngagementRepository {
	return &EngagementRepository{col: db.Collection("quotes")}
}

// HasAcceptedEngagement reports whether providerID has an accepted quote from
// clientID. With a jobID the quote must belong to that job.
func (r *EngagementRepository) HasAcceptedEngagement(ctx context.Context, providerID, clientID, jobID string) (bool, error) {
	filter := bson.M{
		"provider_id": providerID,
		"client_id":   clientID,
		"status":      models.QuoteAccepted,
	}
	if jobID != "" {
		filter["job_id"] = jobID
	}
	count, err := r.col.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, handleDatabaseError(err)
	}
	return count > 0, nil
}
