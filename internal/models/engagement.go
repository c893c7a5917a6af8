package models

import "go.mongodb.org/mongo-driver/bson/primitive"

const QuoteAccepted = "accepted"

// Quote is the read-only view of the marketplace quote that unlocks
// provider-to-requester messaging once accepted.
type Quote struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	JobID      string             `bson:"job_id" json:"job_id"`
	ProviderID string             `bson:"provider_id" json:"provider_id"`
	ClientID   string             `bson:"client_id" json:"client_id"`
	Status     string             `bson:"status" json:"status"`
}
