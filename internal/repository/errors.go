package repository

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"home-services/realtime-service/internal/models"
)

func handleDatabaseError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.ErrNotFound
	}
	return fmt.Errorf("%w: %w", models.ErrDependency, err)
}
