// Package mongo stores bookings as documents for DB_DRIVER=mongo.
package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	bookingsCollection      = "bookings"
	notificationsCollection = "notifications"
	usersCollection         = "users"
)

// EnsureIndexes creates the indexes the repositories query on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		bookingsCollection: {
			{Keys: bson.D{{Key: "customerId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "technicianId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "broadcastState.candidates.technicianId", Value: 1}}},
			{
				Keys:    bson.D{{Key: "broadcastState.expiresAt", Value: 1}},
				Options: options.Index().SetPartialFilterExpression(bson.M{"broadcastState.isActive": true}),
			},
		},
		notificationsCollection: {
			{Keys: bson.D{{Key: "recipientId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		usersCollection: {
			{Keys: bson.D{{Key: "role", Value: 1}, {Key: "serviceTypes", Value: 1}}},
		},
	}

	for coll, models := range indexes {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", coll, err)
		}
	}
	return nil
}
