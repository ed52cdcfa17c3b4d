package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"fixitnow/internal/domain"
	"fixitnow/internal/repository"
)

// NotificationRepository is a MongoDB implementation of repository.NotificationRepository.
type NotificationRepository struct {
	coll *mongo.Collection
}

// NewNotificationRepository creates a notification repository on db.
func NewNotificationRepository(db *mongo.Database) *NotificationRepository {
	return &NotificationRepository{coll: db.Collection(notificationsCollection)}
}

// Create stores a notification.
func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	_, err := r.coll.InsertOne(ctx, n)
	return err
}

// ListByRecipient returns the newest notifications for a user.
func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]*domain.Notification, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(repository.NormalizeLimit(limit)))

	cur, err := r.coll.Find(ctx, bson.M{"recipientId": recipientID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*domain.Notification
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
