package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"fixitnow/internal/domain"
	"fixitnow/internal/repository"
)

// UserRepository is a MongoDB implementation of repository.UserRepository.
type UserRepository struct {
	coll *mongo.Collection
}

// NewUserRepository creates a user repository on db.
func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(usersCollection)}
}

// Create adds a new user.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	_, err := r.coll.InsertOne(ctx, user)
	return err
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// ListActiveTechnicians returns active technicians offering serviceType, most experienced first.
func (r *UserRepository) ListActiveTechnicians(ctx context.Context, serviceType string, limit int) ([]*domain.User, error) {
	filter := bson.M{
		"role":         domain.RoleTechnician,
		"isActive":     true,
		"serviceTypes": serviceType,
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "completedJobs", Value: -1}}).
		SetLimit(int64(repository.NormalizeLimit(limit)))

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var users []*domain.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// IncrementCompletedJobs bumps the technician's completed-job counter.
func (r *UserRepository) IncrementCompletedJobs(ctx context.Context, id string) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"completedJobs": 1}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}
