package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"fixitnow/internal/domain"
	"fixitnow/internal/repository"
)

// BookingRepository is a MongoDB implementation of repository.BookingRepository.
type BookingRepository struct {
	coll *mongo.Collection
}

// NewBookingRepository creates a booking repository on db.
func NewBookingRepository(db *mongo.Database) *BookingRepository {
	return &BookingRepository{coll: db.Collection(bookingsCollection)}
}

// Create persists a new booking at version 1.
func (r *BookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	b.Version = 1
	_, err := r.coll.InsertOne(ctx, b)
	return err
}

// GetByID retrieves a booking by ID.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	var b domain.Booking
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&b)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

// List retrieves bookings matching filter, newest first.
func (r *BookingRepository) List(ctx context.Context, f repository.BookingFilter) ([]*domain.Booking, error) {
	filter := bson.M{}
	if f.CustomerID != "" {
		filter["customerId"] = f.CustomerID
	}
	if f.ParticipantID != "" {
		filter["$or"] = bson.A{
			bson.M{"technicianId": f.ParticipantID},
			bson.M{"broadcastState.candidates.technicianId": f.ParticipantID},
		}
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(repository.NormalizeLimit(f.Limit)))
	return r.find(ctx, filter, opts)
}

// ListExpiredBroadcasts returns active, unclaimed broadcasts whose expiresAt is before now.
func (r *BookingRepository) ListExpiredBroadcasts(ctx context.Context, now time.Time, limit int) ([]*domain.Booking, error) {
	filter := bson.M{
		"broadcastState.isActive":   true,
		"broadcastState.acceptedBy": nil,
		"broadcastState.expiresAt":  bson.M{"$lt": now},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "broadcastState.expiresAt", Value: 1}}).
		SetLimit(int64(repository.NormalizeLimit(limit)))
	return r.find(ctx, filter, opts)
}

// Update replaces the booking if the stored version still equals expectedVersion.
func (r *BookingRepository) Update(ctx context.Context, b *domain.Booking, expectedVersion int64) error {
	return r.replace(ctx, b, expectedVersion, false)
}

// Claim replaces the booking if the stored version matches and no winner is stored yet.
// acceptedBy is omitted while empty, so a nil match covers both missing and null.
func (r *BookingRepository) Claim(ctx context.Context, b *domain.Booking, expectedVersion int64) error {
	return r.replace(ctx, b, expectedVersion, true)
}

func (r *BookingRepository) replace(ctx context.Context, b *domain.Booking, expectedVersion int64, claim bool) error {
	filter := bson.M{"_id": b.ID, "version": expectedVersion}
	if claim {
		filter["broadcastState.acceptedBy"] = nil
	}

	b.Version = expectedVersion + 1
	res, err := r.coll.ReplaceOne(ctx, filter, b)
	if err != nil {
		b.Version = expectedVersion
		return err
	}
	if res.MatchedCount == 0 {
		b.Version = expectedVersion
		return r.missReason(ctx, b.ID, claim)
	}
	return nil
}

func (r *BookingRepository) missReason(ctx context.Context, id string, claim bool) error {
	var stored struct {
		BroadcastState *struct {
			AcceptedBy string `bson:"acceptedBy"`
		} `bson:"broadcastState"`
	}
	opts := options.FindOne().SetProjection(bson.M{"broadcastState.acceptedBy": 1})
	err := r.coll.FindOne(ctx, bson.M{"_id": id}, opts).Decode(&stored)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return repository.ErrNotFound
		}
		return err
	}
	if claim && stored.BroadcastState != nil && stored.BroadcastState.AcceptedBy != "" {
		return repository.ErrAlreadyClaimed
	}
	return repository.ErrConflict
}

func (r *BookingRepository) find(ctx context.Context, filter any, opts *options.FindOptions) ([]*domain.Booking, error) {
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var bookings []*domain.Booking
	if err := cur.All(ctx, &bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}
