package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const technicianLocationKey = "technicians:locations"

// TechnicianPosition is a technician's last known position and distance from the query point.
type TechnicianPosition struct {
	TechnicianID string
	Lat          float64
	Lng          float64
	DistanceKm   float64
}

// LocationStore handles technician location operations in Redis.
type LocationStore struct {
	client *redis.Client
}

// NewLocationStore creates a new LocationStore.
func NewLocationStore(client *redis.Client) *LocationStore {
	return &LocationStore{client: client}
}

// UpdateLocation stores a technician's location using GEOADD.
func (s *LocationStore) UpdateLocation(ctx context.Context, technicianID string, lat, lng float64) error {
	return s.client.GeoAdd(ctx, technicianLocationKey, &redis.GeoLocation{
		Name:      technicianID,
		Longitude: lng,
		Latitude:  lat,
	}).Err()
}

// FindNearby returns up to limit technicians within radiusKm, closest first.
func (s *LocationStore) FindNearby(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]TechnicianPosition, error) {
	results, err := s.client.GeoSearchLocation(ctx, technicianLocationKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  lng,
			Latitude:   lat,
			Radius:     radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
			Count:      limit,
		},
		WithCoord: true,
		WithDist:  true,
	}).Result()
	if err != nil {
		return nil, err
	}

	positions := make([]TechnicianPosition, 0, len(results))
	for _, r := range results {
		positions = append(positions, TechnicianPosition{
			TechnicianID: r.Name,
			Lat:          r.Latitude,
			Lng:          r.Longitude,
			DistanceKm:   r.Dist,
		})
	}

	return positions, nil
}

// RemoveLocation removes a technician from the geo index.
func (s *LocationStore) RemoveLocation(ctx context.Context, technicianID string) error {
	return s.client.ZRem(ctx, technicianLocationKey, technicianID).Err()
}
