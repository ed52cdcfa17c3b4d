package service

import (
	"context"

	"fixitnow/internal/domain"
	"fixitnow/internal/redis"
)

const (
	defaultSearchRadiusKm = 15.0
	defaultMaxCandidates  = 10
)

// GeoCandidateSelector offers broadcasts to the nearest active technicians that list
// the service type. Without coordinates or a geo index, or when nobody is nearby, it
// falls back to the directory's most experienced technicians for the service type.
type GeoCandidateSelector struct {
	locations     redis.LocationStoreInterface
	directory     *Directory
	radiusKm      float64
	maxCandidates int
}

// NewGeoCandidateSelector creates a new GeoCandidateSelector. locations may be nil.
func NewGeoCandidateSelector(locations redis.LocationStoreInterface, directory *Directory, radiusKm float64, maxCandidates int) *GeoCandidateSelector {
	if radiusKm <= 0 {
		radiusKm = defaultSearchRadiusKm
	}
	if maxCandidates <= 0 {
		maxCandidates = defaultMaxCandidates
	}
	return &GeoCandidateSelector{
		locations:     locations,
		directory:     directory,
		radiusKm:      radiusKm,
		maxCandidates: maxCandidates,
	}
}

// CandidateTechnicians returns technician ids, closest first when coordinates are known.
func (g *GeoCandidateSelector) CandidateTechnicians(ctx context.Context, serviceType string, loc domain.Location) ([]string, error) {
	if g.locations != nil && loc.HasCoordinates() {
		ids, err := g.nearby(ctx, serviceType, *loc.Lat, *loc.Lng)
		if err != nil {
			return nil, err
		}
		if len(ids) > 0 {
			return ids, nil
		}
	}

	users, err := g.directory.ListActiveTechnicians(ctx, serviceType, g.maxCandidates)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids, nil
}

func (g *GeoCandidateSelector) nearby(ctx context.Context, serviceType string, lat, lng float64) ([]string, error) {
	// Over-fetch: some nearby technicians will not offer the service.
	positions, err := g.locations.FindNearby(ctx, lat, lng, g.radiusKm, g.maxCandidates*3)
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return nil, nil
	}

	nearbyIDs := make([]string, len(positions))
	for i, p := range positions {
		nearbyIDs[i] = p.TechnicianID
	}

	technicians, err := g.directory.ActiveTechnicians(ctx, nearbyIDs)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, g.maxCandidates)
	for _, u := range technicians {
		if !u.Offers(serviceType) {
			continue
		}
		ids = append(ids, u.ID)
		if len(ids) == g.maxCandidates {
			break
		}
	}
	return ids, nil
}
