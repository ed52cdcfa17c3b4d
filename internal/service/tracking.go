package service

import (
	"context"
	"time"

	"fixitnow/internal/domain"
)

// UpdateTechnicianLocation records a position fix from the assigned technician while
// the job is active, refreshes the ETA and the technician's entry in the geo index,
// and streams the position to the customer.
func (s *BookingService) UpdateTechnicianLocation(ctx context.Context, id string, actor domain.Actor, lat, lng float64) (*domain.Booking, error) {
	if !domain.IsValidCoordinate(lat, lng) {
		return nil, &domain.ValidationError{Fields: map[string]string{
			"lat": "must be between -90 and 90",
			"lng": "must be between -180 and 180",
		}}
	}

	_, next, err := s.mutate(ctx, id, s.bookings.Update, func(b *domain.Booking, now time.Time) error {
		if err := s.policy.Authorize(b, actor, actionTrack); err != nil {
			return err
		}
		if actor.Role != domain.RoleTechnician || b.TechnicianID != actor.ID {
			return &domain.ForbiddenError{Role: actor.Role, Action: string(actionTrack)}
		}
		if !b.Status.IsTrackable() {
			return &domain.InvalidTransitionError{From: b.Status, Action: actionTrack, Role: actor.Role}
		}

		var tl domain.TechnicianLocation
		if b.TechnicianLocation != nil {
			tl = *b.TechnicianLocation
		}
		updated := tl.WithFix(domain.GeoPoint{Lat: lat, Lng: lng, RecordedAt: now}, b.Location, s.settings.AverageSpeedKmh)
		b.TechnicianLocation = &updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.locations != nil {
		if err := s.locations.UpdateLocation(ctx, actor.ID, lat, lng); err != nil {
			s.logger.Warn("failed to update technician geo index", "technician_id", actor.ID, "error", err)
		}
	}

	s.notifier.NotifyLocationUpdated(ctx, next)
	return next, nil
}
