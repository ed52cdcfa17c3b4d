package service

import (
	"context"
	"time"

	"fixitnow/internal/domain"
)

var defaultCancelReasons = map[domain.Role]string{
	domain.RoleCustomer:   "Cancelled by customer",
	domain.RoleTechnician: "Cancelled by technician",
	domain.RoleAdmin:      "Cancelled by admin",
}

// AcceptBooking accepts a pending booking. Broadcast bookings race through the
// dispatch coordinator; precision bookings are accepted by their named technician.
func (s *BookingService) AcceptBooking(ctx context.Context, id string, actor domain.Actor) (*domain.Booking, error) {
	b, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(b, actor, domain.ActionAccept); err != nil {
		return nil, err
	}

	if b.IsBroadcast() {
		return s.acceptBroadcast(ctx, id, actor)
	}
	return s.transition(ctx, id, actor, domain.ActionAccept, nil)
}

// RejectBooking declines a booking. On a broadcast it only withdraws the actor's own offer.
func (s *BookingService) RejectBooking(ctx context.Context, id string, actor domain.Actor, reason string) (*domain.Booking, error) {
	b, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if b.IsBroadcast() {
		return s.RejectCandidate(ctx, id, actor, reason)
	}
	return s.transition(ctx, id, actor, domain.ActionReject, func(b *domain.Booking, _ time.Time) {
		b.CancellationReason = reason
	})
}

// StartBooking marks the job in progress.
func (s *BookingService) StartBooking(ctx context.Context, id string, actor domain.Actor) (*domain.Booking, error) {
	return s.transition(ctx, id, actor, domain.ActionStart, nil)
}

// CompleteBooking finishes an in-progress job, records the work notes and the actual
// duration in hours, and bumps the technician's completed-job counter.
func (s *BookingService) CompleteBooking(ctx context.Context, id string, actor domain.Actor, notes string) (*domain.Booking, error) {
	b, err := s.transition(ctx, id, actor, domain.ActionComplete, func(b *domain.Booking, now time.Time) {
		details := &domain.CompletionDetails{WorkDescription: notes}
		if b.StartedAt != nil {
			hours := now.Sub(*b.StartedAt).Hours()
			details.ActualDuration = &hours
		}
		b.CompletionDetails = details
	})
	if err != nil {
		return nil, err
	}

	if err := s.directory.IncrementCompletedJobs(ctx, b.TechnicianID); err != nil {
		s.logger.Warn("failed to increment completed jobs",
			"technician_id", b.TechnicianID, "booking_id", b.ID, "error", err)
	}
	return b, nil
}

// CancelBooking cancels a non-terminal booking. An empty reason is replaced by the
// role's default reason. An open broadcast is closed with it.
func (s *BookingService) CancelBooking(ctx context.Context, id string, actor domain.Actor, reason string) (*domain.Booking, error) {
	if reason == "" {
		reason = defaultCancelReasons[actor.Role]
	}
	var closed bool
	b, err := s.transition(ctx, id, actor, domain.ActionCancel, func(b *domain.Booking, _ time.Time) {
		b.CancelledBy = actor.Role
		b.CancellationReason = reason
		closed = false
		if bs := b.BroadcastState; bs != nil && bs.IsActive {
			bs.IsActive = false
			bs.Candidates = bs.Candidates.WithPendingAutoRejected()
			closed = true
		}
	})
	if err != nil {
		return nil, err
	}
	if closed {
		s.notifier.NotifyBroadcastClosed(ctx, b)
	}
	return b, nil
}

// UpdateBookingStatus moves a booking to target through the matching lifecycle action.
// Statuses no action reaches are refused.
func (s *BookingService) UpdateBookingStatus(ctx context.Context, id string, actor domain.Actor, target domain.Status) (*domain.Booking, error) {
	action, ok := domain.ActionFor(target)
	if !ok {
		b, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := s.policy.Authorize(b, actor, actionRead); err != nil {
			return nil, err
		}
		return nil, &domain.InvalidTransitionError{From: b.Status, Action: domain.Action("move to " + string(target)), Role: actor.Role}
	}

	switch action {
	case domain.ActionAccept:
		return s.AcceptBooking(ctx, id, actor)
	case domain.ActionReject:
		return s.RejectBooking(ctx, id, actor, "")
	case domain.ActionComplete:
		return s.CompleteBooking(ctx, id, actor, "")
	case domain.ActionCancel:
		return s.CancelBooking(ctx, id, actor, "")
	}
	return s.transition(ctx, id, actor, action, nil)
}

// transition applies one lifecycle action: ownership check, transition table lookup,
// optional extra changes, conditional write and fan-out.
func (s *BookingService) transition(
	ctx context.Context,
	id string,
	actor domain.Actor,
	action domain.Action,
	apply func(b *domain.Booking, now time.Time),
) (*domain.Booking, error) {
	_, next, err := s.mutate(ctx, id, s.bookings.Update, func(b *domain.Booking, now time.Time) error {
		if err := s.policy.Authorize(b, actor, action); err != nil {
			return err
		}
		to, err := domain.NextStatus(b.Status, action, actor.Role)
		if err != nil {
			return err
		}

		b.Status = to
		if apply != nil {
			apply(b, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking status changed",
		"booking_id", id, "status", next.Status, "action", action, "actor_id", actor.ID, "role", actor.Role)
	s.notifier.NotifyStatusChanged(ctx, next, actor)
	return next, nil
}
