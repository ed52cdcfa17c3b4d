package service

import (
	"context"
	"strings"
	"time"

	"fixitnow/internal/domain"
)

// RaiseDispute flags a completed booking. The status stays completed; a booking
// carries at most one dispute.
func (s *BookingService) RaiseDispute(ctx context.Context, id string, actor domain.Actor, reason string) (*domain.Booking, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.NewValidationError("reason", "is required")
	}

	_, next, err := s.mutate(ctx, id, s.bookings.Update, func(b *domain.Booking, now time.Time) error {
		if err := s.policy.Authorize(b, actor, actionDispute); err != nil {
			return err
		}
		if actor.Role != domain.RoleCustomer && actor.Role != domain.RoleTechnician {
			return &domain.ForbiddenError{Role: actor.Role, Action: string(actionDispute)}
		}
		if b.Status != domain.StatusCompleted || b.Dispute != nil {
			return &domain.InvalidTransitionError{From: b.Status, Action: actionDispute, Role: actor.Role}
		}

		b.Dispute = &domain.Dispute{
			RaisedBy: actor.ID,
			Role:     actor.Role,
			Reason:   reason,
			RaisedAt: now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("dispute raised", "booking_id", id, "actor_id", actor.ID, "role", actor.Role)
	for _, party := range []string{next.CustomerID, next.TechnicianID} {
		if party != "" && party != actor.ID {
			s.notifier.Notify(ctx, party, domain.NotificationWarning, "Dispute raised",
				"A dispute was raised on your "+next.ServiceType+" booking: "+reason, next.ID)
		}
	}
	return next, nil
}

// ResolveDispute records an admin's outcome. A refund only flips paymentStatus;
// settlement happens outside this service.
func (s *BookingService) ResolveDispute(ctx context.Context, id string, actor domain.Actor, resolution string, refund bool) (*domain.Booking, error) {
	resolution = strings.TrimSpace(resolution)
	if resolution == "" {
		return nil, domain.NewValidationError("resolution", "is required")
	}

	_, next, err := s.mutate(ctx, id, s.bookings.Update, func(b *domain.Booking, now time.Time) error {
		if actor.Role != domain.RoleAdmin {
			return &domain.ForbiddenError{Role: actor.Role, Action: string(actionResolve)}
		}
		if b.Dispute == nil || b.Dispute.ResolvedAt != nil {
			return &domain.InvalidTransitionError{From: b.Status, Action: actionResolve, Role: actor.Role}
		}

		resolved := now
		b.Dispute.Resolution = resolution
		b.Dispute.Refunded = refund
		b.Dispute.ResolvedAt = &resolved
		if refund {
			b.PaymentStatus = domain.PaymentStatusRefunded
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("dispute resolved", "booking_id", id, "refunded", refund)
	kind := domain.NotificationInfo
	if refund {
		kind = domain.NotificationSuccess
	}
	for _, party := range []string{next.CustomerID, next.TechnicianID} {
		if party != "" {
			s.notifier.Notify(ctx, party, kind, "Dispute resolved", resolution, next.ID)
		}
	}
	return next, nil
}
