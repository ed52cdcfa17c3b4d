package service

import (
	"context"
	"time"

	"fixitnow/internal/domain"
)

// ExpiredReason is recorded as the cancellation reason of a broadcast nobody accepted.
const ExpiredReason = "expired"

// openBroadcast offers b to candidateIDs, one pending entry per distinct technician.
func (s *BookingService) openBroadcast(b *domain.Booking, candidateIDs []string, now time.Time) {
	expires := now.Add(s.settings.BroadcastTTL)
	b.BroadcastState = &domain.BroadcastState{
		IsActive:   true,
		Candidates: domain.NewCandidates(candidateIDs, now),
		ExpiresAt:  &expires,
	}
}

// MarkViewed records that actor opened the booking. Repeated views keep the first
// timestamp and do not write, and neither does viewing a finished booking.
func (s *BookingService) MarkViewed(ctx context.Context, id string, actor domain.Actor) (*domain.Booking, error) {
	_, next, err := s.mutate(ctx, id, s.bookings.Update, func(b *domain.Booking, now time.Time) error {
		if err := s.policy.Authorize(b, actor, actionView); err != nil {
			return err
		}
		if b.Status.IsTerminal() {
			return errNoChange
		}

		changed := false
		if !b.HasViewed(actor.ID) {
			b.ViewedBy = append(b.ViewedBy, domain.View{UserID: actor.ID, ViewedAt: now})
			changed = true
		}
		if bs := b.BroadcastState; bs != nil {
			if c, ok := bs.Candidates.Find(actor.ID); ok && c.ViewedAt == nil {
				bs.Candidates = bs.Candidates.WithCandidateViewed(actor.ID, now)
				changed = true
			}
		}
		if !changed {
			return errNoChange
		}
		return nil
	})
	return next, err
}

// acceptBroadcast resolves the first-accept-wins race. The write goes through Claim,
// so a concurrent winner makes this call fail with AlreadyClaimedError and no mutation.
// When a lock store is configured the read-modify-write also runs under the booking lock.
// A lock that cannot be taken is skipped; Claim alone still admits one winner.
func (s *BookingService) acceptBroadcast(ctx context.Context, id string, actor domain.Actor) (*domain.Booking, error) {
	var (
		next *domain.Booking
		ran  bool
	)
	accept := func(ctx context.Context) error {
		ran = true
		var err error
		_, next, err = s.mutate(ctx, id, s.bookings.Claim, func(b *domain.Booking, now time.Time) error {
			return s.claim(b, actor, now)
		})
		return err
	}

	var err error
	if s.locker != nil {
		err = s.locker.WithBookingLock(ctx, id, accept)
		if err != nil && !ran {
			s.logger.Warn("booking lock unavailable, accepting without it", "booking_id", id, "error", err)
			err = accept(ctx)
		}
	} else {
		err = accept(ctx)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("broadcast accepted", "booking_id", id, "technician_id", actor.ID)
	s.notifier.NotifyBroadcastAccepted(ctx, next)
	return next, nil
}

// claim applies the winning accept to b.
func (s *BookingService) claim(b *domain.Booking, actor domain.Actor, now time.Time) error {
	if err := s.policy.Authorize(b, actor, domain.ActionAccept); err != nil {
		return err
	}

	bs := b.BroadcastState
	if bs == nil {
		return &domain.InvalidTransitionError{From: b.Status, Action: domain.ActionAccept, Role: actor.Role}
	}
	if bs.AcceptedBy != "" && bs.AcceptedBy != actor.ID {
		return &domain.AlreadyClaimedError{BookingID: b.ID}
	}
	if bs.AcceptedBy == "" && bs.IsExpired(now) {
		return &domain.ExpiredError{BookingID: b.ID, ExpiresAt: *bs.ExpiresAt}
	}

	to, err := domain.NextStatus(b.Status, domain.ActionAccept, actor.Role)
	if err != nil {
		return err
	}
	if !bs.IsActive {
		return &domain.InvalidTransitionError{From: b.Status, Action: domain.ActionAccept, Role: actor.Role}
	}

	c, ok := bs.Candidates.Find(actor.ID)
	if !ok {
		return &domain.ForbiddenError{Role: actor.Role, Action: string(domain.ActionAccept)}
	}
	if c.SubStatus != domain.CandidatePending {
		return &domain.InvalidTransitionError{From: b.Status, Action: domain.ActionAccept, Role: actor.Role}
	}

	accepted := now
	b.TechnicianID = actor.ID
	b.Status = to
	bs.AcceptedBy = actor.ID
	bs.AcceptedAt = &accepted
	bs.IsActive = false
	bs.Candidates = bs.Candidates.WithCandidateAccepted(actor.ID)
	return nil
}

// RejectCandidate declines a broadcast offer for one technician. The booking and the
// other candidates are untouched.
func (s *BookingService) RejectCandidate(ctx context.Context, id string, actor domain.Actor, reason string) (*domain.Booking, error) {
	_, next, err := s.mutate(ctx, id, s.bookings.Update, func(b *domain.Booking, _ time.Time) error {
		if err := s.policy.Authorize(b, actor, domain.ActionReject); err != nil {
			return err
		}
		if _, err := domain.NextStatus(b.Status, domain.ActionReject, actor.Role); err != nil {
			return err
		}

		bs := b.BroadcastState
		if bs == nil || !bs.IsActive {
			return &domain.InvalidTransitionError{From: b.Status, Action: domain.ActionReject, Role: actor.Role}
		}
		c, ok := bs.Candidates.Find(actor.ID)
		if !ok {
			return &domain.ForbiddenError{Role: actor.Role, Action: string(domain.ActionReject)}
		}
		if c.SubStatus != domain.CandidatePending {
			return &domain.InvalidTransitionError{From: b.Status, Action: domain.ActionReject, Role: actor.Role}
		}

		bs.Candidates = bs.Candidates.WithCandidateRejected(actor.ID, reason)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("broadcast offer rejected", "booking_id", id, "technician_id", actor.ID)
	return next, nil
}

// ExpireBroadcast closes an unaccepted broadcast past its expiry: the booking is
// cancelled by the system and every still-pending offer is auto-rejected. It reports
// whether the booking was expired by this call.
func (s *BookingService) ExpireBroadcast(ctx context.Context, id string) (*domain.Booking, bool, error) {
	actor := domain.SystemActor
	prev, next, err := s.mutate(ctx, id, s.bookings.Update, func(b *domain.Booking, now time.Time) error {
		bs := b.BroadcastState
		if bs == nil || !bs.IsActive || bs.AcceptedBy != "" || !bs.IsExpired(now) {
			return errNoChange
		}

		to, err := domain.NextStatus(b.Status, domain.ActionExpire, actor.Role)
		if err != nil {
			return err
		}

		b.Status = to
		b.CancelledBy = actor.Role
		b.CancellationReason = ExpiredReason
		bs.IsActive = false
		bs.Candidates = bs.Candidates.WithPendingAutoRejected()
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if prev == next {
		return next, false, nil
	}

	s.logger.Info("broadcast expired", "booking_id", id)
	s.notifier.NotifyStatusChanged(ctx, next, actor)
	s.notifier.NotifyBroadcastClosed(ctx, next)
	return next, true, nil
}
