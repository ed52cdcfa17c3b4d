package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"fixitnow/internal/domain"
	"fixitnow/internal/repository/memory"
)

func TestCreateBooking_Precision(t *testing.T) {
	f := newFixture(t)

	b := f.createPrecision(t)

	if b.BookingType != domain.BookingTypePrecision {
		t.Errorf("expected precision booking, got %s", b.BookingType)
	}
	if b.Status != domain.StatusPending {
		t.Errorf("expected pending, got %s", b.Status)
	}
	if b.TechnicianID != tech1.ID || b.CustomerID != customer.ID {
		t.Errorf("unexpected parties: customer=%s technician=%s", b.CustomerID, b.TechnicianID)
	}
	if b.BroadcastState != nil {
		t.Error("precision booking must not carry broadcast state")
	}
	if b.Pricing.TotalPrice != domain.DefaultBasePrice {
		t.Errorf("expected default total %.2f, got %.2f", domain.DefaultBasePrice, b.Pricing.TotalPrice)
	}
	if b.Urgency != domain.UrgencyNormal || b.PaymentStatus != domain.PaymentStatusPending {
		t.Errorf("unexpected defaults: urgency=%s payment=%s", b.Urgency, b.PaymentStatus)
	}
	if b.Version != 1 {
		t.Errorf("expected version 1, got %d", b.Version)
	}
	if calls := f.selector.CallCount; calls != 0 {
		t.Errorf("precision booking must not select candidates, got %d calls", calls)
	}

	if got := f.emitter.EventsFor(tech1.ID); len(got) != 1 || got[0] != domain.EventBookingRequest {
		t.Errorf("expected booking_request for technician, got %v", got)
	}
	notes, _ := f.notifications.ListByRecipient(context.Background(), tech1.ID, 0)
	if len(notes) != 1 || notes[0].RelatedBookingID != b.ID {
		t.Errorf("expected one persisted notification for technician, got %d", len(notes))
	}
}

func TestCreateBooking_Broadcast(t *testing.T) {
	f := newFixture(t)

	b := f.createBroadcast(t)

	if b.BookingType != domain.BookingTypeBroadcast {
		t.Fatalf("expected broadcast booking, got %s", b.BookingType)
	}
	if b.TechnicianID != "" {
		t.Errorf("broadcast must start unassigned, got %s", b.TechnicianID)
	}
	bs := b.BroadcastState
	if bs == nil || !bs.IsActive {
		t.Fatal("expected active broadcast state")
	}
	if bs.Candidates.Count(domain.CandidatePending) != len(broadcastTo) {
		t.Errorf("expected %d pending candidates, got %d", len(broadcastTo), bs.Candidates.Count(domain.CandidatePending))
	}
	if bs.ExpiresAt == nil || !bs.ExpiresAt.Equal(fixtureStart.Add(30*time.Minute)) {
		t.Errorf("expected expiry at +30m, got %v", bs.ExpiresAt)
	}
	for _, id := range broadcastTo {
		if got := f.emitter.EventsFor(id); len(got) != 1 || got[0] != domain.EventBookingRequest {
			t.Errorf("%s: expected booking_request, got %v", id, got)
		}
	}
}

func TestCreateBooking_WithPricing(t *testing.T) {
	f := newFixture(t)

	base := 100.0
	req := validRequest()
	req.Pricing = &PricingInput{
		BasePrice:         &base,
		UrgencyFee:        25,
		AdditionalCharges: []domain.Charge{{Description: "parts", Amount: 19.99}},
		Discount:          10,
	}

	b, err := f.service.CreateBooking(context.Background(), customer, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Pricing.TotalPrice != 134.99 {
		t.Errorf("expected total 134.99, got %v", b.Pricing.TotalPrice)
	}
}

func TestCreateBooking_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.CreateBooking(context.Background(), customer, CreateBookingRequest{
		ServiceType: "  ",
		Urgency:     "whenever",
	})

	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"serviceType", "description", "date", "time", "location.address", "urgency"} {
		if _, ok := verr.Fields[field]; !ok {
			t.Errorf("expected %s to be reported, got %v", field, verr.Fields)
		}
	}
}

func TestCreateBooking_LatWithoutLng(t *testing.T) {
	f := newFixture(t)

	req := validRequest()
	req.Location.Lng = nil

	_, err := f.service.CreateBooking(context.Background(), customer, req)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateBooking_UnknownOrInactiveTechnician(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.users.Create(ctx, &domain.User{ID: "tech-off", Role: domain.RoleTechnician, IsActive: false}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	for _, id := range []string{"nobody", "tech-off", customer.ID} {
		req := validRequest()
		req.TechnicianID = id
		_, err := f.service.CreateBooking(ctx, customer, req)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("%s: expected not found, got %v", id, err)
		}
	}
}

func TestCreateBooking_RoleRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.service.CreateBooking(ctx, tech1, validRequest()); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("technician: expected forbidden, got %v", err)
	}

	if _, err := f.service.CreateBooking(ctx, admin, validRequest()); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("admin without customerId: expected validation error, got %v", err)
	}

	req := validRequest()
	req.CustomerID = otherCust.ID
	b, err := f.service.CreateBooking(ctx, admin, req)
	if err != nil {
		t.Fatalf("admin on behalf: unexpected error: %v", err)
	}
	if b.CustomerID != otherCust.ID {
		t.Errorf("expected customer %s, got %s", otherCust.ID, b.CustomerID)
	}
}

func TestCreateBooking_SelectorFailureOpensEmptyBroadcast(t *testing.T) {
	f := newFixture(t)
	f.selector.Err = errors.New("geo index down")

	b := f.createBroadcast(t)

	if b.BroadcastState == nil || !b.BroadcastState.IsActive {
		t.Fatal("expected an active broadcast")
	}
	if len(b.BroadcastState.Candidates) != 0 {
		t.Errorf("expected no candidates, got %d", len(b.BroadcastState.Candidates))
	}
}

func TestCompleteBooking_KeepsExactDuration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.createPrecision(t)

	if _, err := f.service.AcceptBooking(ctx, b.ID, tech1); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := f.service.StartBooking(ctx, b.ID, tech1); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.clock.Advance(10*time.Minute + 7*time.Second)
	completed, err := f.service.CompleteBooking(ctx, b.ID, tech1, "")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	want := (10*time.Minute + 7*time.Second).Hours()
	if d := completed.CompletionDetails.ActualDuration; d == nil || *d != want {
		t.Errorf("expected actualDuration %v, got %v", want, d)
	}
}

func TestPrecisionLifecycle_HappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.createPrecision(t)

	f.clock.Advance(5 * time.Minute)
	accepted, err := f.service.AcceptBooking(ctx, b.ID, tech1)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.Status != domain.StatusAccepted || accepted.AcceptedAt == nil {
		t.Fatalf("expected accepted with timestamp, got %s", accepted.Status)
	}

	f.clock.Advance(10 * time.Minute)
	started, err := f.service.StartBooking(ctx, b.ID, tech1)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.StartedAt == nil || !started.StartedAt.Equal(fixtureStart.Add(15*time.Minute)) {
		t.Errorf("unexpected startedAt %v", started.StartedAt)
	}

	f.clock.Advance(90 * time.Minute)
	completed, err := f.service.CompleteBooking(ctx, b.ID, tech1, "Replaced the trap")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Status != domain.StatusCompleted || completed.CompletedAt == nil {
		t.Fatalf("expected completed with timestamp, got %s", completed.Status)
	}
	cd := completed.CompletionDetails
	if cd == nil || cd.WorkDescription != "Replaced the trap" || cd.ActualDuration == nil || *cd.ActualDuration != 1.5 {
		t.Errorf("unexpected completion details: %+v", cd)
	}
	if !completed.AcceptedAt.Equal(*accepted.AcceptedAt) {
		t.Error("acceptedAt must not change after it is set")
	}
	if completed.Version != 4 {
		t.Errorf("expected version 4 after three transitions, got %d", completed.Version)
	}

	tech, _ := f.users.GetByID(ctx, tech1.ID)
	if tech.CompletedJobs != 1 {
		t.Errorf("expected completed jobs 1, got %d", tech.CompletedJobs)
	}
}

func TestTerminalBookingIsImmutable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.createPrecision(t)

	if _, err := f.service.CancelBooking(ctx, b.ID, customer, ""); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	before := f.stored(t, b.ID)

	attempts := []struct {
		name string
		run  func() error
	}{
		{"accept", func() error { _, err := f.service.AcceptBooking(ctx, b.ID, tech1); return err }},
		{"start", func() error { _, err := f.service.StartBooking(ctx, b.ID, tech1); return err }},
		{"admin cancel", func() error { _, err := f.service.CancelBooking(ctx, b.ID, admin, "again"); return err }},
		{"status patch", func() error {
			_, err := f.service.UpdateBookingStatus(ctx, b.ID, tech1, domain.StatusInProgress)
			return err
		}},
	}
	for _, a := range attempts {
		if err := a.run(); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Errorf("%s: expected invalid transition, got %v", a.name, err)
		}
	}

	after := f.stored(t, b.ID)
	if after.Version != before.Version || after.CancellationReason != before.CancellationReason {
		t.Error("terminal booking was modified")
	}
}

func TestCustomerCannotTouchOthersBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.createPrecision(t)

	if _, err := f.service.GetBooking(ctx, b.ID, otherCust); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("get: expected forbidden, got %v", err)
	}
	if _, err := f.service.CancelBooking(ctx, b.ID, otherCust, ""); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("cancel: expected forbidden, got %v", err)
	}
	if _, err := f.service.AcceptBooking(ctx, b.ID, tech2); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("unassigned technician accept: expected forbidden, got %v", err)
	}
	if _, err := f.service.StartBooking(ctx, b.ID, customer); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("customer start: expected forbidden, got %v", err)
	}
	if got := f.stored(t, b.ID); got.Version != 1 {
		t.Errorf("booking was modified by a refused call, version %d", got.Version)
	}
}

func TestRejectPrecisionBooking(t *testing.T) {
	f := newFixture(t)
	b := f.createPrecision(t)

	got, err := f.service.RejectBooking(context.Background(), b.ID, tech1, "Fully booked")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != domain.StatusRejected || got.CancellationReason != "Fully booked" {
		t.Errorf("unexpected result: status=%s reason=%q", got.Status, got.CancellationReason)
	}
}

func TestCancelBooking_DefaultReason(t *testing.T) {
	f := newFixture(t)
	b := f.createPrecision(t)

	got, err := f.service.CancelBooking(context.Background(), b.ID, customer, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.CancellationReason != "Cancelled by customer" || got.CancelledBy != domain.RoleCustomer {
		t.Errorf("unexpected cancellation: reason=%q by=%s", got.CancellationReason, got.CancelledBy)
	}
	if got.CancelledAt == nil {
		t.Error("expected cancelledAt")
	}
}

func TestUpdateBookingStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.createPrecision(t)

	if _, err := f.service.UpdateBookingStatus(ctx, b.ID, tech1, domain.StatusAccepted); err != nil {
		t.Fatalf("accept via status: %v", err)
	}
	got, err := f.service.UpdateBookingStatus(ctx, b.ID, tech1, domain.StatusEnRoute)
	if err != nil {
		t.Fatalf("depart via status: %v", err)
	}
	if got.Status != domain.StatusEnRoute {
		t.Errorf("expected en_route, got %s", got.Status)
	}

	_, err = f.service.UpdateBookingStatus(ctx, b.ID, tech1, domain.StatusDisputed)
	var ite *domain.InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("expected InvalidTransitionError for unreachable target, got %v", err)
	}
	if ite.From != domain.StatusEnRoute {
		t.Errorf("expected from en_route, got %s", ite.From)
	}

	if _, err := f.service.UpdateBookingStatus(ctx, "missing", tech1, domain.StatusDisputed); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestListBookings_ScopedToActor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createPrecision(t)
	f.clock.Advance(time.Second)
	broadcast := f.createBroadcast(t)

	mine, err := f.service.ListBookings(ctx, customer, "", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mine) != 2 || mine[0].ID != broadcast.ID {
		t.Errorf("expected both bookings newest first, got %d", len(mine))
	}

	theirs, _ := f.service.ListBookings(ctx, otherCust, "", 0)
	if len(theirs) != 0 {
		t.Errorf("expected no bookings for another customer, got %d", len(theirs))
	}

	// tech-2 is only a broadcast candidate.
	offered, _ := f.service.ListBookings(ctx, tech2, "", 0)
	if len(offered) != 1 || offered[0].ID != broadcast.ID {
		t.Errorf("expected candidate to see the broadcast only, got %d", len(offered))
	}

	assigned, _ := f.service.ListBookings(ctx, tech1, domain.StatusPending, 1)
	if len(assigned) != 1 {
		t.Errorf("expected limit to apply, got %d", len(assigned))
	}
}

func TestMutate_RetriesOnConflict(t *testing.T) {
	repo := &ConflictingBookingRepository{BookingRepository: memory.NewBookingRepository()}
	f := newFixture(t, withBookingRepository(repo))
	b := f.createPrecision(t)

	repo.ConflictsLeft = 2
	got, err := f.service.AcceptBooking(context.Background(), b.ID, tech1)
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if got.Status != domain.StatusAccepted {
		t.Errorf("expected accepted, got %s", got.Status)
	}
	if repo.WriteCount != 3 {
		t.Errorf("expected 3 write attempts, got %d", repo.WriteCount)
	}
}

func TestMutate_GivesUpUnderContention(t *testing.T) {
	repo := &ConflictingBookingRepository{BookingRepository: memory.NewBookingRepository()}
	f := newFixture(t, withBookingRepository(repo))
	b := f.createPrecision(t)

	repo.ConflictsLeft = 100
	_, err := f.service.AcceptBooking(context.Background(), b.ID, tech1)
	if !errors.Is(err, ErrWriteContention) {
		t.Fatalf("expected ErrWriteContention, got %v", err)
	}
	if repo.WriteCount != defaultMaxWriteAttempts {
		t.Errorf("expected %d attempts, got %d", defaultMaxWriteAttempts, repo.WriteCount)
	}
	if got := f.stored(t, b.ID); got.Status != domain.StatusPending {
		t.Errorf("booking changed despite failure: %s", got.Status)
	}
}
