package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fixitnow/internal/domain"
	"fixitnow/internal/repository"
)

var start = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func newBroadcast(id string, createdAt time.Time, ttl time.Duration) *domain.Booking {
	expires := createdAt.Add(ttl)
	return &domain.Booking{
		ID:          id,
		CustomerID:  "cust-1",
		BookingType: domain.BookingTypeBroadcast,
		Status:      domain.StatusPending,
		CreatedAt:   createdAt,
		BroadcastState: &domain.BroadcastState{
			IsActive:   true,
			Candidates: domain.NewCandidates([]string{"tech-1", "tech-2"}, createdAt),
			ExpiresAt:  &expires,
		},
	}
}

func TestBookingRepository_UpdateChecksVersion(t *testing.T) {
	repo := NewBookingRepository()
	ctx := context.Background()

	b := newBroadcast("b-1", start, time.Minute)
	if err := repo.Create(ctx, b); err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.Version != 1 {
		t.Fatalf("expected version 1, got %d", b.Version)
	}

	first, _ := repo.GetByID(ctx, "b-1")
	second, _ := repo.GetByID(ctx, "b-1")

	first.Description = "first"
	if err := repo.Update(ctx, first, 1); err != nil {
		t.Fatalf("first update: %v", err)
	}
	second.Description = "second"
	if err := repo.Update(ctx, second, 1); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("stale update: expected conflict, got %v", err)
	}

	got, _ := repo.GetByID(ctx, "b-1")
	if got.Description != "first" || got.Version != 2 {
		t.Errorf("expected first write kept at version 2, got %q v%d", got.Description, got.Version)
	}

	if err := repo.Update(ctx, &domain.Booking{ID: "missing"}, 1); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestBookingRepository_ClaimHasOneWinner(t *testing.T) {
	repo := NewBookingRepository()
	ctx := context.Background()
	if err := repo.Create(ctx, newBroadcast("b-1", start, time.Minute)); err != nil {
		t.Fatalf("create: %v", err)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		claimed int
	)
	for _, id := range []string{"tech-1", "tech-2"} {
		current, _ := repo.GetByID(ctx, "b-1")
		wg.Add(1)
		go func(b *domain.Booking, id string) {
			defer wg.Done()
			b.TechnicianID = id
			b.BroadcastState.AcceptedBy = id

			err := repo.Claim(ctx, b, 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, repository.ErrAlreadyClaimed):
				claimed++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(current, id)
	}
	wg.Wait()

	if wins != 1 || claimed != 1 {
		t.Errorf("expected one win and one already-claimed, got %d and %d", wins, claimed)
	}
}

func TestBookingRepository_ReturnsCopies(t *testing.T) {
	repo := NewBookingRepository()
	ctx := context.Background()

	b := newBroadcast("b-1", start, time.Minute)
	_ = repo.Create(ctx, b)
	b.BroadcastState.IsActive = false

	got, _ := repo.GetByID(ctx, "b-1")
	got.BroadcastState.Candidates[0].SubStatus = domain.CandidateRejected

	again, _ := repo.GetByID(ctx, "b-1")
	if !again.BroadcastState.IsActive || again.BroadcastState.Candidates[0].SubStatus != domain.CandidatePending {
		t.Error("stored booking aliased by a caller")
	}
}

func TestBookingRepository_List(t *testing.T) {
	repo := NewBookingRepository()
	ctx := context.Background()

	older := newBroadcast("older", start, time.Minute)
	newer := newBroadcast("newer", start.Add(time.Hour), time.Minute)
	precision := &domain.Booking{
		ID: "precision", CustomerID: "cust-2", TechnicianID: "tech-3",
		BookingType: domain.BookingTypePrecision, Status: domain.StatusAccepted, CreatedAt: start.Add(2 * time.Hour),
	}
	for _, b := range []*domain.Booking{older, newer, precision} {
		_ = repo.Create(ctx, b)
	}

	cases := []struct {
		name   string
		filter repository.BookingFilter
		want   []string
	}{
		{"all newest first", repository.BookingFilter{}, []string{"precision", "newer", "older"}},
		{"customer", repository.BookingFilter{CustomerID: "cust-1"}, []string{"newer", "older"}},
		{"candidate", repository.BookingFilter{ParticipantID: "tech-2"}, []string{"newer", "older"}},
		{"assigned", repository.BookingFilter{ParticipantID: "tech-3"}, []string{"precision"}},
		{"status", repository.BookingFilter{Status: domain.StatusAccepted}, []string{"precision"}},
		{"limit", repository.BookingFilter{Limit: 1}, []string{"precision"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := repo.List(ctx, tc.filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("expected %v, got %d bookings", tc.want, len(got))
			}
			for i, id := range tc.want {
				if got[i].ID != id {
					t.Errorf("position %d: expected %s, got %s", i, id, got[i].ID)
				}
			}
		})
	}
}

func TestBookingRepository_ListExpiredBroadcasts(t *testing.T) {
	repo := NewBookingRepository()
	ctx := context.Background()

	due := newBroadcast("due", start, 10*time.Minute)
	notYet := newBroadcast("not-yet", start, time.Hour)
	won := newBroadcast("won", start, 10*time.Minute)
	won.BroadcastState.AcceptedBy = "tech-1"
	won.BroadcastState.IsActive = false
	for _, b := range []*domain.Booking{due, notYet, won} {
		_ = repo.Create(ctx, b)
	}

	got, err := repo.ListExpiredBroadcasts(ctx, start.Add(30*time.Minute), 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != "due" {
		t.Errorf("expected only the due broadcast, got %d", len(got))
	}
}

func TestNotificationRepository_NewestFirst(t *testing.T) {
	repo := NewNotificationRepository()
	ctx := context.Background()

	for i, title := range []string{"one", "two", "three"} {
		_ = repo.Create(ctx, &domain.Notification{ID: title, RecipientID: "u-1", Title: title, CreatedAt: start.Add(time.Duration(i) * time.Minute)})
	}
	_ = repo.Create(ctx, &domain.Notification{ID: "other", RecipientID: "u-2"})

	got, _ := repo.ListByRecipient(ctx, "u-1", 2)
	if len(got) != 2 || got[0].Title != "three" || got[1].Title != "two" {
		t.Errorf("unexpected notifications %+v", got)
	}
}
