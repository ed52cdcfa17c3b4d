package domain

import "time"

// DefaultBroadcastTTL is how long a broadcast stays open when no TTL is configured.
const DefaultBroadcastTTL = 30 * time.Minute

// Normalize restores the derived fields of next before it is persisted. prev is the
// stored state next was derived from, or nil for a new booking. It never overwrites a
// status timestamp that is already set.
func Normalize(next, prev *Booking, now time.Time, broadcastTTL time.Duration) {
	if broadcastTTL <= 0 {
		broadcastTTL = DefaultBroadcastTTL
	}

	if prev == nil || !next.Pricing.inputsEqual(prev.Pricing) || next.Pricing.TotalPrice != next.Pricing.Total() {
		next.Pricing.TotalPrice = next.Pricing.Total()
	}

	if prev == nil || prev.Status != next.Status {
		stampStatus(next, now)
	}

	if next.IsBroadcast() && next.BroadcastState != nil &&
		next.BroadcastState.IsActive && next.BroadcastState.ExpiresAt == nil {
		expires := now.Add(broadcastTTL)
		next.BroadcastState.ExpiresAt = &expires
	}

	if next.ViewedBy == nil {
		next.ViewedBy = []View{}
	}
	if next.Pricing.AdditionalCharges == nil {
		next.Pricing.AdditionalCharges = []Charge{}
	}
	if next.CreatedAt.IsZero() {
		next.CreatedAt = now
	}
	next.UpdatedAt = now
}

func stampStatus(b *Booking, now time.Time) {
	var field **time.Time
	switch b.Status {
	case StatusAccepted:
		field = &b.AcceptedAt
	case StatusConfirmed:
		field = &b.ConfirmedAt
	case StatusInProgress:
		field = &b.StartedAt
	case StatusCompleted:
		field = &b.CompletedAt
	case StatusCancelled:
		field = &b.CancelledAt
	default:
		return
	}
	if *field == nil {
		t := now
		*field = &t
	}
}
