package domain

import "time"

// CandidateStatus is the per-technician state inside a broadcast.
type CandidateStatus string

const (
	CandidatePending      CandidateStatus = "pending"
	CandidateAccepted     CandidateStatus = "accepted"
	CandidateRejected     CandidateStatus = "rejected"
	CandidateAutoRejected CandidateStatus = "auto_rejected"
)

// Candidate is one technician the broadcast was offered to.
type Candidate struct {
	TechnicianID    string          `json:"technicianId" bson:"technicianId"`
	SentAt          time.Time       `json:"sentAt" bson:"sentAt"`
	ViewedAt        *time.Time      `json:"viewedAt,omitempty" bson:"viewedAt,omitempty"`
	SubStatus       CandidateStatus `json:"subStatus" bson:"subStatus"`
	RejectionReason string          `json:"rejectionReason,omitempty" bson:"rejectionReason,omitempty"`
}

// Candidates is treated as an immutable list: every transform returns a new slice.
type Candidates []Candidate

// BroadcastState is the fan-out sub-document of a broadcast booking.
type BroadcastState struct {
	IsActive   bool       `json:"isActive" bson:"isActive"`
	Candidates Candidates `json:"candidates" bson:"candidates"`
	AcceptedBy string     `json:"acceptedBy,omitempty" bson:"acceptedBy,omitempty"`
	AcceptedAt *time.Time `json:"acceptedAt,omitempty" bson:"acceptedAt,omitempty"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty" bson:"expiresAt,omitempty"`
}

func (s BroadcastState) clone() BroadcastState {
	c := s
	c.Candidates = s.Candidates.copy()
	c.AcceptedAt = cloneTime(s.AcceptedAt)
	c.ExpiresAt = cloneTime(s.ExpiresAt)
	return c
}

// IsExpired reports whether the offer window closed before now.
func (s *BroadcastState) IsExpired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}

// NewCandidates builds one pending entry per distinct technician id, in the given order.
func NewCandidates(technicianIDs []string, sentAt time.Time) Candidates {
	seen := make(map[string]bool, len(technicianIDs))
	out := make(Candidates, 0, len(technicianIDs))
	for _, id := range technicianIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, Candidate{
			TechnicianID: id,
			SentAt:       sentAt,
			SubStatus:    CandidatePending,
		})
	}
	return out
}

// Find returns the candidate entry for technicianID.
func (cs Candidates) Find(technicianID string) (Candidate, bool) {
	for _, c := range cs {
		if c.TechnicianID == technicianID {
			return c, true
		}
	}
	return Candidate{}, false
}

// IDs returns the technician ids in offer order.
func (cs Candidates) IDs() []string {
	ids := make([]string, len(cs))
	for i, c := range cs {
		ids[i] = c.TechnicianID
	}
	return ids
}

// WithCandidateAccepted marks the winner accepted and every other pending candidate
// auto_rejected. Candidates that already rejected keep their own status.
func (cs Candidates) WithCandidateAccepted(technicianID string) Candidates {
	out := cs.copy()
	for i := range out {
		switch {
		case out[i].TechnicianID == technicianID:
			out[i].SubStatus = CandidateAccepted
		case out[i].SubStatus == CandidatePending:
			out[i].SubStatus = CandidateAutoRejected
		}
	}
	return out
}

// WithCandidateRejected marks one candidate rejected with the given reason.
func (cs Candidates) WithCandidateRejected(technicianID, reason string) Candidates {
	out := cs.copy()
	for i := range out {
		if out[i].TechnicianID == technicianID {
			out[i].SubStatus = CandidateRejected
			out[i].RejectionReason = reason
		}
	}
	return out
}

// WithCandidateViewed stamps viewedAt once; later views keep the first timestamp.
func (cs Candidates) WithCandidateViewed(technicianID string, at time.Time) Candidates {
	out := cs.copy()
	for i := range out {
		if out[i].TechnicianID == technicianID && out[i].ViewedAt == nil {
			t := at
			out[i].ViewedAt = &t
		}
	}
	return out
}

// WithPendingAutoRejected closes every still-pending offer.
func (cs Candidates) WithPendingAutoRejected() Candidates {
	out := cs.copy()
	for i := range out {
		if out[i].SubStatus == CandidatePending {
			out[i].SubStatus = CandidateAutoRejected
		}
	}
	return out
}

// Count returns how many candidates are in the given sub-status.
func (cs Candidates) Count(status CandidateStatus) int {
	n := 0
	for _, c := range cs {
		if c.SubStatus == status {
			n++
		}
	}
	return n
}

func (cs Candidates) copy() Candidates {
	if cs == nil {
		return nil
	}
	out := make(Candidates, len(cs))
	for i, c := range cs {
		c.ViewedAt = cloneTime(c.ViewedAt)
		out[i] = c
	}
	return out
}
