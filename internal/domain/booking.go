package domain

import "time"

// BookingType distinguishes directly-assigned requests from broadcast requests.
type BookingType string

const (
	BookingTypePrecision BookingType = "precision"
	BookingTypeBroadcast BookingType = "broadcast"
)

// Urgency represents how soon the customer needs the technician.
type Urgency string

const (
	UrgencyNormal    Urgency = "normal"
	UrgencyUrgent    Urgency = "urgent"
	UrgencyEmergency Urgency = "emergency"
)

// PaymentStatus is informational only; settlement happens elsewhere.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Location is the service address with optional coordinates.
type Location struct {
	Address string   `json:"address" bson:"address"`
	Lat     *float64 `json:"lat,omitempty" bson:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty" bson:"lng,omitempty"`
}

// HasCoordinates reports whether both coordinates are present.
func (l Location) HasCoordinates() bool {
	return l.Lat != nil && l.Lng != nil
}

// CompletionDetails is recorded when the technician completes the job.
type CompletionDetails struct {
	WorkDescription string   `json:"workDescription" bson:"workDescription"`
	ActualDuration  *float64 `json:"actualDuration,omitempty" bson:"actualDuration,omitempty"` // hours
}

// View records the first time a user opened the booking.
type View struct {
	UserID   string    `json:"userId" bson:"userId"`
	ViewedAt time.Time `json:"viewedAt" bson:"viewedAt"`
}

// Dispute is a side-flag on a completed booking.
type Dispute struct {
	RaisedBy   string     `json:"raisedBy" bson:"raisedBy"`
	Role       Role       `json:"role" bson:"role"`
	Reason     string     `json:"reason" bson:"reason"`
	RaisedAt   time.Time  `json:"raisedAt" bson:"raisedAt"`
	Resolution string     `json:"resolution,omitempty" bson:"resolution,omitempty"`
	Refunded   bool       `json:"refunded" bson:"refunded"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty" bson:"resolvedAt,omitempty"`
}

// Booking is the central record of a service request.
type Booking struct {
	ID      string `json:"id" bson:"_id"`
	Version int64  `json:"version" bson:"version"`

	CustomerID   string      `json:"customerId" bson:"customerId"`
	TechnicianID string      `json:"technicianId,omitempty" bson:"technicianId,omitempty"`
	BookingType  BookingType `json:"bookingType" bson:"bookingType"`
	Status       Status      `json:"status" bson:"status"`

	BroadcastState *BroadcastState `json:"broadcastState,omitempty" bson:"broadcastState,omitempty"`

	ServiceType   string        `json:"serviceType" bson:"serviceType"`
	Description   string        `json:"description" bson:"description"`
	Date          string        `json:"date" bson:"date"`
	Time          string        `json:"time" bson:"time"`
	ScheduledDate *time.Time    `json:"scheduledDate,omitempty" bson:"scheduledDate,omitempty"`
	Urgency       Urgency       `json:"urgency" bson:"urgency"`
	Location      Location      `json:"location" bson:"location"`
	Pricing       Pricing       `json:"pricing" bson:"pricing"`
	PaymentStatus PaymentStatus `json:"paymentStatus" bson:"paymentStatus"`

	AcceptedAt  *time.Time `json:"acceptedAt,omitempty" bson:"acceptedAt,omitempty"`
	ConfirmedAt *time.Time `json:"confirmedAt,omitempty" bson:"confirmedAt,omitempty"`
	StartedAt   *time.Time `json:"startedAt,omitempty" bson:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty" bson:"cancelledAt,omitempty"`

	CancellationReason string `json:"cancellationReason,omitempty" bson:"cancellationReason,omitempty"`
	CancelledBy        Role   `json:"cancelledBy,omitempty" bson:"cancelledBy,omitempty"`

	CompletionDetails  *CompletionDetails  `json:"completionDetails,omitempty" bson:"completionDetails,omitempty"`
	TechnicianLocation *TechnicianLocation `json:"technicianLocation,omitempty" bson:"technicianLocation,omitempty"`
	ViewedBy           []View              `json:"viewedBy" bson:"viewedBy"`
	Dispute            *Dispute            `json:"dispute,omitempty" bson:"dispute,omitempty"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// IsBroadcast reports whether the booking was offered to several technicians.
func (b *Booking) IsBroadcast() bool {
	return b.BookingType == BookingTypeBroadcast
}

// AcceptedBy returns the broadcast winner, or "" if unresolved.
func (b *Booking) AcceptedBy() string {
	if b.BroadcastState == nil {
		return ""
	}
	return b.BroadcastState.AcceptedBy
}

// HasViewed reports whether userID already appears in viewedBy.
func (b *Booking) HasViewed(userID string) bool {
	for _, v := range b.ViewedBy {
		if v.UserID == userID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so that transforms never alias a stored record.
func (b *Booking) Clone() *Booking {
	c := *b
	c.ScheduledDate = cloneTime(b.ScheduledDate)
	c.AcceptedAt = cloneTime(b.AcceptedAt)
	c.ConfirmedAt = cloneTime(b.ConfirmedAt)
	c.StartedAt = cloneTime(b.StartedAt)
	c.CompletedAt = cloneTime(b.CompletedAt)
	c.CancelledAt = cloneTime(b.CancelledAt)
	c.Location.Lat = cloneFloat(b.Location.Lat)
	c.Location.Lng = cloneFloat(b.Location.Lng)
	c.Pricing.AdditionalCharges = append([]Charge(nil), b.Pricing.AdditionalCharges...)
	c.ViewedBy = append([]View(nil), b.ViewedBy...)

	if b.BroadcastState != nil {
		bs := b.BroadcastState.clone()
		c.BroadcastState = &bs
	}
	if b.CompletionDetails != nil {
		cd := *b.CompletionDetails
		cd.ActualDuration = cloneFloat(b.CompletionDetails.ActualDuration)
		c.CompletionDetails = &cd
	}
	if b.TechnicianLocation != nil {
		tl := b.TechnicianLocation.clone()
		c.TechnicianLocation = &tl
	}
	if b.Dispute != nil {
		d := *b.Dispute
		d.ResolvedAt = cloneTime(b.Dispute.ResolvedAt)
		c.Dispute = &d
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
