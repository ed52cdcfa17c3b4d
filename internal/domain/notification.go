package domain

import "time"

// NotificationKind controls how the dashboard renders a notification.
type NotificationKind string

const (
	NotificationInfo    NotificationKind = "info"
	NotificationSuccess NotificationKind = "success"
	NotificationWarning NotificationKind = "warning"
	NotificationError   NotificationKind = "error"
)

// Notification is the persisted side-effect record of a lifecycle transition.
type Notification struct {
	ID               string           `json:"id" bson:"_id"`
	RecipientID      string           `json:"recipientId" bson:"recipientId"`
	Kind             NotificationKind `json:"kind" bson:"kind"`
	Title            string           `json:"title" bson:"title"`
	Message          string           `json:"message" bson:"message"`
	RelatedBookingID string           `json:"relatedBookingId,omitempty" bson:"relatedBookingId,omitempty"`
	IsRead           bool             `json:"isRead" bson:"isRead"`
	CreatedAt        time.Time        `json:"createdAt" bson:"createdAt"`
}

// Real-time event names delivered to user channels.
const (
	EventBookingRequest  = "booking_request"
	EventBookingAccepted = "booking_accepted"
	EventBookingUpdated  = "booking_updated"
	EventLocationUpdate  = "location_update"
	EventNotification    = "notification"
)

// Event is the payload emitted on a real-time channel.
type Event struct {
	Name      string         `json:"event"`
	BookingID string         `json:"bookingId,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// UserChannel is the real-time channel name for a user.
func UserChannel(userID string) string {
	return "user:" + userID
}
