package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"fixitnow/internal/domain"
	"fixitnow/internal/repository"
)

const defaultNotifyTimeout = 3 * time.Second

// Emitter delivers a real-time event to a named channel. Delivery is fire-and-forget.
type Emitter interface {
	Emit(ctx context.Context, channel string, event domain.Event) error
}

// LogEmitter writes events to the log. It is used when no real-time transport is configured.
type LogEmitter struct {
	Logger *slog.Logger
}

// Emit logs the event.
func (e LogEmitter) Emit(_ context.Context, channel string, event domain.Event) error {
	e.Logger.Debug("event", "channel", channel, "event", event.Name, "booking_id", event.BookingID)
	return nil
}

// NotificationService translates booking transitions into persisted notifications
// and real-time events. It never fails the caller: every error is logged and dropped.
type NotificationService struct {
	repo    repository.NotificationRepository
	emitter Emitter
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(repo repository.NotificationRepository, emitter Emitter, logger *slog.Logger, timeout time.Duration) *NotificationService {
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}
	return &NotificationService{
		repo:    repo,
		emitter: emitter,
		logger:  logger,
		timeout: timeout,
		now:     time.Now,
	}
}

// delivery is one recipient's share of a transition. A nil notification emits the event only.
type delivery struct {
	recipientID  string
	notification *domain.Notification
	event        domain.Event
}

// NotifyBookingRequested offers the booking to each technician.
func (s *NotificationService) NotifyBookingRequested(ctx context.Context, b *domain.Booking, technicianIDs []string) {
	message := fmt.Sprintf("New %s request at %s, $%s", b.ServiceType, b.Location.Address, formatPrice(b.Pricing.TotalPrice))
	if b.BroadcastState != nil && b.BroadcastState.ExpiresAt != nil {
		message += ", respond " + humanize.Time(*b.BroadcastState.ExpiresAt)
	}

	deliveries := make([]delivery, 0, len(technicianIDs))
	for _, id := range technicianIDs {
		deliveries = append(deliveries, delivery{
			recipientID:  id,
			notification: s.notification(id, domain.NotificationInfo, "New booking request", message, b.ID),
			event:        s.event(domain.EventBookingRequest, b),
		})
	}
	s.deliver(ctx, deliveries...)
}

// NotifyBroadcastAccepted tells the customer who won, and refreshes the other candidates' views.
func (s *NotificationService) NotifyBroadcastAccepted(ctx context.Context, b *domain.Booking) {
	deliveries := []delivery{{
		recipientID: b.CustomerID,
		notification: s.notification(b.CustomerID, domain.NotificationSuccess, "Technician found",
			fmt.Sprintf("A technician accepted your %s request", b.ServiceType), b.ID),
		event: s.event(domain.EventBookingAccepted, b),
	}}

	if b.BroadcastState != nil {
		for _, c := range b.BroadcastState.Candidates {
			if c.TechnicianID == b.TechnicianID {
				continue
			}
			deliveries = append(deliveries, delivery{
				recipientID: c.TechnicianID,
				event:       s.event(domain.EventBookingUpdated, b),
			})
		}
	}
	s.deliver(ctx, deliveries...)
}

// NotifyBroadcastClosed refreshes the views of the candidates whose offers were
// auto-rejected when the broadcast closed without a winner.
func (s *NotificationService) NotifyBroadcastClosed(ctx context.Context, b *domain.Booking) {
	if b.BroadcastState == nil {
		return
	}
	var deliveries []delivery
	for _, c := range b.BroadcastState.Candidates {
		if c.SubStatus != domain.CandidateAutoRejected {
			continue
		}
		deliveries = append(deliveries, delivery{
			recipientID: c.TechnicianID,
			event:       s.event(domain.EventBookingUpdated, b),
		})
	}
	s.deliver(ctx, deliveries...)
}

// NotifyStatusChanged sends booking_updated to both parties; the party that acted
// gets the event but no persisted notification.
func (s *NotificationService) NotifyStatusChanged(ctx context.Context, b *domain.Booking, actor domain.Actor) {
	title, message, kind := statusMessage(b)

	var deliveries []delivery
	for _, party := range []string{b.CustomerID, b.TechnicianID} {
		if party == "" {
			continue
		}
		d := delivery{recipientID: party, event: s.event(domain.EventBookingUpdated, b)}
		if party != actor.ID {
			d.notification = s.notification(party, kind, title, message, b.ID)
		}
		deliveries = append(deliveries, d)
	}
	s.deliver(ctx, deliveries...)
}

// NotifyLocationUpdated streams the technician's position to the customer.
func (s *NotificationService) NotifyLocationUpdated(ctx context.Context, b *domain.Booking) {
	event := s.event(domain.EventLocationUpdate, b)
	if tl := b.TechnicianLocation; tl != nil && tl.Current != nil {
		event.Data["lat"] = tl.Current.Lat
		event.Data["lng"] = tl.Current.Lng
		if tl.ETAMinutes != nil {
			event.Data["etaMinutes"] = *tl.ETAMinutes
		}
	}
	s.deliver(ctx, delivery{recipientID: b.CustomerID, event: event})
}

// Notify sends a generic notification to one user.
func (s *NotificationService) Notify(ctx context.Context, recipientID string, kind domain.NotificationKind, title, message, bookingID string) {
	n := s.notification(recipientID, kind, title, message, bookingID)
	event := domain.Event{
		Name:      domain.EventNotification,
		BookingID: bookingID,
		Data:      map[string]any{"title": title, "message": message, "kind": kind},
		Timestamp: n.CreatedAt,
	}
	s.deliver(ctx, delivery{recipientID: recipientID, notification: n, event: event})
}

// deliver runs detached from the caller's cancellation, bounded by the service timeout.
func (s *NotificationService) deliver(ctx context.Context, deliveries ...delivery) {
	if len(deliveries) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	for _, d := range deliveries {
		if d.notification != nil {
			if err := s.repo.Create(ctx, d.notification); err != nil {
				s.logger.Warn("failed to persist notification",
					"recipient_id", d.recipientID, "booking_id", d.event.BookingID, "error", err)
			}
		}
		if err := s.emitter.Emit(ctx, domain.UserChannel(d.recipientID), d.event); err != nil {
			s.logger.Warn("failed to emit event",
				"recipient_id", d.recipientID, "event", d.event.Name, "booking_id", d.event.BookingID, "error", err)
		}
	}
}

func (s *NotificationService) notification(recipientID string, kind domain.NotificationKind, title, message, bookingID string) *domain.Notification {
	return &domain.Notification{
		ID:               uuid.New().String(),
		RecipientID:      recipientID,
		Kind:             kind,
		Title:            title,
		Message:          message,
		RelatedBookingID: bookingID,
		CreatedAt:        s.now(),
	}
}

func (s *NotificationService) event(name string, b *domain.Booking) domain.Event {
	return domain.Event{
		Name:      name,
		BookingID: b.ID,
		Data: map[string]any{
			"status":      b.Status,
			"bookingType": b.BookingType,
			"serviceType": b.ServiceType,
		},
		Timestamp: s.now(),
	}
}

func statusMessage(b *domain.Booking) (title, message string, kind domain.NotificationKind) {
	label := strings.ReplaceAll(string(b.Status), "_", " ")
	title = "Booking " + label
	message = fmt.Sprintf("Your %s booking is now %s", b.ServiceType, label)
	kind = domain.NotificationInfo

	switch b.Status {
	case domain.StatusCompleted:
		kind = domain.NotificationSuccess
		if b.StartedAt != nil && b.CompletedAt != nil {
			message = fmt.Sprintf("Your %s booking was completed after %s of work",
				b.ServiceType, strings.TrimSpace(humanize.RelTime(*b.StartedAt, *b.CompletedAt, "", "")))
		}
	case domain.StatusCancelled:
		kind = domain.NotificationWarning
		if b.CancellationReason != "" {
			message += ": " + b.CancellationReason
		}
	case domain.StatusRejected:
		kind = domain.NotificationError
	}
	return title, message, kind
}

func formatPrice(v float64) string {
	return humanize.FormatFloat("#,###.##", v)
}
