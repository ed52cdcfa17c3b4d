package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"fixitnow/internal/domain"
	"fixitnow/internal/redis"
	"fixitnow/internal/repository"
)

const (
	defaultMaxWriteAttempts = 5
	defaultAverageSpeedKmh  = 30.0
)

// Settings tunes the booking engine.
type Settings struct {
	BroadcastTTL     time.Duration
	BasePrice        float64
	MaxWriteAttempts int
	AverageSpeedKmh  float64
}

func (s Settings) withDefaults() Settings {
	if s.BroadcastTTL <= 0 {
		s.BroadcastTTL = domain.DefaultBroadcastTTL
	}
	if s.BasePrice <= 0 {
		s.BasePrice = domain.DefaultBasePrice
	}
	if s.MaxWriteAttempts <= 0 {
		s.MaxWriteAttempts = defaultMaxWriteAttempts
	}
	if s.AverageSpeedKmh <= 0 {
		s.AverageSpeedKmh = defaultAverageSpeedKmh
	}
	return s
}

// TechnicianDirectory is the user directory as seen by the booking engine.
type TechnicianDirectory interface {
	FindActiveTechnician(ctx context.Context, id string) (*domain.User, error)
	IncrementCompletedJobs(ctx context.Context, technicianID string) error
}

// CandidateSelector picks the technicians a broadcast is offered to.
type CandidateSelector interface {
	CandidateTechnicians(ctx context.Context, serviceType string, location domain.Location) ([]string, error)
}

// BookingService implements the booking lifecycle and broadcast dispatch.
type BookingService struct {
	bookings  repository.BookingRepository
	directory TechnicianDirectory
	selector  CandidateSelector
	notifier  *NotificationService
	locker    redis.LockStoreInterface
	locations redis.LocationStoreInterface
	policy    Policy
	logger    *slog.Logger
	settings  Settings
	now       func() time.Time
}

// NewBookingService creates a new BookingService. locker and locations may be nil
// when Redis is not configured.
func NewBookingService(
	bookings repository.BookingRepository,
	directory TechnicianDirectory,
	selector CandidateSelector,
	notifier *NotificationService,
	locker redis.LockStoreInterface,
	locations redis.LocationStoreInterface,
	logger *slog.Logger,
	settings Settings,
) *BookingService {
	return &BookingService{
		bookings:  bookings,
		directory: directory,
		selector:  selector,
		notifier:  notifier,
		locker:    locker,
		locations: locations,
		logger:    logger,
		settings:  settings.withDefaults(),
		now:       time.Now,
	}
}

// LocationInput is the service address supplied with a new booking.
type LocationInput struct {
	Address string   `json:"address" validate:"required"`
	Lat     *float64 `json:"lat" validate:"omitempty,latitude"`
	Lng     *float64 `json:"lng" validate:"omitempty,longitude"`
}

// PricingInput is the optional price breakdown supplied with a new booking.
type PricingInput struct {
	BasePrice         *float64        `json:"basePrice" validate:"omitempty,gte=0"`
	DistanceFee       float64         `json:"distanceFee" validate:"gte=0"`
	UrgencyFee        float64         `json:"urgencyFee" validate:"gte=0"`
	AdditionalCharges []domain.Charge `json:"additionalCharges"`
	Discount          float64         `json:"discount" validate:"gte=0"`
}

// CreateBookingRequest contains the parameters for creating a booking.
type CreateBookingRequest struct {
	// CustomerID is only honoured for admins booking on a customer's behalf.
	CustomerID    string         `json:"customerId"`
	TechnicianID  string         `json:"technicianId"`
	ServiceType   string         `json:"serviceType" validate:"required"`
	Description   string         `json:"description" validate:"required"`
	Date          string         `json:"date" validate:"required"`
	Time          string         `json:"time" validate:"required"`
	ScheduledDate *time.Time     `json:"scheduledDate"`
	Urgency       domain.Urgency `json:"urgency" validate:"omitempty,oneof=normal urgent emergency"`
	Location      LocationInput  `json:"location"`
	Pricing       *PricingInput  `json:"pricing"`
}

func (r *CreateBookingRequest) trim() {
	r.CustomerID = strings.TrimSpace(r.CustomerID)
	r.TechnicianID = strings.TrimSpace(r.TechnicianID)
	r.ServiceType = strings.TrimSpace(r.ServiceType)
	r.Description = strings.TrimSpace(r.Description)
	r.Date = strings.TrimSpace(r.Date)
	r.Time = strings.TrimSpace(r.Time)
	r.Location.Address = strings.TrimSpace(r.Location.Address)
}

// CreateBooking validates the request and persists a pending booking. A booking
// naming a technician is a precision booking; otherwise it is broadcast to candidates.
func (s *BookingService) CreateBooking(ctx context.Context, actor domain.Actor, req CreateBookingRequest) (*domain.Booking, error) {
	req.trim()

	customerID := actor.ID
	switch actor.Role {
	case domain.RoleCustomer:
	case domain.RoleAdmin:
		if req.CustomerID == "" {
			return nil, domain.NewValidationError("customerId", "is required")
		}
		customerID = req.CustomerID
	default:
		return nil, &domain.ForbiddenError{Role: actor.Role, Action: string(actionCreate)}
	}

	if err := ValidateStruct(&req); err != nil {
		return nil, err
	}
	if (req.Location.Lat == nil) != (req.Location.Lng == nil) {
		return nil, domain.NewValidationError("location", "lat and lng must be given together")
	}

	if req.TechnicianID != "" {
		if _, err := s.directory.FindActiveTechnician(ctx, req.TechnicianID); err != nil {
			return nil, err
		}
	}

	now := s.now()
	b := &domain.Booking{
		ID:            uuid.New().String(),
		CustomerID:    customerID,
		TechnicianID:  req.TechnicianID,
		BookingType:   domain.BookingTypeBroadcast,
		Status:        domain.StatusPending,
		ServiceType:   req.ServiceType,
		Description:   req.Description,
		Date:          req.Date,
		Time:          req.Time,
		ScheduledDate: req.ScheduledDate,
		Urgency:       req.Urgency,
		Location: domain.Location{
			Address: req.Location.Address,
			Lat:     req.Location.Lat,
			Lng:     req.Location.Lng,
		},
		Pricing:       s.pricing(req.Pricing),
		PaymentStatus: domain.PaymentStatusPending,
	}
	if b.Urgency == "" {
		b.Urgency = domain.UrgencyNormal
	}

	var offered []string
	if req.TechnicianID != "" {
		b.BookingType = domain.BookingTypePrecision
		offered = []string{req.TechnicianID}
	} else {
		candidates, err := s.selector.CandidateTechnicians(ctx, b.ServiceType, b.Location)
		if err != nil {
			s.logger.Warn("candidate selection failed, opening empty broadcast",
				"service_type", b.ServiceType, "error", err)
		}
		s.openBroadcast(b, candidates, now)
		offered = b.BroadcastState.Candidates.IDs()
	}

	domain.Normalize(b, nil, now, s.settings.BroadcastTTL)

	if err := s.bookings.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}

	s.logger.Info("booking created",
		"booking_id", b.ID, "booking_type", b.BookingType, "customer_id", b.CustomerID, "offered", len(offered))

	s.notifier.NotifyBookingRequested(ctx, b, offered)
	return b, nil
}

func (s *BookingService) pricing(in *PricingInput) domain.Pricing {
	p := domain.Pricing{BasePrice: s.settings.BasePrice, AdditionalCharges: []domain.Charge{}}
	if in == nil {
		return p
	}
	if in.BasePrice != nil {
		p.BasePrice = *in.BasePrice
	}
	p.DistanceFee = in.DistanceFee
	p.UrgencyFee = in.UrgencyFee
	p.Discount = in.Discount
	if in.AdditionalCharges != nil {
		p.AdditionalCharges = append(p.AdditionalCharges, in.AdditionalCharges...)
	}
	return p
}

// GetBooking returns a booking visible to actor.
func (s *BookingService) GetBooking(ctx context.Context, id string, actor domain.Actor) (*domain.Booking, error) {
	b, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(b, actor, actionRead); err != nil {
		return nil, err
	}
	return b, nil
}

// ListBookings returns the bookings actor takes part in, newest first.
// Admins see every booking.
func (s *BookingService) ListBookings(ctx context.Context, actor domain.Actor, status domain.Status, limit int) ([]*domain.Booking, error) {
	filter := repository.BookingFilter{Status: status, Limit: limit}

	switch actor.Role {
	case domain.RoleAdmin:
	case domain.RoleCustomer:
		filter.CustomerID = actor.ID
	case domain.RoleTechnician:
		filter.ParticipantID = actor.ID
	default:
		return nil, &domain.ForbiddenError{Role: actor.Role, Action: string(actionRead)}
	}

	bookings, err := s.bookings.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}

func (s *BookingService) load(ctx context.Context, id string) (*domain.Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &domain.NotFoundError{Entity: "booking", ID: id}
		}
		return nil, fmt.Errorf("load booking %s: %w", id, err)
	}
	return b, nil
}

// mutation derives the next state in place from a fresh copy of the stored booking.
// Returning errNoChange skips the write.
type mutation func(b *domain.Booking, now time.Time) error

type writeFunc func(ctx context.Context, b *domain.Booking, expectedVersion int64) error

// mutate runs read, transform, normalize and conditional write, re-reading on a
// version conflict so that every precondition is checked against the committed
// state. It returns the stored booking the change was based on and the new booking.
func (s *BookingService) mutate(ctx context.Context, id string, write writeFunc, fn mutation) (*domain.Booking, *domain.Booking, error) {
	for attempt := 1; attempt <= s.settings.MaxWriteAttempts; attempt++ {
		current, err := s.load(ctx, id)
		if err != nil {
			return nil, nil, err
		}

		now := s.now()
		next := current.Clone()
		if err := fn(next, now); err != nil {
			if errors.Is(err, errNoChange) {
				return current, current, nil
			}
			return nil, nil, err
		}
		domain.Normalize(next, current, now, s.settings.BroadcastTTL)

		err = write(ctx, next, current.Version)
		switch {
		case err == nil:
			return current, next, nil
		case errors.Is(err, repository.ErrConflict):
			s.logger.Debug("booking write conflict, retrying", "booking_id", id, "attempt", attempt)
			continue
		case errors.Is(err, repository.ErrAlreadyClaimed):
			return nil, nil, &domain.AlreadyClaimedError{BookingID: id}
		case errors.Is(err, repository.ErrNotFound):
			return nil, nil, &domain.NotFoundError{Entity: "booking", ID: id}
		default:
			return nil, nil, fmt.Errorf("update booking %s: %w", id, err)
		}
	}
	return nil, nil, ErrWriteContention
}
