package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"

	"fixitnow/internal/domain"
	"fixitnow/internal/middleware"
	"fixitnow/internal/service"
)

// BookingHandler handles HTTP requests for bookings.
type BookingHandler struct {
	bookings *service.BookingService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(bookings *service.BookingService) *BookingHandler {
	return &BookingHandler{bookings: bookings}
}

// ReasonRequest is the optional body of reject and cancel.
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// CompleteRequest is the optional body of complete.
type CompleteRequest struct {
	Notes string `json:"notes"`
}

// UpdateStatusRequest is the body of PATCH /v1/bookings/:id/status.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// LocationRequest is a technician position fix.
type LocationRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// ResolveDisputeRequest is an admin's dispute outcome.
type ResolveDisputeRequest struct {
	Resolution string `json:"resolution"`
	Refund     bool   `json:"refund"`
}

// BookingListResponse wraps a list of bookings.
type BookingListResponse struct {
	Bookings []*domain.Booking `json:"bookings"`
	Count    int               `json:"count"`
}

// CreateBooking handles POST /v1/bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req service.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c)
		return
	}

	b, err := h.bookings.CreateBooking(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, b)
}

// ListBookings handles GET /v1/bookings
func (h *BookingHandler) ListBookings(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var status domain.Status
	if raw := c.Query("status"); raw != "" {
		parsed, err := domain.ParseStatus(raw)
		if err != nil {
			respondError(c, domain.NewValidationError("status", err.Error()))
			return
		}
		status = parsed
	}

	bookings, err := h.bookings.ListBookings(c.Request.Context(), actor, status, cast.ToInt(c.Query("limit")))
	if err != nil {
		respondError(c, err)
		return
	}
	if bookings == nil {
		bookings = []*domain.Booking{}
	}
	respondJSON(c, http.StatusOK, BookingListResponse{Bookings: bookings, Count: len(bookings)})
}

// GetBooking handles GET /v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	h.run(c, func(actor domain.Actor, id string) (*domain.Booking, error) {
		return h.bookings.GetBooking(c.Request.Context(), id, actor)
	})
}

// AcceptBooking handles POST /v1/bookings/:id/accept
func (h *BookingHandler) AcceptBooking(c *gin.Context) {
	h.run(c, func(actor domain.Actor, id string) (*domain.Booking, error) {
		return h.bookings.AcceptBooking(c.Request.Context(), id, actor)
	})
}

// RejectBooking handles POST /v1/bookings/:id/reject
func (h *BookingHandler) RejectBooking(c *gin.Context) {
	var req ReasonRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	h.run(c, func(actor domain.Actor, id string) (*domain.Booking, error) {
		return h.bookings.RejectBooking(c.Request.Context(), id, actor, req.Reason)
	})
}

// StartBooking handles POST /v1/bookings/:id/start
func (h *BookingHandler) StartBooking(c *gin.Context) {
	h.run(c, func(actor domain.Actor, id string) (*domain.Booking, error) {
		return h.bookings.StartBooking(c.Request.Context(), id, actor)
	})
}

// CompleteBooking handles POST /v1/bookings/:id/complete
func (h *BookingHandler) CompleteBooking(c *gin.Context) {
	var req CompleteRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	h.run(c, func(actor domain.Actor, id string) (*domain.Booking, error) {
		return h.bookings.CompleteBooking(c.Request.Context(), id, actor, req.Notes)
	})
}

// CancelBooking handles POST /v1/bookings/:id/cancel
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	var req ReasonRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	h.run(c, func(actor domain.Actor, id string) (*domain.Booking, error) {
		return h.bookings.CancelBooking(c.Request.Context(), id, actor, req.Reason)
	})
}

// UpdateStatus handles PATCH /v1/bookings/:id/status
func (h *BookingHandler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c)
		return
	}
	target, err := domain.ParseStatus(req.Status)
	if err != nil {
		respondError(c, domain.NewValidationError("status", err.Error()))
		return
	}

	h.run(c, func(actor domain.Actor, id string) (*domain.Booking, error) {
		return h.bookings.UpdateBookingStatus(c.Request.Context(), id, actor, target)
	})
}

// MarkViewed handles POST /v1/bookings/:id/view
func (h *BookingHandler) MarkViewed(c *gin.Context) {
	h.run(c, func(actor domain.Actor, id string) (*domain.Booking, error) {
		return h.bookings.MarkViewed(c.Request.Context(), id, actor)
	})
}

// UpdateLocation handles POST /v1/bookings/:id/location
func (h *BookingHandler) UpdateLocation(c *gin.Context) {
	var req LocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c)
		return
	}
	if req.Lat == nil || req.Lng == nil {
		respondError(c, domain.NewValidationError("location", "lat and lng are required"))
		return
	}

	h.run(c, func(actor domain.Actor, id string) (*domain.Booking, error) {
		return h.bookings.UpdateTechnicianLocation(c.Request.Context(), id, actor, *req.Lat, *req.Lng)
	})
}

// RaiseDispute handles POST /v1/bookings/:id/dispute
func (h *BookingHandler) RaiseDispute(c *gin.Context) {
	var req ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c)
		return
	}
	h.run(c, func(actor domain.Actor, id string) (*domain.Booking, error) {
		return h.bookings.RaiseDispute(c.Request.Context(), id, actor, req.Reason)
	})
}

// ResolveDispute handles POST /v1/bookings/:id/dispute/resolve
func (h *BookingHandler) ResolveDispute(c *gin.Context) {
	var req ResolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c)
		return
	}
	h.run(c, func(actor domain.Actor, id string) (*domain.Booking, error) {
		return h.bookings.ResolveDispute(c.Request.Context(), id, actor, req.Resolution, req.Refund)
	})
}

// run resolves the actor and booking id and writes the booking or the error.
func (h *BookingHandler) run(c *gin.Context, op func(actor domain.Actor, id string) (*domain.Booking, error)) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	b, err := op(actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, b)
}

func (h *BookingHandler) actor(c *gin.Context) (domain.Actor, bool) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authorization token missing"})
	}
	return actor, ok
}

// bindOptionalJSON decodes the body when one was sent.
func bindOptionalJSON(c *gin.Context, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		respondBadRequest(c)
		return false
	}
	return true
}
