package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/cast"

	"fixitnow/internal/domain"
	"fixitnow/internal/middleware"
	"fixitnow/internal/redis"
	"fixitnow/internal/repository"
	"fixitnow/internal/service"
)

const defaultTechnicianListLimit = 20

// UserHandler handles HTTP requests for the user directory.
type UserHandler struct {
	userRepo  repository.UserRepository
	directory *service.Directory
	locations redis.LocationStoreInterface
}

// NewUserHandler creates a new UserHandler. locations may be nil.
func NewUserHandler(userRepo repository.UserRepository, directory *service.Directory, locations redis.LocationStoreInterface) *UserHandler {
	return &UserHandler{userRepo: userRepo, directory: directory, locations: locations}
}

// RegisterRequest is the HTTP request body for user registration.
type RegisterRequest struct {
	Name         string   `json:"name" validate:"required"`
	Email        string   `json:"email" validate:"required,email"`
	Phone        string   `json:"phone"`
	Role         string   `json:"role" validate:"required,oneof=customer technician admin"`
	ServiceTypes []string `json:"serviceTypes"`
	Inactive     bool     `json:"inactive"`
}

// PositionRequest is a technician's idle position.
type PositionRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Register handles POST /v1/users
func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c)
		return
	}
	if err := validateRegister(&req); err != nil {
		respondError(c, err)
		return
	}

	role := domain.Role(req.Role)

	serviceTypes := make([]string, 0, len(req.ServiceTypes))
	for _, s := range req.ServiceTypes {
		if s = strings.TrimSpace(s); s != "" {
			serviceTypes = append(serviceTypes, s)
		}
	}

	user := &domain.User{
		ID:           uuid.New().String(),
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:        strings.TrimSpace(req.Phone),
		Role:         role,
		IsActive:     !req.Inactive,
		ServiceTypes: serviceTypes,
	}

	if err := h.userRepo.Create(c.Request.Context(), user); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, user)
}

// validateRegister reports every invalid field at once, including the service
// types a technician must offer.
func validateRegister(req *RegisterRequest) error {
	verr := &domain.ValidationError{Fields: map[string]string{}}
	if err := service.ValidateStruct(req); err != nil {
		if !errors.As(err, &verr) {
			return err
		}
	}
	if domain.Role(req.Role) == domain.RoleTechnician && len(req.ServiceTypes) == 0 {
		verr.Fields["serviceTypes"] = "is required for technicians"
	}
	if len(verr.Fields) == 0 {
		return nil
	}
	return verr
}

// GetMe handles GET /v1/users/me
func (h *UserHandler) GetMe(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	user, err := h.userRepo.GetByID(c.Request.Context(), actor.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			err = &domain.NotFoundError{Entity: "user", ID: actor.ID}
		}
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, user)
}

// ListTechnicians handles GET /v1/users/technicians?serviceType=
func (h *UserHandler) ListTechnicians(c *gin.Context) {
	serviceType := strings.TrimSpace(c.Query("serviceType"))
	if serviceType == "" {
		respondError(c, domain.NewValidationError("serviceType", "is required"))
		return
	}

	limit := cast.ToInt(c.Query("limit"))
	if limit <= 0 {
		limit = defaultTechnicianListLimit
	}

	users, err := h.directory.ListActiveTechnicians(c.Request.Context(), serviceType, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if users == nil {
		users = []*domain.User{}
	}
	respondJSON(c, http.StatusOK, gin.H{"technicians": users, "count": len(users)})
}

// GoOnline handles PUT /v1/users/me/position. The technician becomes discoverable
// for nearby broadcasts.
func (h *UserHandler) GoOnline(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	if h.locations == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "location index is not configured"})
		return
	}

	var req PositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c)
		return
	}
	if !domain.IsValidCoordinate(req.Lat, req.Lng) {
		respondError(c, domain.NewValidationError("location", "coordinates are out of range"))
		return
	}

	if _, err := h.directory.FindActiveTechnician(c.Request.Context(), actor.ID); err != nil {
		respondError(c, err)
		return
	}
	if err := h.locations.UpdateLocation(c.Request.Context(), actor.ID, req.Lat, req.Lng); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GoOffline handles DELETE /v1/users/me/position.
func (h *UserHandler) GoOffline(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	if h.locations == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "location index is not configured"})
		return
	}

	if err := h.locations.RemoveLocation(c.Request.Context(), actor.ID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
