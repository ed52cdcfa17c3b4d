package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"fixitnow/internal/domain"
	"fixitnow/internal/handler"
	"fixitnow/internal/middleware"
)

// HealthCheck pings one dependency.
type HealthCheck func(ctx context.Context) error

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	BookingHandler      *handler.BookingHandler
	UserHandler         *handler.UserHandler
	NotificationHandler *handler.NotificationHandler
	Authenticator       *middleware.Authenticator
	RedisClient         *redis.Client // nil disables idempotent replay
	NewRelicApp         *newrelic.Application
	Logger              *slog.Logger
	AllowedOrigins      []string
	HealthChecks        map[string]HealthCheck
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.CORSMiddleware(deps.AllowedOrigins...))

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.GET("/health", healthHandler(deps.HealthChecks))

	// API v1 routes.
	v1 := router.Group("/v1")
	v1.Use(deps.Authenticator.Middleware())
	if deps.RedisClient != nil {
		v1.Use(middleware.IdempotencyMiddleware(deps.RedisClient, deps.Logger))
	}
	{
		bookings := v1.Group("/bookings")
		{
			bookings.POST("", deps.BookingHandler.CreateBooking)
			bookings.GET("", deps.BookingHandler.ListBookings)
			bookings.GET("/:id", deps.BookingHandler.GetBooking)
			bookings.POST("/:id/accept", deps.BookingHandler.AcceptBooking)
			bookings.POST("/:id/reject", deps.BookingHandler.RejectBooking)
			bookings.POST("/:id/start", deps.BookingHandler.StartBooking)
			bookings.POST("/:id/complete", deps.BookingHandler.CompleteBooking)
			bookings.POST("/:id/cancel", deps.BookingHandler.CancelBooking)
			bookings.PATCH("/:id/status", deps.BookingHandler.UpdateStatus)
			bookings.POST("/:id/view", deps.BookingHandler.MarkViewed)
			bookings.POST("/:id/location", deps.BookingHandler.UpdateLocation)
			bookings.POST("/:id/dispute", deps.BookingHandler.RaiseDispute)
			bookings.POST("/:id/dispute/resolve", deps.BookingHandler.ResolveDispute)
		}

		users := v1.Group("/users")
		{
			users.POST("", middleware.RequireRole(domain.RoleAdmin), deps.UserHandler.Register)
			users.GET("/me", deps.UserHandler.GetMe)
			users.GET("/technicians", deps.UserHandler.ListTechnicians)
			users.PUT("/me/position", middleware.RequireRole(domain.RoleTechnician), deps.UserHandler.GoOnline)
			users.DELETE("/me/position", middleware.RequireRole(domain.RoleTechnician), deps.UserHandler.GoOffline)
		}

		v1.GET("/notifications", deps.NotificationHandler.List)
	}

	return router
}

// healthHandler reports 200 when every dependency answers, 503 otherwise.
func healthHandler(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		c.JSON(status, gin.H{"status": overall, "checks": results})
	}
}
