package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"

	"fixitnow/internal/domain"
	"fixitnow/internal/middleware"
	"fixitnow/internal/repository"
)

// NotificationHandler serves the caller's notification inbox.
type NotificationHandler struct {
	repo repository.NotificationRepository
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(repo repository.NotificationRepository) *NotificationHandler {
	return &NotificationHandler{repo: repo}
}

// List handles GET /v1/notifications
func (h *NotificationHandler) List(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	notifications, err := h.repo.ListByRecipient(c.Request.Context(), actor.ID,
		repository.NormalizeLimit(cast.ToInt(c.Query("limit"))))
	if err != nil {
		respondError(c, err)
		return
	}
	if notifications == nil {
		notifications = []*domain.Notification{}
	}
	respondJSON(c, http.StatusOK, gin.H{"notifications": notifications, "count": len(notifications)})
}
