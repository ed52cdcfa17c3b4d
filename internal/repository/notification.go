package repository

import (
	"context"

	"fixitnow/internal/domain"
)

// NotificationRepository stores notifications produced by booking transitions.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	ListByRecipient(ctx context.Context, recipientID string, limit int) ([]*domain.Notification, error)
}
