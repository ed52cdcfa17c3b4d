package memory

import (
	"context"
	"sync"

	"fixitnow/internal/domain"
	"fixitnow/internal/repository"
)

// NotificationRepository keeps notifications in insertion order.
type NotificationRepository struct {
	mu            sync.Mutex
	notifications []domain.Notification
}

// NewNotificationRepository creates an empty in-memory notification repository.
func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{}
}

// Create stores a notification.
func (r *NotificationRepository) Create(_ context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.notifications = append(r.notifications, *n)
	return nil
}

// ListByRecipient returns the newest notifications for a user.
func (r *NotificationRepository) ListByRecipient(_ context.Context, recipientID string, limit int) ([]*domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	limit = repository.NormalizeLimit(limit)
	var out []*domain.Notification
	for i := len(r.notifications) - 1; i >= 0 && len(out) < limit; i-- {
		if r.notifications[i].RecipientID == recipientID {
			n := r.notifications[i]
			out = append(out, &n)
		}
	}
	return out, nil
}
