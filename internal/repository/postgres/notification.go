package postgres

import (
	"context"
	"database/sql"

	"fixitnow/internal/domain"
	"fixitnow/internal/repository"
)

// NotificationRepository implements repository.NotificationRepository using PostgreSQL.
type NotificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create stores a notification.
func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	query := `
		INSERT INTO notifications (id, recipient_id, kind, title, message, related_booking_id, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		n.ID,
		n.RecipientID,
		n.Kind,
		n.Title,
		n.Message,
		nullString(n.RelatedBookingID),
		n.IsRead,
		n.CreatedAt,
	)
	return err
}

// ListByRecipient returns the newest notifications for a user.
func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]*domain.Notification, error) {
	query := `
		SELECT id, recipient_id, kind, title, message, related_booking_id, is_read, created_at
		FROM notifications WHERE recipient_id = $1 ORDER BY created_at DESC LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, recipientID, repository.NormalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Notification
	for rows.Next() {
		var n domain.Notification
		var related sql.NullString
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Kind, &n.Title, &n.Message, &related, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.RelatedBookingID = related.String
		out = append(out, &n)
	}
	return out, rows.Err()
}
