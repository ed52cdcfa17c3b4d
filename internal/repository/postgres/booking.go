package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"fixitnow/internal/domain"
	"fixitnow/internal/repository"
)

// BookingRepository is a PostgreSQL implementation of repository.BookingRepository.
// The full booking is stored as a JSONB document; the columns it is queried or
// conditioned on are kept alongside it.
type BookingRepository struct {
	q Querier
}

// NewBookingRepository creates a new PostgreSQL booking repository.
func NewBookingRepository(db *sql.DB) *BookingRepository {
	return &BookingRepository{q: db}
}

type bookingRow struct {
	technicianID sql.NullString
	acceptedBy   sql.NullString
	active       bool
	expiresAt    sql.NullTime
	candidateIDs []string
	document     []byte
}

func toBookingRow(b *domain.Booking) (bookingRow, error) {
	doc, err := json.Marshal(b)
	if err != nil {
		return bookingRow{}, fmt.Errorf("failed to encode booking: %w", err)
	}

	row := bookingRow{
		technicianID: nullString(b.TechnicianID),
		acceptedBy:   nullString(b.AcceptedBy()),
		candidateIDs: []string{},
		document:     doc,
	}
	if bs := b.BroadcastState; bs != nil {
		row.active = bs.IsActive
		row.candidateIDs = bs.Candidates.IDs()
		if bs.ExpiresAt != nil {
			row.expiresAt = sql.NullTime{Time: *bs.ExpiresAt, Valid: true}
		}
	}
	return row, nil
}

// Create persists a new booking at version 1.
func (r *BookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	b.Version = 1
	row, err := toBookingRow(b)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO bookings (id, version, customer_id, technician_id, booking_type, status, accepted_by, broadcast_active, expires_at, candidate_ids, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = r.q.ExecContext(ctx, query,
		b.ID,
		b.Version,
		b.CustomerID,
		row.technicianID,
		b.BookingType,
		b.Status,
		row.acceptedBy,
		row.active,
		row.expiresAt,
		pq.Array(row.candidateIDs),
		row.document,
		b.CreatedAt,
		b.UpdatedAt,
	)
	return err
}

// GetByID retrieves a booking by ID.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	query := `SELECT document, version FROM bookings WHERE id = $1`

	b, err := scanBooking(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

// List retrieves bookings matching filter, newest first.
func (r *BookingRepository) List(ctx context.Context, f repository.BookingFilter) ([]*domain.Booking, error) {
	var conds []string
	var args []any

	if f.CustomerID != "" {
		args = append(args, f.CustomerID)
		conds = append(conds, fmt.Sprintf("customer_id = $%d", len(args)))
	}
	if f.ParticipantID != "" {
		args = append(args, f.ParticipantID)
		conds = append(conds, fmt.Sprintf("(technician_id = $%d OR $%d = ANY(candidate_ids))", len(args), len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT document, version FROM bookings`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, repository.NormalizeLimit(f.Limit))
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	return r.query(ctx, query, args...)
}

// ListExpiredBroadcasts returns active, unclaimed broadcasts whose expiresAt is before now.
func (r *BookingRepository) ListExpiredBroadcasts(ctx context.Context, now time.Time, limit int) ([]*domain.Booking, error) {
	query := `
		SELECT document, version FROM bookings
		WHERE broadcast_active AND accepted_by IS NULL AND expires_at < $1
		ORDER BY expires_at LIMIT $2
	`
	return r.query(ctx, query, now, repository.NormalizeLimit(limit))
}

// Update replaces the booking if the stored version still equals expectedVersion.
func (r *BookingRepository) Update(ctx context.Context, b *domain.Booking, expectedVersion int64) error {
	return r.write(ctx, b, expectedVersion, false)
}

// Claim replaces the booking if the stored version matches and no winner is stored yet.
func (r *BookingRepository) Claim(ctx context.Context, b *domain.Booking, expectedVersion int64) error {
	return r.write(ctx, b, expectedVersion, true)
}

func (r *BookingRepository) write(ctx context.Context, b *domain.Booking, expectedVersion int64, claim bool) error {
	b.Version = expectedVersion + 1
	row, err := toBookingRow(b)
	if err != nil {
		b.Version = expectedVersion
		return err
	}

	result, err := r.q.ExecContext(ctx, updateQuery(claim),
		b.ID,
		b.Version,
		row.technicianID,
		b.Status,
		row.acceptedBy,
		row.active,
		row.expiresAt,
		pq.Array(row.candidateIDs),
		row.document,
		b.UpdatedAt,
		expectedVersion,
	)
	if err != nil {
		b.Version = expectedVersion
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		b.Version = expectedVersion
		return err
	}

	if rowsAffected == 0 {
		b.Version = expectedVersion
		return r.missReason(ctx, b.ID, claim)
	}

	return nil
}

const updateBookingQuery = `
		UPDATE bookings
		SET version = $2, technician_id = $3, status = $4, accepted_by = $5, broadcast_active = $6, expires_at = $7, candidate_ids = $8, document = $9, updated_at = $10
		WHERE id = $1 AND version = $11`

// updateQuery returns the compare-and-set update. A claim additionally requires
// that nobody has accepted the booking yet.
func updateQuery(claim bool) string {
	if claim {
		return updateBookingQuery + ` AND accepted_by IS NULL`
	}
	return updateBookingQuery
}

// missReason explains why a conditional write matched no row.
func (r *BookingRepository) missReason(ctx context.Context, id string, claim bool) error {
	var acceptedBy sql.NullString
	err := r.q.QueryRowContext(ctx, `SELECT accepted_by FROM bookings WHERE id = $1`, id).Scan(&acceptedBy)
	return classifyMiss(acceptedBy, err, claim)
}

// classifyMiss maps the current accepted_by of a booking, or the error reading it,
// to the repository error for a write that matched no row.
func classifyMiss(acceptedBy sql.NullString, lookupErr error, claim bool) error {
	if lookupErr != nil {
		if errors.Is(lookupErr, sql.ErrNoRows) {
			return repository.ErrNotFound
		}
		return lookupErr
	}
	if claim && acceptedBy.Valid {
		return repository.ErrAlreadyClaimed
	}
	return repository.ErrConflict
}

func (r *BookingRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Booking, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []*domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBooking(s scanner) (*domain.Booking, error) {
	var doc []byte
	var version int64
	if err := s.Scan(&doc, &version); err != nil {
		return nil, err
	}

	var b domain.Booking
	if err := json.Unmarshal(doc, &b); err != nil {
		return nil, fmt.Errorf("failed to decode booking: %w", err)
	}
	b.Version = version
	return &b, nil
}
