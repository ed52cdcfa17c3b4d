package postgres

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"fixitnow/internal/domain"
	"fixitnow/internal/repository"
)

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, name, email, phone, role, is_active, service_types, completed_jobs`

// Create adds a new user.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, name, email, phone, role, is_active, service_types, completed_jobs)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	serviceTypes := user.ServiceTypes
	if serviceTypes == nil {
		serviceTypes = []string{}
	}
	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Name, user.Email, user.Phone, user.Role, user.IsActive,
		pq.Array(serviceTypes), user.CompletedJobs,
	)
	return err
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// ListActiveTechnicians returns active technicians offering serviceType, most experienced first.
func (r *UserRepository) ListActiveTechnicians(ctx context.Context, serviceType string, limit int) ([]*domain.User, error) {
	query := `
		SELECT ` + userColumns + ` FROM users
		WHERE role = 'technician' AND is_active AND $1 = ANY(service_types)
		ORDER BY completed_jobs DESC LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, serviceType, repository.NormalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// IncrementCompletedJobs bumps the technician's completed-job counter.
func (r *UserRepository) IncrementCompletedJobs(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET completed_jobs = completed_jobs + 1 WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanUser(s scanner) (*domain.User, error) {
	var user domain.User
	err := s.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Phone,
		&user.Role,
		&user.IsActive,
		pq.Array(&user.ServiceTypes),
		&user.CompletedJobs,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
