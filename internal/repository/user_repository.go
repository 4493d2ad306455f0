package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helpdesk-kit/helpdesk/internal/domain"
)

// UserRepository defines persistence access for users.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	ListOperators(ctx context.Context) ([]domain.User, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (email, name, role, password_hash, active)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at`

	return r.pool.QueryRow(ctx, query,
		user.Email,
		user.Name,
		user.Role,
		user.PasswordHash,
		user.Active,
	).Scan(&user.ID, &user.CreatedAt)
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	const query = `
        SELECT id, email, name, role, password_hash, active, created_at
        FROM users WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

// GetByEmail only matches active accounts, so deactivated users cannot
// log in or be looked up for assignment.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `
        SELECT id, email, name, role, password_hash, active, created_at
        FROM users WHERE email=$1 AND active`
	return r.fetchSingle(ctx, query, email)
}

func (r *userRepository) ListOperators(ctx context.Context) ([]domain.User, error) {
	const query = `
        SELECT id, email, name, role, password_hash, active, created_at
        FROM users WHERE role IN ('operator','admin') AND active
        ORDER BY name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.User
	for rows.Next() {
		var user domain.User
		if err := scanUser(rows, &user); err != nil {
			return nil, err
		}
		result = append(result, user)
	}
	return result, rows.Err()
}

func (r *userRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.User, error) {
	var user domain.User
	if err := scanUser(r.pool.QueryRow(ctx, query, arg), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func scanUser(row pgx.Row, user *domain.User) error {
	return row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Role,
		&user.PasswordHash,
		&user.Active,
		&user.CreatedAt,
	)
}
