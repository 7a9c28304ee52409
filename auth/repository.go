package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrUserNotFound signals that the user does not exist.
	ErrUserNotFound = errors.New("auth: user not found")
	// ErrDuplicateEmail signals that the email is already registered.
	ErrDuplicateEmail = errors.New("auth: email already exists")
)

// Repository handles data access for authentication.
type Repository interface {
	CreateUser(ctx context.Context, params CreateUserParams) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, userID string) (User, error)
}

// RoleRepository exposes the four relations consulted during role
// resolution. Each read is keyed by user id and returns a typed record; the
// resolver validates shape at this boundary instead of trusting loose rows.
type RoleRepository interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
	GetAgent(ctx context.Context, userID string) (*AgentRecord, error)
	ListUserRoles(ctx context.Context, userID string) ([]UserRoleRecord, error)
	GetProfile(ctx context.Context, userID string) (*ProfileRecord, error)
}

// CreateUserParams contains write parameters for creating users.
type CreateUserParams struct {
	Email        string
	FullName     string
	PasswordHash string
	Phone        *string
	Country      *string
}

// PGRepository implements Repository and RoleRepository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed auth repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// CreateUser inserts a new user with hashed password.
func (r *PGRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	const insertSQL = `
		INSERT INTO users (email, full_name, password_hash, phone, country)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, email, full_name, password_hash, phone, country, created_at, updated_at
	`

	user, err := scanUser(r.pool.QueryRow(ctx, insertSQL, params.Email, params.FullName, params.PasswordHash, params.Phone, params.Country))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, ErrDuplicateEmail
		}
		return User{}, fmt.Errorf("auth: create user: %w", err)
	}

	return user, nil
}

// GetUserByEmail retrieves a user by email address.
func (r *PGRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	const selectSQL = `
		SELECT id, email, full_name, password_hash, phone, country, created_at, updated_at
		FROM users
		WHERE email = $1
	`

	user, err := scanUser(r.pool.QueryRow(ctx, selectSQL, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("auth: get user by email: %w", err)
	}

	return user, nil
}

// GetUserByID retrieves a user by ID.
func (r *PGRepository) GetUserByID(ctx context.Context, userID string) (User, error) {
	const selectSQL = `
		SELECT id, email, full_name, password_hash, phone, country, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	user, err := scanUser(r.pool.QueryRow(ctx, selectSQL, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("auth: get user by id: %w", err)
	}

	return user, nil
}

// IsAdmin reports whether the user has a row in the admins relation.
func (r *PGRepository) IsAdmin(ctx context.Context, userID string) (bool, error) {
	var id string
	err := r.pool.QueryRow(ctx, `SELECT id FROM admins WHERE user_id = $1`, userID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("auth: query admins: %w", err)
	}
	return true, nil
}

// GetAgent returns the agents row for the user, or nil when absent.
func (r *PGRepository) GetAgent(ctx context.Context, userID string) (*AgentRecord, error) {
	var rec AgentRecord
	err := r.pool.QueryRow(ctx, `SELECT id, is_approved FROM agents WHERE user_id = $1`, userID).
		Scan(&rec.ID, &rec.IsApproved)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("auth: query agents: %w", err)
	}
	return &rec, nil
}

// ListUserRoles returns all user_roles rows for the user, zero or more.
func (r *PGRepository) ListUserRoles(ctx context.Context, userID string) ([]UserRoleRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT role, is_approved FROM user_roles WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("auth: query user_roles: %w", err)
	}
	defer rows.Close()

	var records []UserRoleRecord
	for rows.Next() {
		var rec UserRoleRecord
		if err := rows.Scan(&rec.Role, &rec.IsApproved); err != nil {
			return nil, fmt.Errorf("auth: scan user_roles: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("auth: iterate user_roles: %w", err)
	}
	return records, nil
}

// GetProfile returns the profiles row for the user, or nil when absent.
func (r *PGRepository) GetProfile(ctx context.Context, userID string) (*ProfileRecord, error) {
	var rec ProfileRecord
	err := r.pool.QueryRow(ctx, `SELECT role FROM profiles WHERE id = $1`, userID).Scan(&rec.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("auth: query profiles: %w", err)
	}
	return &rec, nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		user    User
		phone   *string
		country *string
	)
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.FullName,
		&user.PasswordHash,
		&phone,
		&country,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return User{}, err
	}

	user.Phone = phone
	user.Country = country
	return user, nil
}
