package auth

import "time"

// Role is the authorization tag controlling which panel a user sees.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
	RoleAgent      Role = "agent"
	RoleUser       Role = "user"
)

// User is the domain representation of an authenticated user.
// It mirrors the users table and should not include JSON annotations so it
// can be reused by different presentation layers.
type User struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
	Phone        *string
	Country      *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session is the credential-store-issued token bundle. Callers hold it
// read-only; only the Service creates and invalidates sessions.
type Session struct {
	Token     string
	UserID    string
	Email     string
	ExpiresAt time.Time
}

// RegisterRequest contains user registration data supplied by callers.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone,omitempty"`
	Country  string `json:"country,omitempty"`
}

// LoginRequest contains user login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AgentRecord mirrors the agents table row for one user.
type AgentRecord struct {
	ID         string
	IsApproved *bool
}

// UserRoleRecord mirrors one user_roles row. IsApproved is tri-state: a nil
// pointer means the flag was never set, which is not the same as false.
type UserRoleRecord struct {
	Role       Role
	IsApproved *bool
}

// ProfileRecord mirrors the profiles row carrying a free-form role field.
type ProfileRecord struct {
	Role *string
}
