package dto

import (
	"time"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

// SignupRequest payload.
type SignupRequest struct {
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Skills   []string `json:"skills"`
}

// LoginRequest payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateUserRequest payload. Omitted fields are left unchanged.
type UpdateUserRequest struct {
	Email  string              `json:"email"`
	Role   *domain.AccountRole `json:"role"`
	Skills []string            `json:"skills"`
}

// AccountResponse represents an account without credentials.
type AccountResponse struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Email     string             `json:"email"`
	Role      domain.AccountRole `json:"role"`
	Skills    []string           `json:"skills"`
	CreatedAt time.Time          `json:"created_at"`
}

// AuthResponse is returned by signup and login.
type AuthResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Account   AccountResponse `json:"account"`
}
