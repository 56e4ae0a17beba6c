package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/finsight/internal/orgcontext"
)

type Service interface {
	// Login resolves the user by email across all organizations and issues a
	// token bound to the user's organization and role.
	Login(ctx context.Context, email, password string) (Session, error)
	// Authenticate verifies token and returns ctx carrying the principal, with
	// the role and active flags read fresh from the database.
	Authenticate(ctx context.Context, token string) (context.Context, error)
}

type Session struct {
	Token     string               `json:"token"`
	ExpiresAt time.Time            `json:"expires_at"`
	Principal orgcontext.Principal `json:"principal"`
}

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidToken       = errors.New("invalid_token")
	ErrMissingSecret      = errors.New("auth_secret_missing")
	ErrTooManyAttempts    = errors.New("too_many_attempts")
)
