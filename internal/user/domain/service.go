package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, req CreateUserRequest) (*User, error)
	Get(ctx context.Context, id snowflake.ID) (*User, error)
	List(ctx context.Context) ([]*User, error)
	ChangeRole(ctx context.Context, id snowflake.ID, role string) (*User, error)
	Deactivate(ctx context.Context, id snowflake.ID) (*User, error)
	SetPassword(ctx context.Context, id snowflake.ID, password string) error
}

type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email,max=320"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

var (
	ErrInvalidEmail    = errors.New("invalid_email")
	ErrInvalidPassword = errors.New("invalid_password")
	ErrEmailTaken      = errors.New("email_taken")
	// ErrSelfModification guards against a user locking themselves out.
	ErrSelfModification = errors.New("invalid_self_modification")
)
