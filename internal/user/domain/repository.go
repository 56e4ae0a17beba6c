package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository holds the lookups that run before a tenant is known. Everything
// org-scoped goes through the tenant store instead.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id snowflake.ID) (*User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	// Insert writes u without a principal. Used by the seed.
	Insert(ctx context.Context, u *User) error
}
