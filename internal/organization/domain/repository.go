package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, org *Organization) error
	FindByID(ctx context.Context, id snowflake.ID, forUpdate bool) (*Organization, error)
	FindBySlug(ctx context.Context, slug string) (*Organization, error)
	NameExists(ctx context.Context, name string, except snowflake.ID) (bool, error)
	Update(ctx context.Context, id snowflake.ID, patch map[string]any) error
	DeleteCascade(ctx context.Context, id snowflake.ID) (map[string]int64, error)
}
