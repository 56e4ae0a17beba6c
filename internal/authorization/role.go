package authorization

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Role mirrors DefaultRoles in the database so SQL tooling can join on it.
type Role struct {
	Name        string                      `gorm:"primaryKey;type:varchar(32)" json:"name"`
	Permissions datatypes.JSONSlice[string] `gorm:"type:json;not null" json:"permissions"`
	CreatedAt   time.Time                   `gorm:"not null" json:"created_at"`
}

func (Role) TableName() string { return "roles" }

// SeedRoles inserts the fixed roles. Existing rows are left untouched.
func SeedRoles(ctx context.Context, tx *gorm.DB, now time.Time) error {
	for _, name := range RoleNames {
		role := Role{
			Name:        name,
			Permissions: datatypes.NewJSONSlice(append([]string(nil), DefaultRoles[name]...)),
			CreatedAt:   now,
		}
		if err := tx.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&role).Error; err != nil {
			return err
		}
	}
	return nil
}
