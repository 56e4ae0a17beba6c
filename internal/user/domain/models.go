package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// User is a member of exactly one organization. Email is unique across all
// organizations because login resolves the tenant from it.
type User struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID        snowflake.ID `gorm:"not null;index" json:"org_id"`
	Email        string       `gorm:"type:varchar(320);not null;uniqueIndex:ux_users_email" json:"email"`
	Role         string       `gorm:"type:varchar(32);not null" json:"role"`
	PasswordHash string       `gorm:"type:text" json:"-"`
	Active       bool         `gorm:"not null" json:"active"`
	CreatedAt    time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null" json:"updated_at"`
}

func (User) TableName() string { return "users" }

func (u *User) GetID() snowflake.ID      { return u.ID }
func (u *User) SetID(id snowflake.ID)    { u.ID = id }
func (u *User) GetOrgID() snowflake.ID   { return u.OrgID }
func (u *User) SetOrgID(id snowflake.ID) { u.OrgID = id }

func (u *User) Touch(now time.Time) {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
}

func (u *User) SensitiveColumns() []string { return []string{"password_hash"} }

func (u *User) AuditDetails() map[string]any {
	return map[string]any{"email": u.Email, "role": u.Role}
}
