// Package domain contains persistence models for the organization service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Organization is a tenant. Its ID is the org_id of every tenant-owned row.
type Organization struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:varchar(255);not null;uniqueIndex:ux_organizations_name" json:"name"`
	Slug      string       `gorm:"type:varchar(255);not null;uniqueIndex:ux_organizations_slug" json:"slug"`
	Active    bool         `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }

// TenantTables lists every org-scoped table, children before parents, in the
// order an organization delete must clear them. audit_logs is intentionally absent.
var TenantTables = []string{
	"alerts",
	"alert_rules",
	"reports",
	"analytics_runs",
	"transactions",
	"accounts",
	"financial_institutions",
	"users",
}
