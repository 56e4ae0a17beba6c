package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/finsight/pkg/repository"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
	FormatHTML Format = "html"
)

func (f Format) Valid() bool {
	switch f {
	case FormatJSON, FormatCSV, FormatPDF, FormatHTML:
		return true
	}
	return false
}

// Report stores already rendered content. GeneratedAt is fixed at creation.
type Report struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID `gorm:"not null;index" json:"org_id"`
	UserID      snowflake.ID `gorm:"not null;index" json:"user_id"`
	Title       string       `gorm:"type:varchar(255);not null" json:"title"`
	Content     string       `gorm:"type:text" json:"content"`
	Format      Format       `gorm:"type:varchar(8);not null" json:"format"`
	GeneratedAt time.Time    `gorm:"not null" json:"generated_at"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null" json:"updated_at"`
}

func (Report) TableName() string { return "reports" }

func (r *Report) GetID() snowflake.ID      { return r.ID }
func (r *Report) SetID(id snowflake.ID)    { r.ID = id }
func (r *Report) GetOrgID() snowflake.ID   { return r.OrgID }
func (r *Report) SetOrgID(id snowflake.ID) { r.OrgID = id }

func (r *Report) Touch(now time.Time) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
}

func (r *Report) TenantParents() []repository.Parent {
	return []repository.Parent{{Table: "users", ID: r.UserID}}
}

func (r *Report) ImmutableColumns() []string {
	return []string{"user_id", "generated_at"}
}

func (r *Report) AuditDetails() map[string]any {
	return map[string]any{"title": r.Title, "format": string(r.Format)}
}
