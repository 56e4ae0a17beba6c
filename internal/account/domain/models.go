package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/finsight/pkg/repository"
)

type Account struct {
	ID            snowflake.ID    `gorm:"primaryKey" json:"id"`
	OrgID         snowflake.ID    `gorm:"not null;index" json:"org_id"`
	InstitutionID snowflake.ID    `gorm:"not null;index" json:"institution_id"`
	Name          string          `gorm:"type:varchar(255);not null" json:"name"`
	Balance       decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"balance"`
	Currency      string          `gorm:"type:char(3);not null" json:"currency"`
	CreatedAt     time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"not null" json:"updated_at"`
}

func (Account) TableName() string { return "accounts" }

func (a *Account) GetID() snowflake.ID      { return a.ID }
func (a *Account) SetID(id snowflake.ID)    { a.ID = id }
func (a *Account) GetOrgID() snowflake.ID   { return a.OrgID }
func (a *Account) SetOrgID(id snowflake.ID) { a.OrgID = id }

func (a *Account) Touch(now time.Time) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
}

func (a *Account) TenantParents() []repository.Parent {
	return []repository.Parent{{Table: "financial_institutions", ID: a.InstitutionID}}
}

func (a *Account) AuditDetails() map[string]any {
	return map[string]any{
		"institution_id": a.InstitutionID.String(),
		"name":           a.Name,
		"currency":       a.Currency,
	}
}
