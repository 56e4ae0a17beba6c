package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/finsight/pkg/repository"
)

type Transaction struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID    `gorm:"not null;index" json:"org_id"`
	AccountID   snowflake.ID    `gorm:"not null;index" json:"account_id"`
	Date        time.Time       `gorm:"not null;index" json:"date"`
	Amount      decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"amount"`
	Category    string          `gorm:"type:varchar(64)" json:"category,omitempty"`
	Description string          `gorm:"type:text" json:"description,omitempty"`
	CreatedAt   time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null" json:"updated_at"`
}

func (Transaction) TableName() string { return "transactions" }

func (t *Transaction) GetID() snowflake.ID      { return t.ID }
func (t *Transaction) SetID(id snowflake.ID)    { t.ID = id }
func (t *Transaction) GetOrgID() snowflake.ID   { return t.OrgID }
func (t *Transaction) SetOrgID(id snowflake.ID) { t.OrgID = id }

func (t *Transaction) Touch(now time.Time) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
}

func (t *Transaction) TenantParents() []repository.Parent {
	return []repository.Parent{{Table: "accounts", ID: t.AccountID}}
}

func (t *Transaction) AuditDetails() map[string]any {
	return map[string]any{
		"account_id": t.AccountID.String(),
		"amount":     t.Amount.String(),
		"date":       t.Date.Format(time.DateOnly),
	}
}

// ImmutableColumns pins a transaction to the account it was booked on.
func (t *Transaction) ImmutableColumns() []string { return []string{"account_id"} }
