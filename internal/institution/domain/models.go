package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type InstitutionType string

const (
	TypeBank        InstitutionType = "bank"
	TypeCreditUnion InstitutionType = "credit_union"
	TypeBrokerage   InstitutionType = "brokerage"
	TypeCreditCard  InstitutionType = "credit_card"
	TypeOther       InstitutionType = "other"
)

func (t InstitutionType) Valid() bool {
	switch t {
	case TypeBank, TypeCreditUnion, TypeBrokerage, TypeCreditCard, TypeOther:
		return true
	}
	return false
}

type FinancialInstitution struct {
	ID                   snowflake.ID    `gorm:"primaryKey" json:"id"`
	OrgID                snowflake.ID    `gorm:"not null;index" json:"org_id"`
	Name                 string          `gorm:"type:varchar(255);not null" json:"name"`
	Type                 InstitutionType `gorm:"type:varchar(32);not null" json:"type"`
	EncryptedCredentials []byte          `json:"-"`
	CreatedAt            time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt            time.Time       `gorm:"not null" json:"updated_at"`
}

func (FinancialInstitution) TableName() string { return "financial_institutions" }

func (f *FinancialInstitution) GetID() snowflake.ID      { return f.ID }
func (f *FinancialInstitution) SetID(id snowflake.ID)    { f.ID = id }
func (f *FinancialInstitution) GetOrgID() snowflake.ID   { return f.OrgID }
func (f *FinancialInstitution) SetOrgID(id snowflake.ID) { f.OrgID = id }

func (f *FinancialInstitution) Touch(now time.Time) {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	f.UpdatedAt = now
}

func (f *FinancialInstitution) SensitiveColumns() []string {
	return []string{"encrypted_credentials"}
}

// AuditDetails never includes the sealed credentials.
func (f *FinancialInstitution) AuditDetails() map[string]any {
	return map[string]any{
		"name":            f.Name,
		"type":            string(f.Type),
		"has_credentials": len(f.EncryptedCredentials) > 0,
	}
}

func (f *FinancialInstitution) HasCredentials() bool {
	return len(f.EncryptedCredentials) > 0
}
