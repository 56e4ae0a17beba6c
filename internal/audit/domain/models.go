package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeDenied  Outcome = "denied"
)

// AuditLog is append-only. Rows outlive the organization and user they reference,
// so org_id and user_id carry no foreign keys and are nullable.
type AuditLog struct {
	ID            string            `gorm:"primaryKey;type:varchar(26)" json:"id"`
	OrgID         *snowflake.ID     `gorm:"index" json:"org_id,omitempty"`
	UserID        *snowflake.ID     `gorm:"index" json:"user_id,omitempty"`
	Action        string            `gorm:"type:varchar(128);not null;index" json:"action"`
	ResourceType  string            `gorm:"type:varchar(64);not null" json:"resource_type"`
	ResourceID    *string           `gorm:"type:varchar(64)" json:"resource_id,omitempty"`
	Outcome       Outcome           `gorm:"type:varchar(16);not null" json:"outcome"`
	Details       datatypes.JSONMap `gorm:"type:json" json:"details,omitempty"`
	CorrelationID string            `gorm:"type:varchar(64)" json:"correlation_id,omitempty"`
	CreatedAt     time.Time         `gorm:"not null;index" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

// Record is the input to a Recorder. Nil OrgID and UserID are resolved from
// the principal on the context when one is present.
type Record struct {
	OrgID        *snowflake.ID
	UserID       *snowflake.ID
	Action       string
	ResourceType string
	ResourceID   string
	Outcome      Outcome
	Details      map[string]any
}
