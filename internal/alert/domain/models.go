package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/finsight/internal/lifecycle"
	"github.com/smallbiznis/finsight/pkg/repository"
	"gorm.io/datatypes"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

type Status string

const (
	StatusOpen         Status = "open"
	StatusAcknowledged Status = "acknowledged"
	StatusResolved     Status = "resolved"
	StatusClosed       Status = "closed"
)

// AlertLifecycle is strictly linear: open -> acknowledged -> resolved -> closed.
var AlertLifecycle = lifecycle.New("alert", map[Status][]Status{
	StatusOpen:         {StatusAcknowledged},
	StatusAcknowledged: {StatusResolved},
	StatusResolved:     {StatusClosed},
})

// AlertRule holds the conditions an external evaluator matches against.
type AlertRule struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID      snowflake.ID      `gorm:"not null;index" json:"org_id"`
	Name       string            `gorm:"type:varchar(255);not null" json:"name"`
	Conditions datatypes.JSONMap `gorm:"type:json" json:"conditions"`
	Severity   Severity          `gorm:"type:varchar(16);not null" json:"severity"`
	Active     bool              `gorm:"not null" json:"active"`
	CreatedAt  time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time         `gorm:"not null" json:"updated_at"`
}

func (AlertRule) TableName() string { return "alert_rules" }

func (r *AlertRule) GetID() snowflake.ID      { return r.ID }
func (r *AlertRule) SetID(id snowflake.ID)    { r.ID = id }
func (r *AlertRule) GetOrgID() snowflake.ID   { return r.OrgID }
func (r *AlertRule) SetOrgID(id snowflake.ID) { r.OrgID = id }

func (r *AlertRule) Touch(now time.Time) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
}

func (r *AlertRule) AuditDetails() map[string]any {
	return map[string]any{"name": r.Name, "severity": string(r.Severity), "active": r.Active}
}

type Alert struct {
	ID             snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID          snowflake.ID  `gorm:"not null;index" json:"org_id"`
	RuleID         *snowflake.ID `gorm:"index" json:"rule_id,omitempty"`
	Title          string        `gorm:"type:varchar(255);not null" json:"title"`
	Message        string        `gorm:"type:text" json:"message,omitempty"`
	Severity       Severity      `gorm:"type:varchar(16);not null" json:"severity"`
	Status         Status        `gorm:"type:varchar(16);not null;index" json:"status"`
	AcknowledgedBy *snowflake.ID `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time    `json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time    `json:"resolved_at,omitempty"`
	ClosedAt       *time.Time    `json:"closed_at,omitempty"`
	CreatedAt      time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time     `gorm:"not null" json:"updated_at"`
}

func (Alert) TableName() string { return "alerts" }

func (a *Alert) GetID() snowflake.ID      { return a.ID }
func (a *Alert) SetID(id snowflake.ID)    { a.ID = id }
func (a *Alert) GetOrgID() snowflake.ID   { return a.OrgID }
func (a *Alert) SetOrgID(id snowflake.ID) { a.OrgID = id }

func (a *Alert) Touch(now time.Time) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
}

func (a *Alert) TenantParents() []repository.Parent {
	return []repository.Parent{
		{Table: "alert_rules", ID: deref(a.RuleID)},
		{Table: "users", ID: deref(a.AcknowledgedBy)},
	}
}

func (a *Alert) AuditDetails() map[string]any {
	details := map[string]any{"title": a.Title, "severity": string(a.Severity)}
	if a.RuleID != nil {
		details["rule_id"] = a.RuleID.String()
	}
	return details
}

func deref(id *snowflake.ID) snowflake.ID {
	if id == nil {
		return 0
	}
	return *id
}
