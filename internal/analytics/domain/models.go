package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/finsight/internal/lifecycle"
	"github.com/smallbiznis/finsight/pkg/repository"
	"gorm.io/datatypes"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// RunLifecycle: running -> completed | failed. Both outcomes are terminal.
var RunLifecycle = lifecycle.New("analytics_run", map[RunStatus][]RunStatus{
	RunStatusRunning: {RunStatusCompleted, RunStatusFailed},
})

// AnalyticsRun records one analysis requested by a user. Execution happens
// elsewhere; this row only tracks its status and results.
type AnalyticsRun struct {
	ID           snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID        snowflake.ID      `gorm:"not null;index" json:"org_id"`
	UserID       snowflake.ID      `gorm:"not null;index" json:"user_id"`
	AnalysisType string            `gorm:"type:varchar(64);not null" json:"analysis_type"`
	Status       RunStatus         `gorm:"type:varchar(16);not null;index" json:"status"`
	Parameters   datatypes.JSONMap `gorm:"type:json" json:"parameters,omitempty"`
	Results      datatypes.JSONMap `gorm:"type:json" json:"results,omitempty"`
	Error        string            `gorm:"type:text" json:"error,omitempty"`
	StartedAt    time.Time         `gorm:"not null" json:"started_at"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
	CreatedAt    time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"not null" json:"updated_at"`
}

func (AnalyticsRun) TableName() string { return "analytics_runs" }

func (r *AnalyticsRun) GetID() snowflake.ID      { return r.ID }
func (r *AnalyticsRun) SetID(id snowflake.ID)    { r.ID = id }
func (r *AnalyticsRun) GetOrgID() snowflake.ID   { return r.OrgID }
func (r *AnalyticsRun) SetOrgID(id snowflake.ID) { r.OrgID = id }

func (r *AnalyticsRun) Touch(now time.Time) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
}

func (r *AnalyticsRun) TenantParents() []repository.Parent {
	return []repository.Parent{{Table: "users", ID: r.UserID}}
}

func (r *AnalyticsRun) ImmutableColumns() []string {
	return []string{"user_id", "analysis_type", "parameters", "started_at"}
}

func (r *AnalyticsRun) AuditDetails() map[string]any {
	return map[string]any{
		"analysis_type": r.AnalysisType,
		"status":        string(r.Status),
	}
}
