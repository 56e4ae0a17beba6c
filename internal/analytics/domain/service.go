package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	// Start records a new run in the running state for the calling user.
	Start(ctx context.Context, req StartRunRequest) (*AnalyticsRun, error)
	Complete(ctx context.Context, id snowflake.ID, results map[string]any) (*AnalyticsRun, error)
	Fail(ctx context.Context, id snowflake.ID, reason string) (*AnalyticsRun, error)
	Get(ctx context.Context, id snowflake.ID) (*AnalyticsRun, error)
	List(ctx context.Context, req ListRunsRequest) ([]*AnalyticsRun, error)
	// ExpireStale fails up to limit runs, across all organizations, that are
	// still running and started before cutoff. It is a system operation and
	// takes no principal.
	ExpireStale(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// ExpiredReason is the error recorded on runs failed by ExpireStale.
const ExpiredReason = "timed_out"

type StartRunRequest struct {
	AnalysisType string         `json:"analysis_type" validate:"required,max=64"`
	Parameters   map[string]any `json:"parameters,omitempty"`
}

type ListRunsRequest struct {
	Status       RunStatus `json:"status,omitempty"`
	AnalysisType string    `json:"analysis_type,omitempty"`
}

var (
	ErrInvalidAnalysisType = errors.New("invalid_analysis_type")
	ErrInvalidStatus       = errors.New("invalid_status")
)
