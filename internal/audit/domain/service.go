package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/finsight/pkg/db/pagination"
	"gorm.io/gorm"
)

// Recorder writes an audit entry using the caller's unit of work. An error
// must abort the caller's transaction.
type Recorder interface {
	Record(ctx context.Context, tx *gorm.DB, rec Record) error
}

type ListRequest struct {
	pagination.Pagination
	Action       string
	ResourceType string
	ResourceID   string
	Outcome      Outcome
	UserID       *snowflake.ID
	StartAt      *time.Time
	EndAt        *time.Time
}

type ListResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

type ListFilter struct {
	OrgID        snowflake.ID
	Action       string
	ResourceType string
	ResourceID   string
	Outcome      Outcome
	UserID       *snowflake.ID
	StartAt      *time.Time
	EndAt        *time.Time
	Cursor       *pagination.Cursor
	Limit        int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*AuditLog, error)
}

type Service interface {
	Recorder
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}

var (
	ErrInvalidAction    = errors.New("invalid_action")
	ErrInvalidOutcome   = errors.New("invalid_outcome")
	ErrInvalidTimeRange = errors.New("invalid_time_range")
	ErrInvalidPageToken = pagination.ErrInvalidPageToken
	ErrWriteFailed      = errors.New("audit_write_failed")
)
