package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, req CreateReportRequest) (*Report, error)
	Get(ctx context.Context, id snowflake.ID) (*Report, error)
	List(ctx context.Context, req ListReportsRequest) ([]*Report, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateReportRequest) (*Report, error)
	Delete(ctx context.Context, id snowflake.ID) error
}

type CreateReportRequest struct {
	Title   string `json:"title" validate:"required,max=255"`
	Content string `json:"content"`
	Format  Format `json:"format"`
}

type ListReportsRequest struct {
	Format Format `json:"format,omitempty"`
	// Mine limits the list to reports created by the caller.
	Mine bool `json:"mine,omitempty"`
}

type UpdateReportRequest struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
	Format  *Format `json:"format,omitempty"`
}

var (
	ErrInvalidTitle  = errors.New("invalid_title")
	ErrInvalidFormat = errors.New("invalid_format")
)
